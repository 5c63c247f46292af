package storage

import (
	"bytes"
	"encoding/gob"

	"github.com/graphlite-db/graphlite/internal/types"
	"github.com/klauspost/compress/zstd"
)

func init() {
	// Property values are parsed as `any` (string/float64/bool/[]any/nil);
	// gob needs concrete types registered to encode/decode interface fields.
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// gobSnapshot mirrors GraphCache's Nodes and Edges for gob encoding;
// GraphCache itself is not used directly because the label/out/in maps are
// reconstructed on load rather than trusted as-is (defense against a
// hand-edited snapshot going stale relative to Nodes/Edges).
type gobSnapshot struct {
	Nodes map[string]*nodeRecord
	Edges map[string]*edgeRecord
}

type nodeRecord struct {
	ID         string
	Labels     []string
	Properties map[string]any
}

type edgeRecord struct {
	ID         string
	From       string
	To         string
	Label      string
	Properties map[string]any
}

// SerializeGraph encodes a GraphCache as gob then compresses with zstd
// before it is written as the single `graph:<path>` blob value (§4.1).
// Compression reuses klauspost/compress, already a transitive badger
// dependency for its own block compression (SPEC_FULL §B).
func SerializeGraph(g *GraphCache) ([]byte, error) {
	snap := gobSnapshot{
		Nodes: make(map[string]*nodeRecord, len(g.Nodes)),
		Edges: make(map[string]*edgeRecord, len(g.Edges)),
	}
	for id, n := range g.Nodes {
		snap.Nodes[id] = &nodeRecord{ID: n.ID, Labels: n.Labels, Properties: n.Properties}
	}
	for id, e := range g.Edges {
		snap.Edges[id] = &edgeRecord{ID: e.ID, From: e.From, To: e.To, Label: e.Label, Properties: e.Properties}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// DeserializeGraph reverses SerializeGraph, reconstructing label indices and
// adjacency lists by replaying AddNode/AddEdge so the §8 round-trip
// invariant (deserialize(serialize(graph)) == graph) holds structurally,
// not just byte-for-byte.
func DeserializeGraph(data []byte) (*GraphCache, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}

	var snap gobSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, err
	}

	g := NewGraphCache()
	for _, rec := range snap.Nodes {
		_ = g.AddNode(&types.Node{ID: rec.ID, Labels: rec.Labels, Properties: rec.Properties})
	}
	for _, rec := range snap.Edges {
		_ = g.AddEdge(&types.Edge{ID: rec.ID, From: rec.From, To: rec.To, Label: rec.Label, Properties: rec.Properties})
	}
	return g, nil
}
