// Package storage implements GraphLite's durable KV storage engine: the
// on-disk directory layout (§4.1), the in-memory GraphCache snapshot that
// every statement loads-mutates-saves against, and atomic graph/catalog
// persistence on top of Badger.
//
// Grounded on the teacher's pkg/storage/memory.go label-index and adjacency
// map shapes, generalized from a live mutable engine into the spec's
// load-whole-snapshot-mutate-in-memory-write-back model (§5 isolation).
package storage

import (
	"fmt"
	"sort"

	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/types"
)

// GraphCache is the in-memory representation of one named graph (§3).
// Not safe for concurrent mutation; callers serialize access to a given
// graph path at the storage layer (§5).
type GraphCache struct {
	Nodes  map[string]*types.Node
	Edges  map[string]*types.Edge

	NodeLabels map[string]map[string]struct{} // label -> set of node ids
	EdgeLabels map[string]map[string]struct{} // label -> set of edge ids

	Out map[string][]string // node id -> outgoing edge ids
	In  map[string][]string // node id -> incoming edge ids
}

// NewGraphCache returns an empty graph snapshot.
func NewGraphCache() *GraphCache {
	return &GraphCache{
		Nodes:      make(map[string]*types.Node),
		Edges:      make(map[string]*types.Edge),
		NodeLabels: make(map[string]map[string]struct{}),
		EdgeLabels: make(map[string]map[string]struct{}),
		Out:        make(map[string][]string),
		In:         make(map[string][]string),
	}
}

// AddNode inserts a node, maintaining label indices and adjacency entries.
// Returns a graphliteerr KindRuntime "node already exists" error if the id
// is already present (duplicate insert of the same structural content, §3
// invariant).
func (g *GraphCache) AddNode(n *types.Node) error {
	if _, exists := g.Nodes[n.ID]; exists {
		return graphliteerr.New(graphliteerr.KindRuntime, "node already exists: "+n.ID)
	}
	g.Nodes[n.ID] = n
	for _, label := range n.Labels {
		g.indexNodeLabel(label, n.ID)
	}
	if _, ok := g.Out[n.ID]; !ok {
		g.Out[n.ID] = nil
	}
	if _, ok := g.In[n.ID]; !ok {
		g.In[n.ID] = nil
	}
	return nil
}

// FindDuplicateNode returns an existing node with identical structural
// content to n, if one exists — used by INSERT's duplicate-detection path
// (§4.5.3, §8).
func (g *GraphCache) FindDuplicateNode(n *types.Node) *types.Node {
	for _, label := range n.Labels {
		for id := range g.NodeLabels[label] {
			existing := g.Nodes[id]
			if existing != nil && existing.SameContent(n) {
				return existing
			}
		}
		// Only need to scan one label's index; SameContent checks the full set.
		break
	}
	if len(n.Labels) == 0 {
		for _, existing := range g.Nodes {
			if len(existing.Labels) == 0 && existing.SameContent(n) {
				return existing
			}
		}
	}
	return nil
}

// FindDuplicateEdge returns an existing edge with identical (from, to,
// label, properties) to e, if one exists (§4.5.3).
func (g *GraphCache) FindDuplicateEdge(e *types.Edge) *types.Edge {
	for _, edgeID := range g.Out[e.From] {
		existing := g.Edges[edgeID]
		if existing != nil && existing.SameContent(e) {
			return existing
		}
	}
	return nil
}

// AddEdge inserts an edge, validating both endpoints exist and maintaining
// adjacency + label indices.
func (g *GraphCache) AddEdge(e *types.Edge) error {
	if _, exists := g.Edges[e.ID]; exists {
		return graphliteerr.New(graphliteerr.KindRuntime, "edge already exists: "+e.ID)
	}
	if _, ok := g.Nodes[e.From]; !ok {
		return graphliteerr.New(graphliteerr.KindValidation, "invalid edge: start node not found: "+e.From)
	}
	if _, ok := g.Nodes[e.To]; !ok {
		return graphliteerr.New(graphliteerr.KindValidation, "invalid edge: end node not found: "+e.To)
	}
	g.Edges[e.ID] = e
	g.Out[e.From] = append(g.Out[e.From], e.ID)
	g.In[e.To] = append(g.In[e.To], e.ID)
	g.indexEdgeLabel(e.Label, e.ID)
	return nil
}

// RemoveNode deletes a node and its index entries. Callers must remove
// incident edges first (or use DeleteNodeCascade) to preserve the §8
// adjacency invariant.
func (g *GraphCache) RemoveNode(id string) (*types.Node, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return nil, graphliteerr.New(graphliteerr.KindRuntime, "node not found: "+id)
	}
	for _, label := range n.Labels {
		g.unindexNodeLabel(label, id)
	}
	delete(g.Nodes, id)
	delete(g.Out, id)
	delete(g.In, id)
	return n, nil
}

// DeleteNodeCascade removes a node and every incident edge (DETACH DELETE).
func (g *GraphCache) DeleteNodeCascade(id string) (*types.Node, []*types.Edge, error) {
	var removed []*types.Edge
	for _, edgeID := range append([]string(nil), g.Out[id]...) {
		e, err := g.RemoveEdge(edgeID)
		if err == nil {
			removed = append(removed, e)
		}
	}
	for _, edgeID := range append([]string(nil), g.In[id]...) {
		e, err := g.RemoveEdge(edgeID)
		if err == nil {
			removed = append(removed, e)
		}
	}
	n, err := g.RemoveNode(id)
	return n, removed, err
}

// RemoveEdge deletes an edge and its index/adjacency entries.
func (g *GraphCache) RemoveEdge(id string) (*types.Edge, error) {
	e, ok := g.Edges[id]
	if !ok {
		return nil, graphliteerr.New(graphliteerr.KindRuntime, "edge not found: "+id)
	}
	g.Out[e.From] = removeString(g.Out[e.From], id)
	g.In[e.To] = removeString(g.In[e.To], id)
	g.unindexEdgeLabel(e.Label, id)
	delete(g.Edges, id)
	return e, nil
}

// ReindexNodeLabels re-indexes a node after its label set changed in place.
func (g *GraphCache) ReindexNodeLabels(id string, oldLabels []string) {
	n := g.Nodes[id]
	if n == nil {
		return
	}
	for _, l := range oldLabels {
		g.unindexNodeLabel(l, id)
	}
	for _, l := range n.Labels {
		g.indexNodeLabel(l, id)
	}
}

func (g *GraphCache) indexNodeLabel(label, id string) {
	if g.NodeLabels[label] == nil {
		g.NodeLabels[label] = make(map[string]struct{})
	}
	g.NodeLabels[label][id] = struct{}{}
}

func (g *GraphCache) unindexNodeLabel(label, id string) {
	if set, ok := g.NodeLabels[label]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(g.NodeLabels, label)
		}
	}
}

func (g *GraphCache) indexEdgeLabel(label, id string) {
	if g.EdgeLabels[label] == nil {
		g.EdgeLabels[label] = make(map[string]struct{})
	}
	g.EdgeLabels[label][id] = struct{}{}
}

func (g *GraphCache) unindexEdgeLabel(label, id string) {
	if set, ok := g.EdgeLabels[label]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(g.EdgeLabels, label)
		}
	}
}

// NodesByLabel returns node ids carrying label, in sorted order for
// deterministic query results.
func (g *GraphCache) NodesByLabel(label string) []string {
	set := g.NodeLabels[label]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllNodeIDs returns every node id, sorted.
func (g *GraphCache) AllNodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// CheckInvariants validates the §8 universal invariants, used by tests and
// by recovery to detect a corrupted snapshot.
func (g *GraphCache) CheckInvariants() error {
	for id := range g.Nodes {
		if _, ok := g.Out[id]; !ok {
			return fmt.Errorf("invariant violation: node %s missing adjacency_out entry", id)
		}
		if _, ok := g.In[id]; !ok {
			return fmt.Errorf("invariant violation: node %s missing adjacency_in entry", id)
		}
	}
	for id, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return fmt.Errorf("invariant violation: edge %s from-node %s missing", id, e.From)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return fmt.Errorf("invariant violation: edge %s to-node %s missing", id, e.To)
		}
		if !containsString(g.Out[e.From], id) {
			return fmt.Errorf("invariant violation: edge %s missing from out[%s]", id, e.From)
		}
		if !containsString(g.In[e.To], id) {
			return fmt.Errorf("invariant violation: edge %s missing from in[%s]", id, e.To)
		}
	}
	for label, set := range g.NodeLabels {
		for id := range set {
			n := g.Nodes[id]
			if n == nil || !n.HasLabel(label) {
				return fmt.Errorf("invariant violation: label index %s has stale node %s", label, id)
			}
		}
	}
	return nil
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the snapshot, used before mutating in a
// transaction whose rollback must restore the pre-tx state (§5 isolation:
// "loading the full GraphCache into memory, mutating in memory").
func (g *GraphCache) Clone() *GraphCache {
	out := NewGraphCache()
	for id, n := range g.Nodes {
		out.Nodes[id] = n.Clone()
	}
	for id, e := range g.Edges {
		out.Edges[id] = e.Clone()
	}
	for label, set := range g.NodeLabels {
		ns := make(map[string]struct{}, len(set))
		for id := range set {
			ns[id] = struct{}{}
		}
		out.NodeLabels[label] = ns
	}
	for label, set := range g.EdgeLabels {
		ns := make(map[string]struct{}, len(set))
		for id := range set {
			ns[id] = struct{}{}
		}
		out.EdgeLabels[label] = ns
	}
	for id, edges := range g.Out {
		out.Out[id] = append([]string(nil), edges...)
	}
	for id, edges := range g.In {
		out.In[id] = append([]string(nil), edges...)
	}
	return out
}
