package types

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Node is a property-graph vertex (§3). Labels form an ordered set — order
// is preserved as declared but duplicates are not re-added.
type Node struct {
	ID         string
	Labels     []string
	Properties map[string]any
}

// Edge is a directed property-graph relationship (§3).
type Edge struct {
	ID         string
	From       string
	To         string
	Label      string
	Properties map[string]any
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AddLabel appends label to the node's ordered label set if not present.
func (n *Node) AddLabel(label string) {
	if !n.HasLabel(label) {
		n.Labels = append(n.Labels, label)
	}
}

// RemoveLabel drops label from the node's ordered label set, if present.
func (n *Node) RemoveLabel(label string) {
	out := n.Labels[:0]
	for _, l := range n.Labels {
		if l != label {
			out = append(out, l)
		}
	}
	n.Labels = out
}

// Clone returns a deep copy, used by undo-log snapshotting (§3 UndoOperation)
// and transaction read-your-writes buffers.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	labels := make([]string, len(n.Labels))
	copy(labels, n.Labels)
	props := make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v
	}
	return &Node{ID: n.ID, Labels: labels, Properties: props}
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	props := make(map[string]any, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	return &Edge{ID: e.ID, From: e.From, To: e.To, Label: e.Label, Properties: props}
}

// SameContent reports whether two nodes are structural duplicates: same
// labels (as a set) and same properties. Used to detect the
// AlreadyExists/"duplicate node detected" case during INSERT (§4.5.3, §8).
func (n *Node) SameContent(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	return sameLabelSet(n.Labels, o.Labels) && samePropertyMap(n.Properties, o.Properties)
}

// SameContent reports whether two edges are semantic duplicates: same
// endpoints, label, and exact property map (§4.5.3).
func (e *Edge) SameContent(o *Edge) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.From == o.From && e.To == o.To && e.Label == o.Label && samePropertyMap(e.Properties, o.Properties)
}

func sameLabelSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func samePropertyMap(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", v) != fmt.Sprintf("%v", bv) {
			return false
		}
	}
	return true
}

// ContentAddressedNodeID derives a stable id for a planner-generated node:
// "node_" + hex(64-bit hash over sorted labels XOR sorted properties) (§3).
// Hashing the same (labels, properties) twice yields the same id, which is
// what makes repeated INSERTs of identical content idempotent (§8).
func ContentAddressedNodeID(labels []string, properties map[string]any) string {
	h := xxhash.New()
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	for _, l := range sorted {
		_, _ = h.WriteString(l)
		_, _ = h.WriteString("\x00")
	}
	sum := h.Sum64()
	sum ^= propertyHash(properties)
	return fmt.Sprintf("node_%016x", sum)
}

// ContentAddressedEdgeID derives a stable id for a planner-generated edge by
// hashing (from, to, label, properties) (§3).
func ContentAddressedEdgeID(from, to, label string, properties map[string]any) string {
	h := xxhash.New()
	_, _ = h.WriteString(from)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(to)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(label)
	sum := h.Sum64()
	sum ^= propertyHash(properties)
	return fmt.Sprintf("edge_%016x", sum)
}

func propertyHash(properties map[string]any) uint64 {
	if len(properties) == 0 {
		return 0
	}
	h := xxhash.New()
	for _, k := range SortedKeys(properties) {
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(fmt.Sprintf("%v", properties[k]))
		_, _ = h.WriteString("\x01")
	}
	return h.Sum64()
}

// Path is a sequence of alternating nodes and edges produced by traversal
// operations (e.g. shortestPath-style results).
type Path struct {
	Nodes []*Node
	Edges []*Edge
}

// Length returns the number of edges (hops) in the path.
func (p Path) Length() int { return len(p.Edges) }
