// Package types defines the GraphLite data model: the tagged Value union,
// Node and Edge property-graph entities, and the Path type used by pattern
// traversal results.
//
// Equality for set operations (UNION/INTERSECT/EXCEPT, §4.5.1) follows SQL
// rules: Null never equals Null, even to itself. Callers that need
// "same value" semantics for deduplication must use Equal, not ==, since
// Value holds an any payload that may not be comparable.
package types

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindDateTime
	KindDateTimeFixedOffset
	KindDateTimeNamedTZ
	KindTimeWindow
	KindPath
	KindList
	KindArray // duplicate alias of List, kept for migration compatibility (§3)
	KindVector
	KindNode
	KindEdge
	KindTemporal
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindDateTime:
		return "DateTime"
	case KindDateTimeFixedOffset:
		return "DateTimeWithFixedOffset"
	case KindDateTimeNamedTZ:
		return "DateTimeWithNamedTz"
	case KindTimeWindow:
		return "TimeWindow"
	case KindPath:
		return "Path"
	case KindList, KindArray:
		return "List"
	case KindVector:
		return "Vector"
	case KindNode:
		return "Node"
	case KindEdge:
		return "Edge"
	case KindTemporal:
		return "Temporal"
	default:
		return "Unknown"
	}
}

// NamedTZ holds a datetime paired with an IANA timezone name, preserved
// verbatim rather than collapsed to a fixed offset.
type NamedTZ struct {
	Zone string
	Time time.Time
}

// FixedOffset holds a datetime with an explicit, non-named UTC offset.
type FixedOffset struct {
	OffsetSeconds int
	Time          time.Time
}

// TimeWindow is a half-open [Start, End) interval of two DateTime values.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Value is GraphLite's tagged union over the scalar and composite types a
// property or expression result can hold.
type Value struct {
	kind Kind
	data any
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

func NewBoolean(b bool) Value       { return Value{kind: KindBoolean, data: b} }
func NewNumber(f float64) Value     { return Value{kind: KindNumber, data: f} }
func NewString(s string) Value      { return Value{kind: KindString, data: s} }
func NewDateTime(t time.Time) Value { return Value{kind: KindDateTime, data: t.UTC()} }
func NewDateTimeFixedOffset(offsetSeconds int, t time.Time) Value {
	return Value{kind: KindDateTimeFixedOffset, data: FixedOffset{OffsetSeconds: offsetSeconds, Time: t}}
}
func NewDateTimeNamedTZ(zone string, t time.Time) Value {
	return Value{kind: KindDateTimeNamedTZ, data: NamedTZ{Zone: zone, Time: t}}
}
func NewTimeWindow(start, end time.Time) Value {
	return Value{kind: KindTimeWindow, data: TimeWindow{Start: start, End: end}}
}
func NewPath(p Path) Value           { return Value{kind: KindPath, data: p} }
func NewList(vs []Value) Value       { return Value{kind: KindList, data: vs} }
func NewVector(v []float32) Value    { return Value{kind: KindVector, data: v} }
func NewNode(n *Node) Value          { return Value{kind: KindNode, data: n} }
func NewEdge(e *Edge) Value          { return Value{kind: KindEdge, data: e} }

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBoolean() (bool, bool)      { b, ok := v.data.(bool); return b, ok && v.kind == KindBoolean }
func (v Value) AsNumber() (float64, bool)    { f, ok := v.data.(float64); return f, ok && v.kind == KindNumber }
func (v Value) AsString() (string, bool)     { s, ok := v.data.(string); return s, ok && v.kind == KindString }
func (v Value) AsDateTime() (time.Time, bool) {
	t, ok := v.data.(time.Time)
	return t, ok && v.kind == KindDateTime
}
func (v Value) AsList() ([]Value, bool) {
	l, ok := v.data.([]Value)
	return l, ok && (v.kind == KindList || v.kind == KindArray)
}
func (v Value) AsVector() ([]float32, bool) {
	vec, ok := v.data.([]float32)
	return vec, ok && v.kind == KindVector
}
func (v Value) AsNode() (*Node, bool) {
	n, ok := v.data.(*Node)
	return n, ok && v.kind == KindNode
}
func (v Value) AsEdge() (*Edge, bool) {
	e, ok := v.data.(*Edge)
	return e, ok && v.kind == KindEdge
}
func (v Value) AsPath() (Path, bool) {
	p, ok := v.data.(Path)
	return p, ok && v.kind == KindPath
}

// Raw returns the underlying Go value for callers (e.g. JSON encoding,
// expression evaluation) that need to type-switch directly.
func (v Value) Raw() any { return v.data }

// Equal implements SQL-style equality: Null never equals Null (or anything
// else). Used by set-operation dedup (§4.5.1) and MATCH WHERE comparisons.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNull || o.kind == KindNull {
		return false
	}
	if v.kind != o.kind {
		// Number/Number across int-ish kinds already unified; cross-kind is never equal.
		return false
	}
	switch v.kind {
	case KindBoolean:
		a, _ := v.AsBoolean()
		b, _ := o.AsBoolean()
		return a == b
	case KindNumber:
		a, _ := v.AsNumber()
		b, _ := o.AsNumber()
		return a == b
	case KindString:
		a, _ := v.AsString()
		b, _ := o.AsString()
		return a == b
	case KindDateTime:
		a, _ := v.AsDateTime()
		b, _ := o.AsDateTime()
		return a.Equal(b)
	case KindList, KindArray:
		a, _ := v.AsList()
		b, _ := o.AsList()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindNode:
		a, _ := v.AsNode()
		b, _ := o.AsNode()
		return a != nil && b != nil && a.ID == b.ID
	case KindEdge:
		a, _ := v.AsEdge()
		b, _ := o.AsEdge()
		return a != nil && b != nil && a.ID == b.ID
	default:
		return fmt.Sprintf("%v", v.data) == fmt.Sprintf("%v", o.data)
	}
}

// HashKey returns a comparable Go value suitable for use as a map key, so
// that hash-based dedup implementations match Equal's semantics. Null
// values get a unique per-call key so they never collide (mirroring
// Equal's "Null never equals Null"). nullCounter is accessed with atomic
// ops since §5's parallel worker threads may call HashKey concurrently
// across sessions.
var nullCounter uint64

func (v Value) HashKey() any {
	if v.kind == KindNull {
		n := atomic.AddUint64(&nullCounter, 1)
		return fmt.Sprintf("__null_%d", n)
	}
	switch v.kind {
	case KindList, KindArray:
		l, _ := v.AsList()
		keys := make([]any, len(l))
		for i, e := range l {
			keys[i] = e.HashKey()
		}
		return fmt.Sprintf("%v", keys)
	case KindNode:
		n, _ := v.AsNode()
		return "node:" + string(n.ID)
	case KindEdge:
		e, _ := v.AsEdge()
		return "edge:" + string(e.ID)
	default:
		return fmt.Sprintf("%d:%v", v.kind, v.data)
	}
}

// SortedKeys returns a map's keys in deterministic order, used wherever a
// property map needs a stable iteration order for hashing or serialization.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
