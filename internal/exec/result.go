// Package exec implements GraphLite's statement dispatcher and the
// DDL/DML operators the planner's physical nodes compile to (§4.5, C8).
//
// Grounded on the teacher's pkg/cypher/executor.go / pkg/cypher/
// transaction.go for the overall dispatch-by-keyword shape (generalized
// here to dispatch-by-AST-kind over internal/gql's parsed statements), and
// on the spec's own exec/{context,memory_budget,streaming_topk,
// unwind_preprocessor,result} components for the budget guard, bounded
// top-k heap, and the WITH/UNWIND/REMOVE|SET rewrite.
package exec

import (
	"sort"

	"github.com/graphlite-db/graphlite/internal/types"
)

// Row is one result row (§4.5.1 QueryResult shape): named bindings plus a
// positional view for set-op comparison, and identity tracking
// (SourceEntities) for rows whose equality must be identity-based rather
// than value-based.
type Row struct {
	Values          map[string]types.Value
	PositionalValues []types.Value
	SourceEntities  []string // node/edge ids contributing to this row, if any
	TextScore       *float64
	HighlightSnippet *string
}

// Equal implements §4.5.1's row-equality rule for set operations:
// identity comparison via SourceEntities when both rows carry one,
// otherwise positional comparison (with SQL-null-never-equal semantics via
// types.Value.Equal).
func (r Row) Equal(o Row) bool {
	if len(r.SourceEntities) > 0 && len(o.SourceEntities) > 0 {
		return sameStringSet(r.SourceEntities, o.SourceEntities)
	}
	if len(r.PositionalValues) != len(o.PositionalValues) {
		return false
	}
	for i := range r.PositionalValues {
		if !r.PositionalValues[i].Equal(o.PositionalValues[i]) {
			return false
		}
	}
	return true
}

// HashKey returns a comparable key for set-op dedup implementations that
// want a map instead of O(n^2) comparison. It agrees with Equal when both
// rows carry SourceEntities or neither does; a row with SourceEntities is
// always keyed by them, so it never shares a key with a row that has none.
func (r Row) HashKey() string {
	if len(r.SourceEntities) > 0 {
		sorted := append([]string(nil), r.SourceEntities...)
		sort.Strings(sorted)
		key := ""
		for _, s := range sorted {
			key += s + "\x00"
		}
		return "entities:" + key
	}
	key := ""
	for _, v := range r.PositionalValues {
		if s, ok := v.HashKey().(string); ok {
			key += s
		}
		key += "\x01"
	}
	return "values:" + key
}

func sameStringSet(a, b []string) bool {
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

// SessionDirective describes a session-mutating statement's effect (§6).
type SessionDirective struct {
	Kind  string // "SetGraph" | "SetSchema" | "SetTimeZone" | "Reset" | "Close"
	Value string
}

// Warning is a non-fatal diagnostic attached to a QueryResult (e.g.
// advisory schema-violation text, §4.5.5).
type Warning struct {
	Message string
}

// QueryResult is the uniform shape every statement execution returns
// (§4.5.1).
type QueryResult struct {
	Rows             []Row
	Variables        []string
	ExecutionTimeMs  float64
	RowsAffected     int64
	SessionResult    *SessionDirective
	Warnings         []Warning
}
