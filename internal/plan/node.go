// Package plan implements GraphLite's logical/physical planning (§4.5.2,
// C6) and its INSERT reference algorithm (identifier-reuse detection,
// content-addressed id generation, edge-pattern sandwiching validation).
//
// Grounded on graphlite/src/plan/insert_planner.rs, which spec §4.5.2
// names as "the reference" planning algorithm, for the INSERT half; the
// physical node set is built directly from spec §4.5.2 step 6's
// enumerated list since no teacher/pack file enumerates a full physical
// algebra. Structured the way nornicdb structures its other
// tagged-dispatch types (const-string-backed enums,
// pkg/storage/transaction.go's OperationType).
package plan

import "github.com/graphlite-db/graphlite/internal/gql"

// NodeKind tags a physical plan node's operator (§4.5.2 step 6).
type NodeKind string

const (
	KindScan      NodeKind = "Scan"
	KindFilter    NodeKind = "Filter"
	KindProject   NodeKind = "Project"
	KindJoin      NodeKind = "Join"
	KindAggregate NodeKind = "Aggregate"
	KindOrderBy   NodeKind = "OrderBy"
	KindLimit     NodeKind = "Limit"
	KindUnion     NodeKind = "Union"
	KindUnionSet  NodeKind = "UnionSet" // INTERSECT/EXCEPT (§8 scenario 5)
	KindInsert    NodeKind = "Insert"
	KindUpdate    NodeKind = "Update"
	KindDelete    NodeKind = "Delete"
)

// Node is one physical plan operator. Every concrete node embeds its
// Kind and its children, forming a tree the executor walks bottom-up.
type Node struct {
	Kind     NodeKind
	Children []*Node

	// Scan
	ScanLabel string
	ScanVar   string

	// Filter
	FilterExpr gql.Expr

	// Project
	Projections []gql.Projection

	// Join (pattern traversal: connects a bound node variable to a new
	// node variable across an edge pattern)
	JoinEdge EdgeJoin

	// Aggregate
	GroupBy    []string
	Aggregates []gql.Projection

	// OrderBy
	OrderTerms []gql.OrderTerm

	// Limit
	LimitExpr gql.Expr
	SkipExpr  gql.Expr

	// Union / UnionSet
	SetOp string // "UNION" | "UNION ALL" | "INTERSECT" | "EXCEPT"

	// Insert
	InsertPlan *InsertPlan

	// Update
	Assignments  []gql.Assignment
	RemoveTargets []string
	RemoveLabels  map[string]string

	// Delete
	DeleteVars []string
	Detach     bool
}

// EdgeJoin describes one hop of a pattern traversal between two bound (or
// newly-bound) node variables.
type EdgeJoin struct {
	FromVar   string
	ToVar     string
	EdgeVar   string
	EdgeLabel string
	Direction gql.Direction
}
