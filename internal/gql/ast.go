// Package gql implements GraphLite's query-language front end: lexing,
// parsing, and the AST that internal/plan consumes.
//
// Spec §1 calls the query language itself "out of scope... treated as a
// black box", but nothing downstream has input without one, so this
// package exists to make the rest of the engine buildable. Grounded on the
// teacher's pkg/cypher/pattern_parser.go (quote- and bracket-aware
// splitting for node/edge pattern bodies) and pkg/cypher/transaction.go
// (keyword-prefix statement dispatch), extended with backtick-delimited
// identifier lexing per SPEC_FULL §C.4.
package gql

// Statement is any top-level parsed statement (§4.5 "statement kinds").
type Statement interface {
	statementNode()
}

// DataStatement is a MATCH/INSERT/SET/REMOVE/DELETE/RETURN pipeline
// (§4.5.1-§4.5.4).
type DataStatement struct {
	Clauses []Clause
}

func (*DataStatement) statementNode() {}

// DDLStatement is a CREATE/DROP SCHEMA|GRAPH|GRAPH TYPE statement
// (§4.5.5).
type DDLStatement struct {
	Verb       string // "CREATE" | "DROP"
	EntityKind string // "SCHEMA" | "GRAPH" | "GRAPH TYPE"
	Path       string
	IfExists   bool
	IfNotExist bool
	Cascade    bool
	Options    map[string]any
}

func (*DDLStatement) statementNode() {}

// SessionStatement is SET GRAPH|SCHEMA|TIME ZONE, RESET, or CLOSE (§6
// SessionDirective).
type SessionStatement struct {
	Directive string // "SetGraph" | "SetSchema" | "SetTimeZone" | "Reset" | "Close"
	Value     string
}

func (*SessionStatement) statementNode() {}

// TransactionStatement is BEGIN/COMMIT/ROLLBACK (§4.3).
type TransactionStatement struct {
	Verb string // "BEGIN" | "COMMIT" | "ROLLBACK"
}

func (*TransactionStatement) statementNode() {}

// CallStatement invokes a registered procedure (§4.4 EntityProcedure).
type CallStatement struct {
	Name string
	Args []Expr
	Yield []string
}

func (*CallStatement) statementNode() {}

// SetStatement assigns a session parameter (distinct from the SET clause
// inside a DataStatement, which mutates graph properties).
type SetStatement struct {
	ParamName string
	Value     Expr
}

func (*SetStatement) statementNode() {}

// Clause is one stage of a DataStatement pipeline.
type Clause interface {
	clauseNode()
}

// MatchClause binds pattern variables against the graph (§4.5.2).
type MatchClause struct {
	Patterns []PatternElement
	Where    Expr
	Optional bool
}

func (*MatchClause) clauseNode() {}

// InsertClause creates nodes/edges (§4.5.3).
type InsertClause struct {
	Patterns []PatternElement
}

// WhereClause is a standalone WHERE, used after UNWIND where the filter
// does not belong to a MATCH/WITH clause (§4.5.4's "optional WHERE"
// between UNWIND and REMOVE|SET).
type WhereClause struct {
	Expr Expr
}

func (*WhereClause) clauseNode() {}

func (*InsertClause) clauseNode() {}

// SetClause assigns properties/labels (§4.5.4).
type SetClause struct {
	Assignments []Assignment
}

func (*SetClause) clauseNode() {}

// Assignment is one `variable.property = expr` or `variable:Label` target.
type Assignment struct {
	Target   string // "variable.property" or "variable"
	AddLabel string // non-empty for `SET variable:Label`
	Value    Expr
}

// RemoveClause removes properties/labels (§4.5.4).
type RemoveClause struct {
	Targets      []string // "variable.property"
	RemoveLabels map[string]string // variable -> label
}

func (*RemoveClause) clauseNode() {}

// DeleteClause deletes nodes/edges, optionally DETACH (§4.5.3).
type DeleteClause struct {
	Variables []string
	Detach    bool
}

func (*DeleteClause) clauseNode() {}

// WithClause projects/aggregates and optionally pipes into UNWIND (§4.5.4).
type WithClause struct {
	Projections []Projection
	Where       Expr
	OrderBy     []OrderTerm
	Limit       Expr
}

func (*WithClause) clauseNode() {}

// UnwindClause expands a list-valued expression into rows (§4.5.4).
type UnwindClause struct {
	Source Expr
	As     string
}

func (*UnwindClause) clauseNode() {}

// ReturnClause is the terminal projection clause (§4.5.1 QueryResult
// shape).
type ReturnClause struct {
	Projections []Projection
	Distinct    bool
	OrderBy     []OrderTerm
	Skip        Expr
	Limit       Expr
}

func (*ReturnClause) clauseNode() {}

// SetOpClause combines two data statements (§4.5.1 row-equality set ops).
type SetOpClause struct {
	Op    string // "UNION" | "UNION ALL" | "INTERSECT" | "EXCEPT"
	Right *DataStatement
}

func (*SetOpClause) clauseNode() {}

// Projection is one `expr AS alias` return/with item.
type Projection struct {
	Expr  Expr
	Alias string
}

// OrderTerm is one ORDER BY item.
type OrderTerm struct {
	Expr       Expr
	Descending bool
}

// PatternElement is one node or node-edge-node chain inside a
// MATCH/INSERT pattern (§3 NodePattern/EdgePattern).
type PatternElement struct {
	Nodes []NodePattern
	Edges []EdgePattern // len(Edges) == len(Nodes)-1
}

// NodePattern is `(variable:Label1:Label2 {prop: expr, ...})`.
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties map[string]Expr
}

// EdgePattern is `-[variable:TYPE {prop: expr}]->` or its reverse/either
// direction form.
type EdgePattern struct {
	Variable   string
	Label      string
	Properties map[string]Expr
	Direction  Direction
}

// Direction is an edge pattern's arrow direction.
type Direction int

const (
	DirOutgoing Direction = iota
	DirIncoming
	DirEither
)

// Expr is any scalar/list expression appearing in a pattern, WHERE clause,
// or projection.
type Expr interface {
	exprNode()
}

// Literal is a parsed scalar constant.
type Literal struct {
	Value any // string | float64 | bool | nil
}

func (*Literal) exprNode() {}

// ListLiteral is `[expr, expr, ...]`.
type ListLiteral struct {
	Items []Expr
}

func (*ListLiteral) exprNode() {}

// Variable references a bound pattern variable.
type Variable struct {
	Name string
}

func (*Variable) exprNode() {}

// PropertyAccess is `variable.property`.
type PropertyAccess struct {
	Variable string
	Property string
}

func (*PropertyAccess) exprNode() {}

// Parameter is `$name`, a session-bound query parameter (§6 Params).
type Parameter struct {
	Name string
}

func (*Parameter) exprNode() {}

// BinaryExpr is `left OP right` (comparison, arithmetic, boolean).
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is `NOT expr` or `-expr`.
type UnaryExpr struct {
	Op      string
	Operand Expr
}

func (*UnaryExpr) exprNode() {}

// FunctionCall is `name(args...)`, resolved against the executor's
// function registry (SPEC_FULL §D).
type FunctionCall struct {
	Name     string
	Args     []Expr
	Distinct bool
}

func (*FunctionCall) exprNode() {}
