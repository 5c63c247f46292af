// Package exec walks physical plan trees (internal/plan) against a
// storage.GraphCache snapshot, the way the teacher's pkg/cypher/executor.go
// walks its own operator tree against pkg/storage's in-memory maps —
// generalized here from the teacher's fixed Cypher-subset operator set to
// GraphLite's Scan/Filter/Project/Join/Aggregate/OrderBy/Limit/Union/
// UnionSet/Insert/Update/Delete (§4.5.2 step 6).
package exec

import (
	"sort"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/plan"
	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/txn"
	"github.com/graphlite-db/graphlite/internal/types"
)

// Context carries everything a plan node needs besides its own subtree:
// the graph it runs against, bound session parameters, the memory budget
// it must charge row materialization against, the transaction every
// mutation must be WAL-logged through (§4.3), and a running affected-row
// count for DML statements.
type Context struct {
	Graph        *storage.GraphCache
	Params       map[string]types.Value
	Budget       *MemoryBudget
	Tx           *txn.Transaction
	RowsAffected int64
	Warnings     []Warning
}

// Warn appends a non-fatal diagnostic to the statement's result (§7
// "Warnings are non-fatal and accumulate in the result's warnings list").
func (ctx *Context) Warn(message string) {
	ctx.Warnings = append(ctx.Warnings, Warning{Message: message})
}

// Run executes a physical plan tree rooted at n, returning the rows it
// produces. A nil n (an empty statement body) yields no rows.
func Run(n *plan.Node, ctx *Context) ([]Row, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case plan.KindScan:
		return runScan(n, ctx)
	case plan.KindFilter:
		return runFilter(n, ctx)
	case plan.KindProject:
		return runProject(n, ctx)
	case plan.KindJoin:
		return runJoin(n, ctx)
	case plan.KindAggregate:
		return runAggregateNode(n, ctx)
	case plan.KindOrderBy:
		return runOrderBy(n, ctx)
	case plan.KindLimit:
		return runLimit(n, ctx)
	case plan.KindUnion, plan.KindUnionSet:
		return runSetOp(n, ctx)
	case plan.KindInsert:
		return runInsert(n, ctx)
	case plan.KindUpdate:
		return runUpdate(n, ctx)
	case plan.KindDelete:
		return runDelete(n, ctx)
	default:
		return nil, graphliteerr.Newf(graphliteerr.KindRuntime, "exec: unsupported plan node kind %q", n.Kind)
	}
}

func runChild(n *plan.Node, ctx *Context, i int) ([]Row, error) {
	if i >= len(n.Children) {
		return nil, nil
	}
	return Run(n.Children[i], ctx)
}

func chargeRow(ctx *Context, r Row) error {
	if ctx.Budget == nil {
		return nil
	}
	return ctx.Budget.Charge(EstimateRowBytes(r))
}

func runScan(n *plan.Node, ctx *Context) ([]Row, error) {
	var ids []string
	if n.ScanLabel != "" {
		ids = ctx.Graph.NodesByLabel(n.ScanLabel)
	} else {
		ids = ctx.Graph.AllNodeIDs()
	}
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		node := ctx.Graph.Nodes[id]
		if node == nil {
			continue
		}
		row := Row{
			Values:         map[string]types.Value{n.ScanVar: types.NewNode(node)},
			SourceEntities: []string{node.ID},
		}
		if err := chargeRow(ctx, row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func runFilter(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(in))
	for _, row := range in {
		v, err := Eval(n.FilterExpr, row, ctx.Params)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			out = append(out, row)
		}
	}
	return out, nil
}

// runJoin handles two shapes (§4.5.2 step 6): a cartesian join between two
// independently-scanned pattern elements (both Children present, JoinEdge
// zero-valued), and a single-hop pattern traversal (one Child, JoinEdge
// describing the edge to follow from an already-bound node variable).
func runJoin(n *plan.Node, ctx *Context) ([]Row, error) {
	if len(n.Children) == 2 {
		return runCartesianJoin(n, ctx)
	}
	return runTraversalJoin(n, ctx)
}

func runCartesianJoin(n *plan.Node, ctx *Context) ([]Row, error) {
	left, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	right, err := runChild(n, ctx, 1)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			merged := mergeRows(l, r)
			if err := chargeRow(ctx, merged); err != nil {
				return nil, err
			}
			out = append(out, merged)
		}
	}
	return out, nil
}

func mergeRows(a, b Row) Row {
	values := make(map[string]types.Value, len(a.Values)+len(b.Values))
	for k, v := range a.Values {
		values[k] = v
	}
	for k, v := range b.Values {
		values[k] = v
	}
	return Row{
		Values:         values,
		SourceEntities: append(append([]string(nil), a.SourceEntities...), b.SourceEntities...),
	}
}

func runTraversalJoin(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	je := n.JoinEdge
	out := make([]Row, 0, len(in))
	for _, row := range in {
		fromVal, ok := row.Values[je.FromVar]
		if !ok {
			continue
		}
		fromNode, ok := fromVal.AsNode()
		if !ok {
			continue
		}
		for _, hop := range candidateEdges(ctx.Graph, fromNode.ID, je.Direction, je.EdgeLabel) {
			toNode := ctx.Graph.Nodes[hop.otherEnd]
			if toNode == nil {
				continue
			}
			values := make(map[string]types.Value, len(row.Values)+2)
			for k, v := range row.Values {
				values[k] = v
			}
			values[je.ToVar] = types.NewNode(toNode)
			entities := append(append([]string(nil), row.SourceEntities...), toNode.ID)
			if je.EdgeVar != "" {
				values[je.EdgeVar] = types.NewEdge(hop.edge)
				entities = append(entities, hop.edge.ID)
			}
			newRow := Row{Values: values, SourceEntities: entities}
			if err := chargeRow(ctx, newRow); err != nil {
				return nil, err
			}
			out = append(out, newRow)
		}
	}
	return out, nil
}

type edgeHop struct {
	edge     *types.Edge
	otherEnd string
}

func candidateEdges(g *storage.GraphCache, nodeID string, dir gql.Direction, label string) []edgeHop {
	var hops []edgeHop
	consider := func(edgeIDs []string, otherEndOf func(*types.Edge) string) {
		for _, eid := range edgeIDs {
			e := g.Edges[eid]
			if e == nil {
				continue
			}
			if label != "" && e.Label != label {
				continue
			}
			hops = append(hops, edgeHop{edge: e, otherEnd: otherEndOf(e)})
		}
	}
	switch dir {
	case gql.DirOutgoing:
		consider(g.Out[nodeID], func(e *types.Edge) string { return e.To })
	case gql.DirIncoming:
		consider(g.In[nodeID], func(e *types.Edge) string { return e.From })
	default: // DirEither
		consider(g.Out[nodeID], func(e *types.Edge) string { return e.To })
		consider(g.In[nodeID], func(e *types.Edge) string { return e.From })
	}
	return hops
}

func runOrderBy(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	rows := append([]Row(nil), in...)
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		less, err := lessRows(rows[i], rows[j], n.OrderTerms, ctx.Params)
		if err != nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return rows, nil
}

func lessRows(a, b Row, terms []gql.OrderTerm, params map[string]types.Value) (bool, error) {
	for _, t := range terms {
		av, err := Eval(t.Expr, a, params)
		if err != nil {
			return false, err
		}
		bv, err := Eval(t.Expr, b, params)
		if err != nil {
			return false, err
		}
		cmp, ok := compareValues(av, bv)
		if !ok || cmp == 0 {
			continue
		}
		if av.IsNull() != bv.IsNull() {
			return bv.IsNull(), nil
		}
		if t.Descending {
			return cmp > 0, nil
		}
		return cmp < 0, nil
	}
	return false, nil
}

// compareValues orders two scalar values, pushing Null last regardless of
// ASC/DESC (SQL convention GraphLite follows for ORDER BY, §4.5.2).
func compareValues(a, b types.Value) (int, bool) {
	if a.IsNull() && b.IsNull() {
		return 0, true
	}
	if a.IsNull() {
		return 1, true
	}
	if b.IsNull() {
		return -1, true
	}
	if an, ok := a.AsNumber(); ok {
		if bn, ok := b.AsNumber(); ok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if as, ok := a.AsString(); ok {
		if bs, ok := b.AsString(); ok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

// orderByScorer reduces a single OrderTerm to a float64 score suitable
// for StreamingTopK, signed so that StreamingTopK's keep-the-highest
// min-heap reproduces ASC vs. DESC ("highest score wins" must map to
// "first in the result"). ok is false for anything StreamingTopK can't
// score in isolation: multi-key ORDER BY, or a term that doesn't evaluate
// to a number for every row.
func orderByScorer(terms []gql.OrderTerm) (func(Row, map[string]types.Value) (float64, bool), bool) {
	if len(terms) != 1 {
		return nil, false
	}
	t := terms[0]
	sign := -1.0
	if t.Descending {
		sign = 1.0
	}
	return func(r Row, params map[string]types.Value) (float64, bool) {
		v, err := Eval(t.Expr, r, params)
		if err != nil {
			return 0, false
		}
		n, ok := v.AsNumber()
		if !ok {
			return 0, false
		}
		return sign * n, true
	}, true
}

// runOrderByLimit recognizes an OrderBy feeding directly into this Limit
// (with no Skip) and, when the ORDER BY key reduces to a single numeric
// term, answers it with a StreamingTopK collector instead of materializing
// and fully sorting every input row (§4.5.6, §8 top-k testable property).
// Falls back to nil, false, nil for any shape it can't score this way.
func runOrderByLimit(n *plan.Node, ctx *Context) ([]Row, bool, error) {
	if n.SkipExpr != nil || n.LimitExpr == nil {
		return nil, false, nil
	}
	child := n.Children[0]
	if child.Kind != plan.KindOrderBy {
		return nil, false, nil
	}
	scorer, ok := orderByScorer(child.OrderTerms)
	if !ok {
		return nil, false, nil
	}
	v, err := Eval(n.LimitExpr, Row{}, ctx.Params)
	if err != nil {
		return nil, true, err
	}
	f, ok := v.AsNumber()
	if !ok {
		return nil, false, nil
	}
	k := int(f)
	if k < 0 {
		k = 0
	}

	in, err := runChild(child, ctx, 0)
	if err != nil {
		return nil, true, err
	}

	topk := NewStreamingTopK(k)
	for _, row := range in {
		score, ok := scorer(row, ctx.Params)
		if !ok {
			// A non-numeric or errored key for at least one row means the
			// collected score space isn't total; bail to the exact sort.
			return nil, false, nil
		}
		topk.Offer(row, score)
	}
	return topk.Rows(), true, nil
}

func runLimit(n *plan.Node, ctx *Context) ([]Row, error) {
	if rows, handled, err := runOrderByLimit(n, ctx); handled {
		return rows, err
	}

	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	skip := 0
	if n.SkipExpr != nil {
		v, err := Eval(n.SkipExpr, Row{}, ctx.Params)
		if err != nil {
			return nil, err
		}
		if f, ok := v.AsNumber(); ok {
			skip = int(f)
		}
	}
	if skip >= len(in) {
		return nil, nil
	}
	in = in[skip:]
	if n.LimitExpr == nil {
		return in, nil
	}
	v, err := Eval(n.LimitExpr, Row{}, ctx.Params)
	if err != nil {
		return nil, err
	}
	f, ok := v.AsNumber()
	if !ok {
		return in, nil
	}
	limit := int(f)
	if limit < 0 {
		limit = 0
	}
	if limit > len(in) {
		limit = len(in)
	}
	return in[:limit], nil
}

func runSetOp(n *plan.Node, ctx *Context) ([]Row, error) {
	left, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	right, err := runChild(n, ctx, 1)
	if err != nil {
		return nil, err
	}

	switch n.SetOp {
	case "UNION ALL":
		return append(append([]Row(nil), left...), right...), nil
	case "UNION":
		return dedupRows(append(append([]Row(nil), left...), right...)), nil
	case "INTERSECT":
		rs := rowSet(right)
		out := make([]Row, 0, len(left))
		seen := make(map[string]bool)
		for _, l := range left {
			key := l.HashKey()
			if rs[key] && !seen[key] {
				seen[key] = true
				out = append(out, l)
			}
		}
		return out, nil
	case "EXCEPT":
		rs := rowSet(right)
		out := make([]Row, 0, len(left))
		seen := make(map[string]bool)
		for _, l := range left {
			key := l.HashKey()
			if !rs[key] && !seen[key] {
				seen[key] = true
				out = append(out, l)
			}
		}
		return out, nil
	default:
		return nil, graphliteerr.Newf(graphliteerr.KindRuntime, "exec: unsupported set operator %q", n.SetOp)
	}
}

func rowSet(rows []Row) map[string]bool {
	s := make(map[string]bool, len(rows))
	for _, r := range rows {
		s[r.HashKey()] = true
	}
	return s
}

func dedupRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		k := r.HashKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
