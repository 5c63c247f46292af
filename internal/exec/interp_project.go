package exec

import (
	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/plan"
	"github.com/graphlite-db/graphlite/internal/types"
)

// runProject evaluates a WITH/RETURN projection list (§4.5.1, §4.5.4).
// Cypher-style implicit grouping applies: if any projection is an
// aggregate function call, the whole projection becomes a GROUP BY over
// every non-aggregate projection, mirroring how the teacher's planner
// never introduced a separate grouping clause either — grouping is a
// property of which functions appear in RETURN/WITH, not a clause of its
// own (SPEC_FULL §B).
func runProject(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	if hasAggregate(n.Projections) {
		return runGroupedProject(n.Projections, in, ctx)
	}
	out := make([]Row, 0, len(in))
	for _, row := range in {
		projected, err := projectRow(n.Projections, row, ctx.Params)
		if err != nil {
			return nil, err
		}
		if err := chargeRow(ctx, projected); err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

// runAggregateNode handles an explicit Aggregate physical node, used by
// planners that separate grouping from projection. GraphLite's builder
// folds aggregation into Project (see above), so this exists to keep the
// interpreter complete against the full node.go operator set rather than
// leave one physical kind unhandled.
func runAggregateNode(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	return runGroupedProject(n.Aggregates, in, ctx)
}

func hasAggregate(projections []gql.Projection) bool {
	for _, p := range projections {
		if fc, ok := p.Expr.(*gql.FunctionCall); ok {
			if _, _, ok := ParseAggregate(fc); ok {
				return true
			}
		}
	}
	return false
}

func projectRow(projections []gql.Projection, row Row, params map[string]types.Value) (Row, error) {
	values := make(map[string]types.Value, len(projections))
	positional := make([]types.Value, len(projections))
	var names []string
	for i, p := range projections {
		v, err := Eval(p.Expr, row, params)
		if err != nil {
			return Row{}, err
		}
		alias := p.Alias
		if alias == "" {
			alias = projectionName(p.Expr)
		}
		values[alias] = v
		positional[i] = v
		names = append(names, alias)
	}
	return Row{
		Values:           values,
		PositionalValues: positional,
		SourceEntities:   entityIDsForProjections(projections, row),
	}, nil
}

// entityIDsForProjections returns the deduplicated node/edge ids that the
// returned columns resolve to (§4.5.1 source_entities, §8 scenario 5):
// for each projection whose expression is a bare variable or a property
// access on one, look up that variable's bound value in the pre-projection
// row and, if it is a node or edge, count its id towards this row's
// identity. Projections that don't reduce to a bound entity (literals,
// function calls, arithmetic) contribute nothing, and match variables that
// were never returned don't leak into the comparison either.
func entityIDsForProjections(projections []gql.Projection, row Row) []string {
	seen := make(map[string]struct{}, len(projections))
	var ids []string
	for _, p := range projections {
		var varName string
		switch e := p.Expr.(type) {
		case *gql.Variable:
			varName = e.Name
		case *gql.PropertyAccess:
			varName = e.Variable
		default:
			continue
		}
		v, ok := row.Values[varName]
		if !ok {
			continue
		}
		id, ok := entityID(v)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// entityIDsFromGroupKey is entityIDsForProjections' counterpart for grouped
// projections (§4.5.1, runGroupedProject): a grouping key built from a bare
// variable (not a property of one) guarantees every row folded into the
// group shares the same underlying entity, since two different nodes never
// hash equal as whole values. A key built from a property doesn't carry
// that guarantee (two distinct nodes can share a property value), so it is
// left out of identity and the group falls back to positional equality.
func entityIDsFromGroupKey(projections []gql.Projection, keyValues map[string]types.Value) []string {
	seen := make(map[string]struct{}, len(projections))
	var ids []string
	for _, p := range projections {
		if _, ok := p.Expr.(*gql.Variable); !ok {
			continue
		}
		alias := p.Alias
		if alias == "" {
			alias = projectionName(p.Expr)
		}
		v, ok := keyValues[alias]
		if !ok {
			continue
		}
		id, ok := entityID(v)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// entityID extracts a node or edge's id from a bound Value, if it holds one.
func entityID(v types.Value) (string, bool) {
	if n, ok := v.AsNode(); ok {
		return n.ID, true
	}
	if e, ok := v.AsEdge(); ok {
		return e.ID, true
	}
	return "", false
}

func projectionName(e gql.Expr) string {
	switch t := e.(type) {
	case *gql.Variable:
		return t.Name
	case *gql.PropertyAccess:
		return t.Variable + "." + t.Property
	case *gql.FunctionCall:
		return t.Name
	default:
		return ""
	}
}

// runGroupedProject groups in by every non-aggregate projection's value,
// folding each group through an Accumulator per aggregate projection.
func runGroupedProject(projections []gql.Projection, in []Row, ctx *Context) ([]Row, error) {
	type group struct {
		keyValues map[string]types.Value
		accs      []*Accumulator
	}
	groups := make(map[string]*group)
	var order []string

	if len(in) == 0 {
		// No input rows still yields one group with zero-valued
		// accumulators (count() of an empty match is 0, not no rows).
		accs := make([]*Accumulator, len(projections))
		for i, p := range projections {
			if fc, isFC := p.Expr.(*gql.FunctionCall); isFC {
				if kind, _, isAgg := ParseAggregate(fc); isAgg {
					accs[i] = NewAccumulator(kind, fc.Distinct)
				}
			}
		}
		groups[""] = &group{keyValues: map[string]types.Value{}, accs: accs}
		order = append(order, "")
	}

	for _, row := range in {
		keyParts := ""
		keyValues := make(map[string]types.Value)
		for _, p := range projections {
			if fc, ok := p.Expr.(*gql.FunctionCall); ok {
				if _, _, ok := ParseAggregate(fc); ok {
					continue
				}
			}
			v, err := Eval(p.Expr, row, ctx.Params)
			if err != nil {
				return nil, err
			}
			alias := p.Alias
			if alias == "" {
				alias = projectionName(p.Expr)
			}
			keyValues[alias] = v
			if hk, ok := v.HashKey().(string); ok {
				keyParts += hk + "\x01"
			}
		}

		g, ok := groups[keyParts]
		if !ok {
			accs := make([]*Accumulator, len(projections))
			for i, p := range projections {
				if fc, isFC := p.Expr.(*gql.FunctionCall); isFC {
					if kind, _, isAgg := ParseAggregate(fc); isAgg {
						accs[i] = NewAccumulator(kind, fc.Distinct)
					}
				}
			}
			g = &group{keyValues: keyValues, accs: accs}
			groups[keyParts] = g
			order = append(order, keyParts)
		}

		for i, p := range projections {
			fc, isFC := p.Expr.(*gql.FunctionCall)
			if !isFC {
				continue
			}
			kind, argExpr, isAgg := ParseAggregate(fc)
			if !isAgg {
				continue
			}
			_ = kind
			if argExpr == nil {
				g.accs[i].Add(types.Null, true)
				continue
			}
			v, err := Eval(argExpr, row, ctx.Params)
			if err != nil {
				return nil, err
			}
			g.accs[i].Add(v, false)
		}
	}

	out := make([]Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		values := make(map[string]types.Value, len(projections))
		positional := make([]types.Value, len(projections))
		for i, p := range projections {
			alias := p.Alias
			if alias == "" {
				alias = projectionName(p.Expr)
			}
			if g.accs[i] != nil {
				values[alias] = g.accs[i].Result()
				positional[i] = values[alias]
				continue
			}
			values[alias] = g.keyValues[alias]
			positional[i] = values[alias]
		}
		row := Row{
			Values:           values,
			PositionalValues: positional,
			SourceEntities:   entityIDsFromGroupKey(projections, g.keyValues),
		}
		if err := chargeRow(ctx, row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
