// Function dispatch for FunctionCall expressions (SPEC_FULL §B: a small
// registry, not a full function library — count/avg/sum/min/max, string
// concatenation, and collect() to drive the §8 scenarios and the
// WITH/UNWIND/REMOVE|SET rewrite).
package exec

import (
	"strings"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/types"
)

// CallFunction evaluates a scalar function call. Aggregate functions
// (count/avg/sum/min/max/collect) are handled separately by the Aggregate
// operator over a group of rows, not here — calling one outside an
// aggregate context is a planning error, reported as ExpressionError.
func CallFunction(fc *gql.FunctionCall, row Row, params map[string]types.Value) (types.Value, error) {
	name := strings.ToLower(fc.Name)
	switch name {
	case "count", "avg", "sum", "min", "max", "collect":
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression,
			"%s() is an aggregate function and can only appear in a WITH/RETURN projection", name)
	case "concat":
		return callConcat(fc, row, params)
	case "toupper":
		return callStringUnary(fc, row, params, strings.ToUpper)
	case "tolower":
		return callStringUnary(fc, row, params, strings.ToLower)
	case "trim":
		return callStringUnary(fc, row, params, strings.TrimSpace)
	case "size", "length":
		return callSize(fc, row, params)
	case "coalesce":
		return callCoalesce(fc, row, params)
	default:
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "unknown function %q", fc.Name)
	}
}

func evalArgs(fc *gql.FunctionCall, row Row, params map[string]types.Value) ([]types.Value, error) {
	args := make([]types.Value, len(fc.Args))
	for i, a := range fc.Args {
		v, err := Eval(a, row, params)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func callConcat(fc *gql.FunctionCall, row Row, params map[string]types.Value) (types.Value, error) {
	args, err := evalArgs(fc, row, params)
	if err != nil {
		return types.Null, err
	}
	var sb strings.Builder
	for _, a := range args {
		if a.IsNull() {
			return types.Null, nil
		}
		sb.WriteString(valueToString(a))
	}
	return types.NewString(sb.String()), nil
}

func callStringUnary(fc *gql.FunctionCall, row Row, params map[string]types.Value, f func(string) string) (types.Value, error) {
	if len(fc.Args) != 1 {
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "%s() takes exactly one argument", fc.Name)
	}
	v, err := Eval(fc.Args[0], row, params)
	if err != nil {
		return types.Null, err
	}
	if v.IsNull() {
		return types.Null, nil
	}
	s, ok := v.AsString()
	if !ok {
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "%s() requires a string argument", fc.Name)
	}
	return types.NewString(f(s)), nil
}

func callSize(fc *gql.FunctionCall, row Row, params map[string]types.Value) (types.Value, error) {
	if len(fc.Args) != 1 {
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "%s() takes exactly one argument", fc.Name)
	}
	v, err := Eval(fc.Args[0], row, params)
	if err != nil {
		return types.Null, err
	}
	if v.IsNull() {
		return types.Null, nil
	}
	if s, ok := v.AsString(); ok {
		return types.NewNumber(float64(len(s))), nil
	}
	if l, ok := v.AsList(); ok {
		return types.NewNumber(float64(len(l))), nil
	}
	return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "%s() requires a string or list argument", fc.Name)
}

func callCoalesce(fc *gql.FunctionCall, row Row, params map[string]types.Value) (types.Value, error) {
	for _, a := range fc.Args {
		v, err := Eval(a, row, params)
		if err != nil {
			return types.Null, err
		}
		if !v.IsNull() {
			return v, nil
		}
	}
	return types.Null, nil
}

// AggregateKind tags one of the small set of supported aggregate
// functions (§D).
type AggregateKind string

const (
	AggCount   AggregateKind = "count"
	AggSum     AggregateKind = "sum"
	AggAvg     AggregateKind = "avg"
	AggMin     AggregateKind = "min"
	AggMax     AggregateKind = "max"
	AggCollect AggregateKind = "collect"
)

// ParseAggregate recognizes fc as one of the supported aggregate
// functions, returning its kind, the single argument expression, and
// whether fc names a supported aggregate at all.
func ParseAggregate(fc *gql.FunctionCall) (kind AggregateKind, arg gql.Expr, ok bool) {
	switch strings.ToLower(fc.Name) {
	case "count":
		kind = AggCount
	case "sum":
		kind = AggSum
	case "avg":
		kind = AggAvg
	case "min":
		kind = AggMin
	case "max":
		kind = AggMax
	case "collect":
		kind = AggCollect
	default:
		return "", nil, false
	}
	if len(fc.Args) == 1 {
		arg = fc.Args[0]
	}
	return kind, arg, true
}

// Accumulator folds one aggregate function's state across a group of
// rows (§D, driven by the Aggregate physical node).
type Accumulator struct {
	kind     AggregateKind
	distinct bool
	seen     map[string]bool
	count    int64
	sum      float64
	numeric  bool
	min, max types.Value
	haveMM   bool
	items    []types.Value
}

// NewAccumulator returns a fresh accumulator for kind.
func NewAccumulator(kind AggregateKind, distinct bool) *Accumulator {
	a := &Accumulator{kind: kind, distinct: distinct}
	if distinct {
		a.seen = make(map[string]bool)
	}
	return a
}

// Add folds v into the accumulator. For count(*) (arg == nil), v may be
// types.Null; the row is still counted.
func (a *Accumulator) Add(v types.Value, countAll bool) {
	if a.distinct && !countAll {
		key := ""
		if hk, ok := v.HashKey().(string); ok {
			key = hk
		}
		if a.seen[key] {
			return
		}
		a.seen[key] = true
	}
	switch a.kind {
	case AggCount:
		if countAll || !v.IsNull() {
			a.count++
		}
	case AggSum, AggAvg:
		if n, ok := v.AsNumber(); ok {
			a.sum += n
			a.count++
			a.numeric = true
		}
	case AggMin:
		if v.IsNull() {
			return
		}
		if !a.haveMM || lessValue(v, a.min) {
			a.min = v
			a.haveMM = true
		}
	case AggMax:
		if v.IsNull() {
			return
		}
		if !a.haveMM || lessValue(a.max, v) {
			a.max = v
			a.haveMM = true
		}
	case AggCollect:
		if !v.IsNull() {
			a.items = append(a.items, v)
		}
	}
}

// Result returns the accumulator's final value.
func (a *Accumulator) Result() types.Value {
	switch a.kind {
	case AggCount:
		return types.NewNumber(float64(a.count))
	case AggSum:
		return types.NewNumber(a.sum)
	case AggAvg:
		if a.count == 0 {
			return types.Null
		}
		return types.NewNumber(a.sum / float64(a.count))
	case AggMin, AggMax:
		if !a.haveMM {
			return types.Null
		}
		if a.kind == AggMin {
			return a.min
		}
		return a.max
	case AggCollect:
		return types.NewList(a.items)
	default:
		return types.Null
	}
}

func lessValue(a, b types.Value) bool {
	if an, ok := a.AsNumber(); ok {
		if bn, ok := b.AsNumber(); ok {
			return an < bn
		}
	}
	if as, ok := a.AsString(); ok {
		if bs, ok := b.AsString(); ok {
			return as < bs
		}
	}
	return false
}
