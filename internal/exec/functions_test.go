package exec

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/types"
	"github.com/stretchr/testify/require"
)

func TestCallConcat(t *testing.T) {
	fc := &gql.FunctionCall{Name: "concat", Args: []gql.Expr{&gql.Literal{Value: "a"}, &gql.Literal{Value: "b"}}}
	v, err := CallFunction(fc, Row{}, nil)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "ab", s)
}

func TestCallToUpper(t *testing.T) {
	fc := &gql.FunctionCall{Name: "toUpper", Args: []gql.Expr{&gql.Literal{Value: "hi"}}}
	v, err := CallFunction(fc, Row{}, nil)
	require.NoError(t, err)
	s, _ := v.AsString()
	require.Equal(t, "HI", s)
}

func TestCallAggregateOutsideAggregateContextErrors(t *testing.T) {
	fc := &gql.FunctionCall{Name: "count", Args: nil}
	_, err := CallFunction(fc, Row{}, nil)
	require.Error(t, err)
}

func TestAccumulatorCount(t *testing.T) {
	a := NewAccumulator(AggCount, false)
	a.Add(types.Null, true)
	a.Add(types.Null, true)
	a.Add(types.NewNumber(1), true)
	n, _ := a.Result().AsNumber()
	require.Equal(t, 3.0, n)
}

func TestAccumulatorAvg(t *testing.T) {
	a := NewAccumulator(AggAvg, false)
	a.Add(types.NewNumber(2), false)
	a.Add(types.NewNumber(4), false)
	n, _ := a.Result().AsNumber()
	require.Equal(t, 3.0, n)
}

func TestAccumulatorDistinctCount(t *testing.T) {
	a := NewAccumulator(AggCount, true)
	a.Add(types.NewString("x"), false)
	a.Add(types.NewString("x"), false)
	a.Add(types.NewString("y"), false)
	n, _ := a.Result().AsNumber()
	require.Equal(t, 2.0, n)
}

func TestAccumulatorCollect(t *testing.T) {
	a := NewAccumulator(AggCollect, false)
	a.Add(types.NewString("x"), false)
	a.Add(types.Null, false)
	a.Add(types.NewString("y"), false)
	l, ok := a.Result().AsList()
	require.True(t, ok)
	require.Len(t, l, 2, "null values are skipped by collect")
}

func TestAccumulatorMinMax(t *testing.T) {
	min := NewAccumulator(AggMin, false)
	max := NewAccumulator(AggMax, false)
	for _, n := range []float64{3, 1, 4, 1, 5} {
		min.Add(types.NewNumber(n), false)
		max.Add(types.NewNumber(n), false)
	}
	minV, _ := min.Result().AsNumber()
	maxV, _ := max.Result().AsNumber()
	require.Equal(t, 1.0, minV)
	require.Equal(t, 5.0, maxV)
}

func TestParseAggregateRecognizesSupportedNames(t *testing.T) {
	kind, _, ok := ParseAggregate(&gql.FunctionCall{Name: "SUM", Args: []gql.Expr{&gql.Variable{Name: "x"}}})
	require.True(t, ok)
	require.Equal(t, AggSum, kind)

	_, _, ok = ParseAggregate(&gql.FunctionCall{Name: "toUpper"})
	require.False(t, ok)
}
