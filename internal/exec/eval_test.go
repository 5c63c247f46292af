package exec

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/types"
	"github.com/stretchr/testify/require"
)

func rowWithNode(varName string, n *types.Node) Row {
	return Row{Values: map[string]types.Value{varName: types.NewNode(n)}}
}

func TestEvalLiteralAndArithmetic(t *testing.T) {
	expr := &gql.BinaryExpr{Op: "+", Left: &gql.Literal{Value: 2.0}, Right: &gql.Literal{Value: 3.0}}
	v, err := Eval(expr, Row{}, nil)
	require.NoError(t, err)
	n, ok := v.AsNumber()
	require.True(t, ok)
	require.Equal(t, 5.0, n)
}

func TestEvalPropertyAccess(t *testing.T) {
	n := &types.Node{ID: "node_1", Labels: []string{"Person"}, Properties: map[string]any{"age": 30.0}}
	row := rowWithNode("p", n)
	v, err := Eval(&gql.PropertyAccess{Variable: "p", Property: "age"}, row, nil)
	require.NoError(t, err)
	age, ok := v.AsNumber()
	require.True(t, ok)
	require.Equal(t, 30.0, age)
}

func TestEvalPropertyAccessMissingReturnsNull(t *testing.T) {
	n := &types.Node{ID: "node_1", Properties: map[string]any{}}
	row := rowWithNode("p", n)
	v, err := Eval(&gql.PropertyAccess{Variable: "p", Property: "missing"}, row, nil)
	require.NoError(t, err)
	require.True(t, v.IsNull())
}

func TestEvalComparisonNullNeverTrue(t *testing.T) {
	expr := &gql.BinaryExpr{Op: "=", Left: &gql.Literal{Value: nil}, Right: &gql.Literal{Value: nil}}
	v, err := Eval(expr, Row{}, nil)
	require.NoError(t, err)
	require.False(t, Truthy(v))
}

func TestEvalAndShortCircuitsOnFalse(t *testing.T) {
	expr := &gql.BinaryExpr{
		Op:   "AND",
		Left: &gql.Literal{Value: false},
		Right: &gql.PropertyAccess{Variable: "nonexistent", Property: "x"}, // would yield Null via missing binding
	}
	v, err := Eval(expr, Row{}, nil)
	require.NoError(t, err)
	require.False(t, Truthy(v))
}

func TestEvalParameterUnboundErrors(t *testing.T) {
	_, err := Eval(&gql.Parameter{Name: "missing"}, Row{}, map[string]types.Value{})
	require.Error(t, err)
}

func TestEvalDivisionByZero(t *testing.T) {
	expr := &gql.BinaryExpr{Op: "/", Left: &gql.Literal{Value: 1.0}, Right: &gql.Literal{Value: 0.0}}
	_, err := Eval(expr, Row{}, nil)
	require.Error(t, err)
}
