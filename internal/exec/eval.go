// Expression evaluation for the executor's Filter/Project/Aggregate
// operators (§4.5.2 step 6, §D functions). Grounded on the teacher's
// pkg/cypher/expression.go recursive eval-against-bindings shape,
// generalized from its property-only binding model to gql.Expr's full
// AST (literals, variables, property access, params, binary/unary ops,
// function calls).
package exec

import (
	"fmt"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/types"
)

// Eval reduces expr to a Value against row's bindings and the session's
// bound parameters. Node/Edge-typed bindings in row.Values are used for
// PropertyAccess; everything else is a straight Variable lookup.
func Eval(expr gql.Expr, row Row, params map[string]types.Value) (types.Value, error) {
	switch e := expr.(type) {
	case *gql.Literal:
		return literalToValue(e.Value), nil

	case *gql.ListLiteral:
		items := make([]types.Value, len(e.Items))
		for i, it := range e.Items {
			v, err := Eval(it, row, params)
			if err != nil {
				return types.Null, err
			}
			items[i] = v
		}
		return types.NewList(items), nil

	case *gql.Variable:
		v, ok := row.Values[e.Name]
		if !ok {
			return types.Null, nil
		}
		return v, nil

	case *gql.PropertyAccess:
		return evalPropertyAccess(e, row)

	case *gql.Parameter:
		v, ok := params[e.Name]
		if !ok {
			return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "unbound parameter: $%s", e.Name)
		}
		return v, nil

	case *gql.UnaryExpr:
		return evalUnary(e, row, params)

	case *gql.BinaryExpr:
		return evalBinary(e, row, params)

	case *gql.FunctionCall:
		return CallFunction(e, row, params)

	default:
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "unsupported expression type %T", expr)
	}
}

func literalToValue(v any) types.Value {
	switch t := v.(type) {
	case nil:
		return types.Null
	case bool:
		return types.NewBoolean(t)
	case float64:
		return types.NewNumber(t)
	case int:
		return types.NewNumber(float64(t))
	case string:
		return types.NewString(t)
	default:
		return types.Null
	}
}

func evalPropertyAccess(e *gql.PropertyAccess, row Row) (types.Value, error) {
	bound, ok := row.Values[e.Variable]
	if !ok {
		return types.Null, nil
	}
	var props map[string]any
	if n, ok := bound.AsNode(); ok {
		props = n.Properties
		if e.Property == "id" {
			return types.NewString(n.ID), nil
		}
		if e.Property == "labels" {
			labels := make([]types.Value, len(n.Labels))
			for i, l := range n.Labels {
				labels[i] = types.NewString(l)
			}
			return types.NewList(labels), nil
		}
	} else if ed, ok := bound.AsEdge(); ok {
		props = ed.Properties
		switch e.Property {
		case "id":
			return types.NewString(ed.ID), nil
		case "type":
			return types.NewString(ed.Label), nil
		}
	} else {
		return types.Null, nil
	}
	raw, ok := props[e.Property]
	if !ok {
		return types.Null, nil
	}
	return rawToValue(raw), nil
}

// rawToValue converts a Node/Edge property (stored as `any`, §3) into a
// typed Value. Properties are written through literalToValue's inverse
// at INSERT/SET time so the only shapes that arrive here are the ones
// literalToValue/Value.Raw can already produce.
func rawToValue(raw any) types.Value {
	if v, ok := raw.(types.Value); ok {
		return v
	}
	return literalToValue(raw)
}

func evalUnary(e *gql.UnaryExpr, row Row, params map[string]types.Value) (types.Value, error) {
	operand, err := Eval(e.Operand, row, params)
	if err != nil {
		return types.Null, err
	}
	switch e.Op {
	case "NOT":
		if operand.IsNull() {
			return types.Null, nil
		}
		b, _ := operand.AsBoolean()
		return types.NewBoolean(!b), nil
	case "-":
		if operand.IsNull() {
			return types.Null, nil
		}
		n, _ := operand.AsNumber()
		return types.NewNumber(-n), nil
	case "IS NULL":
		return types.NewBoolean(operand.IsNull()), nil
	case "IS NOT NULL":
		return types.NewBoolean(!operand.IsNull()), nil
	default:
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "unsupported unary operator %q", e.Op)
	}
}

func evalBinary(e *gql.BinaryExpr, row Row, params map[string]types.Value) (types.Value, error) {
	// AND short-circuits on a false left operand and OR on a true one,
	// before evaluating the right side; a null left operand does not
	// short-circuit.
	switch e.Op {
	case "AND":
		l, err := Eval(e.Left, row, params)
		if err != nil {
			return types.Null, err
		}
		if lb, ok := l.AsBoolean(); ok && !lb {
			return types.NewBoolean(false), nil
		}
		r, err := Eval(e.Right, row, params)
		if err != nil {
			return types.Null, err
		}
		if rb, ok := r.AsBoolean(); ok && !rb {
			return types.NewBoolean(false), nil
		}
		if l.IsNull() || r.IsNull() {
			return types.Null, nil
		}
		lb, _ := l.AsBoolean()
		rb, _ := r.AsBoolean()
		return types.NewBoolean(lb && rb), nil
	case "OR":
		l, err := Eval(e.Left, row, params)
		if err != nil {
			return types.Null, err
		}
		if lb, ok := l.AsBoolean(); ok && lb {
			return types.NewBoolean(true), nil
		}
		r, err := Eval(e.Right, row, params)
		if err != nil {
			return types.Null, err
		}
		if rb, ok := r.AsBoolean(); ok && rb {
			return types.NewBoolean(true), nil
		}
		if l.IsNull() || r.IsNull() {
			return types.Null, nil
		}
		lb, _ := l.AsBoolean()
		rb, _ := r.AsBoolean()
		return types.NewBoolean(lb || rb), nil
	}

	l, err := Eval(e.Left, row, params)
	if err != nil {
		return types.Null, err
	}
	r, err := Eval(e.Right, row, params)
	if err != nil {
		return types.Null, err
	}

	switch e.Op {
	case "=":
		return types.NewBoolean(!l.IsNull() && !r.IsNull() && l.Equal(r)), nil
	case "<>", "!=":
		return types.NewBoolean(!l.IsNull() && !r.IsNull() && !l.Equal(r)), nil
	case "<", "<=", ">", ">=":
		return evalOrderingComparison(e.Op, l, r)
	case "+", "-", "*", "/", "%":
		return evalArithmetic(e.Op, l, r)
	default:
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "unsupported binary operator %q", e.Op)
	}
}

func evalOrderingComparison(op string, l, r types.Value) (types.Value, error) {
	if l.IsNull() || r.IsNull() {
		return types.Null, nil
	}
	ln, lok := l.AsNumber()
	rn, rok := r.AsNumber()
	if lok && rok {
		return types.NewBoolean(compareFloats(op, ln, rn)), nil
	}
	ls, lsok := l.AsString()
	rs, rsok := r.AsString()
	if lsok && rsok {
		return types.NewBoolean(compareStrings(op, ls, rs)), nil
	}
	return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "cannot compare %s %s %s", l.Kind(), op, r.Kind())
}

func compareFloats(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func compareStrings(op string, a, b string) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

func evalArithmetic(op string, l, r types.Value) (types.Value, error) {
	if op == "+" {
		ls, lok := l.AsString()
		rs, rok := r.AsString()
		if lok || rok {
			if !lok || !rok {
				return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "cannot concatenate %s + %s", l.Kind(), r.Kind())
			}
			return types.NewString(ls + rs), nil
		}
	}
	if l.IsNull() || r.IsNull() {
		return types.Null, nil
	}
	ln, lok := l.AsNumber()
	rn, rok := r.AsNumber()
	if !lok || !rok {
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "arithmetic on non-numeric values: %s %s %s", l.Kind(), op, r.Kind())
	}
	switch op {
	case "+":
		return types.NewNumber(ln + rn), nil
	case "-":
		return types.NewNumber(ln - rn), nil
	case "*":
		return types.NewNumber(ln * rn), nil
	case "/":
		if rn == 0 {
			return types.Null, graphliteerr.New(graphliteerr.KindExpression, "division by zero")
		}
		return types.NewNumber(ln / rn), nil
	case "%":
		if rn == 0 {
			return types.Null, graphliteerr.New(graphliteerr.KindExpression, "modulo by zero")
		}
		return types.NewNumber(float64(int64(ln) % int64(rn))), nil
	default:
		return types.Null, graphliteerr.Newf(graphliteerr.KindExpression, "unsupported arithmetic operator %q", op)
	}
}

// Truthy reduces a WHERE-clause result to Go bool, treating Null and
// non-boolean values as false (SQL three-valued-logic collapse at the
// filter boundary, §4.5.2).
func Truthy(v types.Value) bool {
	if v.IsNull() {
		return false
	}
	b, ok := v.AsBoolean()
	return ok && b
}

func valueToString(v types.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if n, ok := v.AsNumber(); ok {
		return fmt.Sprintf("%g", n)
	}
	if b, ok := v.AsBoolean(); ok {
		return fmt.Sprintf("%t", b)
	}
	return ""
}
