package exec

import (
	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/plan"
	"github.com/graphlite-db/graphlite/internal/txn"
	"github.com/graphlite-db/graphlite/internal/types"
	"github.com/graphlite-db/graphlite/internal/wal"
)

// runInsert executes a planned INSERT (§4.5.3): it walks InsertPlan.Steps
// in order against each input row (one row per upstream MATCH binding, or
// a single empty row when INSERT has no preceding MATCH), creating nodes
// and edges, reusing already-bound variables, and detecting structural
// duplicates via FindDuplicateNode/Edge (§8 "repeated identical INSERT is
// a no-op that still returns the existing entity").
func runInsert(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(in) == 0 {
		in = []Row{{Values: map[string]types.Value{}}}
	}

	out := make([]Row, 0, len(in))
	for _, row := range in {
		bindings := make(map[string]types.Value, len(row.Values))
		for k, v := range row.Values {
			bindings[k] = v
		}
		for _, step := range n.InsertPlan.Steps {
			if err := runInsertStep(step, bindings, ctx); err != nil {
				return nil, err
			}
		}
		out = append(out, Row{Values: bindings})
	}
	return out, nil
}

func runInsertStep(step plan.InsertStep, bindings map[string]types.Value, ctx *Context) error {
	switch step.Kind {
	case plan.StepCreateNode:
		return createNodeStep(step, bindings, ctx)
	case plan.StepReuseNode:
		if _, ok := bindings[step.Var]; !ok {
			return graphliteerr.Newf(graphliteerr.KindRuntime, "insert: reused variable %q is not bound", step.Var)
		}
		return nil
	case plan.StepCreateEdge:
		return createEdgeStep(step, bindings, ctx)
	default:
		return graphliteerr.Newf(graphliteerr.KindRuntime, "insert: unknown step kind %q", step.Kind)
	}
}

func evalPropertyMap(exprs map[string]gql.Expr, ctx *Context) (map[string]any, error) {
	props := make(map[string]any, len(exprs))
	for k, e := range exprs {
		v, err := Eval(e, Row{}, ctx.Params)
		if err != nil {
			return nil, err
		}
		props[k] = v.Raw()
	}
	return props, nil
}

func createNodeStep(step plan.InsertStep, bindings map[string]types.Value, ctx *Context) error {
	props, err := evalPropertyMap(step.Properties, ctx)
	if err != nil {
		return err
	}
	id := types.ContentAddressedNodeID(step.Labels, props)
	node := &types.Node{ID: id, Labels: append([]string(nil), step.Labels...), Properties: props}

	if existing := ctx.Graph.FindDuplicateNode(node); existing != nil {
		ctx.Warn("node with matching labels and properties already exists; reused " + existing.ID)
		if step.Var != "" {
			bindings[step.Var] = types.NewNode(existing)
		}
		return nil
	}

	if ctx.Tx != nil {
		undo := txn.UndoOperation{Kind: txn.UndoInsertNode, GraphPath: ctx.Tx.GraphPath, NodeBefore: node}
		redo := txn.RedoOperation{Kind: txn.UndoInsertNode, NodeAfter: node}
		if err := ctx.Tx.RecordOp(undo, redo, wal.OpInsertNode, "insert node "+id); err != nil {
			return err
		}
	}
	if err := ctx.Graph.AddNode(node); err != nil {
		return err
	}
	ctx.RowsAffected++
	if step.Var != "" {
		bindings[step.Var] = types.NewNode(node)
	}
	return nil
}

func createEdgeStep(step plan.InsertStep, bindings map[string]types.Value, ctx *Context) error {
	fromVal, ok := bindings[step.FromVar]
	if !ok {
		return graphliteerr.Newf(graphliteerr.KindRuntime, "insert: edge endpoint %q is not bound", step.FromVar)
	}
	toVal, ok := bindings[step.ToVar]
	if !ok {
		return graphliteerr.Newf(graphliteerr.KindRuntime, "insert: edge endpoint %q is not bound", step.ToVar)
	}
	fromNode, _ := fromVal.AsNode()
	toNode, _ := toVal.AsNode()
	if fromNode == nil || toNode == nil {
		return graphliteerr.New(graphliteerr.KindRuntime, "insert: edge endpoint is not a node")
	}

	props, err := evalPropertyMap(step.EdgeProperties, ctx)
	if err != nil {
		return err
	}
	id := types.ContentAddressedEdgeID(fromNode.ID, toNode.ID, step.EdgeLabel, props)
	edge := &types.Edge{ID: id, From: fromNode.ID, To: toNode.ID, Label: step.EdgeLabel, Properties: props}

	if existing := ctx.Graph.FindDuplicateEdge(edge); existing != nil {
		ctx.Warn("edge with matching endpoints, label, and properties already exists; reused " + existing.ID)
		if step.EdgeVar != "" {
			bindings[step.EdgeVar] = types.NewEdge(existing)
		}
		return nil
	}

	if ctx.Tx != nil {
		undo := txn.UndoOperation{Kind: txn.UndoInsertEdge, GraphPath: ctx.Tx.GraphPath, EdgeBefore: edge}
		redo := txn.RedoOperation{Kind: txn.UndoInsertEdge, EdgeAfter: edge}
		if err := ctx.Tx.RecordOp(undo, redo, wal.OpInsertEdge, "insert edge "+id); err != nil {
			return err
		}
	}
	if err := ctx.Graph.AddEdge(edge); err != nil {
		return err
	}
	ctx.RowsAffected++
	if step.EdgeVar != "" {
		bindings[step.EdgeVar] = types.NewEdge(edge)
	}
	return nil
}

// runUpdate executes a SET/REMOVE clause (§4.5.4) against every input
// row's bound node/edge variables, WAL-logging an UpdateNode/UpdateEdge
// undo+redo pair per mutated entity.
func runUpdate(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(in))
	for _, row := range in {
		if err := applyAssignments(n.Assignments, row, ctx); err != nil {
			return nil, err
		}
		if err := applyRemovals(n.RemoveTargets, n.RemoveLabels, row, ctx); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func applyAssignments(assignments []gql.Assignment, row Row, ctx *Context) error {
	touched := make(map[string]bool)
	for _, a := range assignments {
		variable, prop := splitTarget(a.Target)
		bound, ok := row.Values[variable]
		if !ok {
			return graphliteerr.Newf(graphliteerr.KindRuntime, "set: variable %q is not bound", variable)
		}
		v, err := Eval(a.Value, row, ctx.Params)
		if err != nil {
			return err
		}
		if err := mutateEntity(ctx, bound, func(n *types.Node) {
			if a.AddLabel != "" {
				n.AddLabel(a.AddLabel)
				return
			}
			n.Properties[prop] = v.Raw()
		}, func(e *types.Edge) {
			e.Properties[prop] = v.Raw()
		}); err != nil {
			return err
		}
		if !touched[variable] {
			touched[variable] = true
			ctx.RowsAffected++
		}
	}
	return nil
}

func applyRemovals(targets []string, removeLabels map[string]string, row Row, ctx *Context) error {
	touched := make(map[string]bool)
	for _, target := range targets {
		variable, prop := splitTarget(target)
		bound, ok := row.Values[variable]
		if !ok {
			continue
		}
		if err := mutateEntity(ctx, bound, func(n *types.Node) {
			delete(n.Properties, prop)
		}, func(e *types.Edge) {
			delete(e.Properties, prop)
		}); err != nil {
			return err
		}
		if !touched[variable] {
			touched[variable] = true
			ctx.RowsAffected++
		}
	}
	for variable, label := range removeLabels {
		bound, ok := row.Values[variable]
		if !ok {
			continue
		}
		if err := mutateEntity(ctx, bound, func(n *types.Node) {
			n.RemoveLabel(label)
		}, func(e *types.Edge) {}); err != nil {
			return err
		}
		if !touched[variable] {
			touched[variable] = true
			ctx.RowsAffected++
		}
	}
	return nil
}

func splitTarget(target string) (variable, property string) {
	for i := 0; i < len(target); i++ {
		if target[i] == '.' {
			return target[:i], target[i+1:]
		}
	}
	return target, ""
}

// mutateEntity applies mutateNode/mutateEdge to v's underlying entity,
// WAL-logging the before/after image around the in-place mutation.
func mutateEntity(ctx *Context, v types.Value, mutateNode func(*types.Node), mutateEdge func(*types.Edge)) error {
	if node, ok := v.AsNode(); ok {
		before := node.Clone()
		mutateNode(node)
		if ctx.Tx != nil {
			undo := txn.UndoOperation{Kind: txn.UndoUpdateNode, GraphPath: ctx.Tx.GraphPath, NodeBefore: before}
			redo := txn.RedoOperation{Kind: txn.UndoUpdateNode, NodeAfter: node}
			if err := ctx.Tx.RecordOp(undo, redo, wal.OpUpdateNode, "update node "+node.ID); err != nil {
				return err
			}
		}
		ctx.Graph.ReindexNodeLabels(node.ID, before.Labels)
		return nil
	}
	if edge, ok := v.AsEdge(); ok {
		before := edge.Clone()
		mutateEdge(edge)
		if ctx.Tx != nil {
			undo := txn.UndoOperation{Kind: txn.UndoUpdateEdge, GraphPath: ctx.Tx.GraphPath, EdgeBefore: before}
			redo := txn.RedoOperation{Kind: txn.UndoUpdateEdge, EdgeAfter: edge}
			if err := ctx.Tx.RecordOp(undo, redo, wal.OpUpdateEdge, "update edge "+edge.ID); err != nil {
				return err
			}
		}
		return nil
	}
	return graphliteerr.New(graphliteerr.KindRuntime, "set/remove target is not a node or edge")
}

// runDelete executes a DELETE/DETACH DELETE clause (§4.5.3).
func runDelete(n *plan.Node, ctx *Context) ([]Row, error) {
	in, err := runChild(n, ctx, 0)
	if err != nil {
		return nil, err
	}
	deleted := make(map[string]bool)
	for _, row := range in {
		for _, variable := range n.DeleteVars {
			bound, ok := row.Values[variable]
			if !ok {
				continue
			}
			if node, ok := bound.AsNode(); ok {
				if deleted[node.ID] {
					continue
				}
				if err := deleteNode(node.ID, n.Detach, ctx); err != nil {
					return nil, err
				}
				deleted[node.ID] = true
				continue
			}
			if edge, ok := bound.AsEdge(); ok {
				if deleted[edge.ID] {
					continue
				}
				if err := deleteEdge(edge.ID, ctx); err != nil {
					return nil, err
				}
				deleted[edge.ID] = true
			}
		}
	}
	return nil, nil
}

func deleteNode(id string, detach bool, ctx *Context) error {
	node := ctx.Graph.Nodes[id]
	if node == nil {
		return nil
	}
	hasEdges := len(ctx.Graph.Out[id]) > 0 || len(ctx.Graph.In[id]) > 0
	if hasEdges && !detach {
		return graphliteerr.Newf(graphliteerr.KindValidation, "cannot delete node %q with incident edges without DETACH", id)
	}

	var incident []*types.Edge
	for _, eid := range append(append([]string(nil), ctx.Graph.Out[id]...), ctx.Graph.In[id]...) {
		if e := ctx.Graph.Edges[eid]; e != nil {
			incident = append(incident, e.Clone())
		}
	}

	if ctx.Tx != nil {
		undo := txn.UndoOperation{Kind: txn.UndoDeleteNode, GraphPath: ctx.Tx.GraphPath, NodeBefore: node.Clone(), EdgesBefore: incident}
		redo := txn.RedoOperation{Kind: txn.UndoDeleteNode, DeletedNodeID: id}
		if err := ctx.Tx.RecordOp(undo, redo, wal.OpDeleteNode, "delete node "+id); err != nil {
			return err
		}
	}
	_, _, err := ctx.Graph.DeleteNodeCascade(id)
	if err != nil {
		return err
	}
	ctx.RowsAffected++
	return nil
}

func deleteEdge(id string, ctx *Context) error {
	edge := ctx.Graph.Edges[id]
	if edge == nil {
		return nil
	}
	if ctx.Tx != nil {
		undo := txn.UndoOperation{Kind: txn.UndoDeleteEdge, GraphPath: ctx.Tx.GraphPath, EdgeBefore: edge.Clone()}
		redo := txn.RedoOperation{Kind: txn.UndoDeleteEdge, DeletedEdgeID: id}
		if err := ctx.Tx.RecordOp(undo, redo, wal.OpDeleteEdge, "delete edge "+id); err != nil {
			return err
		}
	}
	if _, err := ctx.Graph.RemoveEdge(id); err != nil {
		return err
	}
	ctx.RowsAffected++
	return nil
}
