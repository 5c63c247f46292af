package exec

import (
	"time"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/plan"
	"github.com/graphlite-db/graphlite/internal/session"
	"github.com/graphlite-db/graphlite/internal/types"
)

// unwindRewrite holds the clauses of a detected MATCH/WITH/UNWIND/
// [WHERE]/SET|REMOVE shape (§4.5.4).
type unwindRewrite struct {
	match        *gql.MatchClause
	with         *gql.WithClause
	unwind       *gql.UnwindClause
	where        gql.Expr
	setClause    *gql.SetClause
	removeClause *gql.RemoveClause
}

// detectUnwindRewrite recognizes the one clause shape §4.5.4 singles out
// for preprocessing: a MATCH materializing candidates, a WITH that
// aggregates them (always including a collect() feeding the UNWIND), an
// UNWIND that re-expands the collected list one item at a time, an
// optional per-item WHERE, and a terminal SET or REMOVE. Anything else
// falls through to the standard planner.
func detectUnwindRewrite(stmt *gql.DataStatement) (*unwindRewrite, bool) {
	c := stmt.Clauses
	i := 0

	match, ok := next[*gql.MatchClause](c, &i)
	if !ok {
		return nil, false
	}
	with, ok := next[*gql.WithClause](c, &i)
	if !ok {
		return nil, false
	}
	unwind, ok := next[*gql.UnwindClause](c, &i)
	if !ok {
		return nil, false
	}

	rw := &unwindRewrite{match: match, with: with, unwind: unwind}

	if i < len(c) {
		if w, ok := c[i].(*gql.WhereClause); ok {
			rw.where = w.Expr
			i++
		}
	}
	if i >= len(c) {
		return nil, false
	}
	switch mutate := c[i].(type) {
	case *gql.SetClause:
		rw.setClause = mutate
	case *gql.RemoveClause:
		rw.removeClause = mutate
	default:
		return nil, false
	}
	i++

	if i != len(c) {
		return nil, false
	}
	if _, ok := rw.unwind.Source.(*gql.Variable); !ok {
		return nil, false
	}
	return rw, true
}

func next[T gql.Clause](clauses []gql.Clause, i *int) (T, bool) {
	var zero T
	if *i >= len(clauses) {
		return zero, false
	}
	t, ok := clauses[*i].(T)
	if !ok {
		return zero, false
	}
	*i++
	return t, true
}

// executeUnwindRewrite runs rw's MATCH, computes rw.with's aggregates by
// hand, then synthesizes and applies the per-item SET/REMOVE directly
// against each collected entity, rather than re-parsing and re-running a
// concrete MATCH ... SET statement per item as §4.5.4 literally describes.
// This is a pragmatic lowering, documented in DESIGN.md: both paths end up
// evaluating the same WHERE/SET/REMOVE clause against the same bound
// entity, but reusing the already-bound row avoids re-resolving identifiers
// through a second text round-trip for every item in the collected list.
func (e *Executor) executeUnwindRewrite(rw *unwindRewrite, sess *session.State, start time.Time) (*QueryResult, error) {
	graphPath, err := e.resolveGraphPath(sess)
	if err != nil {
		return nil, err
	}
	graph, err := e.loadGraph(graphPath)
	if err != nil {
		return nil, err
	}

	implicit := sess.Tx == nil
	tx := sess.Tx
	if implicit {
		tx, err = e.TxMgr.Begin(graphPath)
		if err != nil {
			return nil, err
		}
	}

	ctx := &Context{Graph: graph, Params: toValueParams(sess.Params), Budget: e.Budget, Tx: tx}
	runErr := runUnwindRewrite(rw, ctx)

	if runErr != nil {
		_ = e.TxMgr.Rollback(tx, graph)
		_ = e.Engine.SaveGraph(graphPath, graph)
		sess.Tx = nil
		return nil, runErr
	}

	if err := e.Engine.SaveGraph(graphPath, graph); err != nil {
		_ = e.TxMgr.Rollback(tx, graph)
		sess.Tx = nil
		return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "save graph", err)
	}

	if implicit {
		if err := e.TxMgr.Commit(tx); err != nil {
			return nil, err
		}
	} else {
		sess.Tx = tx
	}

	return &QueryResult{
		ExecutionTimeMs: ms(start),
		RowsAffected:    ctx.RowsAffected,
		Warnings:        ctx.Warnings,
	}, nil
}

func runUnwindRewrite(rw *unwindRewrite, ctx *Context) error {
	matchPlan, err := plan.Build(&gql.DataStatement{Clauses: []gql.Clause{rw.match}})
	if err != nil {
		return err
	}
	matchedRows, err := Run(matchPlan.Root, ctx)
	if err != nil {
		return err
	}

	aggRows, err := runGroupedProject(rw.with.Projections, matchedRows, ctx)
	if err != nil {
		return err
	}
	if len(aggRows) == 0 {
		return nil
	}
	aggRow := aggRows[0]

	unwindAlias := rw.unwind.Source.(*gql.Variable).Name
	listVal, ok := aggRow.Values[unwindAlias]
	if !ok {
		return graphliteerr.Newf(graphliteerr.KindRuntime, "unwind: %q was not produced by the preceding WITH", unwindAlias)
	}
	items, _ := listVal.AsList()

	for _, item := range items {
		row := Row{Values: map[string]types.Value{rw.unwind.As: item}}
		for k, v := range aggRow.Values {
			if k == unwindAlias {
				continue
			}
			row.Values[k] = v
		}

		if rw.where != nil {
			keep, err := Eval(rw.where, row, ctx.Params)
			if err != nil {
				return err
			}
			if !Truthy(keep) {
				continue
			}
		}

		if rw.setClause != nil {
			if err := applyAssignments(rw.setClause.Assignments, row, ctx); err != nil {
				return err
			}
		}
		if rw.removeClause != nil {
			if err := applyRemovals(rw.removeClause.Targets, rw.removeClause.RemoveLabels, row, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
