package plan

import (
	"fmt"

	"github.com/graphlite-db/graphlite/internal/gql"
)

// Plan is a fully built physical plan for one DataStatement.
type Plan struct {
	Root *Node
}

// Build translates a parsed DataStatement's clause pipeline into a
// physical plan tree. Unlike a cost-based optimizer, this is a direct
// clause-to-operator translation (each clause becomes one operator wired
// atop the previous), matching spec §4.5.2's description of planning as
// "compile, don't optimize" for the statement shapes GraphLite supports.
func Build(stmt *gql.DataStatement) (*Plan, error) {
	var root *Node
	boundVars := make(map[string]bool)

	for _, clause := range stmt.Clauses {
		switch c := clause.(type) {
		case *gql.MatchClause:
			scan, err := buildMatchScan(c, boundVars)
			if err != nil {
				return nil, err
			}
			if root == nil {
				root = scan
			} else {
				root = &Node{Kind: KindJoin, Children: []*Node{root, scan}}
			}
			if c.Where != nil {
				root = &Node{Kind: KindFilter, Children: []*Node{root}, FilterExpr: c.Where}
			}

		case *gql.InsertClause:
			insertPlan, err := BuildInsertPlan(c.Patterns, boundVars)
			if err != nil {
				return nil, err
			}
			for _, step := range insertPlan.Steps {
				if step.Var != "" {
					boundVars[step.Var] = true
				}
			}
			node := &Node{Kind: KindInsert, InsertPlan: insertPlan}
			if root != nil {
				node.Children = []*Node{root}
			}
			root = node

		case *gql.WhereClause:
			root = &Node{Kind: KindFilter, Children: childOf(root), FilterExpr: c.Expr}

		case *gql.SetClause:
			root = &Node{Kind: KindUpdate, Children: childOf(root), Assignments: c.Assignments}

		case *gql.RemoveClause:
			root = &Node{Kind: KindUpdate, Children: childOf(root), RemoveTargets: c.Targets, RemoveLabels: c.RemoveLabels}

		case *gql.DeleteClause:
			root = &Node{Kind: KindDelete, Children: childOf(root), DeleteVars: c.Variables, Detach: c.Detach}

		case *gql.WithClause:
			root = &Node{Kind: KindProject, Children: childOf(root), Projections: c.Projections}
			if c.Where != nil {
				root = &Node{Kind: KindFilter, Children: []*Node{root}, FilterExpr: c.Where}
			}
			if len(c.OrderBy) > 0 {
				root = &Node{Kind: KindOrderBy, Children: []*Node{root}, OrderTerms: c.OrderBy}
			}
			if c.Limit != nil {
				root = &Node{Kind: KindLimit, Children: []*Node{root}, LimitExpr: c.Limit}
			}

		case *gql.UnwindClause:
			// The executor's MATCH/WITH/UNWIND rewrite (§4.5.4) never hands
			// UNWIND to Build. Reaching here means UNWIND was used outside
			// that shape (e.g. directly before RETURN); it is planned as a
			// Project binding the source expression under the alias, so the
			// list is not expanded into one row per item.
			root = &Node{Kind: KindProject, Children: childOf(root), Projections: []gql.Projection{{Expr: c.Source, Alias: c.As}}}

		case *gql.ReturnClause:
			root = &Node{Kind: KindProject, Children: childOf(root), Projections: c.Projections}
			if len(c.OrderBy) > 0 {
				root = &Node{Kind: KindOrderBy, Children: []*Node{root}, OrderTerms: c.OrderBy}
			}
			if c.Skip != nil || c.Limit != nil {
				root = &Node{Kind: KindLimit, Children: []*Node{root}, LimitExpr: c.Limit, SkipExpr: c.Skip}
			}

		case *gql.SetOpClause:
			rightPlan, err := Build(c.Right)
			if err != nil {
				return nil, err
			}
			kind := KindUnion
			if c.Op == "INTERSECT" || c.Op == "EXCEPT" {
				kind = KindUnionSet
			}
			root = &Node{Kind: kind, Children: childOf(root, rightPlan.Root), SetOp: c.Op}

		default:
			return nil, fmt.Errorf("plan: unsupported clause type %T", clause)
		}
	}

	return &Plan{Root: root}, nil
}

func childOf(nodes ...*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func buildMatchScan(c *gql.MatchClause, boundVars map[string]bool) (*Node, error) {
	var root *Node
	for _, el := range c.Patterns {
		if len(el.Edges) != len(el.Nodes)-1 {
			return nil, fmt.Errorf("plan: malformed match pattern: %d nodes, %d edges", len(el.Nodes), len(el.Edges))
		}
		first := el.Nodes[0]
		scan := &Node{Kind: KindScan, ScanVar: first.Variable}
		if len(first.Labels) > 0 {
			scan.ScanLabel = first.Labels[0]
		}
		boundVars[first.Variable] = true
		current := scan

		for i, e := range el.Edges {
			toNode := el.Nodes[i+1]
			boundVars[toNode.Variable] = true
			join := &Node{
				Kind:     KindJoin,
				Children: []*Node{current},
				JoinEdge: EdgeJoin{
					FromVar:   el.Nodes[i].Variable,
					ToVar:     toNode.Variable,
					EdgeVar:   e.Variable,
					EdgeLabel: e.Label,
					Direction: e.Direction,
				},
			}
			current = join
		}

		if root == nil {
			root = current
		} else {
			root = &Node{Kind: KindJoin, Children: []*Node{root, current}}
		}
	}
	return root, nil
}
