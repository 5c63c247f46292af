package plan

import (
	"fmt"

	"github.com/graphlite-db/graphlite/internal/gql"
)

// InsertStepKind tags one step of a planned INSERT.
type InsertStepKind string

const (
	StepCreateNode InsertStepKind = "CreateNode"
	StepReuseNode  InsertStepKind = "ReuseNode"
	StepCreateEdge InsertStepKind = "CreateEdge"
)

// InsertStep is one planned action of an INSERT pattern (§4.5.3).
type InsertStep struct {
	Kind InsertStepKind

	// CreateNode / ReuseNode
	Var        string
	Labels     []string
	Properties map[string]gql.Expr

	// CreateEdge
	FromVar        string
	ToVar          string
	EdgeVar        string
	EdgeLabel      string
	EdgeProperties map[string]gql.Expr
	Direction      gql.Direction
}

// InsertPlan is the ordered sequence of steps an INSERT clause compiles
// to. Steps execute in order so that a variable referenced by a later
// edge step is guaranteed to already be bound by an earlier node step.
type InsertPlan struct {
	Steps []InsertStep
}

// BuildInsertPlan compiles pattern elements into an InsertPlan, following
// spec §4.5.2's reference algorithm:
//
//  1. Walk each pattern element left to right.
//  2. A node variable's first occurrence within the whole INSERT clause
//     creates a new node (content-addressed id assigned at execution
//     time, once property expressions are evaluated); every later
//     occurrence of the same variable — in this clause or already bound
//     by a preceding MATCH — is a reference to the existing node rather
//     than a second create.
//  3. Every edge pattern must be sandwiched between exactly two node
//     patterns (guaranteed by the parser's PatternElement shape:
//     len(Edges) == len(Nodes)-1); an edge with no surrounding nodes is a
//     planning error rather than a parse error, and the message reports
//     the pattern's node and edge counts.
//
// boundVars is the set of variable names already bound by a preceding
// MATCH clause in the same statement (§4.5.3: "INSERT may reference
// variables bound earlier in the same statement").
func BuildInsertPlan(patterns []gql.PatternElement, boundVars map[string]bool) (*InsertPlan, error) {
	plan := &InsertPlan{}
	seen := make(map[string]bool)

	firstOccurrence := func(variable string) bool {
		if variable == "" {
			return true // anonymous node/edge: always a fresh create
		}
		if boundVars[variable] || seen[variable] {
			return false
		}
		seen[variable] = true
		return true
	}

	for _, el := range patterns {
		if len(el.Edges) != len(el.Nodes)-1 {
			return nil, fmt.Errorf("plan: malformed insert pattern: %d nodes, %d edges (want %d edges)", len(el.Nodes), len(el.Edges), len(el.Nodes)-1)
		}

		for _, n := range el.Nodes {
			if firstOccurrence(n.Variable) {
				plan.Steps = append(plan.Steps, InsertStep{
					Kind:       StepCreateNode,
					Var:        n.Variable,
					Labels:     n.Labels,
					Properties: n.Properties,
				})
			} else {
				plan.Steps = append(plan.Steps, InsertStep{Kind: StepReuseNode, Var: n.Variable})
			}
		}

		for i, e := range el.Edges {
			fromVar := el.Nodes[i].Variable
			toVar := el.Nodes[i+1].Variable
			if e.Direction == gql.DirIncoming {
				fromVar, toVar = toVar, fromVar
			}
			plan.Steps = append(plan.Steps, InsertStep{
				Kind:           StepCreateEdge,
				FromVar:        fromVar,
				ToVar:          toVar,
				EdgeVar:        e.Variable,
				EdgeLabel:      e.Label,
				EdgeProperties: e.Properties,
				Direction:      e.Direction,
			})
		}
	}

	return plan, nil
}
