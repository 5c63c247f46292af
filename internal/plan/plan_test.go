package plan

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/stretchr/testify/require"
)

func parseData(t *testing.T, src string) *gql.DataStatement {
	t.Helper()
	stmt, err := gql.Parse(src)
	require.NoError(t, err)
	ds, ok := stmt.(*gql.DataStatement)
	require.True(t, ok)
	return ds
}

func TestBuildMatchReturnPlan(t *testing.T) {
	ds := parseData(t, "MATCH (n:Person) WHERE n.age > 21 RETURN n.name")
	p, err := Build(ds)
	require.NoError(t, err)
	require.Equal(t, KindProject, p.Root.Kind)
	filter := p.Root.Children[0]
	require.Equal(t, KindFilter, filter.Kind)
	scan := filter.Children[0]
	require.Equal(t, KindScan, scan.Kind)
	require.Equal(t, "Person", scan.ScanLabel)
}

func TestInsertPlanIdentifierReuse(t *testing.T) {
	ds := parseData(t, "INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'}), (a)-[:LIKES]->(b)")
	p, err := Build(ds)
	require.NoError(t, err)
	require.Equal(t, KindInsert, p.Root.Kind)

	var createCount, reuseCount, edgeCount int
	for _, step := range p.Root.InsertPlan.Steps {
		switch step.Kind {
		case StepCreateNode:
			createCount++
		case StepReuseNode:
			reuseCount++
		case StepCreateEdge:
			edgeCount++
		}
	}
	require.Equal(t, 2, createCount, "a and b are each created once")
	require.Equal(t, 2, reuseCount, "a and b are each reused once in the second pattern")
	require.Equal(t, 2, edgeCount)
}

func TestInsertPlanRejectsMalformedPattern(t *testing.T) {
	_, err := BuildInsertPlan([]gql.PatternElement{
		{Nodes: []gql.NodePattern{{Variable: "a"}}, Edges: []gql.EdgePattern{{Label: "KNOWS"}}},
	}, nil)
	require.Error(t, err)
}

func TestBuildUnionPlan(t *testing.T) {
	ds := parseData(t, "MATCH (a:Person) RETURN a.name UNION MATCH (b:Company) RETURN b.name")
	p, err := Build(ds)
	require.NoError(t, err)
	require.Equal(t, KindUnion, p.Root.Kind)
	require.Len(t, p.Root.Children, 2)
}
