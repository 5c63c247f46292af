package exec

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/plan"
	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/stretchr/testify/require"
)

func buildPlan(t *testing.T, src string) *plan.Plan {
	t.Helper()
	stmt, err := gql.Parse(src)
	require.NoError(t, err)
	ds, ok := stmt.(*gql.DataStatement)
	require.True(t, ok)
	p, err := plan.Build(ds)
	require.NoError(t, err)
	return p
}

func TestRunInsertThenMatch(t *testing.T) {
	g := storage.NewGraphCache()
	ctx := &Context{Graph: g}

	p := buildPlan(t, "INSERT (a:Person {name: 'Alice'})")
	_, err := Run(p.Root, ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ctx.RowsAffected)

	matchPlan := buildPlan(t, "MATCH (p:Person) RETURN p.name")
	rows, err := Run(matchPlan.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, _ := rows[0].Values["p.name"].AsString()
	require.Equal(t, "Alice", name)
}

func TestRunInsertDuplicateIsNoOp(t *testing.T) {
	g := storage.NewGraphCache()
	p := buildPlan(t, "INSERT (a:Person {name: 'Alice'})")
	_, err := Run(p.Root, &Context{Graph: g})
	require.NoError(t, err)
	_, err = Run(p.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
}

func TestRunMatchWithEdgeTraversal(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	matchPlan := buildPlan(t, "MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN b.name")
	rows, err := Run(matchPlan.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, _ := rows[0].Values["b.name"].AsString()
	require.Equal(t, "Bob", name)
}

func TestRunAggregateCount(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice'}), (b:Person {name: 'Bob'})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	countPlan := buildPlan(t, "MATCH (p:Person) RETURN count(p) AS total")
	rows, err := Run(countPlan.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, _ := rows[0].Values["total"].AsNumber()
	require.Equal(t, 2.0, n)
}

func TestRunSetClause(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice'})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	setPlan := buildPlan(t, "MATCH (p:Person) SET p.age = 30")
	ctx := &Context{Graph: g}
	_, err = Run(setPlan.Root, ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ctx.RowsAffected)

	for _, n := range g.Nodes {
		require.Equal(t, 30.0, n.Properties["age"])
	}
}

func TestRunDeleteDetach(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	deletePlan := buildPlan(t, "MATCH (a:Person {name: 'Alice'}) DETACH DELETE a")
	// WHERE-less property match isn't supported by this planner; drop to a
	// plain scan + filter instead for the test.
	_ = deletePlan

	matchAlice := buildPlan(t, "MATCH (a:Person) WHERE a.name = 'Alice' DETACH DELETE a")
	ctx := &Context{Graph: g}
	_, err = Run(matchAlice.Root, ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ctx.RowsAffected)
	require.Len(t, g.Nodes, 1)
}

func TestRunUnionDedup(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice'})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	unionPlan := buildPlan(t, "MATCH (a:Person) RETURN a.name UNION MATCH (b:Person) RETURN b.name")
	rows, err := Run(unionPlan.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Len(t, rows, 1, "UNION (not ALL) must dedup identical rows")
}

// TestRunIntersectPrefersIdentityOverDivergentProjections is §8 scenario 5:
// INTERSECT between two queries that return different columns for the same
// underlying node must still recognize the rows as the same result, since
// Row.Equal prefers SourceEntities over positional comparison whenever both
// sides carry one.
func TestRunIntersectPrefersIdentityOverDivergentProjections(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice', age: 30, salary: 100000})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	intersectPlan := buildPlan(t, "MATCH (p:Person) RETURN p.name, p.age INTERSECT MATCH (p:Person) RETURN p.name, p.salary")
	rows, err := Run(intersectPlan.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Len(t, rows, 1, "identical node must survive INTERSECT despite divergent projected columns")
}

// TestRunExceptPrefersIdentityOverDivergentProjections mirrors the INTERSECT
// case for EXCEPT: two queries over the very same nodes, projecting
// different columns, must cancel out entirely by identity rather than
// leaving rows behind because their positional values happen to differ.
func TestRunExceptPrefersIdentityOverDivergentProjections(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice', age: 30, salary: 100000})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	exceptPlan := buildPlan(t, "MATCH (p:Person) RETURN p.name, p.age EXCEPT MATCH (p:Person) RETURN p.name, p.salary")
	rows, err := Run(exceptPlan.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Empty(t, rows, "identical node must cancel out of EXCEPT despite divergent projected columns")
}

// TestRunUnionAggregateFallsBackToPositional ensures the identity path
// doesn't misfire when rows genuinely carry no bound entity: count(...)
// over two disjoint label sets produces rows with no SourceEntities (the
// aggregate folds every matched node away), so UNION must fall back to
// ordinary positional value comparison to dedup two equal totals.
func TestRunUnionAggregateFallsBackToPositional(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice'}), (b:Person {name: 'Bob'}), (c:Animal {name: 'Fido'}), (d:Animal {name: 'Rex'})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	unionPlan := buildPlan(t, "MATCH (p:Person) RETURN count(p) AS total UNION MATCH (a:Animal) RETURN count(a) AS total")
	rows, err := Run(unionPlan.Root, &Context{Graph: g})
	require.NoError(t, err)
	require.Len(t, rows, 1, "equal aggregate totals over disjoint node sets must dedup by value, not fail open by identity")
}
