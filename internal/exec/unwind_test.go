package exec

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/storage"
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

func TestDetectUnwindRewriteMatchesShape(t *testing.T) {
	ds := parseData(t, "MATCH (p:Person) WITH collect(p) AS ps UNWIND ps AS x SET x.flagged = true")
	rw, ok := detectUnwindRewrite(ds)
	require.True(t, ok)
	require.NotNil(t, rw.match)
	require.NotNil(t, rw.with)
	require.NotNil(t, rw.unwind)
	require.NotNil(t, rw.setClause)
	require.Nil(t, rw.removeClause)
}

func TestDetectUnwindRewriteRejectsOtherShapes(t *testing.T) {
	ds := parseData(t, "MATCH (p:Person) RETURN p.name")
	_, ok := detectUnwindRewrite(ds)
	require.False(t, ok, "a plain MATCH/RETURN must not be mistaken for the rewrite shape")

	ds = parseData(t, "MATCH (p:Person) WITH collect(p) AS ps UNWIND ps AS x RETURN x")
	_, ok = detectUnwindRewrite(ds)
	require.False(t, ok, "a terminal RETURN (not SET/REMOVE) must fall through to the standard planner")
}

func TestUnwindRewriteAppliesSetPerItem(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice'}), (b:Person {name: 'Bob'})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	ds := parseData(t, "MATCH (p:Person) WITH collect(p) AS ps UNWIND ps AS x SET x.flagged = true")
	rw, ok := detectUnwindRewrite(ds)
	require.True(t, ok)

	ctx := &Context{Graph: g}
	require.NoError(t, runUnwindRewrite(rw, ctx))
	require.Equal(t, int64(2), ctx.RowsAffected)
	for _, n := range g.Nodes {
		require.Equal(t, true, n.Properties["flagged"])
	}
}

func TestUnwindRewriteHonorsPerItemWhere(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice', age: 30}), (b:Person {name: 'Bob', age: 12})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	ds := parseData(t, "MATCH (p:Person) WITH collect(p) AS ps UNWIND ps AS x WHERE x.age >= 18 SET x.adult = true")
	rw, ok := detectUnwindRewrite(ds)
	require.True(t, ok)

	ctx := &Context{Graph: g}
	require.NoError(t, runUnwindRewrite(rw, ctx))
	require.Equal(t, int64(1), ctx.RowsAffected, "only the item passing the per-item WHERE should be mutated")

	var adults, minors int
	for _, n := range g.Nodes {
		if n.Properties["adult"] == true {
			adults++
		} else {
			minors++
		}
	}
	require.Equal(t, 1, adults)
	require.Equal(t, 1, minors)
}

func TestUnwindRewriteAppliesRemovePerItem(t *testing.T) {
	g := storage.NewGraphCache()
	insertPlan := buildPlan(t, "INSERT (a:Person {name: 'Alice', temp: 1}), (b:Person {name: 'Bob', temp: 1})")
	_, err := Run(insertPlan.Root, &Context{Graph: g})
	require.NoError(t, err)

	ds := parseData(t, "MATCH (p:Person) WITH collect(p) AS ps UNWIND ps AS x REMOVE x.temp")
	rw, ok := detectUnwindRewrite(ds)
	require.True(t, ok)

	ctx := &Context{Graph: g}
	require.NoError(t, runUnwindRewrite(rw, ctx))
	require.Equal(t, int64(2), ctx.RowsAffected)
	for _, n := range g.Nodes {
		_, has := n.Properties["temp"]
		require.False(t, has)
	}
}
