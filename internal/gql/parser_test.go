package gql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleMatchReturn(t *testing.T) {
	stmt, err := Parse("MATCH (n:Person) WHERE n.age > 21 RETURN n.name AS name")
	require.NoError(t, err)
	ds, ok := stmt.(*DataStatement)
	require.True(t, ok)
	require.Len(t, ds.Clauses, 2)

	match, ok := ds.Clauses[0].(*MatchClause)
	require.True(t, ok)
	require.Len(t, match.Patterns, 1)
	require.Equal(t, "n", match.Patterns[0].Nodes[0].Variable)
	require.Equal(t, []string{"Person"}, match.Patterns[0].Nodes[0].Labels)
	require.NotNil(t, match.Where)

	ret, ok := ds.Clauses[1].(*ReturnClause)
	require.True(t, ok)
	require.Len(t, ret.Projections, 1)
	require.Equal(t, "name", ret.Projections[0].Alias)
}

func TestParseInsertPattern(t *testing.T) {
	stmt, err := Parse("INSERT (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})")
	require.NoError(t, err)
	ds := stmt.(*DataStatement)
	require.Len(t, ds.Clauses, 1)
	insert, ok := ds.Clauses[0].(*InsertClause)
	require.True(t, ok)
	require.Len(t, insert.Patterns, 1)
	pattern := insert.Patterns[0]
	require.Len(t, pattern.Nodes, 2)
	require.Len(t, pattern.Edges, 1)
	require.Equal(t, "KNOWS", pattern.Edges[0].Label)
	require.Equal(t, DirOutgoing, pattern.Edges[0].Direction)
}

func TestParseDDLCreateGraph(t *testing.T) {
	stmt, err := Parse("CREATE GRAPH IF NOT EXISTS /default/main")
	require.NoError(t, err)
	ddl, ok := stmt.(*DDLStatement)
	require.True(t, ok)
	require.Equal(t, "CREATE", ddl.Verb)
	require.Equal(t, "GRAPH", ddl.EntityKind)
	require.True(t, ddl.IfNotExist)
	require.Equal(t, "/default/main", ddl.Path)
}

func TestParseDropSchemaCascade(t *testing.T) {
	stmt, err := Parse("DROP SCHEMA app CASCADE")
	require.NoError(t, err)
	ddl := stmt.(*DDLStatement)
	require.Equal(t, "DROP", ddl.Verb)
	require.Equal(t, "SCHEMA", ddl.EntityKind)
	require.True(t, ddl.Cascade)
}

func TestParseSessionDirectives(t *testing.T) {
	stmt, err := Parse("SET GRAPH /default/main")
	require.NoError(t, err)
	s := stmt.(*SessionStatement)
	require.Equal(t, "SetGraph", s.Directive)
	require.Equal(t, "/default/main", s.Value)

	stmt, err = Parse("RESET")
	require.NoError(t, err)
	require.Equal(t, "Reset", stmt.(*SessionStatement).Directive)
}

func TestParseUnwindAndSet(t *testing.T) {
	stmt, err := Parse("MATCH (n:Person) WITH collect(n) AS people UNWIND people AS p SET p.seen = true")
	require.NoError(t, err)
	ds := stmt.(*DataStatement)
	require.Len(t, ds.Clauses, 4)
	_, ok := ds.Clauses[1].(*WithClause)
	require.True(t, ok)
	unwind, ok := ds.Clauses[2].(*UnwindClause)
	require.True(t, ok)
	require.Equal(t, "p", unwind.As)
	set, ok := ds.Clauses[3].(*SetClause)
	require.True(t, ok)
	require.Equal(t, "p.seen", set.Assignments[0].Target)
}

func TestParseUnionSetOp(t *testing.T) {
	stmt, err := Parse("MATCH (a:Person) RETURN a.name UNION MATCH (b:Company) RETURN b.name")
	require.NoError(t, err)
	ds := stmt.(*DataStatement)
	found := false
	for _, c := range ds.Clauses {
		if op, ok := c.(*SetOpClause); ok {
			found = true
			require.Equal(t, "UNION", op.Op)
		}
	}
	require.True(t, found)
}

func TestDelimitedIdentifierPreservesCase(t *testing.T) {
	stmt, err := Parse("MATCH (`Strange Var`:`Weird-Label`) RETURN `Strange Var`")
	require.NoError(t, err)
	ds := stmt.(*DataStatement)
	match := ds.Clauses[0].(*MatchClause)
	require.Equal(t, "Strange Var", match.Patterns[0].Nodes[0].Variable)
	require.Equal(t, []string{"Weird-Label"}, match.Patterns[0].Nodes[0].Labels)
}
