package exec

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/catalog"
	"github.com/graphlite-db/graphlite/internal/plancache"
	"github.com/graphlite-db/graphlite/internal/session"
	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/txn"
	"github.com/graphlite-db/graphlite/internal/wal"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*Executor, *session.Registry) {
	t.Helper()
	engine, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Shutdown() })

	dir := t.TempDir()
	w, err := wal.Open(dir, wal.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	cat, err := catalog.Bootstrap(engine)
	require.NoError(t, err)

	txMgr := txn.NewManager(w)
	sessions := session.NewRegistry(txMgr, 0)
	planCache := plancache.New(16)
	budget := NewMemoryBudget(0)

	require.Equal(t, catalog.RespSuccess, cat.Execute(catalog.Operation{Kind: catalog.OpCreate, EntityType: catalog.EntitySchema, Name: "/app"}).Kind)
	require.Equal(t, catalog.RespSuccess, cat.Execute(catalog.Operation{Kind: catalog.OpCreate, EntityType: catalog.EntityGraph, Name: "/app/main"}).Kind)
	require.NoError(t, engine.SaveGraph("/app/main", storage.NewGraphCache()))

	return NewExecutor(cat, engine, txMgr, sessions, planCache, budget), sessions
}

func TestExecuteInsertThenReturn(t *testing.T) {
	ex, sessions := newTestExecutor(t)
	sess := sessions.Create("/app/main", "/app", "tester")

	res, err := ex.Execute("INSERT (a:Person {name: 'Alice'})", sess.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)

	res, err = ex.Execute("MATCH (p:Person) RETURN p.name", sess.ID)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	name, _ := res.Rows[0].Values["p.name"].AsString()
	require.Equal(t, "Alice", name)
}

func TestExecuteUnknownSessionFails(t *testing.T) {
	ex, _ := newTestExecutor(t)
	_, err := ex.Execute("MATCH (n) RETURN n", "sess_does_not_exist")
	require.Error(t, err)
}

func TestExecuteExplicitTransactionCommit(t *testing.T) {
	ex, sessions := newTestExecutor(t)
	sess := sessions.Create("/app/main", "/app", "tester")

	_, err := ex.Execute("BEGIN", sess.ID)
	require.NoError(t, err)
	require.NotNil(t, sess.Tx)

	_, err = ex.Execute("INSERT (a:Person {name: 'Alice'})", sess.ID)
	require.NoError(t, err)
	require.NotNil(t, sess.Tx, "explicit transaction must stay open across a successful statement")

	_, err = ex.Execute("COMMIT", sess.ID)
	require.NoError(t, err)
	require.Nil(t, sess.Tx)

	res, err := ex.Execute("MATCH (p:Person) RETURN p.name", sess.ID)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
}

func TestExecuteExplicitTransactionAbortsWholeTxOnError(t *testing.T) {
	ex, sessions := newTestExecutor(t)
	sess := sessions.Create("/app/main", "/app", "tester")

	_, err := ex.Execute("BEGIN", sess.ID)
	require.NoError(t, err)

	_, err = ex.Execute("INSERT (a:Person {name: 'Alice'})", sess.ID)
	require.NoError(t, err)

	// An unsupported procedure call fails the statement; per the
	// full-transaction-abort policy this must roll back the earlier
	// INSERT too and leave no open transaction on the session.
	_, err = ex.Execute("CALL no.such.procedure()", sess.ID)
	require.Error(t, err)
	require.Nil(t, sess.Tx, "a failed statement must abort the whole explicit transaction")

	res, err := ex.Execute("MATCH (p:Person) RETURN p.name", sess.ID)
	require.NoError(t, err)
	require.Empty(t, res.Rows, "the earlier INSERT must have been rolled back")
}

func TestExecuteDDLCreateGraphIfNotExistsIsNoOp(t *testing.T) {
	ex, sessions := newTestExecutor(t)
	sess := sessions.Create("", "/app", "tester")

	_, err := ex.Execute("CREATE GRAPH IF NOT EXISTS /app/main", sess.ID)
	require.NoError(t, err, "IF NOT EXISTS must not error when the graph already exists")
}

func TestExecuteDDLDropSchemaCascadeInvalidatesSessions(t *testing.T) {
	ex, sessions := newTestExecutor(t)
	bystander := sessions.Create("/app/main", "/app", "tester")

	_, err := ex.Execute("DROP SCHEMA /app CASCADE", bystander.ID)
	require.NoError(t, err)

	require.Empty(t, bystander.GraphPath, "a session targeting a cascade-dropped graph must have its current_graph cleared")
	require.Equal(t, "/app", bystander.SchemaPath, "current_schema must be left unchanged by a graph invalidation")
}

func TestExecuteSessionSetGraphResolvesRelativeToSchema(t *testing.T) {
	ex, sessions := newTestExecutor(t)
	sess := sessions.Create("", "/app", "tester")

	_, err := ex.Execute("SET GRAPH main", sess.ID)
	require.NoError(t, err)
	require.Equal(t, "/app/main", sess.GraphPath)
}
