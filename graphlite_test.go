package graphlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenInMemoryAndClose(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	require.NotNil(t, db)
	require.NoError(t, db.Close())
}

func TestOpenOnDiskRecoversAndPersists(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.SetUserPassword("admin", "hunter2"))
	require.NoError(t, db.Close())

	db2, err := Open(dir)
	require.NoError(t, err)
	defer db2.Close()

	sessionID, err := db2.AuthenticateAndCreateSession("admin", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
}

func TestSetUserPasswordBootstrapsThenUpdates(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SetUserPassword("admin", "first"))
	_, err = db.AuthenticateAndCreateSession("admin", "first")
	require.NoError(t, err)

	require.NoError(t, db.SetUserPassword("admin", "second"))
	_, err = db.AuthenticateAndCreateSession("admin", "first")
	require.Error(t, err, "the old password must no longer authenticate after an update")
	_, err = db.AuthenticateAndCreateSession("admin", "second")
	require.NoError(t, err)
}

func TestAuthenticateAndCreateSessionRejectsBadPassword(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SetUserPassword("admin", "hunter2"))
	_, err = db.AuthenticateAndCreateSession("admin", "wrong")
	require.Error(t, err)
}

func TestCreateSimpleSessionThenProcessQuery(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()

	sessionID, err := db.CreateSimpleSession("anon")
	require.NoError(t, err)

	_, err = db.ProcessQuery("CREATE SCHEMA /app", sessionID)
	require.NoError(t, err)
	_, err = db.ProcessQuery("CREATE GRAPH /app/main", sessionID)
	require.NoError(t, err)
	_, err = db.ProcessQuery("SET GRAPH /app/main", sessionID)
	require.NoError(t, err)

	res, err := db.ProcessQuery("INSERT (a:Person {name: 'Alice'})", sessionID)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)

	res, err = db.ProcessQuery("MATCH (p:Person) RETURN p.name", sessionID)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
}

func TestCloseSessionRollsBackOpenTransaction(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()

	sessionID, err := db.CreateSimpleSession("anon")
	require.NoError(t, err)
	_, err = db.ProcessQuery("CREATE SCHEMA /app", sessionID)
	require.NoError(t, err)
	_, err = db.ProcessQuery("CREATE GRAPH /app/main", sessionID)
	require.NoError(t, err)
	_, err = db.ProcessQuery("SET GRAPH /app/main", sessionID)
	require.NoError(t, err)

	_, err = db.ProcessQuery("BEGIN", sessionID)
	require.NoError(t, err)
	_, err = db.ProcessQuery("INSERT (a:Person {name: 'Alice'})", sessionID)
	require.NoError(t, err)

	require.NoError(t, db.CloseSession(sessionID))

	sessionID2, err := db.CreateSimpleSession("anon")
	require.NoError(t, err)
	_, err = db.ProcessQuery("SET GRAPH /app/main", sessionID2)
	require.NoError(t, err)
	res, err := db.ProcessQuery("MATCH (p:Person) RETURN p.name", sessionID2)
	require.NoError(t, err)
	require.Empty(t, res.Rows, "closing a session must roll back its still-open transaction")
}
