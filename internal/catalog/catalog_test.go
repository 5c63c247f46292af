package catalog

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	engine, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Shutdown() })
	f, err := Bootstrap(engine)
	require.NoError(t, err)
	return f
}

func TestCreateAndListGraph(t *testing.T) {
	f := newTestFacade(t)

	resp := f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraph, Name: "main", Payload: map[string]any{"schema": "default"}})
	require.Equal(t, RespSuccess, resp.Kind)

	resp = f.ExecuteReadOnly(Operation{Kind: OpList, EntityType: EntityGraph})
	require.Equal(t, RespList, resp.Kind)
	require.Equal(t, []string{"main"}, resp.Items)
}

func TestCreateDuplicateGraphFails(t *testing.T) {
	f := newTestFacade(t)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraph, Name: "main"}).Kind)
	resp := f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraph, Name: "main"})
	require.Equal(t, RespError, resp.Kind)
}

func TestDropSchemaRestrictVsCascade(t *testing.T) {
	f := newTestFacade(t)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntitySchema, Name: "app"}).Kind)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraph, Name: "app/main"}).Kind)

	resp := f.Execute(Operation{Kind: OpDrop, EntityType: EntitySchema, Name: "app", Cascade: false})
	require.Equal(t, RespError, resp.Kind, "RESTRICT drop must fail while dependent graphs exist")

	resp = f.Execute(Operation{Kind: OpDrop, EntityType: EntitySchema, Name: "app", Cascade: true})
	require.Equal(t, RespSuccess, resp.Kind)

	resp = f.ExecuteReadOnly(Operation{Kind: OpList, EntityType: EntityGraph})
	require.Empty(t, resp.Items, "CASCADE drop must remove dependent graphs")
}

func TestPersistAndReload(t *testing.T) {
	engine, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer engine.Shutdown()

	f, err := Bootstrap(engine)
	require.NoError(t, err)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraph, Name: "main"}).Kind)
	require.NoError(t, f.PersistAll())

	f2, err := Bootstrap(engine)
	require.NoError(t, err)
	resp := f2.ExecuteReadOnly(Operation{Kind: OpList, EntityType: EntityGraph})
	require.Equal(t, []string{"main"}, resp.Items, "reloaded facade must see persisted providers")
}

func TestDropSchemaCascadesToGraphAndGraphType(t *testing.T) {
	f := newTestFacade(t)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntitySchema, Name: "app"}).Kind)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraph, Name: "app/main"}).Kind)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraphType, Name: "app/PersonType"}).Kind)

	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpDrop, EntityType: EntitySchema, Name: "app", Cascade: true}).Kind)

	require.Empty(t, f.ExecuteReadOnly(Operation{Kind: OpList, EntityType: EntityGraph}).Items,
		"CASCADE drop must remove graphs under the dropped schema")
	require.Empty(t, f.ExecuteReadOnly(Operation{Kind: OpList, EntityType: EntityGraphType}).Items,
		"CASCADE drop must remove graph types under the dropped schema, not just graphs")
}

func TestDropSchemaRestrictBlocksOnGraphTypeAlone(t *testing.T) {
	f := newTestFacade(t)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntitySchema, Name: "app"}).Kind)
	require.Equal(t, RespSuccess, f.Execute(Operation{Kind: OpCreate, EntityType: EntityGraphType, Name: "app/PersonType"}).Kind)

	resp := f.Execute(Operation{Kind: OpDrop, EntityType: EntitySchema, Name: "app", Cascade: false})
	require.Equal(t, RespError, resp.Kind, "RESTRICT drop must fail while a dependent graph type exists, even with no graphs")
}

func TestUserCreateAndAuthenticate(t *testing.T) {
	f := newTestFacade(t)
	resp := f.Execute(Operation{Kind: OpCreate, EntityType: EntityUser, Name: "alice", Payload: map[string]any{"password": "hunter2"}})
	require.Equal(t, RespSuccess, resp.Kind)

	p, ok := f.Provider(EntityUser)
	require.True(t, ok)
	userProvider := p.(*UserProvider)
	require.True(t, userProvider.Authenticate("alice", "hunter2"))
	require.False(t, userProvider.Authenticate("alice", "wrong"))
}
