package txn

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/types"
	"github.com/graphlite-db/graphlite/internal/wal"
	"github.com/stretchr/testify/require"
)

func newTestWAL(t *testing.T) *wal.WAL {
	t.Helper()
	w, err := wal.Open(t.TempDir(), wal.Options{SyncMode: "immediate"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestCommitClearsUndoLog(t *testing.T) {
	w := newTestWAL(t)
	mgr := NewManager(w)

	tx, err := mgr.Begin("/default/main")
	require.NoError(t, err)

	n := &types.Node{ID: "node_1", Labels: []string{"Person"}}
	err = tx.RecordOp(
		UndoOperation{Kind: UndoInsertNode, NodeBefore: n},
		RedoOperation{Kind: UndoInsertNode, NodeAfter: n},
		wal.OpInsertNode, "insert node_1",
	)
	require.NoError(t, err)

	require.NoError(t, mgr.Commit(tx))
	require.Equal(t, StateCommitted, tx.State())
	require.Empty(t, tx.undoLog)
}

func TestRollbackReversesInsert(t *testing.T) {
	w := newTestWAL(t)
	mgr := NewManager(w)
	g := storage.NewGraphCache()

	tx, err := mgr.Begin("/default/main")
	require.NoError(t, err)

	n := &types.Node{ID: "node_1", Labels: []string{"Person"}}
	require.NoError(t, g.AddNode(n))
	require.NoError(t, tx.RecordOp(
		UndoOperation{Kind: UndoInsertNode, NodeBefore: n},
		RedoOperation{Kind: UndoInsertNode, NodeAfter: n},
		wal.OpInsertNode, "insert node_1",
	))

	require.NoError(t, mgr.Rollback(tx, g))
	require.Equal(t, StateRolledBack, tx.State())
	_, exists := g.Nodes["node_1"]
	require.False(t, exists, "rollback must remove the inserted node")
}

func TestSetMetadataRejectsOversizedPayload(t *testing.T) {
	w := newTestWAL(t)
	mgr := NewManager(w)
	tx, err := mgr.Begin("/default/main")
	require.NoError(t, err)

	require.NoError(t, tx.SetMetadata("short note"))
	require.Equal(t, "short note", tx.GetMetadata())

	oversized := make([]byte, maxMetadataBytes+1)
	require.Error(t, tx.SetMetadata(string(oversized)))
}

func TestRecoverRedoesCommittedAndUndoesInProgress(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(dir, wal.Options{SyncMode: "immediate"})
	require.NoError(t, err)

	mgr := NewManager(w)

	committed, err := mgr.Begin("/default/main")
	require.NoError(t, err)
	n1 := &types.Node{ID: "node_committed", Labels: []string{"Person"}}
	require.NoError(t, committed.RecordOp(
		UndoOperation{Kind: UndoInsertNode, NodeBefore: n1},
		RedoOperation{Kind: UndoInsertNode, NodeAfter: n1},
		wal.OpInsertNode, "insert committed node",
	))
	require.NoError(t, mgr.Commit(committed))

	crashed, err := mgr.Begin("/default/main")
	require.NoError(t, err)
	n2 := &types.Node{ID: "node_crashed", Labels: []string{"Person"}}
	require.NoError(t, crashed.RecordOp(
		UndoOperation{Kind: UndoInsertNode, NodeBefore: n2},
		RedoOperation{Kind: UndoInsertNode, NodeAfter: n2},
		wal.OpInsertNode, "insert crashed node",
	))
	// No commit/rollback logged: simulates a crash mid-transaction.

	require.NoError(t, w.Close())

	engine, err := storage.OpenInMemory()
	require.NoError(t, err)
	defer engine.Shutdown()

	w2, err := wal.Open(dir, wal.Options{SyncMode: "immediate"})
	require.NoError(t, err)
	defer w2.Close()

	require.NoError(t, Recover(w2, engine))

	g, err := engine.GetGraph("/default/main")
	require.NoError(t, err)
	require.NotNil(t, g)
	_, hasCommitted := g.Nodes["node_committed"]
	require.True(t, hasCommitted, "redo must replay the committed insert")
	_, hasCrashed := g.Nodes["node_crashed"]
	require.False(t, hasCrashed, "undo must reverse the in-progress insert")
}
