package session

import (
	"testing"
	"time"

	"github.com/graphlite-db/graphlite/internal/txn"
	"github.com/graphlite-db/graphlite/internal/wal"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *txn.Manager {
	t.Helper()
	w, err := wal.Open(t.TempDir(), wal.Options{SyncMode: "immediate"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return txn.NewManager(w)
}

func TestCreateGetClose(t *testing.T) {
	r := NewRegistry(newTestManager(t), time.Hour)
	s := r.Create("/default/main", "/default", "alice")
	require.NotEmpty(t, s.ID)

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	require.Equal(t, "/default/main", got.GraphPath)

	_, err := r.Close(s.ID)
	require.NoError(t, err)

	_, ok = r.Get(s.ID)
	require.False(t, ok)
}

func TestIdleSweepRollsBackOpenTransaction(t *testing.T) {
	mgr := newTestManager(t)
	r := NewRegistry(mgr, 10*time.Millisecond)

	s := r.Create("/default/main", "/default", "alice")
	tx, err := mgr.Begin(s.GraphPath)
	require.NoError(t, err)
	s.Tx = tx

	var rolledBack bool
	r.StartIdleSweep(5*time.Millisecond, func(graphPath string, tx *txn.Transaction) {
		rolledBack = true
	})
	defer r.StopIdleSweep()

	require.Eventually(t, func() bool { return rolledBack }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, r.Count(), "idle session must be evicted")
}

func TestCountAcrossPartitions(t *testing.T) {
	r := NewRegistry(newTestManager(t), time.Hour)
	for i := 0; i < 40; i++ {
		r.Create("/default/main", "/default", "alice")
	}
	require.Equal(t, 40, r.Count())
}
