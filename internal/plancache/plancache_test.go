package plancache

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/plan"
	"github.com/stretchr/testify/require"
)

func TestGetMissThenHit(t *testing.T) {
	c := New(4)
	key := Key{StatementFingerprint: 1, SchemaFingerprint: 1}

	_, ok := c.Get(key)
	require.False(t, ok)

	p := &plan.Plan{}
	c.Put(key, p)

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Same(t, p, got)
}

func TestEvictsLeastUsedAtCapacity(t *testing.T) {
	c := New(2)
	k1 := Key{StatementFingerprint: 1}
	k2 := Key{StatementFingerprint: 2}
	k3 := Key{StatementFingerprint: 3}

	c.Put(k1, &plan.Plan{})
	c.Put(k2, &plan.Plan{})

	// Bump k2's usage so k1 becomes the eviction victim.
	_, _ = c.Get(k2)
	_, _ = c.Get(k2)

	c.Put(k3, &plan.Plan{})

	require.Equal(t, 2, c.Len())
	_, ok := c.Get(k1)
	require.False(t, ok, "least-used entry must be evicted")
	_, ok = c.Get(k2)
	require.True(t, ok)
	_, ok = c.Get(k3)
	require.True(t, ok)
}

func TestInvalidateBySchema(t *testing.T) {
	c := New(4)
	k1 := Key{StatementFingerprint: 1, SchemaFingerprint: 100}
	k2 := Key{StatementFingerprint: 2, SchemaFingerprint: 200}
	c.Put(k1, &plan.Plan{})
	c.Put(k2, &plan.Plan{})

	c.InvalidateBySchema(100)

	_, ok := c.Get(k1)
	require.False(t, ok)
	_, ok = c.Get(k2)
	require.True(t, ok)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint("MATCH (n) RETURN n")
	b := Fingerprint("MATCH (n) RETURN n")
	c := Fingerprint("MATCH (m) RETURN m")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
