package exec

import (
	"testing"

	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/types"
	"github.com/stretchr/testify/require"
)

func TestMemoryBudgetChargeAndRelease(t *testing.T) {
	b := NewMemoryBudget(100)
	require.NoError(t, b.Charge(60))
	require.Equal(t, int64(60), b.Used())

	err := b.Charge(60)
	require.Error(t, err)
	require.True(t, graphliteerr.IsKind(err, graphliteerr.KindMemoryLimitExceeded))
	require.Equal(t, int64(60), b.Used(), "rejected charge must not be partially applied")

	b.Release(30)
	require.Equal(t, int64(30), b.Used())
	require.NoError(t, b.Charge(60))
}

func TestMemoryBudgetDisabledWhenNonPositive(t *testing.T) {
	b := NewMemoryBudget(0)
	require.NoError(t, b.Charge(1<<40))
}

func TestEstimateRowBytesGrowsWithContent(t *testing.T) {
	small := Row{PositionalValues: []types.Value{types.NewString("a")}}
	large := Row{PositionalValues: []types.Value{types.NewString("a much longer string value")}}
	require.Greater(t, EstimateRowBytes(large), EstimateRowBytes(small))
}
