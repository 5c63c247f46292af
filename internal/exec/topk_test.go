package exec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamingTopKKeepsHighestScores(t *testing.T) {
	k := NewStreamingTopK(2)
	scores := []float64{3, 1, 4, 1, 5, 9, 2}
	for _, s := range scores {
		k.Offer(Row{}, s)
	}
	rows := k.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, 7, k.Seen())
}

func TestStreamingTopKRejectsBelowMinOnceFull(t *testing.T) {
	k := NewStreamingTopK(1)
	kept, evicted := k.Offer(Row{}, 10)
	require.True(t, kept)
	require.Nil(t, evicted)

	kept, evicted = k.Offer(Row{}, 5)
	require.False(t, kept)
	require.Nil(t, evicted)

	kept, evicted = k.Offer(Row{}, 20)
	require.True(t, kept)
	require.NotNil(t, evicted)
}

func TestStreamingTopKZeroCapacityKeepsNothing(t *testing.T) {
	k := NewStreamingTopK(0)
	kept, _ := k.Offer(Row{}, 1)
	require.False(t, kept)
	require.Equal(t, 0, len(k.Rows()))
}
