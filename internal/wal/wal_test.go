package wal

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Options{SyncMode: "immediate", MaxSegmentBytes: 1 << 20})
	require.NoError(t, err)
	defer w.Close()

	seq1, err := w.Append(Entry{TxID: 1, Timestamp: time.Unix(0, 0), Kind: KindBegin})
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq1)

	seq2, err := w.Append(Entry{
		TxID:        1,
		Timestamp:   time.Unix(1, 0),
		Kind:        KindOperation,
		OpType:      OpInsertNode,
		Description: "insert node n1",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq2)

	seq3, err := w.Append(Entry{TxID: 1, Timestamp: time.Unix(2, 0), Kind: KindCommit})
	require.NoError(t, err)
	require.Equal(t, uint64(3), seq3)

	var got []Entry
	err = w.AllEntries(func(seq, segment uint64, e Entry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, KindBegin, got[0].Kind)
	require.Equal(t, KindOperation, got[1].Kind)
	require.Equal(t, OpInsertNode, got[1].OpType)
	require.Equal(t, KindCommit, got[2].Kind)
}

func TestResumeAfterReopen(t *testing.T) {
	dir := t.TempDir()

	w1, err := Open(dir, Options{SyncMode: "immediate"})
	require.NoError(t, err)
	_, err = w1.Append(Entry{TxID: 1, Kind: KindBegin})
	require.NoError(t, err)
	_, err = w1.Append(Entry{TxID: 1, Kind: KindCommit})
	require.NoError(t, err)
	require.NoError(t, w1.Close())

	w2, err := Open(dir, Options{SyncMode: "immediate"})
	require.NoError(t, err)
	defer w2.Close()

	seq, err := w2.Append(Entry{TxID: 2, Kind: KindBegin})
	require.NoError(t, err)
	require.Equal(t, uint64(3), seq, "sequence numbering must continue across reopen")
}

func TestRotateCreatesNewSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Options{SyncMode: "immediate", MaxSegmentBytes: 1 << 20})
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, uint64(1), w.CurrentSegment())
	require.NoError(t, w.Rotate())
	require.Equal(t, uint64(2), w.CurrentSegment())

	segments, err := w.Segments()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, segments)
}

func TestAutoRotateOnSize(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Options{SyncMode: "immediate", MaxSegmentBytes: 64})
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 10; i++ {
		_, err := w.Append(Entry{TxID: uint64(i), Kind: KindOperation, Description: "padding-entry-to-force-rotation"})
		require.NoError(t, err)
	}

	segments, err := w.Segments()
	require.NoError(t, err)
	require.Greater(t, len(segments), 1, "expected segment rotation once size threshold exceeded")
}

func TestReadSegmentNotFound(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Options{SyncMode: "immediate"})
	require.NoError(t, err)
	defer w.Close()

	_, err = w.ReadSegment(999)
	require.ErrorIs(t, err, ErrSegmentNotFound)
}

func TestSegmentReaderReturnsEOFAtCleanEnd(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Options{SyncMode: "immediate"})
	require.NoError(t, err)
	_, err = w.Append(Entry{TxID: 1, Kind: KindBegin})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := w.ReadSegment(1)
	require.NoError(t, err)
	defer r.Close()

	_, _, err = r.Next()
	require.NoError(t, err)

	_, _, err = r.Next()
	require.True(t, err == io.EOF)
}
