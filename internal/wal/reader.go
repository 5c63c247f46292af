package wal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
)

// SegmentReader iterates the framed entries of one segment file in order,
// assigning each its 1-based position within that file (scanLastSequence
// counts the same way). Numbering restarts for every segment, so it equals
// the sequence number Append returned only for entries of the first
// segment.
type SegmentReader struct {
	f   *os.File
	seq uint64
}

func newSegmentReader(path string) (*SegmentReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &SegmentReader{f: f}, nil
}

// Next returns the next entry and its sequence number, io.EOF at a clean
// end of file, or ErrTruncatedTail if the file ends mid-frame (the crash
// point recovery's Analysis phase stops at, §4.4).
func (r *SegmentReader) Next() (Entry, uint64, error) {
	var header [8]byte
	if _, err := io.ReadFull(r.f, header[:]); err != nil {
		if err == io.EOF {
			return Entry{}, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return Entry{}, 0, ErrTruncatedTail
		}
		return Entry{}, 0, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	wantChecksum := binary.BigEndian.Uint32(header[4:8])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.f, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Entry{}, 0, ErrTruncatedTail
		}
		return Entry{}, 0, err
	}

	if crc32.ChecksumIEEE(payload) != wantChecksum {
		return Entry{}, 0, ErrCorruptEntry
	}

	entry, err := decodeEntry(payload)
	if err != nil {
		return Entry{}, 0, ErrCorruptEntry
	}

	r.seq++
	return entry, r.seq, nil
}

// Close releases the underlying file handle.
func (r *SegmentReader) Close() error {
	return r.f.Close()
}

// ReadSegment opens segment n under dir and returns an iterator over its
// entries. Returns ErrSegmentNotFound if the segment file does not exist.
func (w *WAL) ReadSegment(n uint64) (*SegmentReader, error) {
	path := segmentPath(w.dir, n)
	r, err := newSegmentReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}
	return r, nil
}

// Segments returns every existing segment number, sorted ascending.
func (w *WAL) Segments() ([]uint64, error) {
	return listSegments(w.dir)
}

func segmentPath(dir string, n uint64) string {
	return filepath.Join(dir, segmentFileName(n))
}

// AllEntries replays every entry in every segment, in (segment, sequence)
// order, calling fn for each. Used by recovery's Analysis/Redo passes.
// Stops cleanly (without error) at a truncated tail entry, since that marks
// the point a crash interrupted an in-flight Append (§4.4).
func (w *WAL) AllEntries(fn func(seq uint64, segment uint64, e Entry) error) error {
	segments, err := w.Segments()
	if err != nil {
		return err
	}
	for _, segNum := range segments {
		r, err := w.ReadSegment(segNum)
		if err != nil {
			return err
		}
		for {
			e, seq, err := r.Next()
			if err == io.EOF || err == ErrTruncatedTail {
				break
			}
			if err != nil {
				r.Close()
				return err
			}
			if err := fn(seq, segNum, e); err != nil {
				r.Close()
				return err
			}
		}
		r.Close()
	}
	return nil
}
