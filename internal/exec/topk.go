package exec

import (
	"container/heap"
	"sort"
)

// topKItem pairs a Row with its ordering score (e.g. text relevance, or an
// ORDER BY ... LIMIT N key reduced to a float64).
type topKItem struct {
	row   Row
	score float64
}

// topKHeap is a min-heap over score, so the smallest-scoring candidate
// sits at index 0 and is the first one evicted once the heap is full.
type topKHeap []topKItem

func (h topKHeap) Len() int            { return len(h) }
func (h topKHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h topKHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x any)         { *h = append(*h, x.(topKItem)) }
func (h *topKHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// StreamingTopK keeps the K highest-scoring rows seen so far without
// buffering the full input (§4.5.6). Offer is O(log K); rejecting a
// below-minimum candidate once the heap is full is O(1) before ever
// touching the heap.
type StreamingTopK struct {
	k    int
	h    topKHeap
	seen int
}

// NewStreamingTopK returns a collector that retains at most k rows.
func NewStreamingTopK(k int) *StreamingTopK {
	if k < 0 {
		k = 0
	}
	return &StreamingTopK{k: k}
}

// Offer considers row for inclusion in the top-k set. It returns true if
// the row was kept (and, if the heap was already full, which row — if
// any — was evicted to make room).
func (s *StreamingTopK) Offer(row Row, score float64) (kept bool, evicted *Row) {
	if s.k == 0 {
		return false, nil
	}
	s.seen++
	if len(s.h) < s.k {
		heap.Push(&s.h, topKItem{row: row, score: score})
		return true, nil
	}
	if score <= s.h[0].score {
		return false, nil
	}
	old := s.h[0]
	s.h[0] = topKItem{row: row, score: score}
	heap.Fix(&s.h, 0)
	return true, &old.row
}

// Seen reports how many rows were offered, including rejected ones.
func (s *StreamingTopK) Seen() int { return s.seen }

// Rows drains the collector, returning its retained rows in descending
// score order (highest first), matching ORDER BY ... DESC LIMIT K output.
func (s *StreamingTopK) Rows() []Row {
	items := append(topKHeap(nil), s.h...)
	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })
	out := make([]Row, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out
}
