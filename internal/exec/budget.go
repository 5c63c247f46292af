package exec

import (
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/types"
)

// MemoryBudget enforces §4.5.6's cap on in-flight result materialization.
// Operators that buffer rows (Aggregate, OrderBy, set-op dedup) charge
// their estimated footprint here and must bail out the moment the ceiling
// is crossed rather than let the process grow unbounded.
type MemoryBudget struct {
	limit int64
	used  atomic.Int64
}

// NewMemoryBudget returns a guard that allows at most limitBytes of
// concurrently-charged memory. A non-positive limit disables enforcement.
func NewMemoryBudget(limitBytes int64) *MemoryBudget {
	return &MemoryBudget{limit: limitBytes}
}

// Charge accounts for n additional bytes, returning a MemoryLimitExceeded
// error (stating the would-be total and the limit, both formatted with
// humanize.IBytes) if doing so would exceed the budget.
// The charge is rejected, not partially applied, on overflow.
func (b *MemoryBudget) Charge(n int64) error {
	if b.limit <= 0 {
		b.used.Add(n)
		return nil
	}
	next := b.used.Add(n)
	if next > b.limit {
		b.used.Add(-n)
		return graphliteerr.Newf(graphliteerr.KindMemoryLimitExceeded,
			"result materialization would use %s, exceeding budget of %s",
			humanize.IBytes(uint64(next)), humanize.IBytes(uint64(b.limit)))
	}
	return nil
}

// Release returns n bytes to the budget. The executor, StreamingTopK
// included, does not call it.
func (b *MemoryBudget) Release(n int64) {
	b.used.Add(-n)
}

// Used reports the currently charged byte count.
func (b *MemoryBudget) Used() int64 {
	return b.used.Load()
}

// EstimateRowBytes gives a rough per-row footprint for budget accounting.
// It doesn't need to be exact, only monotonic with row size, since it's
// used solely to reject runaway materialization (§4.5.6).
func EstimateRowBytes(r Row) int64 {
	var n int64
	for k, v := range r.Values {
		n += int64(len(k)) + estimateValueBytes(v)
	}
	for _, v := range r.PositionalValues {
		n += estimateValueBytes(v)
	}
	for _, s := range r.SourceEntities {
		n += int64(len(s))
	}
	return n + 64 // struct overhead, approximate
}

func estimateValueBytes(v types.Value) int64 {
	if s, ok := v.AsString(); ok {
		return int64(len(s))
	}
	if l, ok := v.AsList(); ok {
		var n int64
		for _, e := range l {
			n += estimateValueBytes(e)
		}
		return n
	}
	return 16
}
