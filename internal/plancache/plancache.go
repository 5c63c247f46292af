// Package plancache implements GraphLite's plan cache (§4.5.2, C7):
// content-hash keyed, with usage_count/last_used tie-break eviction and
// schema-fingerprint invalidation.
//
// Grounded on the teacher's pkg/cache/query_cache.go (LRU map guarded by
// sync.RWMutex) generalized from a fixed-capacity LRU into the spec's
// usage_count/last_used tie-break eviction (SPEC_FULL §C.2) and
// invalidate_by_schema sweep.
package plancache

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/graphlite-db/graphlite/internal/plan"
)

// Key is the cache lookup key: a statement fingerprint, the schema
// fingerprint it was planned against, the optimization level, and any
// planner hints — changing any of these invalidates the cached plan
// (§4.5.2). The executor fingerprints the raw query text; no AST
// normalization is applied, so texts that differ only in spacing or case
// get separate entries.
type Key struct {
	StatementFingerprint uint64
	SchemaFingerprint    uint64
	OptimizationLevel    int
	Hints                string
}

// Fingerprint hashes statement text into a stable uint64; it applies no
// normalization of its own.
func Fingerprint(normalizedText string) uint64 {
	return xxhash.Sum64String(normalizedText)
}

type entry struct {
	key        Key
	plan       *plan.Plan
	usageCount uint64
	lastUsed   uint64 // logical clock, not wall time (recovery/tests must stay deterministic)
}

// Cache is a bounded plan cache keyed by Key.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[Key]*entry
	clock    uint64
}

// New constructs a cache holding at most capacity plans.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache{capacity: capacity, entries: make(map[Key]*entry)}
}

// Get returns the cached plan for key, bumping its usage stats, or
// (nil, false) on a miss.
func (c *Cache) Get(key Key) (*plan.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.clock++
	e.usageCount++
	e.lastUsed = c.clock
	return e.plan, true
}

// Put inserts p under key, evicting the least valuable entry first if the
// cache is at capacity (§4.5.2: "evict by usage_count ascending, then
// last_used ascending on ties").
func (c *Cache) Put(key Key, p *plan.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOneLocked()
	}
	c.clock++
	c.entries[key] = &entry{key: key, plan: p, usageCount: 1, lastUsed: c.clock}
}

func (c *Cache) evictOneLocked() {
	var victim *entry
	for _, e := range c.entries {
		if victim == nil ||
			e.usageCount < victim.usageCount ||
			(e.usageCount == victim.usageCount && e.lastUsed < victim.lastUsed) {
			victim = e
		}
	}
	if victim != nil {
		delete(c.entries, victim.key)
	}
}

// InvalidateBySchema drops every cached plan whose SchemaFingerprint
// matches schemaFingerprint (§4.5.2 invalidate_by_schema — called after
// any DDL that changes the schema a cached plan may have assumed).
func (c *Cache) InvalidateBySchema(schemaFingerprint uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.SchemaFingerprint == schemaFingerprint {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached plans.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns every cached key, sorted for deterministic inspection in
// tests.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].StatementFingerprint != keys[j].StatementFingerprint {
			return keys[i].StatementFingerprint < keys[j].StatementFingerprint
		}
		return keys[i].SchemaFingerprint < keys[j].SchemaFingerprint
	})
	return keys
}
