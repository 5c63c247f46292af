// Package session implements GraphLite's session registry (§4.4.4ish, C5):
// a 16-partition, lock-striped map from session id to session state, with
// a background idle sweep that rolls back abandoned transactions.
//
// Grounded on spec §5's partition-count and idle-timeout numbers directly;
// structurally modeled on the teacher's sync.RWMutex-guarded manager style
// (pkg/storage/memory.go) generalized to partitions, and on the teacher's
// ticker-driven background loop (pkg/storage/wal.go batchSyncLoop) for the
// idle sweep.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/txn"
)

const partitionCount = 16

// DefaultIdleTimeout is the duration of inactivity after which a session's
// open transaction is rolled back and the session is evicted (§5).
const DefaultIdleTimeout = time.Hour

// State holds one session's mutable context: current graph/schema,
// query parameters, and any open transaction.
type State struct {
	ID         string
	GraphPath  string
	SchemaPath string
	Params     map[string]any
	TimeZone   string
	Tx         *txn.Transaction
	User       string

	lastActive time.Time
}

// Touch updates the session's last-active timestamp (§5 idle tracking).
func (s *State) Touch(now time.Time) { s.lastActive = now }

type partition struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// Registry is the 16-partition lock-striped session store.
type Registry struct {
	partitions [partitionCount]*partition
	idleTimeout time.Duration
	txMgr       *txn.Manager

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewRegistry constructs a registry holding txMgr. The idle sweep rolls
// back transactions through the callback passed to StartIdleSweep, not
// through txMgr.
func NewRegistry(txMgr *txn.Manager, idleTimeout time.Duration) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	r := &Registry{idleTimeout: idleTimeout, txMgr: txMgr, stop: make(chan struct{})}
	for i := range r.partitions {
		r.partitions[i] = &partition{sessions: make(map[string]*State)}
	}
	return r
}

func (r *Registry) partitionFor(id string) *partition {
	var h byte
	for i := 0; i < len(id); i++ {
		h ^= id[i]
	}
	return r.partitions[int(h)%partitionCount]
}

func newSessionID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "sess_" + hex.EncodeToString(b[:])
}

// Create registers a new session bound to graphPath, returning its state.
func (r *Registry) Create(graphPath, schemaPath, user string) *State {
	s := &State{
		ID:         newSessionID(),
		GraphPath:  graphPath,
		SchemaPath: schemaPath,
		Params:     make(map[string]any),
		TimeZone:   "UTC",
		User:       user,
		lastActive: time.Now(),
	}
	p := r.partitionFor(s.ID)
	p.mu.Lock()
	p.sessions[s.ID] = s
	p.mu.Unlock()
	return s
}

// Get returns the session state for id, if still registered.
func (r *Registry) Get(id string) (*State, bool) {
	p := r.partitionFor(id)
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[id]
	return s, ok
}

// Close removes a session from the registry. Callers are responsible for
// rolling back any transaction the session left open before calling Close
// (§4.4 close_session) — the registry only tracks state, it does not own
// the GraphCache needed to apply an undo log.
func (r *Registry) Close(id string) (*State, error) {
	p := r.partitionFor(id)
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, graphliteerr.New(graphliteerr.KindRuntime, "session not found: "+id)
	}
	delete(p.sessions, id)
	return s, nil
}

// InvalidateGraphs clears GraphPath (but not SchemaPath) on every session
// whose GraphPath satisfies match, returning how many sessions were
// touched. Used after DROP SCHEMA/GRAPH cascade removes a graph a session
// currently targets (§4.5.5: "S1's current_schema is unchanged; S1's
// current_graph is cleared").
func (r *Registry) InvalidateGraphs(match func(graphPath string) bool) int {
	n := 0
	for _, p := range r.partitions {
		p.mu.Lock()
		for _, s := range p.sessions {
			if s.GraphPath != "" && match(s.GraphPath) {
				s.GraphPath = ""
				n++
			}
		}
		p.mu.Unlock()
	}
	return n
}

// Count returns the total number of registered sessions, across all
// partitions.
func (r *Registry) Count() int {
	total := 0
	for _, p := range r.partitions {
		p.mu.RLock()
		total += len(p.sessions)
		p.mu.RUnlock()
	}
	return total
}

// StartIdleSweep begins a background goroutine that, every interval,
// evicts sessions idle longer than the registry's idle timeout, rolling
// back any transaction they left open (§5).
func (r *Registry) StartIdleSweep(interval time.Duration, onRollback func(graphPath string, tx *txn.Transaction)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweepOnce(onRollback)
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *Registry) sweepOnce(onRollback func(graphPath string, tx *txn.Transaction)) {
	now := time.Now()
	for _, p := range r.partitions {
		p.mu.Lock()
		var expired []*State
		for id, s := range p.sessions {
			if now.Sub(s.lastActive) > r.idleTimeout {
				expired = append(expired, s)
				delete(p.sessions, id)
			}
		}
		p.mu.Unlock()

		for _, s := range expired {
			if s.Tx != nil && s.Tx.State() == txn.StateInProgress && onRollback != nil {
				onRollback(s.GraphPath, s.Tx)
			}
		}
	}
}

// StopIdleSweep stops the background sweep goroutine.
func (r *Registry) StopIdleSweep() {
	close(r.stop)
	r.wg.Wait()
}
