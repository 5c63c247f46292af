// Package txn implements GraphLite's transaction manager (§4.3, C3) and
// ARIES-style crash recovery (§4.4, C9) on top of internal/wal and
// internal/storage.
//
// Grounded on the teacher's pkg/storage/transaction.go (Transaction/
// Operation buffering, atomic tx-id allocation) generalized from a single
// engine-bound transaction type into a manager that serializes its
// decisions through the WAL and produces a durable per-transaction undo
// log, per spec §4.3.
package txn

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/types"
	"github.com/graphlite-db/graphlite/internal/wal"
)

// State is a transaction's lifecycle status (§4.4 Analysis phase).
type State string

const (
	StateInProgress State = "InProgress"
	StateCommitted  State = "Committed"
	StateRolledBack State = "RolledBack"
)

// UndoKind tags the reversible operation an UndoOperation describes (§4.3).
type UndoKind string

const (
	UndoInsertNode UndoKind = "InsertNode"
	UndoInsertEdge UndoKind = "InsertEdge"
	UndoUpdateNode UndoKind = "UpdateNode"
	UndoUpdateEdge UndoKind = "UpdateEdge"
	UndoDeleteNode UndoKind = "DeleteNode"
	UndoDeleteEdge UndoKind = "DeleteEdge"
	UndoBatch      UndoKind = "Batch"
)

// UndoOperation is one entry of a transaction's undo log: enough state to
// reverse a single mutation against a GraphCache (§4.3 undo-application
// rules).
//
//   - InsertNode/InsertEdge undo by deleting NodeBefore.ID / EdgeBefore.ID.
//   - UpdateNode/UpdateEdge undo by restoring NodeBefore / EdgeBefore in
//     place.
//   - DeleteNode/DeleteEdge undo by re-inserting NodeBefore / EdgeBefore
//     (and, for a cascaded node delete, every edge in EdgesBefore).
//   - Batch undoes its Children in reverse order.
type UndoOperation struct {
	Kind       UndoKind
	GraphPath  string
	NodeBefore *types.Node
	EdgeBefore *types.Edge
	EdgesBefore []*types.Edge // incident edges removed by a cascading node delete
	Children   []UndoOperation
}

// Apply reverses op against g (§4.3 "applying the undo log restores the
// pre-transaction state exactly").
func (op UndoOperation) Apply(g *storage.GraphCache) error {
	switch op.Kind {
	case UndoInsertNode:
		_, err := g.RemoveNode(op.NodeBefore.ID)
		return err
	case UndoInsertEdge:
		_, err := g.RemoveEdge(op.EdgeBefore.ID)
		return err
	case UndoUpdateNode:
		old := g.Nodes[op.NodeBefore.ID]
		var oldLabels []string
		if old != nil {
			oldLabels = append([]string(nil), old.Labels...)
		}
		g.Nodes[op.NodeBefore.ID] = op.NodeBefore.Clone()
		g.ReindexNodeLabels(op.NodeBefore.ID, oldLabels)
		return nil
	case UndoUpdateEdge:
		g.Edges[op.EdgeBefore.ID] = op.EdgeBefore.Clone()
		return nil
	case UndoDeleteNode:
		if err := g.AddNode(op.NodeBefore.Clone()); err != nil {
			return err
		}
		for _, e := range op.EdgesBefore {
			if err := g.AddEdge(e.Clone()); err != nil {
				return err
			}
		}
		return nil
	case UndoDeleteEdge:
		return g.AddEdge(op.EdgeBefore.Clone())
	case UndoBatch:
		for i := len(op.Children) - 1; i >= 0; i-- {
			if err := op.Children[i].Apply(g); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("txn: unknown undo op kind %q", op.Kind)
	}
}

// Transaction is an in-flight unit of work bound to one session (§4.3).
// Not safe for concurrent use from multiple goroutines — a session has at
// most one active transaction at a time (§5).
type Transaction struct {
	ID        uint64
	GraphPath string
	StartedAt time.Time
	state     State

	undoLog  []UndoOperation
	metadata string
	mgr      *Manager
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State { return t.state }

// maxMetadataBytes caps tx.setMetaData's payload, matching the teacher's
// SetMetadata size limit (pkg/storage/transaction.go).
const maxMetadataBytes = 2048

// SetMetadata attaches a free-form audit string to the transaction,
// surfaced in the WAL Operation description field it's next recorded
// against (CALL tx.setMetaData(...), SPEC_FULL §C.1).
func (t *Transaction) SetMetadata(s string) error {
	if len(s) > maxMetadataBytes {
		return graphliteerr.Newf(graphliteerr.KindValidation, "transaction metadata exceeds %d bytes", maxMetadataBytes)
	}
	t.metadata = s
	return nil
}

// GetMetadata returns the transaction's last-set metadata string, if any.
func (t *Transaction) GetMetadata() string { return t.metadata }

// RecordOp appends undo to the transaction's in-memory undo log and
// durably logs a WAL Operation entry carrying both undo and redo images,
// before the mutation is applied to the in-memory GraphCache (§4.3: "every
// mutation is WAL-logged before it is applied"). redo must describe the
// same mutation in the forward direction so that crash recovery can replay
// it without the in-memory undo log, which does not survive a crash.
func (t *Transaction) RecordOp(undo UndoOperation, redo RedoOperation, opType wal.OperationType, description string) error {
	if t.state != StateInProgress {
		return graphliteerr.New(graphliteerr.KindTransaction, "transaction is not in progress")
	}
	beforeImage, err := encodeGob(undo)
	if err != nil {
		return fmt.Errorf("txn: encode undo image: %w", err)
	}
	afterImage, err := encodeGob(redo)
	if err != nil {
		return fmt.Errorf("txn: encode redo image: %w", err)
	}
	if t.metadata != "" {
		description += " [metadata: " + t.metadata + "]"
	}
	if _, err := t.mgr.w.Append(wal.Entry{
		TxID:        t.ID,
		Timestamp:   t.mgr.now(),
		Kind:        wal.KindOperation,
		OpType:      opType,
		Description: description,
		BeforeImage: beforeImage,
		AfterImage:  afterImage,
	}); err != nil {
		return fmt.Errorf("txn: log operation: %w", err)
	}
	t.undoLog = append(t.undoLog, undo)
	return nil
}

// Manager coordinates transaction lifecycle, WAL logging, and recovery
// (C3 + C9). One Manager per open database.
type Manager struct {
	mu     sync.Mutex
	w      *wal.WAL
	nextID atomic.Uint64
	active map[uint64]*Transaction

	nowFn func() time.Time
}

// NewManager constructs a Manager writing to w.
func NewManager(w *wal.WAL) *Manager {
	return &Manager{
		w:      w,
		active: make(map[uint64]*Transaction),
	}
}

func (m *Manager) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now()
}

// Begin starts a new transaction against graphPath and logs its Begin
// record.
func (m *Manager) Begin(graphPath string) (*Transaction, error) {
	id := m.nextID.Add(1)
	ts := m.now()
	if _, err := m.w.Append(wal.Entry{TxID: id, Timestamp: ts, Kind: wal.KindBegin, Description: graphPath}); err != nil {
		return nil, fmt.Errorf("txn: log begin: %w", err)
	}
	tx := &Transaction{ID: id, GraphPath: graphPath, StartedAt: ts, state: StateInProgress, mgr: m}
	m.mu.Lock()
	m.active[id] = tx
	m.mu.Unlock()
	return tx, nil
}

// Commit marks tx committed, durably, and drops its in-memory undo log
// (the GraphCache mutations themselves are already applied; only the WAL
// record of the commit decision persists).
func (m *Manager) Commit(tx *Transaction) error {
	if tx.state != StateInProgress {
		return graphliteerr.New(graphliteerr.KindTransaction, "cannot commit a transaction that is not in progress")
	}
	if _, err := m.w.Append(wal.Entry{TxID: tx.ID, Timestamp: m.now(), Kind: wal.KindCommit}); err != nil {
		return fmt.Errorf("txn: log commit: %w", err)
	}
	tx.state = StateCommitted
	tx.undoLog = nil
	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()
	return nil
}

// Rollback applies tx's undo log (in reverse order) to g, restoring the
// pre-transaction state, then logs a Rollback record.
func (m *Manager) Rollback(tx *Transaction, g *storage.GraphCache) error {
	if tx.state != StateInProgress {
		return graphliteerr.New(graphliteerr.KindTransaction, "cannot roll back a transaction that is not in progress")
	}
	for i := len(tx.undoLog) - 1; i >= 0; i-- {
		if err := tx.undoLog[i].Apply(g); err != nil {
			return fmt.Errorf("txn: rollback undo step %d: %w", i, err)
		}
	}
	if _, err := m.w.Append(wal.Entry{TxID: tx.ID, Timestamp: m.now(), Kind: wal.KindRollback}); err != nil {
		return fmt.Errorf("txn: log rollback: %w", err)
	}
	tx.state = StateRolledBack
	tx.undoLog = nil
	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()
	return nil
}

// ActiveTransactions returns every currently in-progress transaction, used
// by the session idle-sweep to find transactions to roll back.
func (m *Manager) ActiveTransactions() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Transaction, 0, len(m.active))
	for _, tx := range m.active {
		out = append(out, tx)
	}
	return out
}
