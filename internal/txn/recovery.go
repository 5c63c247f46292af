package txn

import (
	"fmt"

	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/wal"
)

// Recover performs ARIES-style three-phase crash recovery (§4.4, C9)
// against every graph the WAL references, using engine to load and save
// each graph's snapshot. Grounded on graphlite/src/txn/recovery.rs for the
// phase structure and on the teacher's RecoverFromWAL (pkg/storage/wal.go)
// for the "replay segments in order, apply to the live store" shape.
//
// Recover must run to completion before the first session is created
// (spec §9: "recovery happens synchronously on open, before any session is
// admitted").
func Recover(w *wal.WAL, engine storage.Engine) error {
	txStates, ops, err := analyze(w)
	if err != nil {
		return fmt.Errorf("txn: recovery analysis: %w", err)
	}

	byGraph := make(map[string][]loggedOp)
	for _, op := range ops {
		byGraph[op.graphPath] = append(byGraph[op.graphPath], op)
	}

	for graphPath, graphOps := range byGraph {
		g, err := engine.GetGraph(graphPath)
		if err != nil {
			return fmt.Errorf("txn: recovery load graph %s: %w", graphPath, err)
		}
		if g == nil {
			g = storage.NewGraphCache()
		}

		// Redo: replay every operation belonging to a transaction that
		// reached Commit, in WAL order. Idempotent, so replaying an
		// operation already reflected in the loaded snapshot is safe.
		for _, op := range graphOps {
			if txStates[op.txID] != StateCommitted {
				continue
			}
			redo, err := decodeRedoOperation(op.afterImage)
			if err != nil {
				return fmt.Errorf("txn: recovery redo decode (tx %d): %w", op.txID, err)
			}
			if err := redo.Apply(g); err != nil {
				return fmt.Errorf("txn: recovery redo apply (tx %d): %w", op.txID, err)
			}
		}

		// Undo: for every transaction that was still InProgress when the
		// WAL ends (crashed mid-transaction), reverse its operations in
		// reverse WAL order. An insert whose entity is absent from the
		// loaded snapshot never reached storage, so its undo is skipped.
		inProgress := make(map[uint64][]loggedOp)
		for _, op := range graphOps {
			if txStates[op.txID] == StateInProgress {
				inProgress[op.txID] = append(inProgress[op.txID], op)
			}
		}
		for txID, txOps := range inProgress {
			for i := len(txOps) - 1; i >= 0; i-- {
				undo, err := decodeUndoOperation(txOps[i].beforeImage)
				if err != nil {
					return fmt.Errorf("txn: recovery undo decode (tx %d): %w", txID, err)
				}
				if (undo.Kind == UndoInsertNode && g.Nodes[undo.NodeBefore.ID] == nil) ||
					(undo.Kind == UndoInsertEdge && g.Edges[undo.EdgeBefore.ID] == nil) {
					continue
				}
				if err := undo.Apply(g); err != nil {
					return fmt.Errorf("txn: recovery undo apply (tx %d): %w", txID, err)
				}
			}
		}

		if err := g.CheckInvariants(); err != nil {
			return fmt.Errorf("txn: recovery produced invalid graph %s: %w", graphPath, err)
		}
		if err := engine.SaveGraph(graphPath, g); err != nil {
			return fmt.Errorf("txn: recovery save graph %s: %w", graphPath, err)
		}
	}

	return nil
}

type loggedOp struct {
	txID        uint64
	graphPath   string
	beforeImage []byte
	afterImage  []byte
	seq         uint64
}

// analyze is ARIES's Analysis phase: scan the whole WAL once, assigning
// every transaction id the state it was left in (§4.4). A transaction with
// no terminal Commit/Rollback record is InProgress and must be undone.
func analyze(w *wal.WAL) (map[uint64]State, []loggedOp, error) {
	states := make(map[uint64]State)
	graphOf := make(map[uint64]string)
	var ops []loggedOp

	err := w.AllEntries(func(seq, segment uint64, e wal.Entry) error {
		switch e.Kind {
		case wal.KindBegin:
			states[e.TxID] = StateInProgress
			graphOf[e.TxID] = e.Description
		case wal.KindCommit:
			states[e.TxID] = StateCommitted
		case wal.KindRollback:
			states[e.TxID] = StateRolledBack
		case wal.KindOperation:
			ops = append(ops, loggedOp{
				txID:        e.TxID,
				graphPath:   graphOf[e.TxID],
				beforeImage: e.BeforeImage,
				afterImage:  e.AfterImage,
				seq:         seq,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// ops is already in append order: AllEntries walks segments in
	// ascending order and, within each, entries in the order they were
	// written. seq is re-derived per segment (SegmentReader.seq restarts
	// at 0 for every file), so sorting by it alone would interleave
	// segment 2's low sequence numbers ahead of segment 1's high ones —
	// re-sort on (segment, seq) if this ever needs reordering instead of
	// a flat sort.Slice on seq.
	return states, ops, nil
}
