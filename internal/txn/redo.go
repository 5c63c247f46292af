package txn

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/types"
)

func init() {
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// RedoOperation is the forward-direction twin of UndoOperation: enough
// state to reapply a mutation idempotently during WAL redo (§4.4 Redo
// phase), independent of the in-memory undo log that does not survive a
// crash.
type RedoOperation struct {
	Kind          UndoKind
	NodeAfter     *types.Node
	EdgeAfter     *types.Edge
	DeletedNodeID string
	DeletedEdgeID string
	Children      []RedoOperation
}

// Apply reapplies op against g. Idempotent: applying an already-applied
// insert or delete is a silent no-op rather than an error, since redo may
// replay an operation whose effect is already present in the loaded
// snapshot (§4.4 "redo is idempotent").
func (op RedoOperation) Apply(g *storage.GraphCache) error {
	switch op.Kind {
	case UndoInsertNode:
		if _, exists := g.Nodes[op.NodeAfter.ID]; exists {
			return nil
		}
		return g.AddNode(op.NodeAfter.Clone())
	case UndoInsertEdge:
		if _, exists := g.Edges[op.EdgeAfter.ID]; exists {
			return nil
		}
		return g.AddEdge(op.EdgeAfter.Clone())
	case UndoUpdateNode:
		old := g.Nodes[op.NodeAfter.ID]
		var oldLabels []string
		if old != nil {
			oldLabels = append([]string(nil), old.Labels...)
		}
		g.Nodes[op.NodeAfter.ID] = op.NodeAfter.Clone()
		g.ReindexNodeLabels(op.NodeAfter.ID, oldLabels)
		return nil
	case UndoUpdateEdge:
		g.Edges[op.EdgeAfter.ID] = op.EdgeAfter.Clone()
		return nil
	case UndoDeleteNode:
		if _, exists := g.Nodes[op.DeletedNodeID]; !exists {
			return nil
		}
		_, _, err := g.DeleteNodeCascade(op.DeletedNodeID)
		return err
	case UndoDeleteEdge:
		if _, exists := g.Edges[op.DeletedEdgeID]; !exists {
			return nil
		}
		_, err := g.RemoveEdge(op.DeletedEdgeID)
		return err
	case UndoBatch:
		for _, child := range op.Children {
			if err := child.Apply(g); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("txn: unknown redo op kind %q", op.Kind)
	}
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeUndoOperation(data []byte) (UndoOperation, error) {
	var op UndoOperation
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&op)
	return op, err
}

func decodeRedoOperation(data []byte) (RedoOperation, error) {
	var op RedoOperation
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&op)
	return op, err
}
