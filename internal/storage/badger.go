package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// Key prefixes inside the single badger.DB, one logical tree per prefix
// (§4.1 "Logical trees inside the KV store"). Grounded on the teacher's
// single-byte-prefix convention (pkg/storage/badger.go).
const (
	prefixGraph   = byte(0x10) // graph:<full-path> -> compressed GraphCache blob
	prefixCatalog = byte(0x20) // catalog:<provider-name> -> opaque bytes
	prefixMeta    = byte(0x30) // meta:<key> -> system metadata
)

// BadgerEngine is the persistent storage engine (§4.1, C1). It owns the
// directory layout:
//
//	<root>/db/          badger's own data+value-log files
//	<root>/conf/         engine configuration (internal/config)
//	<root>/wal/          GraphLite's own WAL segments (internal/wal)
//	<root>/wal/catalog/  reserved for catalog-specific WAL subtrees
//	<root>/blobs/        reserved for large out-of-line blobs
//
// BadgerEngine itself only ever touches <root>/db; the sibling directories
// are created here (so a single Open call produces the full layout) but
// populated by the WAL and blob subsystems.
type BadgerEngine struct {
	mu     sync.RWMutex
	db     *badger.DB
	root   string
	closed bool
}

// Open creates the on-disk directory layout under root (if absent) and
// opens the badger.DB rooted at <root>/db.
func Open(root string) (*BadgerEngine, error) {
	for _, sub := range []string{"db", "conf", "wal", filepath.Join("wal", "catalog"), "blobs"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create %s: %w", sub, err)
		}
	}

	opts := badger.DefaultOptions(filepath.Join(root, "db")).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}
	return &BadgerEngine{db: db, root: root}, nil
}

// OpenInMemory opens an in-memory badger instance, used by tests that don't
// want to touch the filesystem. The conf/wal/blobs directories are still
// not created since there is no root.
func OpenInMemory() (*BadgerEngine, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open in-memory badger: %w", err)
	}
	return &BadgerEngine{db: db}, nil
}

func graphKey(path string) []byte   { return append([]byte{prefixGraph}, []byte(path)...) }
func catalogKey(name string) []byte { return append([]byte{prefixCatalog}, []byte(name)...) }

// SaveGraph atomically replaces the graph:<path> blob (§4.1).
func (e *BadgerEngine) SaveGraph(path string, graph *GraphCache) error {
	data, err := SerializeGraph(graph)
	if err != nil {
		return fmt.Errorf("storage: serialize graph %s: %w", path, err)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(graphKey(path), data)
	})
}

// GetGraph returns the deserialized snapshot for path, or (nil, nil) if no
// graph has been saved at that path yet.
func (e *BadgerEngine) GetGraph(path string) (*GraphCache, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	var data []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(graphKey(path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get graph %s: %w", path, err)
	}
	if data == nil {
		return nil, nil
	}
	return DeserializeGraph(data)
}

// DeleteGraph removes the graph:<path> blob.
func (e *BadgerEngine) DeleteGraph(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(graphKey(path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// SaveCatalogProvider persists an opaque provider blob under catalog:<name>.
func (e *BadgerEngine) SaveCatalogProvider(name string, data []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(catalogKey(name), data)
	})
}

// LoadCatalogProvider returns a provider's persisted bytes, or (nil, nil) if
// it has never been persisted.
func (e *BadgerEngine) LoadCatalogProvider(name string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	var data []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(catalogKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: load catalog provider %s: %w", name, err)
	}
	return data, nil
}

// Shutdown flushes and closes the underlying badger.DB.
func (e *BadgerEngine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// Root returns the directory GraphLite was opened against (empty for
// in-memory engines).
func (e *BadgerEngine) Root() string { return e.root }

var _ Engine = (*BadgerEngine)(nil)
