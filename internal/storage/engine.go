package storage

import "errors"

// Common storage errors, mirroring the teacher's package-level sentinel
// style (pkg/storage/types.go).
var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
	ErrClosed        = errors.New("storage: closed")
)

// Engine is the storage contract of §4.1: atomic graph snapshot save/load,
// opaque per-provider catalog persistence, and directory-scoped lifecycle.
//
// Implementations MUST NOT create files outside the directory they were
// opened against, and MUST be internally thread-safe (§5).
type Engine interface {
	// SaveGraph atomically replaces the blob for graph:<path>. Failure is
	// fatal to the surrounding statement (§4.1).
	SaveGraph(path string, graph *GraphCache) error

	// GetGraph returns the deserialized snapshot, or (nil, nil) if absent.
	GetGraph(path string) (*GraphCache, error)

	// DeleteGraph removes the blob for graph:<path> (used by DROP GRAPH).
	DeleteGraph(path string) error

	// SaveCatalogProvider persists an opaque catalog provider blob under
	// catalog:<name>.
	SaveCatalogProvider(name string, data []byte) error

	// LoadCatalogProvider returns the provider's persisted bytes, or
	// (nil, nil) if the provider has never been persisted.
	LoadCatalogProvider(name string) ([]byte, error)

	// Shutdown flushes and releases file locks.
	Shutdown() error
}
