// Package catalog implements GraphLite's catalog façade (§4.4, C4): a
// uniform provider contract fronting one map-backed store per entity type
// (schema, graph, graph type, user, role, ace, store, procedure, metric,
// collection), with cascade-aware drop semantics and persistence through
// internal/storage.
//
// Grounded on graphlite/src/catalog/{manager,operations,registry}.rs for
// the operation/response space and provider contract — nornicdb has no
// pluggable-provider façade of its own, so the RWMutex-gated
// execute/execute_read_only split is carried over from the broader
// sync.RWMutex-guarded-manager idiom seen throughout nornicdb
// (pkg/storage/memory.go, pkg/cache/query_cache.go).
package catalog

import (
	"fmt"
	"sync"

	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/storage"
)

// EntityType enumerates the catalog's entity kinds (§3 EntityType).
type EntityType string

const (
	EntitySchema     EntityType = "Schema"
	EntityGraph      EntityType = "Graph"
	EntityGraphType  EntityType = "GraphType"
	EntityUser       EntityType = "User"
	EntityRole       EntityType = "Role"
	EntityAce        EntityType = "Ace"
	EntityStore      EntityType = "Store"
	EntityProcedure  EntityType = "Procedure"
	EntityMetric     EntityType = "Metric"
	EntityCollection EntityType = "Collection"
)

// OperationKind enumerates the catalog's operation space (§4.4).
type OperationKind string

const (
	OpCreate     OperationKind = "Create"
	OpDrop       OperationKind = "Drop"
	OpRegister   OperationKind = "Register"
	OpUnregister OperationKind = "Unregister"
	OpQuery      OperationKind = "Query"
	OpUpdate     OperationKind = "Update"
	OpList       OperationKind = "List"
)

// ResponseKind enumerates the catalog's response space (§4.4).
type ResponseKind string

const (
	RespSuccess      ResponseKind = "Success"
	RespError        ResponseKind = "Error"
	RespList         ResponseKind = "List"
	RespQuery        ResponseKind = "Query"
	RespNotSupported ResponseKind = "NotSupported"
)

// Operation is a single catalog request (§4.4).
type Operation struct {
	Kind       OperationKind
	EntityType EntityType
	Name       string
	Payload    map[string]any
	Cascade    bool // RESTRICT (false) vs CASCADE (true) for Drop
}

// Response is a catalog provider's answer to an Operation.
type Response struct {
	Kind  ResponseKind
	Items []string         // RespList
	Rows  []map[string]any // RespQuery
	Err   error            // RespError
}

func success() Response                { return Response{Kind: RespSuccess} }
func errResponse(err error) Response   { return Response{Kind: RespError, Err: err} }
func listResponse(items []string) Response {
	return Response{Kind: RespList, Items: items}
}
func queryResponse(rows []map[string]any) Response {
	return Response{Kind: RespQuery, Rows: rows}
}
func notSupported() Response { return Response{Kind: RespNotSupported} }

// Provider is the uniform contract every entity-type store implements
// (§4.4 "uniform provider contract").
type Provider interface {
	Init() error
	Execute(op Operation) Response
	ExecuteReadOnly(op Operation) Response
	Save() ([]byte, error)
	Load(data []byte) error
	Schema() map[string]any
}

// Facade fronts every registered Provider with a single RWMutex, giving
// catalog-wide execute/execute_read_only serialization (§4.4: DDL
// operations are exclusive; reads may run concurrently with each other but
// not with DDL).
type Facade struct {
	mu        sync.RWMutex
	providers map[EntityType]Provider
	engine    storage.Engine
}

// NewFacade constructs an empty façade persisting through engine.
func NewFacade(engine storage.Engine) *Facade {
	return &Facade{
		providers: make(map[EntityType]Provider),
		engine:    engine,
	}
}

// RegisterProvider wires p in as the handler for entityType, calling
// Init() and loading any previously persisted state.
func (f *Facade) RegisterProvider(entityType EntityType, p Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := p.Init(); err != nil {
		return fmt.Errorf("catalog: init provider %s: %w", entityType, err)
	}
	if f.engine != nil {
		data, err := f.engine.LoadCatalogProvider(string(entityType))
		if err != nil {
			return fmt.Errorf("catalog: load provider %s: %w", entityType, err)
		}
		if data != nil {
			if err := p.Load(data); err != nil {
				return fmt.Errorf("catalog: deserialize provider %s: %w", entityType, err)
			}
		}
	}
	f.providers[entityType] = p
	return nil
}

// Execute routes a mutating operation to its provider under the façade's
// write lock.
func (f *Facade) Execute(op Operation) Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.providers[op.EntityType]
	if !ok {
		return errResponse(graphliteerr.New(graphliteerr.KindCatalog, "no provider registered for entity type "+string(op.EntityType)))
	}
	return p.Execute(op)
}

// ExecuteReadOnly routes a read-only operation under the façade's read
// lock, allowing concurrent reads.
func (f *Facade) ExecuteReadOnly(op Operation) Response {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[op.EntityType]
	if !ok {
		return errResponse(graphliteerr.New(graphliteerr.KindCatalog, "no provider registered for entity type "+string(op.EntityType)))
	}
	return p.ExecuteReadOnly(op)
}

// PersistProvider serializes one provider's state and saves it through the
// engine.
func (f *Facade) PersistProvider(entityType EntityType) error {
	f.mu.RLock()
	p, ok := f.providers[entityType]
	f.mu.RUnlock()
	if !ok {
		return graphliteerr.New(graphliteerr.KindCatalog, "no provider registered for entity type "+string(entityType))
	}
	data, err := p.Save()
	if err != nil {
		return fmt.Errorf("catalog: serialize provider %s: %w", entityType, err)
	}
	if f.engine == nil {
		return nil
	}
	return f.engine.SaveCatalogProvider(string(entityType), data)
}

// PersistAll persists every registered provider (§4.4 persist_all, called
// on clean shutdown and after DDL that must survive a crash immediately).
func (f *Facade) PersistAll() error {
	f.mu.RLock()
	types := make([]EntityType, 0, len(f.providers))
	for et := range f.providers {
		types = append(types, et)
	}
	f.mu.RUnlock()
	for _, et := range types {
		if err := f.PersistProvider(et); err != nil {
			return err
		}
	}
	return nil
}

// Provider returns the raw provider for entityType, for callers (e.g. the
// root DB's user authentication) that need a typed view rather than
// the Operation/Response envelope.
func (f *Facade) Provider(entityType EntityType) (Provider, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[entityType]
	return p, ok
}
