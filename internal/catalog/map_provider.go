package catalog

import (
	"bytes"
	"encoding/gob"
	"sort"
	"strings"
	"sync"

	"github.com/graphlite-db/graphlite/internal/graphliteerr"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// entityRecord is one named entry of a MapProvider.
type entityRecord struct {
	Name    string
	Payload map[string]any
}

// MapProvider is a generic name -> payload store satisfying Provider,
// covering every catalog entity that is just "create/drop/list/query a
// named record" (Schema, Graph, GraphType, Role, Ace, Store, Procedure,
// Metric, Collection — §3 EntityType, §4.4 provider contract). Grounded on
// the EntityType enumeration in spec §3; no teacher file has a pluggable
// provider of this shape, so the map+RWMutex body follows nornicdb's
// general manager idiom (pkg/storage/memory.go).
type MapProvider struct {
	mu      sync.RWMutex
	entity  EntityType
	records map[string]*entityRecord

	// cascadeChildren names sibling providers whose records are
	// cascade-dropped when a record of this provider is dropped with
	// Cascade=true and the child's Name has this provider's Name as a
	// "<parent>/" prefix (used for Schema -> Graph/GraphType containment,
	// §4.5.5).
	cascadeChildren []*MapProvider
}

// NewMapProvider constructs an empty provider for entity.
func NewMapProvider(entity EntityType) *MapProvider {
	return &MapProvider{entity: entity, records: make(map[string]*entityRecord)}
}

// SetCascadeChild wires child as a provider whose "<name>/..."-prefixed
// records are dropped when a record here is CASCADE-dropped. May be called
// more than once to register multiple cascade children (e.g. a Schema
// cascades to both its Graphs and its GraphTypes).
func (p *MapProvider) SetCascadeChild(child *MapProvider) {
	p.cascadeChildren = append(p.cascadeChildren, child)
}

// Init satisfies Provider; the map starts empty until Load restores state.
func (p *MapProvider) Init() error { return nil }

// Schema describes this provider's record shape for introspection.
func (p *MapProvider) Schema() map[string]any {
	return map[string]any{"entity_type": string(p.entity), "key": "name", "value": "payload"}
}

// Execute handles Create/Drop/Register/Unregister/Update (§4.4).
func (p *MapProvider) Execute(op Operation) Response {
	switch op.Kind {
	case OpCreate, OpRegister:
		return p.create(op)
	case OpDrop, OpUnregister:
		return p.drop(op)
	case OpUpdate:
		return p.update(op)
	case OpQuery, OpList:
		return p.ExecuteReadOnly(op)
	default:
		return notSupported()
	}
}

// ExecuteReadOnly handles Query/List (§4.4).
func (p *MapProvider) ExecuteReadOnly(op Operation) Response {
	switch op.Kind {
	case OpList:
		return p.list()
	case OpQuery:
		return p.query(op)
	default:
		return notSupported()
	}
}

func (p *MapProvider) create(op Operation) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.records[op.Name]; exists {
		return errResponse(graphliteerr.Newf(graphliteerr.KindCatalog, "%s %q already exists", p.entity, op.Name))
	}
	p.records[op.Name] = &entityRecord{Name: op.Name, Payload: op.Payload}
	return success()
}

func (p *MapProvider) drop(op Operation) Response {
	p.mu.Lock()
	if _, exists := p.records[op.Name]; !exists {
		p.mu.Unlock()
		return errResponse(graphliteerr.Newf(graphliteerr.KindCatalog, "%s %q does not exist", p.entity, op.Name))
	}

	if !op.Cascade {
		for _, child := range p.cascadeChildren {
			if child.hasChildrenOf(op.Name) {
				p.mu.Unlock()
				return errResponse(graphliteerr.Newf(graphliteerr.KindCatalog, "%s %q has dependent %s records; use CASCADE", p.entity, op.Name, child.entity))
			}
		}
	}

	delete(p.records, op.Name)
	p.mu.Unlock()

	if op.Cascade {
		for _, child := range p.cascadeChildren {
			child.dropChildrenOf(op.Name)
		}
	}
	return success()
}

func (p *MapProvider) update(op Operation) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, exists := p.records[op.Name]
	if !exists {
		return errResponse(graphliteerr.Newf(graphliteerr.KindCatalog, "%s %q does not exist", p.entity, op.Name))
	}
	rec.Payload = op.Payload
	return success()
}

func (p *MapProvider) list() Response {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.records))
	for name := range p.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return listResponse(names)
}

func (p *MapProvider) query(op Operation) Response {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if op.Name != "" {
		rec, exists := p.records[op.Name]
		if !exists {
			return queryResponse(nil)
		}
		return queryResponse([]map[string]any{rec.Payload})
	}
	names := make([]string, 0, len(p.records))
	for name := range p.records {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, p.records[name].Payload)
	}
	return queryResponse(rows)
}

func (p *MapProvider) hasChildrenOf(parentName string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prefix := parentName + "/"
	for name := range p.records {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (p *MapProvider) dropChildrenOf(parentName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := parentName + "/"
	for name := range p.records {
		if strings.HasPrefix(name, prefix) {
			delete(p.records, name)
		}
	}
}

// Get returns a single record's payload, for callers (e.g. the executor's
// DDL IF [NOT] EXISTS checks) that want a direct read without going
// through the Operation/Response envelope.
func (p *MapProvider) Get(name string) (map[string]any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[name]
	if !ok {
		return nil, false
	}
	return rec.Payload, true
}

type gobRecord struct {
	Name    string
	Payload map[string]any
}

// Save gob-encodes every record for persistence through the façade.
func (p *MapProvider) Save() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	recs := make([]gobRecord, 0, len(p.records))
	for _, r := range p.records {
		recs = append(recs, gobRecord{Name: r.Name, Payload: r.Payload})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(recs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load restores records from a Save blob.
func (p *MapProvider) Load(data []byte) error {
	var recs []gobRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&recs); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = make(map[string]*entityRecord, len(recs))
	for _, r := range recs {
		p.records[r.Name] = &entityRecord{Name: r.Name, Payload: r.Payload}
	}
	return nil
}

var _ Provider = (*MapProvider)(nil)
