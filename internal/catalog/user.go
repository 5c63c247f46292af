package catalog

import (
	"bytes"
	"encoding/gob"
	"sort"
	"sync"

	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost mirrors the teacher's auth package default (pkg/auth/auth.go
// uses bcrypt.DefaultCost); kept explicit here since the catalog, unlike
// the teacher, persists the cost alongside the hash.
const bcryptCost = bcrypt.DefaultCost

type userRecord struct {
	Name         string
	PasswordHash []byte
	Roles        []string
}

// UserProvider is the EntityUser provider: bcrypt-hashed credentials and
// role membership. Grounded on the teacher's pkg/auth/auth.go
// (CreateUser/Authenticate shape, bcrypt cost), adapted from a standalone
// auth package into a catalog Provider.
type UserProvider struct {
	mu    sync.RWMutex
	users map[string]*userRecord
}

// NewUserProvider constructs an empty user store.
func NewUserProvider() *UserProvider {
	return &UserProvider{users: make(map[string]*userRecord)}
}

func (p *UserProvider) Init() error { return nil }

func (p *UserProvider) Schema() map[string]any {
	return map[string]any{"entity_type": string(EntityUser), "key": "name", "fields": []string{"password_hash", "roles"}}
}

// Execute handles Create (payload carries "password" and optional "roles")
// and Drop; Update re-sets the password (§4.4, §6 set_user_password).
func (p *UserProvider) Execute(op Operation) Response {
	switch op.Kind {
	case OpCreate, OpRegister:
		return p.createUser(op)
	case OpDrop, OpUnregister:
		return p.dropUser(op)
	case OpUpdate:
		return p.updatePassword(op)
	case OpQuery, OpList:
		return p.ExecuteReadOnly(op)
	default:
		return notSupported()
	}
}

func (p *UserProvider) ExecuteReadOnly(op Operation) Response {
	switch op.Kind {
	case OpList:
		return p.list()
	case OpQuery:
		return p.query(op)
	default:
		return notSupported()
	}
}

func (p *UserProvider) createUser(op Operation) Response {
	password, _ := op.Payload["password"].(string)
	var roles []string
	if raw, ok := op.Payload["roles"].([]string); ok {
		roles = raw
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return errResponse(graphliteerr.Wrap(graphliteerr.KindCatalog, "hash password", err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.users[op.Name]; exists {
		return errResponse(graphliteerr.Newf(graphliteerr.KindCatalog, "user %q already exists", op.Name))
	}
	p.users[op.Name] = &userRecord{Name: op.Name, PasswordHash: hash, Roles: roles}
	return success()
}

func (p *UserProvider) dropUser(op Operation) Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.users[op.Name]; !exists {
		return errResponse(graphliteerr.Newf(graphliteerr.KindCatalog, "user %q does not exist", op.Name))
	}
	delete(p.users, op.Name)
	return success()
}

func (p *UserProvider) updatePassword(op Operation) Response {
	password, _ := op.Payload["password"].(string)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return errResponse(graphliteerr.Wrap(graphliteerr.KindCatalog, "hash password", err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, exists := p.users[op.Name]
	if !exists {
		return errResponse(graphliteerr.Newf(graphliteerr.KindCatalog, "user %q does not exist", op.Name))
	}
	rec.PasswordHash = hash
	return success()
}

func (p *UserProvider) list() Response {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.users))
	for name := range p.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return listResponse(names)
}

func (p *UserProvider) query(op Operation) Response {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if op.Name == "" {
		return queryResponse(nil)
	}
	rec, exists := p.users[op.Name]
	if !exists {
		return queryResponse(nil)
	}
	return queryResponse([]map[string]any{{"name": rec.Name, "roles": rec.Roles}})
}

// Authenticate verifies password against the stored hash for name (§6
// authenticate_and_create_session).
func (p *UserProvider) Authenticate(name, password string) bool {
	p.mu.RLock()
	rec, exists := p.users[name]
	p.mu.RUnlock()
	if !exists {
		return false
	}
	return bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)) == nil
}

type gobUserRecord struct {
	Name         string
	PasswordHash []byte
	Roles        []string
}

func (p *UserProvider) Save() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	recs := make([]gobUserRecord, 0, len(p.users))
	for _, r := range p.users {
		recs = append(recs, gobUserRecord{Name: r.Name, PasswordHash: r.PasswordHash, Roles: r.Roles})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(recs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *UserProvider) Load(data []byte) error {
	var recs []gobUserRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&recs); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = make(map[string]*userRecord, len(recs))
	for _, r := range recs {
		p.users[r.Name] = &userRecord{Name: r.Name, PasswordHash: r.PasswordHash, Roles: r.Roles}
	}
	return nil
}

var _ Provider = (*UserProvider)(nil)
