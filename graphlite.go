// Package graphlite is the embedded property-graph database's public
// entry point (§6 EXTERNAL INTERFACES, C0): Open a database directory,
// authenticate or create anonymous sessions, and run queries through
// ProcessQuery.
//
// Grounded on the teacher's pkg/nornicdb/db.go (package-level Open,
// *DB value wrapping every subsystem behind a mutex, Close draining
// background goroutines before releasing storage) adapted from a single
// monolithic DB type wiring decay/inference/search into a coordinator
// wiring storage, WAL, transactions, catalog, sessions, the plan cache,
// and the statement executor.
package graphlite

import (
	"log"
	"os"
	"time"

	"github.com/graphlite-db/graphlite/internal/catalog"
	"github.com/graphlite-db/graphlite/internal/config"
	"github.com/graphlite-db/graphlite/internal/exec"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/plancache"
	"github.com/graphlite-db/graphlite/internal/session"
	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/txn"
	"github.com/graphlite-db/graphlite/internal/wal"
)

// QueryResult is the serializable result of ProcessQuery (§6).
type QueryResult = exec.QueryResult

const idleSweepInterval = time.Minute

// DB is an open GraphLite database. The zero value is not usable; obtain
// one via Open.
type DB struct {
	config   *config.Config
	engine   storage.Engine
	wal      *wal.WAL
	txMgr    *txn.Manager
	catalog  *catalog.Facade
	sessions *session.Registry
	executor *exec.Executor
	logger   *log.Logger
}

// Open opens or creates a database rooted at path, recovering from any
// crash left in the WAL before admitting the first session (§9: "recovery
// happens synchronously on open, before any session is admitted").
//
// path == "" opens an in-memory, non-durable database, used by tests.
func Open(path string) (*DB, error) {
	var engine storage.Engine
	var walDir string
	var confDir string
	if path == "" {
		e, err := storage.OpenInMemory()
		if err != nil {
			return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "open in-memory storage", err)
		}
		engine = e
	} else {
		e, err := storage.Open(path)
		if err != nil {
			return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "open storage", err)
		}
		engine = e
		walDir = path + "/wal"
		confDir = path + "/conf"
	}

	cfg := config.Default()
	if confDir != "" {
		loaded, err := config.Load(confDir)
		if err != nil {
			_ = engine.Shutdown()
			return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "load config", err)
		}
		cfg = loaded
	}

	if walDir == "" {
		dir, err := os.MkdirTemp("", "graphlite-wal-inmemory-*")
		if err != nil {
			_ = engine.Shutdown()
			return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "create temp wal dir", err)
		}
		walDir = dir
	}
	walOpts := wal.DefaultOptions()
	walOpts.SyncMode = cfg.WALSyncMode
	walOpts.BatchSyncInterval = cfg.WALBatchSyncInterval
	walOpts.MaxSegmentBytes = cfg.WALSegmentMaxBytes
	w, err := wal.Open(walDir, walOpts)
	if err != nil {
		_ = engine.Shutdown()
		return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "open wal", err)
	}

	logger := log.New(os.Stderr, "graphlite: ", log.LstdFlags)

	if err := txn.Recover(w, engine); err != nil {
		_ = w.Close()
		_ = engine.Shutdown()
		return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "crash recovery", err)
	}
	logger.Printf("recovery complete")

	cat, err := catalog.Bootstrap(engine)
	if err != nil {
		_ = w.Close()
		_ = engine.Shutdown()
		return nil, graphliteerr.Wrap(graphliteerr.KindCatalog, "bootstrap catalog", err)
	}

	txMgr := txn.NewManager(w)
	sessions := session.NewRegistry(txMgr, cfg.SessionIdleTimeout)
	planCache := plancache.New(256)
	budget := exec.NewMemoryBudget(cfg.MemoryBudgetBytes)
	executor := exec.NewExecutor(cat, engine, txMgr, sessions, planCache, budget)

	db := &DB{
		config:   cfg,
		engine:   engine,
		wal:      w,
		txMgr:    txMgr,
		catalog:  cat,
		sessions: sessions,
		executor: executor,
		logger:   logger,
	}

	sessions.StartIdleSweep(idleSweepInterval, func(graphPath string, tx *txn.Transaction) {
		graph, err := engine.GetGraph(graphPath)
		if err != nil || graph == nil {
			logger.Printf("idle sweep: rollback of tx on %s skipped: %v", graphPath, err)
			return
		}
		if err := txMgr.Rollback(tx, graph); err != nil {
			logger.Printf("idle sweep: rollback of tx on %s failed: %v", graphPath, err)
			return
		}
		if err := engine.SaveGraph(graphPath, graph); err != nil {
			logger.Printf("idle sweep: save after rollback of tx on %s failed: %v", graphPath, err)
		}
	})

	return db, nil
}

// AuthenticateAndCreateSession verifies user's password and, on success,
// registers a new session (§6 authenticate_and_create_session).
func (db *DB) AuthenticateAndCreateSession(user, password string) (string, error) {
	p, ok := db.catalog.Provider(catalog.EntityUser)
	if !ok {
		return "", graphliteerr.New(graphliteerr.KindCatalog, "no user provider registered")
	}
	userP, ok := p.(*catalog.UserProvider)
	if !ok {
		return "", graphliteerr.New(graphliteerr.KindCatalog, "user provider has unexpected type")
	}
	if !userP.Authenticate(user, password) {
		return "", graphliteerr.New(graphliteerr.KindPermissionDenied, "authentication failed")
	}
	s := db.sessions.Create("", "", user)
	return s.ID, nil
}

// CreateSimpleSession registers a new session for user without verifying
// credentials, for anonymous or already-trusted contexts (§6
// create_simple_session).
func (db *DB) CreateSimpleSession(user string) (string, error) {
	s := db.sessions.Create("", "", user)
	return s.ID, nil
}

// CloseSession rolls back any transaction session holds open and evicts it
// from the registry (§6 close_session).
func (db *DB) CloseSession(sessionID string) error {
	sess, ok := db.sessions.Get(sessionID)
	if !ok {
		return graphliteerr.New(graphliteerr.KindRuntime, "session not found: "+sessionID)
	}
	if sess.Tx != nil && sess.Tx.State() == txn.StateInProgress {
		if graph, err := db.engine.GetGraph(sess.Tx.GraphPath); err == nil && graph != nil {
			if err := db.txMgr.Rollback(sess.Tx, graph); err != nil {
				db.logger.Printf("close session %s: rollback failed: %v", sessionID, err)
			} else if err := db.engine.SaveGraph(sess.Tx.GraphPath, graph); err != nil {
				db.logger.Printf("close session %s: save after rollback failed: %v", sessionID, err)
			}
		}
	}
	_, err := db.sessions.Close(sessionID)
	return err
}

// ProcessQuery parses and executes query against sessionID's current
// context, returning a serializable result (§6 process_query).
func (db *DB) ProcessQuery(query, sessionID string) (*QueryResult, error) {
	return db.executor.Execute(query, sessionID)
}

// SetUserPassword creates user with password if absent, or updates the
// password of an existing user (§6 set_user_password, "admin bootstrap" —
// the first call against a fresh database both provisions and sets the
// credential for the initial administrator).
func (db *DB) SetUserPassword(user, password string) error {
	payload := map[string]any{"password": password}
	resp := db.catalog.Execute(catalog.Operation{Kind: catalog.OpUpdate, EntityType: catalog.EntityUser, Name: user, Payload: payload})
	if resp.Kind == catalog.RespError {
		resp = db.catalog.Execute(catalog.Operation{Kind: catalog.OpCreate, EntityType: catalog.EntityUser, Name: user, Payload: payload})
	}
	if resp.Kind == catalog.RespError {
		return resp.Err
	}
	return db.catalog.PersistProvider(catalog.EntityUser)
}

// Close flushes and persists every catalog provider, stops the idle
// session sweep, and releases the WAL and storage engine, matching the
// teacher's Close (stop background work first, then release resources in
// dependency order).
func (db *DB) Close() error {
	db.sessions.StopIdleSweep()

	var firstErr error
	if err := db.catalog.PersistAll(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := db.engine.Shutdown(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
