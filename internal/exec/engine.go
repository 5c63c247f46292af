package exec

import (
	"strings"
	"time"

	"github.com/graphlite-db/graphlite/internal/catalog"
	"github.com/graphlite-db/graphlite/internal/gql"
	"github.com/graphlite-db/graphlite/internal/graphliteerr"
	"github.com/graphlite-db/graphlite/internal/plan"
	"github.com/graphlite-db/graphlite/internal/plancache"
	"github.com/graphlite-db/graphlite/internal/session"
	"github.com/graphlite-db/graphlite/internal/storage"
	"github.com/graphlite-db/graphlite/internal/txn"
	"github.com/graphlite-db/graphlite/internal/types"
)

// Executor is GraphLite's top-level statement dispatcher (§4.5, C8): it
// binds the catalog, storage engine, transaction manager, session
// registry, and plan cache together and turns one query string plus a
// session id into a QueryResult. Grounded on the teacher's
// pkg/cypher/executor.go, which plays the same binding role for its own
// fixed Cypher subset; generalized here to dispatch across every GraphLite
// statement kind (session, transaction, SET, CALL, DDL and data statements)
// instead of only DataStatement.
type Executor struct {
	Catalog   *catalog.Facade
	Engine    storage.Engine
	TxMgr     *txn.Manager
	Sessions  *session.Registry
	PlanCache *plancache.Cache
	Budget    *MemoryBudget
}

// NewExecutor wires an Executor from its already-constructed dependencies.
func NewExecutor(cat *catalog.Facade, engine storage.Engine, txMgr *txn.Manager, sessions *session.Registry, planCache *plancache.Cache, budget *MemoryBudget) *Executor {
	return &Executor{Catalog: cat, Engine: engine, TxMgr: txMgr, Sessions: sessions, PlanCache: planCache, Budget: budget}
}

// Execute parses and runs queryText against sessionID's current context
// (§6 process_query). It is the sole entry point the root package calls.
func (e *Executor) Execute(queryText, sessionID string) (*QueryResult, error) {
	start := time.Now()
	sess, ok := e.Sessions.Get(sessionID)
	if !ok {
		return nil, graphliteerr.Newf(graphliteerr.KindRuntime, "session not found: %s", sessionID)
	}
	sess.Touch(time.Now())

	stmt, err := gql.Parse(queryText)
	if err != nil {
		return nil, graphliteerr.Wrap(graphliteerr.KindParse, "parse query", err)
	}

	switch s := stmt.(type) {
	case *gql.SessionStatement:
		return e.execSessionStatement(s, sess, start)
	case *gql.TransactionStatement:
		return e.execTransactionStatement(s, sess, start)
	case *gql.SetStatement:
		return e.execSetParam(s, sess, start)
	case *gql.CallStatement:
		res, err := e.execCall(s, sess, start)
		if err != nil && sess.Tx != nil && sess.Tx.State() == txn.StateInProgress {
			// A failed procedure call aborts the open transaction, as a
			// failed data statement does.
			if graph, gerr := e.loadGraph(sess.Tx.GraphPath); gerr == nil {
				_ = e.TxMgr.Rollback(sess.Tx, graph)
				_ = e.Engine.SaveGraph(sess.Tx.GraphPath, graph)
			}
			sess.Tx = nil
		}
		return res, err
	case *gql.DDLStatement:
		return e.execDDL(s, sess, start)
	case *gql.DataStatement:
		return e.execDataStatement(queryText, s, sess, start)
	default:
		return nil, graphliteerr.Newf(graphliteerr.KindUnsupportedOperator, "exec: unsupported statement type %T", stmt)
	}
}

func ms(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// --- session directives (§6 SessionDirective) -----------------------------

func (e *Executor) execSessionStatement(s *gql.SessionStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	switch s.Directive {
	case "SetGraph":
		path, err := e.resolveFullGraphPath(sess, s.Value)
		if err != nil {
			return nil, err
		}
		sess.GraphPath = path
	case "SetSchema":
		sess.SchemaPath = s.Value
	case "SetTimeZone":
		sess.TimeZone = s.Value
	case "Reset":
		sess.GraphPath = ""
		sess.SchemaPath = ""
		sess.Params = make(map[string]any)
		sess.TimeZone = "UTC"
	case "Close":
		if sess.Tx != nil && sess.Tx.State() == txn.StateInProgress {
			if graph, err := e.loadGraph(sess.GraphPath); err == nil {
				_ = e.TxMgr.Rollback(sess.Tx, graph)
			}
		}
		if _, err := e.Sessions.Close(sess.ID); err != nil {
			return nil, err
		}
	default:
		return nil, graphliteerr.Newf(graphliteerr.KindRuntime, "exec: unsupported session directive %q", s.Directive)
	}
	return &QueryResult{
		ExecutionTimeMs: ms(start),
		SessionResult:   &SessionDirective{Kind: s.Directive, Value: s.Value},
	}, nil
}

// --- transaction control (§4.3) -------------------------------------------

func (e *Executor) execTransactionStatement(s *gql.TransactionStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	switch s.Verb {
	case "BEGIN":
		if sess.Tx != nil && sess.Tx.State() == txn.StateInProgress {
			return nil, graphliteerr.New(graphliteerr.KindTransaction, "a transaction is already open on this session")
		}
		graphPath, err := e.resolveGraphPath(sess)
		if err != nil {
			return nil, err
		}
		tx, err := e.TxMgr.Begin(graphPath)
		if err != nil {
			return nil, err
		}
		sess.Tx = tx
	case "COMMIT":
		if sess.Tx == nil || sess.Tx.State() != txn.StateInProgress {
			return nil, graphliteerr.New(graphliteerr.KindTransaction, "no transaction is open on this session")
		}
		if err := e.TxMgr.Commit(sess.Tx); err != nil {
			return nil, err
		}
		sess.Tx = nil
	case "ROLLBACK":
		if sess.Tx == nil || sess.Tx.State() != txn.StateInProgress {
			return nil, graphliteerr.New(graphliteerr.KindTransaction, "no transaction is open on this session")
		}
		graph, err := e.loadGraph(sess.Tx.GraphPath)
		if err != nil {
			return nil, err
		}
		if err := e.TxMgr.Rollback(sess.Tx, graph); err != nil {
			return nil, err
		}
		if err := e.Engine.SaveGraph(sess.Tx.GraphPath, graph); err != nil {
			return nil, err
		}
		sess.Tx = nil
	default:
		return nil, graphliteerr.Newf(graphliteerr.KindRuntime, "exec: unsupported transaction verb %q", s.Verb)
	}
	return &QueryResult{ExecutionTimeMs: ms(start)}, nil
}

// --- session parameters ----------------------------------------------------

func (e *Executor) execSetParam(s *gql.SetStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	v, err := Eval(s.Value, Row{}, toValueParams(sess.Params))
	if err != nil {
		return nil, err
	}
	if sess.Params == nil {
		sess.Params = make(map[string]any)
	}
	sess.Params[s.ParamName] = v.Raw()
	return &QueryResult{ExecutionTimeMs: ms(start)}, nil
}

// --- procedure calls (§4.4 EntityProcedure, SPEC_FULL §C.1) ---------------

func (e *Executor) execCall(s *gql.CallStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	switch s.Name {
	case "tx.setMetaData":
		if sess.Tx == nil || sess.Tx.State() != txn.StateInProgress {
			return nil, graphliteerr.New(graphliteerr.KindTransaction, "tx.setMetaData requires an open transaction")
		}
		if len(s.Args) != 1 {
			return nil, graphliteerr.New(graphliteerr.KindRuntime, "tx.setMetaData takes exactly one argument")
		}
		v, err := Eval(s.Args[0], Row{}, toValueParams(sess.Params))
		if err != nil {
			return nil, err
		}
		text, _ := v.AsString()
		if err := sess.Tx.SetMetadata(text); err != nil {
			return nil, err
		}
		return &QueryResult{ExecutionTimeMs: ms(start)}, nil

	case "gql.nodeCount":
		graphPath, err := e.resolveGraphPath(sess)
		if err != nil {
			return nil, err
		}
		graph, err := e.loadGraph(graphPath)
		if err != nil {
			return nil, err
		}
		row := Row{
			Values:           map[string]types.Value{"count": types.NewNumber(float64(len(graph.Nodes)))},
			PositionalValues: []types.Value{types.NewNumber(float64(len(graph.Nodes)))},
		}
		return &QueryResult{Rows: []Row{row}, Variables: []string{"count"}, ExecutionTimeMs: ms(start)}, nil

	default:
		return nil, graphliteerr.Newf(graphliteerr.KindUnsupportedOperator, "exec: unknown procedure %q", s.Name)
	}
}

// --- DDL (§4.5.5) -----------------------------------------------------------

func (e *Executor) execDDL(s *gql.DDLStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	switch s.EntityKind {
	case "SCHEMA":
		return e.execSchemaDDL(s, sess, start)
	case "GRAPH":
		return e.execGraphDDL(s, sess, start)
	case "GRAPH TYPE":
		return e.execGraphTypeDDL(s, sess, start)
	default:
		return nil, graphliteerr.Newf(graphliteerr.KindUnsupportedOperator, "exec: unsupported DDL entity kind %q", s.EntityKind)
	}
}

func (e *Executor) execSchemaDDL(s *gql.DDLStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	_, exists := e.mapProviderGet(catalog.EntitySchema, s.Path)

	if s.Verb == "CREATE" {
		if exists {
			if s.IfNotExist {
				return &QueryResult{ExecutionTimeMs: ms(start)}, nil
			}
			return nil, graphliteerr.Newf(graphliteerr.KindCatalog, "schema %q already exists", s.Path)
		}
		resp := e.Catalog.Execute(catalog.Operation{Kind: catalog.OpCreate, EntityType: catalog.EntitySchema, Name: s.Path, Payload: s.Options})
		if resp.Kind == catalog.RespError {
			return nil, resp.Err
		}
		if err := e.Catalog.PersistProvider(catalog.EntitySchema); err != nil {
			return nil, err
		}
		return &QueryResult{ExecutionTimeMs: ms(start)}, nil
	}

	// DROP SCHEMA
	if !exists {
		if s.IfExists {
			return &QueryResult{ExecutionTimeMs: ms(start)}, nil
		}
		return nil, graphliteerr.Newf(graphliteerr.KindCatalog, "schema %q does not exist", s.Path)
	}
	resp := e.Catalog.Execute(catalog.Operation{Kind: catalog.OpDrop, EntityType: catalog.EntitySchema, Name: s.Path, Cascade: s.Cascade})
	if resp.Kind == catalog.RespError {
		return nil, resp.Err
	}
	if err := e.Catalog.PersistProvider(catalog.EntitySchema); err != nil {
		return nil, err
	}
	if err := e.Catalog.PersistProvider(catalog.EntityGraph); err != nil {
		return nil, err
	}
	if err := e.Catalog.PersistProvider(catalog.EntityGraphType); err != nil {
		return nil, err
	}
	e.PlanCache.InvalidateBySchema(plancache.Fingerprint(s.Path))

	prefix := s.Path + "/"
	e.Sessions.InvalidateGraphs(func(graphPath string) bool {
		return strings.HasPrefix(graphPath, prefix)
	})
	return &QueryResult{ExecutionTimeMs: ms(start)}, nil
}

func (e *Executor) execGraphDDL(s *gql.DDLStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	_, exists := e.mapProviderGet(catalog.EntityGraph, s.Path)

	if s.Verb == "CREATE" {
		if exists {
			if s.IfNotExist {
				return &QueryResult{ExecutionTimeMs: ms(start)}, nil
			}
			return nil, graphliteerr.Newf(graphliteerr.KindCatalog, "graph %q already exists", s.Path)
		}
		schemaPath := parentSchema(s.Path)
		if _, schemaExists := e.mapProviderGet(catalog.EntitySchema, schemaPath); !schemaExists {
			return nil, graphliteerr.Newf(graphliteerr.KindCatalog, "schema %q does not exist", schemaPath)
		}
		resp := e.Catalog.Execute(catalog.Operation{Kind: catalog.OpCreate, EntityType: catalog.EntityGraph, Name: s.Path, Payload: s.Options})
		if resp.Kind == catalog.RespError {
			return nil, resp.Err
		}
		if err := e.Engine.SaveGraph(s.Path, storage.NewGraphCache()); err != nil {
			return nil, err
		}
		if err := e.Catalog.PersistProvider(catalog.EntityGraph); err != nil {
			return nil, err
		}
		return &QueryResult{ExecutionTimeMs: ms(start)}, nil
	}

	// DROP GRAPH
	if !exists {
		if s.IfExists {
			return &QueryResult{ExecutionTimeMs: ms(start)}, nil
		}
		return nil, graphliteerr.Newf(graphliteerr.KindCatalog, "graph %q does not exist", s.Path)
	}
	resp := e.Catalog.Execute(catalog.Operation{Kind: catalog.OpDrop, EntityType: catalog.EntityGraph, Name: s.Path, Cascade: s.Cascade})
	if resp.Kind == catalog.RespError {
		return nil, resp.Err
	}
	if err := e.Engine.DeleteGraph(s.Path); err != nil {
		return nil, err
	}
	if err := e.Catalog.PersistProvider(catalog.EntityGraph); err != nil {
		return nil, err
	}
	e.PlanCache.InvalidateBySchema(plancache.Fingerprint(parentSchema(s.Path)))
	droppedPath := s.Path
	e.Sessions.InvalidateGraphs(func(graphPath string) bool { return graphPath == droppedPath })
	return &QueryResult{ExecutionTimeMs: ms(start)}, nil
}

func (e *Executor) execGraphTypeDDL(s *gql.DDLStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	_, exists := e.mapProviderGet(catalog.EntityGraphType, s.Path)

	if s.Verb == "CREATE" {
		if exists {
			if s.IfNotExist {
				return &QueryResult{ExecutionTimeMs: ms(start)}, nil
			}
			return nil, graphliteerr.Newf(graphliteerr.KindCatalog, "graph type %q already exists", s.Path)
		}
		resp := e.Catalog.Execute(catalog.Operation{Kind: catalog.OpCreate, EntityType: catalog.EntityGraphType, Name: s.Path, Payload: s.Options})
		if resp.Kind == catalog.RespError {
			return nil, resp.Err
		}
		if err := e.Catalog.PersistProvider(catalog.EntityGraphType); err != nil {
			return nil, err
		}
		return &QueryResult{ExecutionTimeMs: ms(start)}, nil
	}

	// DROP GRAPH TYPE
	if !exists {
		if s.IfExists {
			return &QueryResult{ExecutionTimeMs: ms(start)}, nil
		}
		return nil, graphliteerr.Newf(graphliteerr.KindCatalog, "graph type %q does not exist", s.Path)
	}
	resp := e.Catalog.Execute(catalog.Operation{Kind: catalog.OpDrop, EntityType: catalog.EntityGraphType, Name: s.Path, Cascade: s.Cascade})
	if resp.Kind == catalog.RespError {
		return nil, resp.Err
	}
	if err := e.Catalog.PersistProvider(catalog.EntityGraphType); err != nil {
		return nil, err
	}
	return &QueryResult{ExecutionTimeMs: ms(start)}, nil
}

// --- data statements (§4.5.1-§4.5.4) ---------------------------------------

// execDataStatement runs a MATCH/INSERT/SET/REMOVE/DELETE/RETURN pipeline.
// Each statement loads its graph snapshot fresh, mutates it in memory, and
// writes it back before returning (§5: "loading the full GraphCache into
// memory, mutating in memory, and writing back atomically" is a
// per-statement contract, not a per-transaction one — an open explicit
// transaction only changes whether its undo log survives across
// statements, not when writes reach storage). A statement that fails
// partway rolls its enclosing transaction all the way back: this is a
// deliberate simplification over leaving a partially-applied explicit
// transaction open for more statements, documented in DESIGN.md, because
// partial per-statement rollback would otherwise leave WAL operation
// records for mutations that were never actually persisted, which a
// later crash-recovery redo of a since-committed transaction would
// incorrectly resurrect.
func (e *Executor) execDataStatement(queryText string, stmt *gql.DataStatement, sess *session.State, start time.Time) (*QueryResult, error) {
	if rewrite, ok := detectUnwindRewrite(stmt); ok {
		return e.executeUnwindRewrite(rewrite, sess, start)
	}

	graphPath, err := e.resolveGraphPath(sess)
	if err != nil {
		return nil, err
	}

	key := plancache.Key{
		StatementFingerprint: plancache.Fingerprint(queryText),
		SchemaFingerprint:    plancache.Fingerprint(sess.SchemaPath),
	}
	p, hit := e.PlanCache.Get(key)
	if !hit {
		built, err := plan.Build(stmt)
		if err != nil {
			return nil, graphliteerr.Wrap(graphliteerr.KindRuntime, "build plan", err)
		}
		p = built
		e.PlanCache.Put(key, p)
	}

	graph, err := e.loadGraph(graphPath)
	if err != nil {
		return nil, err
	}

	implicit := sess.Tx == nil
	tx := sess.Tx
	if implicit {
		tx, err = e.TxMgr.Begin(graphPath)
		if err != nil {
			return nil, err
		}
	}

	ctx := &Context{Graph: graph, Params: toValueParams(sess.Params), Budget: e.Budget, Tx: tx}
	rows, runErr := Run(p.Root, ctx)

	if runErr != nil {
		_ = e.TxMgr.Rollback(tx, graph)
		_ = e.Engine.SaveGraph(graphPath, graph)
		sess.Tx = nil
		return nil, runErr
	}

	if err := e.Engine.SaveGraph(graphPath, graph); err != nil {
		_ = e.TxMgr.Rollback(tx, graph)
		sess.Tx = nil
		return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "save graph", err)
	}

	if implicit {
		if err := e.TxMgr.Commit(tx); err != nil {
			return nil, err
		}
	} else {
		sess.Tx = tx
	}

	return &QueryResult{
		Rows:            rows,
		Variables:       resultVariables(stmt),
		ExecutionTimeMs: ms(start),
		RowsAffected:    ctx.RowsAffected,
		Warnings:        ctx.Warnings,
	}, nil
}

func resultVariables(stmt *gql.DataStatement) []string {
	for i := len(stmt.Clauses) - 1; i >= 0; i-- {
		switch c := stmt.Clauses[i].(type) {
		case *gql.ReturnClause:
			return projectionNames(c.Projections)
		case *gql.WithClause:
			return projectionNames(c.Projections)
		}
	}
	return nil
}

func projectionNames(projections []gql.Projection) []string {
	out := make([]string, len(projections))
	for i, p := range projections {
		if p.Alias != "" {
			out[i] = p.Alias
		} else {
			out[i] = projectionName(p.Expr)
		}
	}
	return out
}

// --- shared helpers ---------------------------------------------------------

func (e *Executor) resolveGraphPath(sess *session.State) (string, error) {
	if sess.GraphPath == "" {
		return "", graphliteerr.New(graphliteerr.KindRuntime, "No graph context available")
	}
	return sess.GraphPath, nil
}

// resolveFullGraphPath normalizes a SET GRAPH target against the session's
// current schema when given a bare graph name rather than a full
// "/schema/graph" path.
func (e *Executor) resolveFullGraphPath(sess *session.State, value string) (string, error) {
	if strings.HasPrefix(value, "/") {
		return value, nil
	}
	if sess.SchemaPath == "" {
		return "", graphliteerr.New(graphliteerr.KindRuntime, "cannot resolve graph name without a current schema")
	}
	return sess.SchemaPath + "/" + value, nil
}

// parentSchema returns the "/schema" portion of a "/schema/graph" path.
func parentSchema(graphPath string) string {
	idx := strings.LastIndex(graphPath, "/")
	if idx <= 0 {
		return graphPath
	}
	return graphPath[:idx]
}

// mapProviderGet performs a direct existence check against a MapProvider-
// backed entity type, bypassing the Operation/Response envelope (whose
// RespError carries KindCatalog for both "does not exist" and "has
// dependent records", making those two failure modes indistinguishable --
// IF [NOT] EXISTS needs to tell them apart).
func (e *Executor) mapProviderGet(entityType catalog.EntityType, name string) (map[string]any, bool) {
	p, ok := e.Catalog.Provider(entityType)
	if !ok {
		return nil, false
	}
	mp, ok := p.(*catalog.MapProvider)
	if !ok {
		return nil, false
	}
	return mp.Get(name)
}

func (e *Executor) loadGraph(path string) (*storage.GraphCache, error) {
	g, err := e.Engine.GetGraph(path)
	if err != nil {
		return nil, graphliteerr.Wrap(graphliteerr.KindStorage, "load graph", err)
	}
	if g == nil {
		return nil, graphliteerr.Newf(graphliteerr.KindRuntime, "graph not found: %s", path)
	}
	return g, nil
}

func toValueParams(params map[string]any) map[string]types.Value {
	out := make(map[string]types.Value, len(params))
	for k, v := range params {
		out[k] = rawToValue(v)
	}
	return out
}
