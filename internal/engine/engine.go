// Package engine ties the connection registry, the sessions and the
// executor together behind the operations clients call.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/executor"
	"github.com/sadopc/sqlace/internal/logger"
	"github.com/sadopc/sqlace/internal/registry"
	"github.com/sadopc/sqlace/internal/schema"
	"github.com/sadopc/sqlace/internal/session"
	"github.com/sadopc/sqlace/internal/sqltext"
)

// Options configure an Engine. The zero value is usable.
type Options struct {
	Adapter   adapter.Options
	Session   session.Defaults
	Observers []executor.Observer
	// Opener overrides adapter.Open, for tests.
	Opener registry.Opener
}

// Engine is safe for concurrent use. Construct one per process.
type Engine struct {
	conns    *registry.Registry
	sessions *session.Registry
	exec     *executor.Executor
}

func New(opts Options) *Engine {
	open := opts.Opener
	if open == nil {
		open = registry.WithOptions(opts.Adapter)
	}
	conns := registry.New(open)
	sessions := session.NewRegistry(opts.Session)
	return &Engine{
		conns:    conns,
		sessions: sessions,
		exec:     executor.New(sessions, conns, opts.Observers...),
	}
}

// AddObserver registers o for later executions.
func (e *Engine) AddObserver(o executor.Observer) { e.exec.AddObserver(o) }

// NewSession creates a session under a fresh id.
func (e *Engine) NewSession() string { return e.sessions.New().ID() }

// Connect points the session at the connection for rawURL, opening it
// unless a connection with the same user@host is already live. The
// session's database is the URL's, or the backend default. The session's
// previous connection is released.
func (e *Engine) Connect(ctx context.Context, sessionID, rawURL string) (string, error) {
	spec, err := connspec.Parse(rawURL)
	if err != nil {
		return "", err
	}
	mgr, err := e.conns.Acquire(ctx, spec)
	if err != nil {
		logger.Warn("connect failed", "url", spec.Redacted(), "error", err)
		return "", err
	}
	identity := spec.Identity()
	database := startDatabase(mgr, spec)
	s := e.sessions.GetOrCreate(sessionID)
	if prev := s.Connect(identity, database); prev != "" {
		e.release(prev)
	}
	logger.Info("session connected", "session", sessionID, "identity", identity, "adapter", mgr.AdapterName(), "database", database)
	return identity, nil
}

// startDatabase picks the database a session connecting with spec starts
// on. File-backed adapters name their own (sqlite "main"); network
// adapters take the URL path, which may differ from the one the shared
// manager was opened with.
func startDatabase(mgr adapter.Manager, spec connspec.Spec) string {
	if def := mgr.DefaultDatabase(); def != mgr.Spec().Database {
		return def
	}
	return spec.Database
}

// SelectDatabase sets the database the session executes against.
func (e *Engine) SelectDatabase(sessionID, database string) error {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return adapter.ErrNotConnected
	}
	return s.SelectDatabase(database)
}

// Execute starts query in the session. The run's token is available
// as soon as Execute returns.
func (e *Engine) Execute(ctx context.Context, sessionID, query string) (*executor.Run, error) {
	return e.exec.Execute(ctx, sessionID, query)
}

// ExecuteOn runs query directly on a live connection, outside any
// session. Like Execute it is detached from ctx's cancellation: only
// the returned token stops it.
func (e *Engine) ExecuteOn(ctx context.Context, identity, database, query string) (*adapter.Execution, error) {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return nil, adapter.ErrNotConnected
	}
	if database == "" {
		return nil, adapter.ErrNoDatabaseSelected
	}
	if len(sqltext.DialectFor(mgr.AdapterName()).Split(query)) == 0 {
		return nil, executor.ErrEmptyQuery
	}
	return mgr.Execute(context.WithoutCancel(ctx), database, query), nil
}

// Cancel cancels the session's running batch. Fire and forget.
func (e *Engine) Cancel(sessionID string) { e.exec.Cancel(sessionID) }

// CancelToken cancels the execution tok belongs to. A token superseded
// by a later Execute in its session is ignored. Fire and forget.
func (e *Engine) CancelToken(tok *adapter.Token) { e.exec.CancelToken(tok) }

// Disconnect returns the session to idle and releases its connection,
// destroying it when no other session uses it. A running batch is left
// to finish; its outcome is dropped.
func (e *Engine) Disconnect(sessionID string) {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return
	}
	if identity := s.Disconnect(); identity != "" {
		e.release(identity)
		logger.Info("session disconnected", "session", sessionID, "identity", identity)
	}
}

// EndSession disconnects the session and forgets it.
func (e *Engine) EndSession(sessionID string) {
	e.Disconnect(sessionID)
	e.sessions.Remove(sessionID)
}

func (e *Engine) release(identity string) {
	mgr, last := e.conns.Release(identity)
	if !last || mgr == nil {
		return
	}
	if err := mgr.Destroy(); err != nil {
		logger.Warn("destroy connection", "identity", identity, "error", err)
		return
	}
	logger.Info("connection destroyed", "identity", identity)
}

// Session returns a snapshot of the session.
func (e *Engine) Session(sessionID string) (session.Snapshot, bool) {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return session.Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Sessions lists session ids.
func (e *Engine) Sessions() []string { return e.sessions.IDs() }

// Connections lists live connection identities.
func (e *Engine) Connections() []string { return e.conns.Identities() }

func (e *Engine) SetQueryMode(sessionID string, mode session.QueryMode) {
	e.sessions.GetOrCreate(sessionID).SetQueryMode(mode)
}

func (e *Engine) SetUseSelectionAtCursor(sessionID string, v bool) {
	e.sessions.GetOrCreate(sessionID).SetUseSelectionAtCursor(v)
}

func (e *Engine) SetRowLimit(sessionID string, n int) {
	e.sessions.GetOrCreate(sessionID).SetRowLimit(n)
}

func (e *Engine) SetViewVisibility(sessionID string, main, details bool) {
	e.sessions.GetOrCreate(sessionID).SetViewVisibility(main, details)
}

// ListDatabases returns the database names on identity, empty when the
// connection is unknown or the lookup failed.
func (e *Engine) ListDatabases(ctx context.Context, identity string) []string {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return []string{}
	}
	return mgr.DatabaseNames(ctx)
}

func (e *Engine) ListSchemas(ctx context.Context, identity, database string) []string {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return []string{}
	}
	return mgr.SchemaNames(ctx, database)
}

func (e *Engine) ListTables(ctx context.Context, identity, database, schemaName string) []schema.Table {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return []schema.Table{}
	}
	return mgr.Tables(ctx, database, schemaName)
}

func (e *Engine) ListColumns(ctx context.Context, identity, database string, tables []string) []schema.Column {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return []schema.Column{}
	}
	return mgr.TableDetails(ctx, database, tables)
}

// TableSelectQuery returns the dialect's query selecting every row of
// schemaName.table.
func (e *Engine) TableSelectQuery(identity, table, schemaName string) (string, error) {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return "", adapter.ErrNotConnected
	}
	return mgr.TableQuery(schemaName, table), nil
}

// TableDescribeQuery returns the dialect's query describing the
// columns of schemaName.table.
func (e *Engine) TableDescribeQuery(identity, table, schemaName string) (string, error) {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return "", adapter.ErrNotConnected
	}
	return mgr.TableDescription(schemaName, table), nil
}

// TableCreateStatement returns the query that yields the DDL of
// schemaName.table.
func (e *Engine) TableCreateStatement(identity, table, schemaName string) (string, error) {
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return "", adapter.ErrNotConnected
	}
	return mgr.CreateStatement(schemaName, table), nil
}

// QueryTable executes the select query for schemaName.table in the
// session.
func (e *Engine) QueryTable(ctx context.Context, sessionID, schemaName, table string) (*executor.Run, error) {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return nil, adapter.ErrNotConnected
	}
	identity, _, err := s.Target()
	if err != nil {
		return nil, err
	}
	query, err := e.TableSelectQuery(identity, table, schemaName)
	if err != nil {
		return nil, err
	}
	return e.exec.Execute(ctx, sessionID, query)
}

// Close cancels running batches and destroys every connection.
func (e *Engine) Close() error {
	for _, id := range e.sessions.IDs() {
		e.exec.Cancel(id)
	}
	if err := e.conns.Close(); err != nil && !errors.Is(err, registry.ErrClosed) {
		return fmt.Errorf("close connections: %w", err)
	}
	return nil
}
