package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	msqlite "modernc.org/sqlite"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/adapter/sqlexec"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/logger"
)

func init() {
	adapter.Register(&sqliteAdapter{})
}

// mainDatabase is the name SQLite gives the opened file.
const mainDatabase = "main"

// sqliteAdapter implements adapter.Adapter for SQLite files.
type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string      { return "sqlite" }
func (a *sqliteAdapter) Schemes() []string { return []string{"sqlite", "sqlite3"} }
func (a *sqliteAdapter) DefaultPort() int  { return 0 }

func (a *sqliteAdapter) Open(ctx context.Context, spec connspec.Spec, opts adapter.Options) (adapter.Manager, error) {
	m, err := newManager(spec, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	if err := m.db.PingContext(ctx); err != nil {
		m.db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	logger.Info("sqlite opened", "path", m.path)
	return m, nil
}

// filePath resolves the database file. An empty path or :memory: opens a
// private in-memory database.
func filePath(spec connspec.Spec) string {
	p := spec.FilePath()
	if p == "" || p == "/:memory:" {
		return ":memory:"
	}
	return p
}

// dsn adds the pragmas every connection needs; modernc applies _pragma
// parameters on each new connection of the pool.
func dsn(path, rawQuery string) string {
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if rawQuery != "" {
		params += "&" + rawQuery
	}
	if path == ":memory:" {
		return "file::memory:?" + params
	}
	return "file:" + path + "?" + params
}

// manager implements adapter.Manager. Attached databases share the one
// connection, so the target database only qualifies introspection.
type manager struct {
	spec connspec.Spec
	opts adapter.Options
	path string
	db   *sql.DB

	mu     sync.Mutex
	closed bool

	dbNames adapter.Memo[[]string]
}

func newManager(spec connspec.Spec, opts adapter.Options) (*manager, error) {
	opts = opts.WithDefaults()
	path := filePath(spec)
	db, err := sql.Open("sqlite", dsn(path, spec.RawQuery))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(int(opts.MaxConns))
	}
	return &manager{spec: spec, opts: opts, path: path, db: db}, nil
}

func (m *manager) Identity() string        { return m.spec.Identity() }
func (m *manager) Spec() connspec.Spec     { return m.spec }
func (m *manager) AdapterName() string     { return "sqlite" }
func (m *manager) DefaultDatabase() string { return mainDatabase }

func (m *manager) database(database string) string {
	if database == "" {
		return mainDatabase
	}
	return database
}

// Execute runs the batch on one pinned connection. Cancelling the token
// cancels the statement context, which interrupts the running statement.
func (m *manager) Execute(ctx context.Context, database, query string) *adapter.Execution {
	return adapter.Start(ctx, func(ctx context.Context, tok *adapter.Token) ([]adapter.Result, error) {
		if m.isClosed() {
			return nil, adapter.ErrDestroyed
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		conn, err := m.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("sqlite acquire conn: %w", err)
		}
		defer conn.Close()

		b := sqlexec.Batch{Conn: conn, Abort: cancel, MapError: translateError}
		return b.Run(ctx, tok, query)
	})
}

func (m *manager) CancelExecution(tok *adapter.Token) {
	if tok != nil {
		tok.Cancel()
	}
}

// Destroy closes the pool in the background: sql.DB.Close waits for
// running statements, and a batch may still be in flight.
func (m *manager) Destroy() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.dbNames.Reset()
	go m.db.Close()
	logger.Info("sqlite closed", "path", m.path)
	return nil
}

func (m *manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// translateError maps driver errors to *adapter.QueryError. The driver
// formats messages as "<kind>: <detail> (<code>)".
func translateError(err error) error {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("sqlite execute: %w", err)
	}
	code := strconv.Itoa(se.Code())
	msg := strings.TrimSuffix(se.Error(), " ("+code+")")
	return &adapter.QueryError{Message: msg, Code: code, Err: err}
}
