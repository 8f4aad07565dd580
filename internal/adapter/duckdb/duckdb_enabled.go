//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/marcboeker/go-duckdb"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/adapter/sqlexec"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/logger"
	"github.com/sadopc/sqlace/internal/schema"
	"github.com/sadopc/sqlace/internal/sqltext"
)

func init() {
	adapter.Register(&duckdbAdapter{})
}

type duckdbAdapter struct{}

func (a *duckdbAdapter) Name() string      { return "duckdb" }
func (a *duckdbAdapter) Schemes() []string { return []string{"duckdb"} }
func (a *duckdbAdapter) DefaultPort() int  { return 0 }

func (a *duckdbAdapter) Open(ctx context.Context, spec connspec.Spec, opts adapter.Options) (adapter.Manager, error) {
	opts = opts.WithDefaults()
	path := filePath(spec)
	dsn := path
	if spec.RawQuery != "" {
		dsn += "?" + spec.RawQuery
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb open: %w", err)
	}
	db.SetMaxOpenConns(int(opts.MaxConns))

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	// The catalog is named after the file, or "memory".
	var current string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&current); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb ping: %w", err)
	}
	logger.Info("duckdb opened", "path", path, "database", current)
	return &manager{spec: spec, opts: opts, path: path, current: current, db: db}, nil
}

// manager implements adapter.Manager. Every attached catalog is visible
// from any connection, so database only scopes introspection.
type manager struct {
	spec    connspec.Spec
	opts    adapter.Options
	path    string
	current string
	db      *sql.DB

	mu     sync.Mutex
	closed bool

	dbNames adapter.Memo[[]string]
}

func (m *manager) Identity() string        { return m.spec.Identity() }
func (m *manager) Spec() connspec.Spec     { return m.spec }
func (m *manager) AdapterName() string     { return "duckdb" }
func (m *manager) DefaultDatabase() string { return m.current }

func (m *manager) database(database string) string {
	if database == "" {
		return m.current
	}
	return database
}

// Execute runs the batch on a pinned connection; the token cancels the
// statement context, which the driver turns into an interrupt.
func (m *manager) Execute(ctx context.Context, database, query string) *adapter.Execution {
	return adapter.Start(ctx, func(ctx context.Context, tok *adapter.Token) ([]adapter.Result, error) {
		if m.isClosed() {
			return nil, adapter.ErrDestroyed
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		conn, err := m.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("duckdb acquire conn: %w", err)
		}
		defer conn.Close()

		if db := m.database(database); db != m.current {
			if _, err := conn.ExecContext(ctx, "USE "+sqltext.QuoteIdent(db)); err != nil {
				return nil, translateError(err)
			}
			defer conn.ExecContext(context.Background(), "USE "+sqltext.QuoteIdent(m.current))
		}

		b := sqlexec.Batch{Conn: conn, Abort: cancel, MapError: translateError}
		return b.Run(ctx, tok, query)
	})
}

func (m *manager) CancelExecution(tok *adapter.Token) {
	if tok != nil {
		tok.Cancel()
	}
}

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
	logger.Info("duckdb closed", "path", m.path)
	return nil
}

func (m *manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *manager) DatabaseNames(ctx context.Context) []string {
	if m.isClosed() {
		return []string{}
	}
	names, err := m.dbNames.Get(func() ([]string, error) {
		return sqlexec.Strings(ctx, m.db, databasesQuery)
	})
	if err != nil {
		logger.Warn("duckdb databases", "path", m.path, "error", err)
		return []string{}
	}
	return append([]string{}, names...)
}

func (m *manager) SchemaNames(ctx context.Context, database string) []string {
	if m.isClosed() {
		return []string{}
	}
	names, err := sqlexec.Strings(ctx, m.db, schemasQuery, m.database(database))
	if err != nil {
		logger.Warn("duckdb schemas", "path", m.path, "error", err)
		return []string{}
	}
	return names
}

func (m *manager) Tables(ctx context.Context, database, schemaName string) []schema.Table {
	if m.isClosed() {
		return []schema.Table{}
	}
	if schemaName == "" {
		schemaName = defaultSchema
	}
	tables, err := m.tables(ctx, m.database(database), schemaName)
	if err != nil {
		logger.Warn("duckdb tables", "path", m.path, "schema", schemaName, "error", err)
		return []schema.Table{}
	}
	return tables
}

func (m *manager) tables(ctx context.Context, database, schemaName string) ([]schema.Table, error) {
	rows, err := m.db.QueryContext(ctx, tablesQuery, database, schemaName)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	defer rows.Close()

	tables := []schema.Table{}
	for rows.Next() {
		var s, name, ttype string
		if err := rows.Scan(&s, &name, &ttype); err != nil {
			return nil, fmt.Errorf("tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Schema: s, Name: name, Type: schema.TableTypeOf(ttype)})
	}
	return tables, rows.Err()
}

func (m *manager) TableDetails(ctx context.Context, database string, tables []string) []schema.Column {
	if m.isClosed() || len(tables) == 0 {
		return []schema.Column{}
	}
	cols, err := m.columns(ctx, m.database(database), tables)
	if err != nil {
		logger.Warn("duckdb columns", "path", m.path, "error", err)
		return []schema.Column{}
	}
	return cols
}

func (m *manager) columns(ctx context.Context, database string, tables []string) ([]schema.Column, error) {
	rows, err := m.db.QueryContext(ctx, columnsQuery(tables), database)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	defer rows.Close()

	cols := []schema.Column{}
	for rows.Next() {
		var (
			table, name, dtype, udt, nullable string
			size                              sql.NullInt64
			dflt                              sql.NullString
		)
		if err := rows.Scan(&table, &name, &dtype, &udt, &size, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Table:    table,
			Name:     name,
			Type:     dtype,
			UDT:      udt,
			Size:     size.Int64,
			Nullable: nullable == "YES",
			Default:  dflt.String,
		})
	}
	return cols, rows.Err()
}

func (m *manager) TableQuery(schemaName, table string) string { return tableQuery(schemaName, table) }
func (m *manager) TableDescription(schemaName, table string) string {
	return tableDescription(schemaName, table)
}
func (m *manager) CreateStatement(schemaName, table string) string {
	return createStatement(schemaName, table)
}

func translateError(err error) error {
	var de *duckdb.Error
	if !errors.As(err, &de) {
		return fmt.Errorf("duckdb execute: %w", err)
	}
	return &adapter.QueryError{Message: de.Msg, Code: strconv.Itoa(int(de.Type)), Err: err}
}
