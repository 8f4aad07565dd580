package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/adapter/sqlexec"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/logger"
	"github.com/sadopc/sqlace/internal/sqltext"
)

func init() {
	adapter.Register(&mysqlAdapter{})
}

type mysqlAdapter struct{}

func (a *mysqlAdapter) Name() string      { return "mysql" }
func (a *mysqlAdapter) Schemes() []string { return []string{"mysql", "mariadb"} }
func (a *mysqlAdapter) DefaultPort() int  { return 3306 }

func (a *mysqlAdapter) Open(ctx context.Context, spec connspec.Spec, opts adapter.Options) (adapter.Manager, error) {
	m, err := newManager(spec, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()
	if err := m.db.PingContext(ctx); err != nil {
		m.db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	logger.Info("mysql connected", "url", spec.Redacted())
	return m, nil
}

// driverConfig converts spec into go-sql-driver settings. Query
// parameters on the URL are passed through to the driver.
func driverConfig(spec connspec.Spec, opts adapter.Options) (*mysql.Config, error) {
	cfg := mysql.NewConfig()
	cfg.User = spec.User
	cfg.Passwd = spec.Password
	cfg.Net = "tcp"
	cfg.Addr = spec.Address(3306)
	cfg.DBName = spec.Database
	cfg.ParseTime = true
	cfg.Timeout = opts.ConnectTimeout

	if spec.RawQuery == "" {
		return cfg, nil
	}
	dsn := cfg.FormatDSN()
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	parsed, err := mysql.ParseDSN(dsn + sep + spec.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	return parsed, nil
}

// manager implements adapter.Manager. MySQL switches databases per
// connection with USE, so one pool serves every database.
type manager struct {
	spec connspec.Spec
	opts adapter.Options
	cfg  *mysql.Config
	db   *sql.DB

	mu     sync.Mutex
	closed bool

	dbNames adapter.Memo[[]string]
}

func newManager(spec connspec.Spec, opts adapter.Options) (*manager, error) {
	opts = opts.WithDefaults()
	cfg, err := driverConfig(spec, opts)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(int(opts.MaxConns))
	return &manager{spec: spec, opts: opts, cfg: cfg, db: db}, nil
}

func (m *manager) Identity() string        { return m.spec.Identity() }
func (m *manager) Spec() connspec.Spec     { return m.spec }
func (m *manager) AdapterName() string     { return "mysql" }
func (m *manager) DefaultDatabase() string { return m.spec.Database }

func (m *manager) database(database string) string {
	if database == "" {
		return m.spec.Database
	}
	return database
}

// Execute pins one connection for the whole batch so that
// CONNECTION_ID() names the session a KILL QUERY has to target.
func (m *manager) Execute(ctx context.Context, database, query string) *adapter.Execution {
	return adapter.Start(ctx, func(ctx context.Context, tok *adapter.Token) ([]adapter.Result, error) {
		if m.isClosed() {
			return nil, adapter.ErrDestroyed
		}
		conn, err := m.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("mysql acquire conn: %w", err)
		}
		defer conn.Close()

		if db := m.database(database); db != "" {
			if _, err := conn.ExecContext(ctx, "USE "+sqltext.QuoteIdentMySQL(db)); err != nil {
				return nil, translateError(err)
			}
		}

		var connID int64
		if err := conn.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&connID); err != nil {
			return nil, fmt.Errorf("mysql connection_id: %w", err)
		}

		b := sqlexec.Batch{
			Conn:     conn,
			Abort:    func() { m.killQuery(connID) },
			MapError: translateError,
			Dialect:  sqltext.MySQL,
		}
		return b.Run(ctx, tok, query)
	})
}

// killQuery aborts the statement running on connID from a short-lived
// connection of its own.
func (m *manager) killQuery(connID int64) {
	connector, err := mysql.NewConnector(m.cfg)
	if err != nil {
		logger.Warn("mysql cancel", "identity", m.Identity(), "error", err)
		return
	}
	killDB := sql.OpenDB(connector)
	defer killDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.CancelTimeout)
	defer cancel()
	if _, err := killDB.ExecContext(ctx, fmt.Sprintf("KILL QUERY %d", connID)); err != nil {
		logger.Warn("mysql kill query failed", "identity", m.Identity(), "conn_id", connID, "error", err)
	}
}

func (m *manager) CancelExecution(tok *adapter.Token) {
	if tok != nil {
		tok.Cancel()
	}
}

// Destroy closes the pool. database/sql closes busy connections once
// they are returned, so a running batch finishes on its own.
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
	logger.Info("mysql destroyed", "identity", m.Identity())
	return nil
}

func (m *manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var lineHint = regexp.MustCompile(`at line (\d+)`)

// translateError maps server errors to *adapter.QueryError. Syntax
// errors carry the offending line in their message.
func translateError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return fmt.Errorf("mysql execute: %w", err)
	}
	qe := &adapter.QueryError{
		Message: myErr.Message,
		Code:    strconv.Itoa(int(myErr.Number)),
		Err:     err,
	}
	if match := lineHint.FindStringSubmatch(myErr.Message); match != nil {
		qe.Line, _ = strconv.Atoi(match[1])
	}
	return qe
}
