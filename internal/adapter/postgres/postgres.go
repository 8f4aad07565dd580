package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/logger"
)

func init() {
	adapter.Register(&postgresAdapter{})
}

// flavor selects dialect differences inside the postgres family.
type flavor int

const (
	flavorPostgres flavor = iota
	flavorRedshift
)

func (f flavor) String() string {
	if f == flavorRedshift {
		return "redshift"
	}
	return "postgres"
}

func (f flavor) defaultPort() int {
	if f == flavorRedshift {
		return 5439
	}
	return 5432
}

func flavorOf(protocol string) flavor {
	if protocol == "redshift" {
		return flavorRedshift
	}
	return flavorPostgres
}

// postgresAdapter implements adapter.Adapter for PostgreSQL and Redshift.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }
func (a *postgresAdapter) Schemes() []string {
	return []string{"postgres", "postgresql", "pg", "redshift"}
}
func (a *postgresAdapter) DefaultPort() int { return 5432 }

func (a *postgresAdapter) Open(ctx context.Context, spec connspec.Spec, opts adapter.Options) (adapter.Manager, error) {
	m := newManager(spec, opts)

	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	pool, err := m.pool(ctx, spec.Database)
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		m.Destroy()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	logger.Info("postgres connected", "url", spec.Redacted(), "flavor", m.flavor.String())
	return m, nil
}

// manager implements adapter.Manager. A Postgres session is bound to one
// database, so the manager keeps one pool per database, created lazily.
type manager struct {
	spec   connspec.Spec
	flavor flavor
	opts   adapter.Options

	mu     sync.Mutex
	pools  map[string]*pgxpool.Pool
	closed bool
	opens  singleflight.Group

	superUser adapter.Memo[bool]
	dbNames   adapter.Memo[[]string]
}

func newManager(spec connspec.Spec, opts adapter.Options) *manager {
	return &manager{
		spec:   spec,
		flavor: flavorOf(spec.Protocol),
		opts:   opts.WithDefaults(),
		pools:  make(map[string]*pgxpool.Pool),
	}
}

func (m *manager) Identity() string        { return m.spec.Identity() }
func (m *manager) Spec() connspec.Spec     { return m.spec }
func (m *manager) AdapterName() string     { return m.flavor.String() }
func (m *manager) DefaultDatabase() string { return m.spec.Database }

// connString is the pgx URL for database. An empty database lets the
// server pick its default (the user name).
func (m *manager) connString(database string) string {
	s := m.spec.WithProtocol("postgres").WithDatabase(database)
	if s.Port == 0 {
		s.Port = m.flavor.defaultPort()
	}
	return s.URL()
}

// pool returns the pool for database, opening it on first use.
func (m *manager) pool(ctx context.Context, database string) (*pgxpool.Pool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, adapter.ErrDestroyed
	}
	if p, ok := m.pools[database]; ok {
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	v, err, _ := m.opens.Do(database, func() (any, error) {
		m.mu.Lock()
		if p, ok := m.pools[database]; ok {
			m.mu.Unlock()
			return p, nil
		}
		m.mu.Unlock()

		cfg, err := pgxpool.ParseConfig(m.connString(database))
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg.MaxConns = m.opts.MaxConns
		cfg.ConnConfig.ConnectTimeout = m.opts.ConnectTimeout

		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			go p.Close()
			return nil, adapter.ErrDestroyed
		}
		m.pools[database] = p
		logger.Debug("postgres pool opened", "identity", m.Identity(), "database", database)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pgxpool.Pool), nil
}

// Execute runs the batch over the simple protocol, which yields one
// result per statement.
func (m *manager) Execute(ctx context.Context, database, query string) *adapter.Execution {
	return adapter.Start(ctx, func(ctx context.Context, tok *adapter.Token) ([]adapter.Result, error) {
		pool, err := m.pool(ctx, database)
		if err != nil {
			return nil, err
		}
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("postgres acquire: %w", err)
		}
		defer conn.Release()

		pgc := conn.Conn().PgConn()
		if !tok.Bind(func() { m.cancelRequest(pgc) }) {
			return nil, adapter.ErrCancelled
		}
		results, err := pgc.Exec(ctx, query).ReadAll()
		tok.Unbind()
		if err != nil {
			return nil, translateError(err)
		}
		return translateResults(results), nil
	})
}

// cancelRequest asks the server, over a separate connection, to abort
// whatever pgc is running.
func (m *manager) cancelRequest(pgc *pgconn.PgConn) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.CancelTimeout)
	defer cancel()
	if err := pgc.CancelRequest(ctx); err != nil {
		logger.Warn("postgres cancel request failed", "identity", m.Identity(), "error", err)
	}
}

func (m *manager) CancelExecution(tok *adapter.Token) {
	if tok != nil {
		tok.Cancel()
	}
}

// Destroy marks the manager closed and releases its pools. Connections
// still running a statement are closed once the statement returns.
func (m *manager) Destroy() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pools := m.pools
	m.pools = map[string]*pgxpool.Pool{}
	m.mu.Unlock()

	m.superUser.Reset()
	m.dbNames.Reset()
	for _, p := range pools {
		go p.Close()
	}
	logger.Info("postgres destroyed", "identity", m.Identity(), "pools", len(pools))
	return nil
}

func (m *manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
