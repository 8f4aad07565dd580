// Package adaptertest provides an in-memory adapter.Manager for tests of
// the layers above the adapters.
package adaptertest

import (
	"context"
	"sync"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/schema"
	"github.com/sadopc/sqlace/internal/sqltext"
)

// ExecFunc is the body of a fake execution.
type ExecFunc func(ctx context.Context, tok *adapter.Token, database, query string) ([]adapter.Result, error)

// Manager is a scriptable adapter.Manager. The zero ExecFunc answers
// every batch with one "OK" status result.
type Manager struct {
	spec connspec.Spec

	mu        sync.Mutex
	exec      ExecFunc
	queries   []string
	destroyed int
	tables    []schema.Table
}

// New returns a fake manager for url.
func New(url string) *Manager {
	return &Manager{spec: connspec.MustParse(url)}
}

// SetExec replaces the execution body.
func (m *Manager) SetExec(fn ExecFunc) {
	m.mu.Lock()
	m.exec = fn
	m.mu.Unlock()
}

// SetTables sets what Tables returns.
func (m *Manager) SetTables(tables []schema.Table) {
	m.mu.Lock()
	m.tables = tables
	m.mu.Unlock()
}

// Queries returns every query Execute received, in order.
func (m *Manager) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Destroyed reports how many times Destroy was called.
func (m *Manager) Destroyed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

func (m *Manager) Identity() string        { return m.spec.Identity() }
func (m *Manager) Spec() connspec.Spec     { return m.spec }
func (m *Manager) AdapterName() string     { return "fake" }
func (m *Manager) DefaultDatabase() string { return m.spec.Database }

func (m *Manager) Execute(ctx context.Context, database, query string) *adapter.Execution {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	fn := m.exec
	m.mu.Unlock()

	return adapter.Start(ctx, func(ctx context.Context, tok *adapter.Token) ([]adapter.Result, error) {
		if fn == nil {
			return []adapter.Result{adapter.StatusResult(sqltext.CommandTag(query), 0)}, nil
		}
		return fn(ctx, tok, database, query)
	})
}

func (m *Manager) CancelExecution(tok *adapter.Token) {
	if tok != nil {
		tok.Cancel()
	}
}

func (m *Manager) DatabaseNames(context.Context) []string {
	if m.spec.Database == "" {
		return []string{}
	}
	return []string{m.spec.Database}
}

func (m *Manager) SchemaNames(context.Context, string) []string { return []string{"public"} }

func (m *Manager) Tables(context.Context, string, string) []schema.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Table{}, m.tables...)
}

func (m *Manager) TableDetails(context.Context, string, []string) []schema.Column {
	return []schema.Column{}
}

func (m *Manager) TableQuery(schemaName, table string) string {
	return "SELECT * FROM " + schemaName + "." + table
}

func (m *Manager) TableDescription(schemaName, table string) string {
	return "DESCRIBE " + schemaName + "." + table
}

func (m *Manager) CreateStatement(schemaName, table string) string {
	return "SHOW CREATE " + schemaName + "." + table
}

func (m *Manager) Destroy() error {
	m.mu.Lock()
	m.destroyed++
	m.mu.Unlock()
	return nil
}

// Block returns an ExecFunc that holds the execution open until release
// is closed, then succeeds with results. Cancelling the token ends it
// with adapter.ErrCancelled.
func Block(release <-chan struct{}, results []adapter.Result) ExecFunc {
	return func(ctx context.Context, tok *adapter.Token, _, _ string) ([]adapter.Result, error) {
		aborted := make(chan struct{})
		var once sync.Once
		if !tok.Bind(func() { once.Do(func() { close(aborted) }) }) {
			return nil, adapter.ErrCancelled
		}
		defer tok.Unbind()

		select {
		case <-release:
			return results, nil
		case <-aborted:
			return nil, adapter.ErrCancelled
		}
	}
}

// Fail returns an ExecFunc that fails every batch with err.
func Fail(err error) ExecFunc {
	return func(context.Context, *adapter.Token, string, string) ([]adapter.Result, error) {
		return nil, err
	}
}

// Succeed returns an ExecFunc that answers every batch with results.
func Succeed(results ...adapter.Result) ExecFunc {
	return func(context.Context, *adapter.Token, string, string) ([]adapter.Result, error) {
		return results, nil
	}
}
