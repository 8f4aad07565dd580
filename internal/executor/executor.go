// Package executor runs queries on behalf of sessions. It hands out the
// cancellation token as soon as the batch starts and writes the outcome
// back into the session when it resolves.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/logger"
	"github.com/sadopc/sqlace/internal/session"
	"github.com/sadopc/sqlace/internal/sqltext"
)

// ErrEmptyQuery is returned for query text with no statements.
var ErrEmptyQuery = errors.New("empty query")

// Connections resolves an identity to its live manager.
// *registry.Registry satisfies it.
type Connections interface {
	Get(identity string) (adapter.Manager, bool)
}

// Record describes one finished execution.
type Record struct {
	SessionID string
	Identity  string
	Adapter   string
	Database  string
	Query     string
	StartedAt time.Time
	Outcome   adapter.Outcome
	// Stored is false when the session had moved on and the outcome was
	// discarded.
	Stored bool
}

// Observer is notified after every execution, from the watcher
// goroutine.
type Observer interface {
	Observe(rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rec Record)

func (f ObserverFunc) Observe(rec Record) { f(rec) }

// Executor is safe for concurrent use.
type Executor struct {
	sessions *session.Registry
	conns    Connections

	mu        sync.RWMutex
	observers []Observer
	// running maps the token of every unresolved run to its session.
	running map[*adapter.Token]*session.Session
}

func New(sessions *session.Registry, conns Connections, observers ...Observer) *Executor {
	return &Executor{
		sessions:  sessions,
		conns:     conns,
		observers: observers,
		running:   make(map[*adapter.Token]*session.Session),
	}
}

// AddObserver registers o for later executions.
func (e *Executor) AddObserver(o Observer) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

// Run is an execution started for a session.
type Run struct {
	SessionID string
	Query     string

	exec   *adapter.Execution
	done   chan struct{}
	stored bool
}

// Token is available immediately.
func (r *Run) Token() *adapter.Token { return r.exec.Token() }

// Done is closed after the outcome has been written to the session and
// observers have run.
func (r *Run) Done() <-chan struct{} { return r.done }

// Outcome blocks until Done.
func (r *Run) Outcome() adapter.Outcome {
	<-r.done
	return r.exec.Outcome()
}

// Wait is Outcome bounded by ctx.
func (r *Run) Wait(ctx context.Context) (adapter.Outcome, error) {
	select {
	case <-r.done:
		return r.exec.Outcome(), nil
	case <-ctx.Done():
		return adapter.Outcome{}, ctx.Err()
	}
}

// Stored reports, once Done, whether the outcome reached the session.
func (r *Run) Stored() bool {
	<-r.done
	return r.stored
}

// Execute validates the session and starts query on its connection.
// Validation failures return before any I/O. The execution is detached
// from ctx's cancellation: only the token stops it.
func (e *Executor) Execute(ctx context.Context, sessionID, query string) (*Run, error) {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return nil, adapter.ErrNotConnected
	}
	identity, database, err := s.Target()
	if err != nil {
		return nil, err
	}
	if len(sqltext.Split(query)) == 0 {
		return nil, ErrEmptyQuery
	}
	mgr, ok := e.conns.Get(identity)
	if !ok {
		return nil, adapter.ErrNotConnected
	}

	query = sqltext.DialectFor(mgr.AdapterName()).ApplyLimit(query, s.RowLimit())
	started := time.Now()
	exec := mgr.Execute(context.WithoutCancel(ctx), database, query)
	tok := exec.Token()
	e.track(tok, s)
	if !s.Begin(identity, tok) {
		// The session disconnected while we were starting.
		e.untrack(tok)
		mgr.CancelExecution(tok)
		return nil, adapter.ErrNotConnected
	}
	logger.Debug("execution started", "session", sessionID, "identity", identity, "database", database, "token", tok.ID())

	run := &Run{SessionID: sessionID, Query: query, exec: exec, done: make(chan struct{})}
	go e.watch(run, s, Record{
		SessionID: sessionID,
		Identity:  identity,
		Adapter:   mgr.AdapterName(),
		Database:  database,
		Query:     query,
		StartedAt: started,
	})
	return run, nil
}

func (e *Executor) watch(run *Run, s *session.Session, rec Record) {
	out := run.exec.Outcome()
	run.stored = s.Complete(run.exec.Token(), out)

	rec.Outcome = out
	rec.Stored = run.stored
	attrs := []any{
		"session", rec.SessionID,
		"identity", rec.Identity,
		"database", rec.Database,
		"outcome", out.Kind.String(),
		"elapsed", FormatElapsed(out.Elapsed),
		"stored", run.stored,
	}
	if out.Kind == adapter.Failure {
		logger.Info("execution failed", append(attrs, "error", out.Err)...)
	} else {
		logger.Info("execution finished", attrs...)
	}

	e.mu.RLock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.RUnlock()
	for _, o := range observers {
		o.Observe(rec)
	}
	e.untrack(run.exec.Token())
	close(run.done)
}

func (e *Executor) track(tok *adapter.Token, s *session.Session) {
	e.mu.Lock()
	e.running[tok] = s
	e.mu.Unlock()
}

func (e *Executor) untrack(tok *adapter.Token) {
	e.mu.Lock()
	delete(e.running, tok)
	e.mu.Unlock()
}

// Cancel cancels the session's running batch, if any.
func (e *Executor) Cancel(sessionID string) {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return
	}
	if tok := s.Token(); tok != nil {
		e.cancel(s, tok)
	}
}

// CancelToken cancels the run tok belongs to while its session still
// holds tok. A token superseded by a later Execute in the same session is
// a no-op. Tokens not started by this executor are cancelled directly.
func (e *Executor) CancelToken(tok *adapter.Token) {
	if tok == nil {
		return
	}
	e.mu.RLock()
	s, ok := e.running[tok]
	e.mu.RUnlock()
	if !ok {
		tok.Cancel()
		return
	}
	if s.Token() != tok {
		logger.Debug("ignoring cancel of superseded token", "session", s.ID(), "token", tok.ID())
		return
	}
	e.cancel(s, tok)
}

func (e *Executor) cancel(s *session.Session, tok *adapter.Token) {
	if mgr, ok := e.conns.Get(s.Snapshot().Identity); ok {
		mgr.CancelExecution(tok)
		return
	}
	tok.Cancel()
}

// FormatElapsed renders d in milliseconds, or in seconds from ten
// seconds up.
func FormatElapsed(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	if ms >= 10000 {
		return fmt.Sprintf("%.2f s", ms/1000)
	}
	return fmt.Sprintf("%.2f ms", ms)
}
