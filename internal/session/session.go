// Package session holds the per-client query state: the connection and
// database in use, the last outcome, and the token of the running batch.
package session

import (
	"sync"
	"time"

	"github.com/sadopc/sqlace/internal/adapter"
)

// State is derived from the session fields, never stored.
type State int

const (
	Idle State = iota
	Connected
	Ready
	Executing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connected:
		return "connected"
	case Ready:
		return "ready"
	case Executing:
		return "executing"
	default:
		return "unknown"
	}
}

// QueryMode selects where the query text comes from.
type QueryMode int

const (
	UseEditorBuffer QueryMode = iota
	UseExplicitQuery
)

func (m QueryMode) String() string {
	if m == UseExplicitQuery {
		return "explicit"
	}
	return "editor"
}

// Session is safe for concurrent use.
type Session struct {
	id string

	mu       sync.Mutex
	identity string
	database string
	results  []adapter.Result
	err      error
	token    *adapter.Token
	elapsed  time.Duration

	queryMode            QueryMode
	useSelectionAtCursor bool
	rowLimit             int
	mainViewVisible      bool
	detailsViewVisible   bool
}

func newSession(id string, defaults Defaults) *Session {
	return &Session{
		id:                   id,
		queryMode:            UseEditorBuffer,
		useSelectionAtCursor: defaults.UseSelectionAtCursor,
		rowLimit:             defaults.RowLimit,
	}
}

func (s *Session) ID() string { return s.id }

// Snapshot is an immutable copy of a session.
type Snapshot struct {
	ID       string
	State    State
	Identity string
	Database string
	Results  []adapter.Result
	Err      error
	Token    *adapter.Token
	Elapsed  time.Duration

	QueryMode            QueryMode
	UseSelectionAtCursor bool
	RowLimit             int
	MainViewVisible      bool
	DetailsViewVisible   bool
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:                   s.id,
		State:                s.state(),
		Identity:             s.identity,
		Database:             s.database,
		Results:              append([]adapter.Result(nil), s.results...),
		Err:                  s.err,
		Token:                s.token,
		Elapsed:              s.elapsed,
		QueryMode:            s.queryMode,
		UseSelectionAtCursor: s.useSelectionAtCursor,
		RowLimit:             s.rowLimit,
		MainViewVisible:      s.mainViewVisible,
		DetailsViewVisible:   s.detailsViewVisible,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	switch {
	case s.identity == "":
		return Idle
	case s.database == "":
		return Connected
	case s.token != nil:
		return Executing
	default:
		return Ready
	}
}

// Connect points the session at identity with database, which may be
// empty. It returns the identity the session used before, if any.
// Outcomes of a batch still running on the old connection are dropped.
func (s *Session) Connect(identity, database string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.identity
	s.identity = identity
	s.database = database
	s.results = nil
	s.err = nil
	s.token = nil
	return previous
}

// SelectDatabase sets the database for later executions.
func (s *Session) SelectDatabase(database string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == "" {
		return adapter.ErrNotConnected
	}
	s.database = database
	return nil
}

// Disconnect returns the session to Idle and reports the identity it
// was using. A running batch keeps running; its outcome is discarded.
func (s *Session) Disconnect() (identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity = s.identity
	s.identity = ""
	s.database = ""
	s.results = nil
	s.err = nil
	s.token = nil
	return identity
}

// Target returns the connection and database an execution would use.
func (s *Session) Target() (identity, database string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == "" {
		return "", "", adapter.ErrNotConnected
	}
	if s.database == "" {
		return "", "", adapter.ErrNoDatabaseSelected
	}
	return s.identity, s.database, nil
}

// Begin records tok as the running batch on identity and clears the
// previous outcome. It refuses when the session has since moved to
// another connection or disconnected. A token already held is
// superseded: its outcome will be ignored.
func (s *Session) Begin(identity string, tok *adapter.Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == "" || s.identity != identity {
		return false
	}
	s.token = tok
	s.results = nil
	s.err = nil
	return true
}

// Complete stores out if tok is still the session's token, and reports
// whether it did.
func (s *Session) Complete(tok *adapter.Token, out adapter.Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == nil || s.token != tok {
		return false
	}
	s.token = nil
	s.elapsed = out.Elapsed
	switch out.Kind {
	case adapter.Success:
		s.results = out.Results
		s.err = nil
	case adapter.Cancelled:
		s.results = nil
		s.err = adapter.ErrCancelled
	default:
		s.results = nil
		s.err = out.Err
	}
	return true
}

// Token is the running batch's token, nil when none is running.
func (s *Session) Token() *adapter.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) SetQueryMode(mode QueryMode) {
	s.mu.Lock()
	s.queryMode = mode
	s.mu.Unlock()
}

func (s *Session) SetUseSelectionAtCursor(v bool) {
	s.mu.Lock()
	s.useSelectionAtCursor = v
	s.mu.Unlock()
}

// SetRowLimit sets the LIMIT appended to row-returning queries; zero or
// less disables it.
func (s *Session) SetRowLimit(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.rowLimit = n
	s.mu.Unlock()
}

func (s *Session) RowLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowLimit
}

func (s *Session) SetViewVisibility(main, details bool) {
	s.mu.Lock()
	s.mainViewVisible = main
	s.detailsViewVisible = details
	s.mu.Unlock()
}
