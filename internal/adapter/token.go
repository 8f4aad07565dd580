package adapter

import (
	"sync"
	"sync/atomic"
)

var tokenSeq atomic.Uint64

// Token is the cancellation handle for a single execution.
//
// The adapter binds a backend-specific abort to the token while a
// statement is on the wire. Cancel runs that abort at most once. A Cancel
// that arrives before Bind is remembered, and Bind then refuses so the
// adapter never issues the statement. Once the execution resolves every
// Cancel is a no-op.
type Token struct {
	id uint64

	mu        sync.Mutex
	abort     func()
	requested bool
	done      bool
}

func newToken() *Token {
	return &Token{id: tokenSeq.Add(1)}
}

// ID is unique per process.
func (t *Token) ID() uint64 { return t.id }

// Bind attaches abort. It returns false when cancellation was already
// requested, in which case the caller must not start the statement.
func (t *Token) Bind(abort func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.requested || t.done {
		return false
	}
	t.abort = abort
	return true
}

// Unbind detaches the current abort. After Unbind returns no abort
// from an earlier Bind will run.
func (t *Token) Unbind() {
	t.mu.Lock()
	t.abort = nil
	t.mu.Unlock()
}

// Cancel requests the execution to stop.
func (t *Token) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || t.requested {
		return
	}
	t.requested = true
	if t.abort != nil {
		t.abort()
	}
}

// Cancelled reports whether Cancel took effect before resolution.
func (t *Token) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Resolved reports whether the execution has finished.
func (t *Token) Resolved() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Token) finish() {
	t.mu.Lock()
	t.done = true
	t.abort = nil
	t.mu.Unlock()
}
