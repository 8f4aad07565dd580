// Package audit appends one JSON line per connect and per executed batch.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/executor"
	"github.com/sadopc/sqlace/internal/logger"
)

// Event kinds.
const (
	EventConnect = "connect"
	EventExecute = "execute"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Event        string    `json:"event"`
	SessionID    string    `json:"session_id,omitempty"`
	Identity     string    `json:"identity,omitempty"`
	Query        string    `json:"query,omitempty"`
	Adapter      string    `json:"adapter,omitempty"`
	DatabaseName string    `json:"database_name,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	RowCount     int64     `json:"row_count"`
	Outcome      string    `json:"outcome,omitempty"`
	IsError      bool      `json:"is_error"`
	Error        string    `json:"error,omitempty"`
	DSN          string    `json:"dsn,omitempty"`
}

// Logger writes JSON Lines audit entries to a file. Once the file
// reaches the size limit it is moved to path.1 and a fresh one started.
type Logger struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	limit   int64 // bytes, 0 disables rotation
	written int64
	now     func() time.Time
}

// New opens the audit file at path for appending, creating it (0o600)
// and its directory (0o700) as needed. maxSizeMB <= 0 disables rotation.
func New(path string, maxSizeMB int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	l := &Logger{path: path, now: time.Now}
	if maxSizeMB > 0 {
		l.limit = int64(maxSizeMB) << 20
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("audit: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("audit: stat file: %w", err)
	}
	l.f, l.written = f, info.Size()
	return nil
}

// Log appends e as one JSON line. It is safe for concurrent use and a
// no-op on a nil Logger. Write failures are logged, never returned.
func (l *Logger) Log(e Entry) {
	if l == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		logger.Warn("audit: encode entry", "error", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	n, err := l.f.Write(line)
	l.written += int64(n)
	if err != nil {
		logger.Warn("audit: write entry", "path", l.path, "error", err)
		return
	}
	if l.limit > 0 && l.written >= l.limit {
		if err := l.rotate(); err != nil {
			logger.Warn("audit: rotate", "path", l.path, "error", err)
		}
	}
}

// rotate replaces path.1 with the current file and reopens path.
func (l *Logger) rotate() error {
	closeErr := l.f.Close()
	l.f = nil
	renameErr := os.Rename(l.path, l.path+".1")
	return errors.Join(closeErr, renameErr, l.open())
}

// Observe logs a finished execution. It satisfies executor.Observer.
func (l *Logger) Observe(rec executor.Record) {
	e := Entry{
		Timestamp:    rec.StartedAt.UTC(),
		Event:        EventExecute,
		SessionID:    rec.SessionID,
		Identity:     rec.Identity,
		Query:        rec.Query,
		Adapter:      rec.Adapter,
		DatabaseName: rec.Database,
		DurationMS:   rec.Outcome.Elapsed.Milliseconds(),
		Outcome:      rec.Outcome.Kind.String(),
		IsError:      rec.Outcome.Kind == adapter.Failure,
	}
	for _, r := range rec.Outcome.Results {
		if r.IsTabular() {
			e.RowCount += r.RowCount
		} else {
			e.RowCount += r.RowsAffected
		}
	}
	if rec.Outcome.Err != nil {
		e.Error = rec.Outcome.Err.Error()
	}
	l.Log(e)
}

// Connected logs a session connecting with rawURL. Credentials never
// reach the file.
func (l *Logger) Connected(sessionID, identity, rawURL string) {
	l.Log(Entry{
		Event:     EventConnect,
		SessionID: sessionID,
		Identity:  identity,
		DSN:       connspec.RedactDSN(rawURL),
	})
}

// Close closes the file. It is a no-op on a nil Logger.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
