package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/executor"
	"github.com/sadopc/sqlace/internal/logger"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query         TEXT NOT NULL,
	adapter       TEXT NOT NULL DEFAULT '',
	identity      TEXT NOT NULL DEFAULT '',
	database_name TEXT NOT NULL DEFAULT '',
	session_id    TEXT NOT NULL DEFAULT '',
	executed_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms   INTEGER,
	row_count     INTEGER,
	outcome       TEXT NOT NULL DEFAULT 'success',
	error         TEXT NOT NULL DEFAULT ''
)`

const selectColumns = `SELECT id, query, adapter, identity, database_name, session_id, executed_at, duration_ms, row_count, outcome, error
	 FROM history`

// Entry represents a single executed batch in the history log.
type Entry struct {
	ID           int64
	Query        string
	Adapter      string
	Identity     string
	DatabaseName string
	SessionID    string
	ExecutedAt   time.Time
	DurationMS   int64
	RowCount     int64
	Outcome      string // success, failure or cancelled
	Error        string
}

// IsError reports whether the batch failed.
func (e Entry) IsError() bool { return e.Outcome == adapter.Failure.String() }

// History provides SQLite-backed query history storage.
type History struct {
	db         *sql.DB
	maxEntries int
}

// Open opens (or creates) the history database at path and ensures the
// schema exists. maxEntries > 0 caps the stored entries; older ones are
// pruned as new ones arrive.
func Open(path string, maxEntries int) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &History{db: db, maxEntries: maxEntries}, nil
}

// Add inserts a new history entry.
func (h *History) Add(ctx context.Context, entry Entry) error {
	if entry.Outcome == "" {
		entry.Outcome = adapter.Success.String()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO history (query, adapter, identity, database_name, session_id, executed_at, duration_ms, row_count, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Query,
		entry.Adapter,
		entry.Identity,
		entry.DatabaseName,
		entry.SessionID,
		entry.ExecutedAt,
		entry.DurationMS,
		entry.RowCount,
		entry.Outcome,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	if h.maxEntries > 0 {
		return h.Prune(ctx, h.maxEntries)
	}
	return nil
}

// Search returns history entries whose query text matches the given pattern
// using SQL LIKE. Results are ordered by most recent first, limited to limit
// rows.
func (h *History) Search(ctx context.Context, pattern string, limit int) ([]Entry, error) {
	rows, err := h.db.QueryContext(ctx,
		selectColumns+`
		 WHERE query LIKE ?
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the most recent history entries, limited to limit rows.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := h.db.QueryContext(ctx,
		selectColumns+`
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Prune keeps the newest keep entries.
func (h *History) Prune(ctx context.Context, keep int) error {
	_, err := h.db.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return fmt.Errorf("history prune: %w", err)
	}
	return nil
}

// Clear deletes all history entries.
func (h *History) Clear(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Observe records a finished execution. It satisfies executor.Observer;
// storage failures are logged, never returned to the executor.
func (h *History) Observe(rec executor.Record) {
	if err := h.Add(context.Background(), EntryFromRecord(rec)); err != nil {
		logger.Warn("history", "error", err)
	}
}

// EntryFromRecord converts an execution record. RowCount sums returned
// rows and affected rows over the batch.
func EntryFromRecord(rec executor.Record) Entry {
	e := Entry{
		Query:        rec.Query,
		Adapter:      rec.Adapter,
		Identity:     rec.Identity,
		DatabaseName: rec.Database,
		SessionID:    rec.SessionID,
		ExecutedAt:   rec.StartedAt.UTC(),
		DurationMS:   rec.Outcome.Elapsed.Milliseconds(),
		Outcome:      rec.Outcome.Kind.String(),
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
	return e
}

// scanEntries reads all rows from the result set into a slice of Entry.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.Query,
			&e.Adapter,
			&e.Identity,
			&e.DatabaseName,
			&e.SessionID,
			&e.ExecutedAt,
			&e.DurationMS,
			&e.RowCount,
			&e.Outcome,
			&e.Error,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
