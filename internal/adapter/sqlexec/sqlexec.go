// Package sqlexec runs statement batches over database/sql for the
// backends whose drivers take one statement at a time.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/sqltext"
)

// Batch describes one execution on a pinned connection.
type Batch struct {
	Conn *sql.Conn
	// Abort is bound to the token while each statement runs.
	Abort func()
	// MapError converts driver errors, typically into *adapter.QueryError.
	MapError func(error) error
	// Dialect decides where statements and literals end.
	Dialect sqltext.Dialect
}

// Run splits query and executes the statements in order on b.Conn. It
// stops at the first error and checks for cancellation between
// statements.
func (b Batch) Run(ctx context.Context, tok *adapter.Token, query string) ([]adapter.Result, error) {
	stmts := b.Dialect.Split(query)
	results := make([]adapter.Result, 0, len(stmts))
	for _, stmt := range stmts {
		if !tok.Bind(b.Abort) {
			return nil, adapter.ErrCancelled
		}
		res, err := Statement(ctx, b.Conn, b.Dialect, stmt)
		tok.Unbind()
		if err != nil {
			if tok.Cancelled() {
				return nil, adapter.ErrCancelled
			}
			if b.MapError != nil {
				err = b.MapError(err)
			}
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Statement runs a single statement. Row-returning statements become
// tabular results, the rest status results tagged by their main verb.
// A query that comes back without columns is reported as a status.
func Statement(ctx context.Context, conn *sql.Conn, d sqltext.Dialect, stmt string) (adapter.Result, error) {
	if d.ReturnsRows(stmt) {
		rows, err := conn.QueryContext(ctx, stmt)
		if err != nil {
			return adapter.Result{}, err
		}
		defer rows.Close()
		cols, data, err := ScanRows(rows)
		if err != nil {
			return adapter.Result{}, err
		}
		if len(cols) == 0 {
			return adapter.StatusResult(d.CommandTag(stmt), 0), nil
		}
		return adapter.TabularResult(cols, data), nil
	}

	res, err := conn.ExecContext(ctx, stmt)
	if err != nil {
		return adapter.Result{}, err
	}
	n, _ := res.RowsAffected()
	return adapter.StatusResult(d.CommandTag(stmt), n), nil
}

// ScanRows drains rows. Cells keep the driver's value; []byte becomes
// string and NULL stays nil.
func ScanRows(rows *sql.Rows) ([]adapter.ColumnMeta, [][]any, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("column types: %w", err)
	}
	cols := make([]adapter.ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = adapter.ColumnMeta{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	data := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, data, nil
}

// Strings runs a single-column query and collects the values.
func Strings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
