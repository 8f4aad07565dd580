package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sadopc/sqlace/internal/adapter"
)

// typeMap is only read (TypeForOID), which is safe for concurrent use.
var typeMap = pgtype.NewMap()

// translateResults converts the per-statement results of a simple-protocol
// batch. A statement with result fields is tabular, anything else is a
// status built from the command tag.
func translateResults(rs []*pgconn.Result) []adapter.Result {
	out := make([]adapter.Result, 0, len(rs))
	for _, r := range rs {
		if len(r.FieldDescriptions) > 0 {
			out = append(out, adapter.TabularResult(fieldDescToMeta(r.FieldDescriptions), rowsToValues(r.Rows)))
			continue
		}
		out = append(out, adapter.StatusResult(r.CommandTag.String(), r.CommandTag.RowsAffected()))
	}
	return out
}

// rowsToValues keeps the server's text encoding: string cells, nil for NULL.
func rowsToValues(rows [][][]byte) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, cell := range row {
			if cell != nil {
				vals[j] = string(cell)
			}
		}
		out[i] = vals
	}
	return out
}

// fieldDescToMeta converts pgx field descriptions to adapter ColumnMeta.
func fieldDescToMeta(fds []pgconn.FieldDescription) []adapter.ColumnMeta {
	cols := make([]adapter.ColumnMeta, len(fds))
	for i, fd := range fds {
		cols[i] = adapter.ColumnMeta{
			Name: fd.Name,
			Type: typeName(fd.DataTypeOID),
		}
	}
	return cols
}

func typeName(oid uint32) string {
	if t, ok := typeMap.TypeForOID(oid); ok {
		return t.Name
	}
	return fmt.Sprintf("oid:%d", oid)
}

// translateError maps server errors to *adapter.QueryError and wraps
// everything else.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &adapter.QueryError{
			Message:  pgErr.Message,
			Code:     pgErr.Code,
			Position: int(pgErr.Position),
			Detail:   pgErr.Detail,
			Where:    pgErr.Where,
			Err:      err,
		}
	}
	return fmt.Errorf("postgres execute: %w", err)
}
