package adapter

import (
	"context"

	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/schema"
)

// Manager owns the native pool for one connection identity and exposes
// the operations every backend supports.
type Manager interface {
	Identity() string
	Spec() connspec.Spec
	AdapterName() string
	// DefaultDatabase is the database used when the URL names none and the
	// backend has an implicit one (sqlite "main"). Empty otherwise.
	DefaultDatabase() string

	// Execute starts the statement batch and returns immediately. The
	// returned Execution's Token is usable before the outcome resolves.
	Execute(ctx context.Context, database, query string) *Execution
	// CancelExecution is best effort and a no-op for resolved tokens.
	CancelExecution(tok *Token)

	// Introspection. Failures are logged and yield empty slices.
	DatabaseNames(ctx context.Context) []string
	SchemaNames(ctx context.Context, database string) []string
	Tables(ctx context.Context, database, schemaName string) []schema.Table
	// TableDetails returns the columns of tables, which may be bare or
	// schema-qualified names.
	TableDetails(ctx context.Context, database string, tables []string) []schema.Column

	// SQL generation. No I/O.
	TableQuery(schemaName, table string) string
	TableDescription(schemaName, table string) string
	CreateStatement(schemaName, table string) string

	// Destroy releases the native pool. Idempotent.
	Destroy() error
}
