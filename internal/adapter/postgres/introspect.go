package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sadopc/sqlace/internal/logger"
	"github.com/sadopc/sqlace/internal/schema"
	"github.com/sadopc/sqlace/internal/sqltext"
)

const (
	superUserQuery = `SELECT usesuper FROM pg_user WHERE usename = $1`

	privilegedDatabasesQuery = `SELECT datname FROM pg_database
		 WHERE datistemplate = false
		 ORDER BY datname`

	restrictedDatabasesQuery = `SELECT datname FROM pg_database
		 JOIN pg_user ON usesysid = datdba
		 WHERE usename = $1
		   AND datistemplate = false
		 ORDER BY datname`

	schemasQuery = `SELECT schema_name
		 FROM information_schema.schemata
		 WHERE catalog_name = $1
		 ORDER BY catalog_name, schema_name, schema_owner`

	tablesQuery = `SELECT table_schema, table_name, table_type
		 FROM information_schema.tables
		 WHERE table_schema = $1
		 ORDER BY table_schema, table_type, table_name`
)

// queryStrings runs a single-column query against database.
func (m *manager) queryStrings(ctx context.Context, database, sql string, args ...any) ([]string, error) {
	pool, err := m.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (m *manager) database(database string) string {
	if database == "" {
		return m.spec.Database
	}
	return database
}

// isSuperUser resolves the connected user's privilege once per manager.
// A failed superuser check is treated as unprivileged and retried on the next call.
func (m *manager) isSuperUser(ctx context.Context) bool {
	super, err := m.superUser.Get(func() (bool, error) {
		pool, err := m.pool(ctx, m.spec.Database)
		if err != nil {
			return false, err
		}
		var super bool
		err = pool.QueryRow(ctx, superUserQuery, m.spec.User).Scan(&super)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return super, err
	})
	if err != nil {
		logger.Warn("postgres privilege check failed", "identity", m.Identity(), "error", err)
		return false
	}
	return super
}

// DatabaseNames lists databases, cached until Destroy. Superusers see
// every non-template database, other users only the ones they own.
func (m *manager) DatabaseNames(ctx context.Context) []string {
	if m.isClosed() {
		return []string{}
	}
	names, err := m.dbNames.Get(func() ([]string, error) {
		if m.isSuperUser(ctx) {
			return m.queryStrings(ctx, m.spec.Database, privilegedDatabasesQuery)
		}
		return m.queryStrings(ctx, m.spec.Database, restrictedDatabasesQuery, m.spec.User)
	})
	if err != nil {
		logger.Warn("postgres databases", "identity", m.Identity(), "error", err)
		return []string{}
	}
	return append([]string{}, names...)
}

func (m *manager) SchemaNames(ctx context.Context, database string) []string {
	database = m.database(database)
	names, err := m.queryStrings(ctx, database, schemasQuery, database)
	if err != nil {
		logger.Warn("postgres schemas", "identity", m.Identity(), "database", database, "error", err)
		return []string{}
	}
	return append([]string{}, names...)
}

func (m *manager) Tables(ctx context.Context, database, schemaName string) []schema.Table {
	if schemaName == "" {
		schemaName = "public"
	}
	tables, err := m.tables(ctx, m.database(database), schemaName)
	if err != nil {
		logger.Warn("postgres tables", "identity", m.Identity(), "schema", schemaName, "error", err)
		return []schema.Table{}
	}
	return tables
}

func (m *manager) tables(ctx context.Context, database, schemaName string) ([]schema.Table, error) {
	pool, err := m.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, tablesQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	defer rows.Close()

	tables := []schema.Table{}
	for rows.Next() {
		var s, name, ttype string
		if err := rows.Scan(&s, &name, &ttype); err != nil {
			return nil, fmt.Errorf("tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Schema: s, Name: name, Type: schema.TableTypeOf(ttype)})
	}
	return tables, rows.Err()
}

// TableDetails matches each name against both schema.table and the bare
// table name.
func (m *manager) TableDetails(ctx context.Context, database string, tables []string) []schema.Column {
	if len(tables) == 0 {
		return []schema.Column{}
	}
	cols, err := m.columns(ctx, m.database(database), tables)
	if err != nil {
		logger.Warn("postgres columns", "identity", m.Identity(), "error", err)
		return []schema.Column{}
	}
	return cols
}

func columnsQuery(tables []string) string {
	in := sqltext.QuoteLiterals(tables, sqltext.QuoteLiteral)
	return `SELECT table_name, column_name, data_type, udt_name,
		        character_maximum_length, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema || '.' || table_name IN ` + in + `
		    OR table_name IN ` + in + `
		 ORDER BY table_name, ordinal_position`
}

func (m *manager) columns(ctx context.Context, database string, tables []string) ([]schema.Column, error) {
	pool, err := m.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, columnsQuery(tables))
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	defer rows.Close()

	cols := []schema.Column{}
	for rows.Next() {
		var (
			table, name, dtype, udt, nullable string
			size                              pgtype.Int8
			dflt                              pgtype.Text
		)
		if err := rows.Scan(&table, &name, &dtype, &udt, &size, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Table:    table,
			Name:     name,
			Type:     dtype,
			UDT:      udt,
			Size:     size.Int64,
			Nullable: nullable == "YES",
			Default:  dflt.String,
		})
	}
	return cols, rows.Err()
}
