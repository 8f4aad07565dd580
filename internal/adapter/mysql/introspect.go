package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sadopc/sqlace/internal/adapter/sqlexec"
	"github.com/sadopc/sqlace/internal/logger"
	"github.com/sadopc/sqlace/internal/schema"
	"github.com/sadopc/sqlace/internal/sqltext"
)

const (
	schemasQuery = `SELECT SCHEMA_NAME
		FROM information_schema.SCHEMATA
		WHERE SCHEMA_NAME = ?`

	tablesQuery = `SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_TYPE, TABLE_NAME`
)

// DatabaseNames lists databases, cached until Destroy.
func (m *manager) DatabaseNames(ctx context.Context) []string {
	if m.isClosed() {
		return []string{}
	}
	names, err := m.dbNames.Get(func() ([]string, error) {
		return sqlexec.Strings(ctx, m.db, "SHOW DATABASES")
	})
	if err != nil {
		logger.Warn("mysql databases", "identity", m.Identity(), "error", err)
		return []string{}
	}
	return append([]string{}, names...)
}

// SchemaNames returns the database itself: a MySQL schema is a database.
func (m *manager) SchemaNames(ctx context.Context, database string) []string {
	if m.isClosed() {
		return []string{}
	}
	names, err := sqlexec.Strings(ctx, m.db, schemasQuery, m.database(database))
	if err != nil {
		logger.Warn("mysql schemas", "identity", m.Identity(), "database", database, "error", err)
		return []string{}
	}
	return names
}

func (m *manager) Tables(ctx context.Context, database, schemaName string) []schema.Table {
	if m.isClosed() {
		return []schema.Table{}
	}
	if schemaName == "" {
		schemaName = m.database(database)
	}
	tables, err := m.tables(ctx, schemaName)
	if err != nil {
		logger.Warn("mysql tables", "identity", m.Identity(), "schema", schemaName, "error", err)
		return []schema.Table{}
	}
	return tables
}

func (m *manager) tables(ctx context.Context, schemaName string) ([]schema.Table, error) {
	rows, err := m.db.QueryContext(ctx, tablesQuery, schemaName)
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
// table name within database.
func (m *manager) TableDetails(ctx context.Context, database string, tables []string) []schema.Column {
	if m.isClosed() || len(tables) == 0 {
		return []schema.Column{}
	}
	cols, err := m.columns(ctx, m.database(database), tables)
	if err != nil {
		logger.Warn("mysql columns", "identity", m.Identity(), "error", err)
		return []schema.Column{}
	}
	return cols
}

func columnsQuery(tables []string) string {
	in := sqltext.QuoteLiterals(tables, sqltext.QuoteLiteralMySQL)
	return `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		       CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE, COLUMN_DEFAULT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		  AND (CONCAT(TABLE_SCHEMA, '.', TABLE_NAME) IN ` + in + `
		       OR TABLE_NAME IN ` + in + `)
		ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (m *manager) columns(ctx context.Context, database string, tables []string) ([]schema.Column, error) {
	rows, err := m.db.QueryContext(ctx, columnsQuery(tables), database)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	defer rows.Close()

	cols := []schema.Column{}
	for rows.Next() {
		var (
			table, name, dtype, ctype, nullable string
			size                                sql.NullInt64
			dflt                                sql.NullString
		)
		if err := rows.Scan(&table, &name, &dtype, &ctype, &size, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Table:    table,
			Name:     name,
			Type:     dtype,
			UDT:      ctype,
			Size:     size.Int64,
			Nullable: nullable == "YES",
			Default:  dflt.String,
		})
	}
	return cols, rows.Err()
}

func qualified(schemaName, table string) string {
	if schemaName == "" {
		return sqltext.QuoteIdentMySQL(table)
	}
	return sqltext.QuoteIdentMySQL(schemaName) + "." + sqltext.QuoteIdentMySQL(table)
}

func (m *manager) TableQuery(schemaName, table string) string {
	return "SELECT *\nFROM " + qualified(schemaName, table)
}

func (m *manager) TableDescription(schemaName, table string) string {
	where := "TABLE_SCHEMA = DATABASE()"
	if schemaName != "" {
		where = "TABLE_SCHEMA = " + sqltext.QuoteLiteralMySQL(schemaName)
	}
	return `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, EXTRA
FROM information_schema.COLUMNS
WHERE ` + where + `
  AND TABLE_NAME = ` + sqltext.QuoteLiteralMySQL(table) + `
ORDER BY ORDINAL_POSITION`
}

func (m *manager) CreateStatement(schemaName, table string) string {
	return "SHOW CREATE TABLE " + qualified(schemaName, table)
}
