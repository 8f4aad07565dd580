package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/sadopc/sqlace/internal/adapter/sqlexec"
	"github.com/sadopc/sqlace/internal/logger"
	"github.com/sadopc/sqlace/internal/schema"
	"github.com/sadopc/sqlace/internal/sqltext"
)

const columnsQuery = `SELECT name, type, "notnull", dflt_value
	FROM pragma_table_info(?, ?)
	ORDER BY cid`

// DatabaseNames lists main plus any attached databases, cached until
// Destroy.
func (m *manager) DatabaseNames(ctx context.Context) []string {
	if m.isClosed() {
		return []string{}
	}
	names, err := m.dbNames.Get(func() ([]string, error) {
		return sqlexec.Strings(ctx, m.db, "SELECT name FROM pragma_database_list ORDER BY seq")
	})
	if err != nil {
		logger.Warn("sqlite databases", "path", m.path, "error", err)
		return []string{}
	}
	return append([]string{}, names...)
}

// SchemaNames returns the database itself; SQLite has no schemas below
// an attached database.
func (m *manager) SchemaNames(ctx context.Context, database string) []string {
	if m.isClosed() {
		return []string{}
	}
	database = m.database(database)
	for _, name := range m.DatabaseNames(ctx) {
		if name == database {
			return []string{database}
		}
	}
	return []string{}
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
		logger.Warn("sqlite tables", "path", m.path, "schema", schemaName, "error", err)
		return []schema.Table{}
	}
	return tables
}

func (m *manager) tables(ctx context.Context, schemaName string) ([]schema.Table, error) {
	q := `SELECT name, type FROM ` + sqltext.QuoteIdent(schemaName) + `.sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY type, name`
	rows, err := m.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	defer rows.Close()

	tables := []schema.Table{}
	for rows.Next() {
		var name, ttype string
		if err := rows.Scan(&name, &ttype); err != nil {
			return nil, fmt.Errorf("tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Schema: schemaName, Name: name, Type: schema.TableTypeOf(ttype)})
	}
	return tables, rows.Err()
}

// TableDetails accepts "schema.table" or bare names, which resolve in
// database.
func (m *manager) TableDetails(ctx context.Context, database string, tables []string) []schema.Column {
	if m.isClosed() {
		return []schema.Column{}
	}
	cols := []schema.Column{}
	for _, name := range tables {
		schemaName, table := sqltext.SplitQualified(name)
		if schemaName == "" {
			schemaName = m.database(database)
		}
		tc, err := m.columns(ctx, schemaName, table)
		if err != nil {
			logger.Warn("sqlite columns", "path", m.path, "table", name, "error", err)
			return []schema.Column{}
		}
		cols = append(cols, tc...)
	}
	return cols
}

func (m *manager) columns(ctx context.Context, schemaName, table string) ([]schema.Column, error) {
	rows, err := m.db.QueryContext(ctx, columnsQuery, table, schemaName)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, ctype string
			notNull     int
			dflt        sql.NullString
		)
		if err := rows.Scan(&name, &ctype, &notNull, &dflt); err != nil {
			return nil, fmt.Errorf("columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Table:    table,
			Name:     name,
			Type:     ctype,
			UDT:      ctype,
			Size:     typeSize(ctype),
			Nullable: notNull == 0,
			Default:  dflt.String,
		})
	}
	return cols, rows.Err()
}

// typeSize extracts the length from declared types like VARCHAR(40).
func typeSize(decl string) int64 {
	open := strings.IndexByte(decl, '(')
	end := strings.IndexAny(decl, ",)")
	if open < 0 || end < open {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(decl[open+1:end]), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func qualified(schemaName, table string) string {
	if schemaName == "" {
		return sqltext.QuoteIdent(table)
	}
	return sqltext.QuoteIdent(schemaName) + "." + sqltext.QuoteIdent(table)
}

func (m *manager) TableQuery(schemaName, table string) string {
	return "SELECT *\nFROM " + qualified(schemaName, table)
}

func (m *manager) TableDescription(schemaName, table string) string {
	if schemaName == "" {
		schemaName = mainDatabase
	}
	return "SELECT cid, name, type, \"notnull\", dflt_value, pk\nFROM pragma_table_info(" +
		sqltext.QuoteLiteral(table) + ", " + sqltext.QuoteLiteral(schemaName) + ")"
}

// CreateStatement reads the stored CREATE text back from sqlite_master.
func (m *manager) CreateStatement(schemaName, table string) string {
	if schemaName == "" {
		schemaName = mainDatabase
	}
	return "SELECT sql\nFROM " + sqltext.QuoteIdent(schemaName) + ".sqlite_master\nWHERE name = " +
		sqltext.QuoteLiteral(table)
}
