// Package duckdb registers the duckdb:// scheme. The driver needs cgo, so
// the working adapter is only built with -tags duckdb; other builds
// register a stub that refuses to connect.
package duckdb

import (
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/sqltext"
)

const (
	defaultSchema = "main"

	databasesQuery = `SELECT database_name FROM duckdb_databases()
		WHERE NOT internal
		ORDER BY database_name`

	schemasQuery = `SELECT schema_name FROM information_schema.schemata
		WHERE catalog_name = ?
		ORDER BY schema_name`

	tablesQuery = `SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_catalog = ? AND table_schema = ?
		ORDER BY table_type, table_name`
)

// filePath is the database file; empty opens an in-memory database.
func filePath(spec connspec.Spec) string {
	p := spec.FilePath()
	if p == "/:memory:" || p == ":memory:" {
		return ""
	}
	return p
}

func qualified(schemaName, table string) string {
	if schemaName == "" {
		return sqltext.QuoteIdent(table)
	}
	return sqltext.QuoteIdent(schemaName) + "." + sqltext.QuoteIdent(table)
}

func tableQuery(schemaName, table string) string {
	return "SELECT *\nFROM " + qualified(schemaName, table)
}

func tableDescription(schemaName, table string) string {
	if schemaName == "" {
		schemaName = defaultSchema
	}
	return `SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = ` + sqltext.QuoteLiteral(schemaName) + `
  AND table_name = ` + sqltext.QuoteLiteral(table) + `
ORDER BY ordinal_position`
}

// createStatement reads the stored DDL of a table or view.
func createStatement(schemaName, table string) string {
	if schemaName == "" {
		schemaName = defaultSchema
	}
	s, t := sqltext.QuoteLiteral(schemaName), sqltext.QuoteLiteral(table)
	return "SELECT sql FROM duckdb_tables() WHERE schema_name = " + s + " AND table_name = " + t +
		"\nUNION ALL\nSELECT sql FROM duckdb_views() WHERE schema_name = " + s + " AND view_name = " + t
}

func columnsQuery(tables []string) string {
	in := sqltext.QuoteLiterals(tables, sqltext.QuoteLiteral)
	return `SELECT table_name, column_name, data_type, data_type,
		       character_maximum_length, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_catalog = ?
		  AND (table_schema || '.' || table_name IN ` + in + `
		       OR table_name IN ` + in + `)
		ORDER BY table_name, ordinal_position`
}
