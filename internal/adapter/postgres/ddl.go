package postgres

import (
	"fmt"

	"github.com/sadopc/sqlace/internal/sqltext"
)

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
		schemaName = "public"
	}
	return `SELECT
  ordinal_position AS "Position",
  column_name AS "Column",
  data_type AS "Type",
  character_maximum_length,
  character_octet_length,
  numeric_precision,
  numeric_precision_radix,
  numeric_scale,
  datetime_precision,
  column_default AS "Default",
  is_nullable AS "Nullable",
  character_set_name AS "Character Set",
  collation_name AS "Collation"
FROM information_schema.columns
WHERE table_schema = ` + sqltext.QuoteLiteral(schemaName) + `
  AND table_name = ` + sqltext.QuoteLiteral(table) + `
ORDER BY ordinal_position`
}

func (m *manager) CreateStatement(schemaName, table string) string {
	if schemaName == "" {
		schemaName = "public"
	}
	s, t := sqltext.QuoteLiteral(schemaName), sqltext.QuoteLiteral(table)
	if m.flavor == flavorRedshift {
		return redshiftDDL + "WHERE schemaname = " + s + "\n  AND tablename = " + t + "\nORDER BY seq ASC"
	}
	return fmt.Sprintf(postgresDDL, s, t)
}

// postgresDDL rebuilds CREATE TABLE from pg_catalog as one row, followed
// by one ALTER TABLE row per constraint. %[1]s is the schema literal and
// %[2]s the table literal.
const postgresDDL = `SELECT ddl FROM (
  SELECT 0 AS seq,
         'CREATE TABLE ' || quote_ident(n.nspname) || '.' || quote_ident(c.relname) || E' (\n' ||
         string_agg('    ' || quote_ident(a.attname) || ' ' || format_type(a.atttypid, a.atttypmod) ||
                    CASE WHEN a.attnotnull THEN ' NOT NULL' ELSE '' END ||
                    CASE WHEN d.adbin IS NOT NULL THEN ' DEFAULT ' || pg_get_expr(d.adbin, d.adrelid) ELSE '' END,
                    E',\n' ORDER BY a.attnum) ||
         E'\n);' AS ddl
  FROM pg_class c
  JOIN pg_namespace n ON n.oid = c.relnamespace
  JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
  LEFT JOIN pg_attrdef d ON d.adrelid = c.oid AND d.adnum = a.attnum
  WHERE c.relkind IN ('r', 'p')
    AND n.nspname = %[1]s
    AND c.relname = %[2]s
  GROUP BY n.nspname, c.relname
  UNION ALL
  SELECT 1 + row_number() OVER (ORDER BY con.contype DESC, con.conname) AS seq,
         'ALTER TABLE ' || quote_ident(n.nspname) || '.' || quote_ident(c.relname) ||
         ' ADD CONSTRAINT ' || quote_ident(con.conname) || ' ' || pg_get_constraintdef(con.oid) || ';'
  FROM pg_constraint con
  JOIN pg_class c ON c.oid = con.conrelid
  JOIN pg_namespace n ON n.oid = c.relnamespace
  WHERE n.nspname = %[1]s
    AND c.relname = %[2]s
) ddl
ORDER BY seq`

// redshiftDDL reconstructs a table definition including DISTSTYLE,
// DISTKEY and SORTKEY, which pg_catalog alone cannot express on Redshift.
// Callers append the schemaname/tablename filter.
const redshiftDDL = `SELECT ddl
FROM (
  SELECT schemaname, tablename, seq, ddl
  FROM (
    --DROP TABLE
    SELECT n.nspname AS schemaname, c.relname AS tablename, 0 AS seq,
           '--DROP TABLE "' + n.nspname + '"."' + c.relname + '";' AS ddl
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    WHERE c.relkind = 'r'
    --CREATE TABLE
    UNION SELECT n.nspname, c.relname, 2,
           'CREATE TABLE IF NOT EXISTS "' + n.nspname + '"."' + c.relname + '"'
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    WHERE c.relkind = 'r'
    --OPEN PAREN COLUMN LIST
    UNION SELECT n.nspname, c.relname, 5, '('
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    WHERE c.relkind = 'r'
    --COLUMN LIST
    UNION SELECT schemaname, tablename, seq,
           '\t' + col_delim + col_name + ' ' + col_datatype + ' ' + col_nullable + ' ' + col_default + ' ' + col_encoding
    FROM (
      SELECT n.nspname AS schemaname, c.relname AS tablename,
             100000000 + a.attnum AS seq,
             CASE WHEN a.attnum > 1 THEN ',' ELSE '' END AS col_delim,
             '"' + a.attname + '"' AS col_name,
             CASE WHEN STRPOS(UPPER(format_type(a.atttypid, a.atttypmod)), 'CHARACTER VARYING') > 0
                    THEN REPLACE(UPPER(format_type(a.atttypid, a.atttypmod)), 'CHARACTER VARYING', 'VARCHAR')
                  WHEN STRPOS(UPPER(format_type(a.atttypid, a.atttypmod)), 'CHARACTER') > 0
                    THEN REPLACE(UPPER(format_type(a.atttypid, a.atttypmod)), 'CHARACTER', 'CHAR')
                  ELSE UPPER(format_type(a.atttypid, a.atttypmod))
             END AS col_datatype,
             CASE WHEN format_encoding((a.attencodingtype)::integer) = 'none' THEN ''
                  ELSE 'ENCODE ' + format_encoding((a.attencodingtype)::integer)
             END AS col_encoding,
             CASE WHEN a.atthasdef IS TRUE THEN 'DEFAULT ' + adef.adsrc ELSE '' END AS col_default,
             CASE WHEN a.attnotnull IS TRUE THEN 'NOT NULL' ELSE '' END AS col_nullable
      FROM pg_namespace AS n
      INNER JOIN pg_class AS c ON n.oid = c.relnamespace
      INNER JOIN pg_attribute AS a ON c.oid = a.attrelid
      LEFT OUTER JOIN pg_attrdef AS adef ON a.attrelid = adef.adrelid AND a.attnum = adef.adnum
      WHERE c.relkind = 'r'
        AND a.attnum > 0
      ORDER BY a.attnum
    )
    --CONSTRAINT LIST
    UNION (SELECT n.nspname, c.relname, 200000000 + CAST(con.oid AS INT),
           '\t,' + pg_get_constraintdef(con.oid)
    FROM pg_constraint AS con
    INNER JOIN pg_class AS c ON c.relnamespace = con.connamespace AND c.oid = con.conrelid
    INNER JOIN pg_namespace AS n ON n.oid = c.relnamespace
    WHERE c.relkind = 'r' AND pg_get_constraintdef(con.oid) NOT LIKE 'FOREIGN KEY%'
    ORDER BY 3)
    --CLOSE PAREN COLUMN LIST
    UNION SELECT n.nspname, c.relname, 299999999, ')'
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    WHERE c.relkind = 'r'
    --BACKUP
    UNION SELECT n.nspname, c.relname, 300000000, 'BACKUP NO'
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    INNER JOIN (SELECT SPLIT_PART(key, '_', 5) id
                FROM pg_conf
                WHERE key LIKE 'pg_class_backup_%'
                  AND SPLIT_PART(key, '_', 4) = (SELECT oid FROM pg_database WHERE datname = current_database())) t
            ON t.id = c.oid
    WHERE c.relkind = 'r'
    --BACKUP WARNING
    UNION SELECT n.nspname, c.relname, 1,
           '--WARNING: This DDL inherited the BACKUP NO property from the source table'
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    INNER JOIN (SELECT SPLIT_PART(key, '_', 5) id
                FROM pg_conf
                WHERE key LIKE 'pg_class_backup_%'
                  AND SPLIT_PART(key, '_', 4) = (SELECT oid FROM pg_database WHERE datname = current_database())) t
            ON t.id = c.oid
    WHERE c.relkind = 'r'
    --DISTSTYLE
    UNION SELECT n.nspname, c.relname, 300000001,
           CASE WHEN c.reldiststyle = 0 THEN 'DISTSTYLE EVEN'
                WHEN c.reldiststyle = 1 THEN 'DISTSTYLE KEY'
                WHEN c.reldiststyle = 8 THEN 'DISTSTYLE ALL'
                ELSE '<<Error - UNKNOWN DISTSTYLE>>'
           END
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    WHERE c.relkind = 'r'
    --DISTKEY COLUMNS
    UNION SELECT n.nspname, c.relname, 400000000 + a.attnum,
           'DISTKEY ("' + a.attname + '")'
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    INNER JOIN pg_attribute AS a ON c.oid = a.attrelid
    WHERE c.relkind = 'r'
      AND a.attisdistkey IS TRUE
      AND a.attnum > 0
    --SORTKEY COLUMNS
    UNION SELECT schemaname, tablename, seq,
           CASE WHEN min_sort < 0 THEN 'INTERLEAVED SORTKEY (' ELSE 'SORTKEY (' END
    FROM (SELECT n.nspname AS schemaname, c.relname AS tablename, 499999999 AS seq,
                 min(attsortkeyord) min_sort
          FROM pg_namespace AS n
          INNER JOIN pg_class AS c ON n.oid = c.relnamespace
          INNER JOIN pg_attribute AS a ON c.oid = a.attrelid
          WHERE c.relkind = 'r'
            AND abs(a.attsortkeyord) > 0
            AND a.attnum > 0
          GROUP BY 1, 2, 3)
    UNION (SELECT n.nspname, c.relname, 500000000 + abs(a.attsortkeyord),
           CASE WHEN abs(a.attsortkeyord) = 1 THEN '\t"' + a.attname + '"'
                ELSE '\t, "' + a.attname + '"'
           END
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    INNER JOIN pg_attribute AS a ON c.oid = a.attrelid
    WHERE c.relkind = 'r'
      AND abs(a.attsortkeyord) > 0
      AND a.attnum > 0
    ORDER BY abs(a.attsortkeyord))
    UNION SELECT n.nspname, c.relname, 599999999, '\t)'
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    INNER JOIN pg_attribute AS a ON c.oid = a.attrelid
    WHERE c.relkind = 'r'
      AND abs(a.attsortkeyord) > 0
      AND a.attnum > 0
    --END SEMICOLON
    UNION SELECT n.nspname, c.relname, 600000000, ';'
    FROM pg_namespace AS n
    INNER JOIN pg_class AS c ON n.oid = c.relnamespace
    WHERE c.relkind = 'r'
  )
  UNION (
    SELECT 'zzzzzzzz' AS schemaname, 'zzzzzzzz' AS tablename,
           700000000 + CAST(con.oid AS INT) AS seq,
           'ALTER TABLE ' + n.nspname + '.' + c.relname + ' ADD ' + pg_get_constraintdef(con.oid)::VARCHAR(1024) + ';' AS ddl
    FROM pg_constraint AS con
    INNER JOIN pg_class AS c ON c.relnamespace = con.connamespace AND c.oid = con.conrelid
    INNER JOIN pg_namespace AS n ON n.oid = c.relnamespace
    WHERE c.relkind = 'r'
      AND pg_get_constraintdef(con.oid) LIKE 'FOREIGN KEY%'
    ORDER BY seq
  )
  ORDER BY schemaname, tablename, seq
)
`
