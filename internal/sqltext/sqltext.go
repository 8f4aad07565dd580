// Package sqltext holds dialect-light helpers for SQL source text:
// statement splitting, classification, quoting and row limits.
package sqltext

import (
	"strconv"
	"strings"
	"unicode"
)

// Dialect selects the lexical rules used to find where literals end.
type Dialect int

const (
	// Standard is Postgres, Redshift, SQLite and DuckDB: a backslash is an
	// ordinary character inside '...' except in Postgres E'...' strings.
	Standard Dialect = iota
	// MySQL treats a backslash inside '...' and "..." as an escape and
	// has no dollar-quoted strings.
	MySQL
)

// DialectFor returns the dialect of the named adapter.
func DialectFor(adapterName string) Dialect {
	if adapterName == "mysql" {
		return MySQL
	}
	return Standard
}

// scan walks sql and calls visit for every byte that is outside quotes and
// comments. visit returns false to stop.
func (d Dialect) scan(sql string, visit func(i int) bool) {
	n := len(sql)
	for i := 0; i < n; i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c, d.backslashEscapes(sql, i, c))
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return
			}
			i += 2 + end + 1
		case c == '$' && d != MySQL:
			if j, ok := skipDollar(sql, i); ok {
				i = j
				continue
			}
			if !visit(i) {
				return
			}
		default:
			if !visit(i) {
				return
			}
		}
	}
}

// backslashEscapes reports whether a backslash escapes the next byte in
// the literal opened by the quote q at sql[start].
func (d Dialect) backslashEscapes(sql string, start int, q byte) bool {
	if d == MySQL {
		return q != '`'
	}
	if q != '\'' || start == 0 {
		return false
	}
	if p := sql[start-1]; p != 'E' && p != 'e' {
		return false
	}
	return start < 2 || !isIdentByte(sql[start-2])
}

// skipQuoted returns the index of the closing quote. A doubled quote is
// an escaped quote.
func skipQuoted(sql string, start int, q byte, backslash bool) int {
	for i := start + 1; i < len(sql); i++ {
		if backslash && sql[i] == '\\' && i+1 < len(sql) {
			i++
			continue
		}
		if sql[i] == q {
			if i+1 < len(sql) && sql[i+1] == q {
				i++
				continue
			}
			return i
		}
	}
	return len(sql)
}

// skipDollar handles Postgres $tag$ ... $tag$ strings.
func skipDollar(sql string, start int) (int, bool) {
	end := strings.IndexByte(sql[start+1:], '$')
	if end < 0 {
		return start, false
	}
	tag := sql[start : start+1+end+1]
	for _, r := range tag[1 : len(tag)-1] {
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return start, false
		}
	}
	if len(tag) > 2 && unicode.IsDigit(rune(tag[1])) {
		return start, false // positional parameter like $1
	}
	body := start + len(tag)
	end = strings.Index(sql[body:], tag)
	if end < 0 {
		return len(sql), true
	}
	return body + end + len(tag) - 1, true
}

// Split breaks a batch into statements on top-level semicolons using the
// Standard dialect.
func Split(sql string) []string { return Standard.Split(sql) }

// Split breaks a batch into statements on top-level semicolons. Empty and
// comment-only statements are dropped.
func (d Dialect) Split(sql string) []string {
	var out []string
	last := 0
	d.scan(sql, func(i int) bool {
		if sql[i] == ';' {
			out = appendStmt(out, sql[last:i])
			last = i + 1
		}
		return true
	})
	return appendStmt(out, sql[last:])
}

func appendStmt(out []string, stmt string) []string {
	stmt = strings.TrimSpace(stmt)
	if StripLeadingComments(stmt) == "" {
		return out
	}
	return append(out, stmt)
}

// StripLeadingComments removes leading whitespace and -- or /* */ comments.
func StripLeadingComments(query string) string {
	q := strings.TrimSpace(query)
	for {
		if strings.HasPrefix(q, "--") {
			if idx := strings.Index(q, "\n"); idx >= 0 {
				q = strings.TrimSpace(q[idx+1:])
				continue
			}
			return ""
		}
		if strings.HasPrefix(q, "/*") {
			if idx := strings.Index(q, "*/"); idx >= 0 {
				q = strings.TrimSpace(q[idx+2:])
				continue
			}
			return ""
		}
		return q
	}
}

// Keywords returns up to n leading words of the statement, uppercased.
func Keywords(query string, n int) []string {
	q := StripLeadingComments(query)
	words := strings.FieldsFunc(q, func(r rune) bool {
		return unicode.IsSpace(r) || r == '(' || r == ';'
	})
	if len(words) > n {
		words = words[:n]
	}
	for i, w := range words {
		words[i] = strings.ToUpper(w)
	}
	return words
}

// FirstKeyword is the uppercased leading word, or "".
func FirstKeyword(query string) string {
	kw := Keywords(query, 1)
	if len(kw) == 0 {
		return ""
	}
	return kw[0]
}

// CommandTag synthesizes a command tag for drivers that do not report
// one: "UPDATE", "CREATE TABLE", "DROP VIEW".
func CommandTag(query string) string { return Standard.CommandTag(query) }

// CommandTag synthesizes a command tag for drivers that do not report
// one. A WITH clause is tagged by the statement it introduces.
func (d Dialect) CommandTag(query string) string {
	kw := Keywords(query, 2)
	if len(kw) == 0 {
		return ""
	}
	switch kw[0] {
	case "CREATE", "DROP", "ALTER", "TRUNCATE":
		if len(kw) == 2 {
			return kw[0] + " " + kw[1]
		}
	case "WITH":
		return d.MainVerb(query)
	}
	return kw[0]
}

// MainVerb returns the statement's uppercased leading keyword. For a
// statement opening with WITH it is the first top-level SELECT, INSERT,
// UPDATE, DELETE, MERGE, VALUES or TABLE after the common table
// expressions, or "WITH" when none is found.
func (d Dialect) MainVerb(query string) string {
	first := FirstKeyword(query)
	if first != "WITH" {
		return first
	}
	q := StripLeadingComments(query)
	verb, depth := first, 0
	d.scan(q, func(i int) bool {
		switch c := q[i]; {
		case c == '(':
			depth++
		case c == ')':
			depth--
		case depth == 0 && isWordStart(c) && (i == 0 || !isIdentByte(q[i-1])):
			j := i
			for j < len(q) && isIdentByte(q[j]) {
				j++
			}
			switch w := strings.ToUpper(q[i:j]); w {
			case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE", "VALUES", "TABLE":
				verb = w
				return false
			}
		}
		return true
	})
	return verb
}

// ReturnsRows determines if a query is a SELECT-like statement.
func ReturnsRows(query string) bool { return Standard.ReturnsRows(query) }

// ReturnsRows determines if a query is a SELECT-like statement. DML
// behind a WITH clause returns rows only with RETURNING.
func (d Dialect) ReturnsRows(query string) bool {
	switch d.MainVerb(query) {
	case "SELECT", "WITH", "VALUES", "TABLE", "SHOW", "EXPLAIN",
		"PRAGMA", "DESCRIBE", "DESC", "SUMMARIZE":
		return true
	}
	return d.hasKeyword(query, "RETURNING")
}

// hasKeyword reports whether word appears as a top-level token.
func (d Dialect) hasKeyword(query, word string) bool {
	found := false
	d.scan(query, func(i int) bool {
		j := i + len(word)
		if j > len(query) || !strings.EqualFold(query[i:j], word) {
			return true
		}
		if i > 0 && isIdentByte(query[i-1]) {
			return true
		}
		if j < len(query) && isIdentByte(query[j]) {
			return true
		}
		found = true
		return false
	})
	return found
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c == '$' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// ApplyLimit is Standard.ApplyLimit.
func ApplyLimit(query string, limit int) string { return Standard.ApplyLimit(query, limit) }

// ApplyLimit appends LIMIT n to a single SELECT, VALUES or TABLE
// statement, WITH clauses included, that has no LIMIT of its own.
// Anything else is returned unchanged.
func (d Dialect) ApplyLimit(query string, limit int) string {
	if limit <= 0 {
		return query
	}
	stmts := d.Split(query)
	if len(stmts) != 1 {
		return query
	}
	stmt := stmts[0]
	switch d.MainVerb(stmt) {
	case "SELECT", "VALUES", "TABLE":
	default:
		return query
	}
	if d.hasKeyword(stmt, "LIMIT") || d.hasKeyword(stmt, "FETCH") || d.hasKeyword(stmt, "INTO") {
		return query
	}
	return stmt + "\nLIMIT " + strconv.Itoa(limit)
}

// QuoteIdent quotes an identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdentMySQL quotes an identifier with backticks.
func QuoteIdentMySQL(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteLiteral quotes s as a standard SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteLiteralMySQL also escapes backslashes, which MySQL treats as an
// escape character inside literals by default.
func QuoteLiteralMySQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteLiterals renders values as a parenthesized IN list.
func QuoteLiterals(values []string, quote func(string) string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quote(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// SplitQualified splits "schema.table" into its parts. Unqualified names
// return an empty schema.
func SplitQualified(name string) (schemaName, table string) {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
