package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
)

func TestSQLiteAdapter_Registration(t *testing.T) {
	for _, scheme := range []string{"sqlite", "sqlite3"} {
		a, ok := adapter.Registry[scheme]
		if !ok {
			t.Fatalf("scheme %q not found in registry", scheme)
		}
		if a.Name() != "sqlite" {
			t.Errorf("registry[%q].Name() = %q, want %q", scheme, a.Name(), "sqlite")
		}
		if a.DefaultPort() != 0 {
			t.Errorf("registry[%q].DefaultPort() = %d, want 0", scheme, a.DefaultPort())
		}
	}
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"absolute path", "sqlite:///var/data/app.db", "/var/data/app.db"},
		{"relative path", "sqlite://data.db", "data.db"},
		{"nested relative path", "sqlite://./rel/data.db", "./rel/data.db"},
		{"memory", "sqlite:///:memory:", ":memory:"},
		{"empty", "sqlite://", ":memory:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filePath(connspec.MustParse(tt.url)); got != tt.want {
				t.Errorf("filePath(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	if got := dsn(":memory:", ""); !strings.HasPrefix(got, "file::memory:?") || !strings.Contains(got, "foreign_keys(1)") {
		t.Errorf("dsn(:memory:) = %q", got)
	}
	if got := dsn("/tmp/a.db", "mode=ro"); !strings.HasPrefix(got, "file:/tmp/a.db?") || !strings.HasSuffix(got, "&mode=ro") {
		t.Errorf("dsn with params = %q", got)
	}
}

func TestTypeSize(t *testing.T) {
	tests := []struct {
		decl string
		want int64
	}{
		{"VARCHAR(40)", 40},
		{"decimal(10, 2)", 10},
		{"INTEGER", 0},
		{"TEXT()", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := typeSize(tt.decl); got != tt.want {
			t.Errorf("typeSize(%q) = %d, want %d", tt.decl, got, tt.want)
		}
	}
}

func TestExecute_Batch(t *testing.T) {
	m := openTemp(t)

	out := run(t, m, `
		CREATE TABLE items (a INTEGER, b TEXT);
		INSERT INTO items VALUES (1, 'x'), (2, NULL), (3, 'z');
		UPDATE items SET b = 'y';
		SELECT a, b FROM items WHERE a < 3 ORDER BY a;
		DELETE FROM items WHERE a = 3;
	`)
	if out.Kind != adapter.Success {
		t.Fatalf("outcome = %v: %v", out.Kind, out.Err)
	}
	if len(out.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(out.Results))
	}

	wantMsgs := map[int]string{
		0: "Create successful.",
		1: "3 rows inserted.",
		2: "3 rows updated.",
		4: "1 rows deleted.",
	}
	for i, want := range wantMsgs {
		if got := out.Results[i].Message; got != want {
			t.Errorf("result %d Message = %q, want %q", i, got, want)
		}
	}

	sel := out.Results[3]
	if !sel.IsTabular() || sel.RowCount != 2 {
		t.Fatalf("SELECT result = %+v", sel)
	}
	if sel.Columns[0].Name != "a" || sel.Columns[1].Name != "b" {
		t.Errorf("columns = %+v", sel.Columns)
	}
	if sel.Rows[0][0] != int64(1) || sel.Rows[1][1] != "y" {
		t.Errorf("rows = %v", sel.Rows)
	}
}

func TestExecute_BackslashLiteral(t *testing.T) {
	m := openTemp(t)

	out := run(t, m, `
		CREATE TABLE paths (p TEXT);
		INSERT INTO paths VALUES ('C:\');
		INSERT INTO paths VALUES ('x');
		SELECT count(*) AS n FROM paths;
	`)
	if out.Kind != adapter.Success {
		t.Fatalf("outcome = %v: %v", out.Kind, out.Err)
	}
	if len(out.Results) != 4 {
		t.Fatalf("got %d results, want one per statement", len(out.Results))
	}
	sel := out.Results[3]
	if !sel.IsTabular() || sel.Rows[0][0] != int64(2) {
		t.Errorf("count result = %+v", sel)
	}

	out = run(t, m, `SELECT p FROM paths WHERE p LIKE 'C%'`)
	if out.Kind != adapter.Success || out.Results[0].Rows[0][0] != `C:\` {
		t.Errorf("stored path = %+v", out)
	}
}

func TestExecute_WithClauseDML(t *testing.T) {
	m := openTemp(t)

	out := run(t, m, `
		CREATE TABLE p (n INTEGER);
		WITH x AS (SELECT 1 UNION ALL SELECT 2) INSERT INTO p SELECT * FROM x;
		WITH x AS (SELECT 1) UPDATE p SET n = n + 10;
		WITH x AS (SELECT n FROM p) SELECT count(*) FROM x;
	`)
	if out.Kind != adapter.Success {
		t.Fatalf("outcome = %v: %v", out.Kind, out.Err)
	}
	if len(out.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(out.Results))
	}
	if r := out.Results[1]; r.IsTabular() || r.Message != "2 rows inserted." {
		t.Errorf("WITH ... INSERT = %+v", r)
	}
	if r := out.Results[2]; r.IsTabular() || r.Message != "2 rows updated." {
		t.Errorf("WITH ... UPDATE = %+v", r)
	}
	if r := out.Results[3]; !r.IsTabular() || r.Rows[0][0] != int64(2) {
		t.Errorf("WITH ... SELECT = %+v", r)
	}
}

func TestExecute_QueryWithoutColumns(t *testing.T) {
	m := openTemp(t)

	out := run(t, m, "PRAGMA foreign_keys = ON")
	if out.Kind != adapter.Success || len(out.Results) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if r := out.Results[0]; r.IsTabular() || r.Tag != "PRAGMA" {
		t.Errorf("result = %+v, want a PRAGMA status", r)
	}
}

func TestExecute_NullAndEmpty(t *testing.T) {
	m := openTemp(t)

	out := run(t, m, "SELECT NULL AS n, '' AS e; CREATE TABLE empty (id INTEGER); SELECT * FROM empty")
	if out.Kind != adapter.Success {
		t.Fatalf("outcome = %v: %v", out.Kind, out.Err)
	}
	first := out.Results[0]
	if first.Rows[0][0] != nil || first.Rows[0][1] != "" {
		t.Errorf("row = %#v", first.Rows[0])
	}
	last := out.Results[2]
	if !last.IsTabular() || last.RowCount != 0 || last.Rows == nil {
		t.Errorf("empty SELECT = %+v", last)
	}
}

func TestExecute_Error(t *testing.T) {
	m := openTemp(t)

	out := run(t, m, "CREATE TABLE ok (id INTEGER); SELECT * FROM nowhere; CREATE TABLE never (id INTEGER)")
	if out.Kind != adapter.Failure {
		t.Fatalf("outcome = %v, want failure", out.Kind)
	}
	if out.Results != nil {
		t.Errorf("results on failure = %v", out.Results)
	}
	var qe *adapter.QueryError
	if !errors.As(out.Err, &qe) {
		t.Fatalf("error = %T %v", out.Err, out.Err)
	}
	if !strings.Contains(qe.Message, "no such table") || qe.Code == "" {
		t.Errorf("QueryError = %+v", qe)
	}

	// The batch stopped at the failing statement.
	tables := m.Tables(context.Background(), "main", "")
	if len(tables) != 1 || tables[0].Name != "ok" {
		t.Errorf("tables after failed batch = %+v", tables)
	}
}

func TestExecute_Cancel(t *testing.T) {
	m := openTemp(t)

	exec := m.Execute(context.Background(), "main",
		"WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c) SELECT count(*) FROM c")
	time.Sleep(100 * time.Millisecond)
	m.CancelExecution(exec.Token())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := exec.Wait(ctx)
	if err != nil {
		t.Fatalf("cancel did not stop the query: %v", err)
	}
	if out.Kind != adapter.Cancelled || !errors.Is(out.Err, adapter.ErrCancelled) {
		t.Fatalf("outcome = %v (%v), want cancelled", out.Kind, out.Err)
	}

	if out := run(t, m, "SELECT 1"); out.Kind != adapter.Success {
		t.Errorf("follow-up query = %v: %v", out.Kind, out.Err)
	}
}

func TestIntrospection(t *testing.T) {
	m := openTemp(t)
	ctx := context.Background()

	run(t, m, `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(40) NOT NULL, role TEXT DEFAULT 'member');
		CREATE VIEW admins AS SELECT * FROM users WHERE role = 'admin';
	`)

	if got := m.DatabaseNames(ctx); len(got) == 0 || got[0] != "main" {
		t.Errorf("DatabaseNames = %v", got)
	}
	if got := m.SchemaNames(ctx, "main"); len(got) != 1 || got[0] != "main" {
		t.Errorf("SchemaNames = %v", got)
	}
	if got := m.SchemaNames(ctx, "nope"); got == nil || len(got) != 0 {
		t.Errorf("SchemaNames(nope) = %v", got)
	}

	tables := m.Tables(ctx, "main", "")
	if len(tables) != 2 {
		t.Fatalf("Tables = %+v", tables)
	}
	if tables[0].Name != "users" || tables[0].Type != "Table" || tables[1].Name != "admins" || tables[1].Type != "View" {
		t.Errorf("Tables = %+v", tables)
	}

	cols := m.TableDetails(ctx, "main", []string{"main.users"})
	if len(cols) != 3 {
		t.Fatalf("TableDetails = %+v", cols)
	}
	name := cols[1]
	if name.Name != "name" || name.Size != 40 || name.Nullable || name.Table != "users" {
		t.Errorf("name column = %+v", name)
	}
	if cols[2].Default != "'member'" || !cols[2].Nullable {
		t.Errorf("role column = %+v", cols[2])
	}
	if bare := m.TableDetails(ctx, "", []string{"users"}); len(bare) != 3 {
		t.Errorf("bare TableDetails = %+v", bare)
	}

	out := run(t, m, m.CreateStatement("", "users"))
	if out.Kind != adapter.Success || out.Results[0].RowCount != 1 {
		t.Fatalf("CreateStatement query = %+v", out)
	}
	if ddl, _ := out.Results[0].Rows[0][0].(string); !strings.HasPrefix(ddl, "CREATE TABLE users") {
		t.Errorf("DDL = %q", ddl)
	}

	out = run(t, m, m.TableDescription("main", "users"))
	if out.Kind != adapter.Success || out.Results[0].RowCount != 3 {
		t.Errorf("TableDescription query = %+v", out)
	}
	out = run(t, m, m.TableQuery("main", "users"))
	if out.Kind != adapter.Success || !out.Results[0].IsTabular() {
		t.Errorf("TableQuery = %+v", out)
	}
}

func TestSQLGeneration(t *testing.T) {
	m := &manager{}
	if got := m.TableQuery("", `we"ird`); got != "SELECT *\nFROM \"we\"\"ird\"" {
		t.Errorf("TableQuery = %q", got)
	}
	if got := m.CreateStatement("", "o'k"); !strings.Contains(got, `"main".sqlite_master`) || !strings.Contains(got, "'o''k'") {
		t.Errorf("CreateStatement = %q", got)
	}
}

func TestManager_Destroyed(t *testing.T) {
	m := openTemp(t)
	if err := m.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := m.Destroy(); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}

	out := m.Execute(context.Background(), "main", "SELECT 1").Outcome()
	if out.Kind != adapter.Failure || !errors.Is(out.Err, adapter.ErrDestroyed) {
		t.Errorf("Execute after Destroy = %+v", out)
	}
	ctx := context.Background()
	if got := m.DatabaseNames(ctx); got == nil || len(got) != 0 {
		t.Errorf("DatabaseNames after Destroy = %v", got)
	}
	if got := m.Tables(ctx, "main", ""); got == nil || len(got) != 0 {
		t.Errorf("Tables after Destroy = %v", got)
	}
}

// openTemp opens a file-backed database under t.TempDir.
func openTemp(t *testing.T) adapter.Manager {
	t.Helper()
	spec := connspec.MustParse("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	m, err := (&sqliteAdapter{}).Open(context.Background(), spec, adapter.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Destroy() })
	if got := m.DefaultDatabase(); got != "main" {
		t.Fatalf("DefaultDatabase() = %q", got)
	}
	return m
}

func run(t *testing.T, m adapter.Manager, query string) adapter.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out, err := m.Execute(context.Background(), m.DefaultDatabase(), query).Wait(ctx)
	if err != nil {
		t.Fatalf("wait %q: %v", query, err)
	}
	return out
}
