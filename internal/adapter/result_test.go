package adapter

import "testing"

func TestStatusResult(t *testing.T) {
	tests := []struct {
		tag     string
		n       int64
		cmd     Command
		message string
	}{
		{"UPDATE 3", 3, CommandUpdate, "3 rows updated."},
		{"DELETE 0", 0, CommandDelete, "0 rows deleted."},
		{"INSERT 0 2", 2, CommandInsert, "2 rows inserted."},
		{"insert", 1, CommandInsert, "1 rows inserted."},
		{"CREATE TABLE", 0, CommandCreate, "Create successful."},
		{"DROP TABLE", 0, CommandOther, `{"command":"DROP TABLE","rowCount":0}`},
		{"TRUNCATE TABLE", 0, CommandOther, `{"command":"TRUNCATE TABLE","rowCount":0}`},
		{"", 0, CommandOther, `{"command":"OTHER","rowCount":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			r := StatusResult(tt.tag, tt.n)
			if r.Kind != KindStatus || r.IsTabular() {
				t.Fatal("expected a status result")
			}
			if r.Command != tt.cmd {
				t.Errorf("Command = %q, want %q", r.Command, tt.cmd)
			}
			if r.Message != tt.message {
				t.Errorf("Message = %q, want %q", r.Message, tt.message)
			}
			if r.RowsAffected != tt.n {
				t.Errorf("RowsAffected = %d, want %d", r.RowsAffected, tt.n)
			}
		})
	}
}

func TestTabularResult(t *testing.T) {
	cols := []ColumnMeta{{Name: "a", Type: "int4"}, {Name: "b", Type: "text"}}
	rows := [][]any{{"1", "x"}, {"2", nil}}

	r := TabularResult(cols, rows)
	if !r.IsTabular() {
		t.Fatal("expected tabular")
	}
	if r.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", r.RowCount)
	}
	if r.Columns[0].Name != "a" || r.Columns[1].Name != "b" {
		t.Errorf("column order not preserved: %+v", r.Columns)
	}
	if r.Rows[1][1] != nil {
		t.Errorf("NULL cell = %v, want nil", r.Rows[1][1])
	}

	empty := TabularResult(cols, nil)
	if empty.Rows == nil || empty.RowCount != 0 {
		t.Errorf("empty result = %+v", empty)
	}
}
