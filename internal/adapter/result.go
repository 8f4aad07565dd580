package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultKind distinguishes row sets from command status.
type ResultKind int

const (
	KindTabular ResultKind = iota
	KindStatus
)

// Command is the statement class reported for a status result.
type Command string

const (
	CommandInsert Command = "INSERT"
	CommandUpdate Command = "UPDATE"
	CommandDelete Command = "DELETE"
	CommandCreate Command = "CREATE"
	CommandOther  Command = "OTHER"
)

// ColumnMeta holds metadata about a result column.
type ColumnMeta struct {
	Name string
	Type string
}

// Result is the backend-independent outcome of one statement.
//
// Tabular results carry Columns, Rows and RowCount. Cells hold the value
// the driver produced: string for text, nil for NULL, no coercion.
// Status results carry Message, Command, Tag and RowsAffected.
type Result struct {
	Kind ResultKind

	Columns  []ColumnMeta
	Rows     [][]any
	RowCount int64

	Message      string
	Command      Command
	Tag          string
	RowsAffected int64
}

// TabularResult builds a row-set result.
func TabularResult(cols []ColumnMeta, rows [][]any) Result {
	if rows == nil {
		rows = [][]any{}
	}
	return Result{
		Kind:     KindTabular,
		Columns:  cols,
		Rows:     rows,
		RowCount: int64(len(rows)),
	}
}

// StatusResult builds a status result from a backend command tag such as
// "UPDATE 3", "INSERT 0 1" or "CREATE TABLE".
func StatusResult(tag string, rowsAffected int64) Result {
	tag = strings.TrimSpace(tag)
	cmd := ParseCommand(tag)
	return Result{
		Kind:         KindStatus,
		Command:      cmd,
		Tag:          tag,
		RowsAffected: rowsAffected,
		Message:      StatusMessage(cmd, tag, rowsAffected),
	}
}

// IsTabular reports whether r is a row set.
func (r Result) IsTabular() bool { return r.Kind == KindTabular }

// ParseCommand classifies a command tag by its first word.
func ParseCommand(tag string) Command {
	word, _, _ := strings.Cut(strings.TrimSpace(tag), " ")
	switch Command(strings.ToUpper(word)) {
	case CommandInsert:
		return CommandInsert
	case CommandUpdate:
		return CommandUpdate
	case CommandDelete:
		return CommandDelete
	case CommandCreate:
		return CommandCreate
	default:
		return CommandOther
	}
}

// StatusMessage renders the human readable line for a status result.
func StatusMessage(cmd Command, tag string, n int64) string {
	switch cmd {
	case CommandUpdate:
		return fmt.Sprintf("%d rows updated.", n)
	case CommandDelete:
		return fmt.Sprintf("%d rows deleted.", n)
	case CommandInsert:
		return fmt.Sprintf("%d rows inserted.", n)
	case CommandCreate:
		return "Create successful."
	}
	word := tag
	if word == "" {
		word = string(CommandOther)
	}
	b, err := json.Marshal(struct {
		Command  string `json:"command"`
		RowCount int64  `json:"rowCount"`
	}{word, n})
	if err != nil {
		return word
	}
	return string(b)
}
