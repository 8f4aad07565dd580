package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/theme"
)

const nullText = "NULL"

// renderResult writes one statement result.
func renderResult(w io.Writer, r adapter.Result) {
	if !r.IsTabular() {
		fmt.Fprintln(w, theme.Current.Status.Render(r.Message))
		return
	}
	headers := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		headers[i] = c.Name
	}
	rows := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		rows[i] = cells
	}
	fmt.Fprintln(w, renderGrid(headers, rows, nullCells(r.Rows)))
	fmt.Fprintln(w, theme.Current.Muted.Render(fmt.Sprintf("(%d %s)", r.RowCount, plural(r.RowCount, "row", "rows"))))
}

func renderTable(headers []string, rows [][]string) string {
	return renderGrid(headers, rows, nil)
}

// renderGrid draws a table, styling the cells flagged in null.
func renderGrid(headers []string, rows [][]string, null [][]bool) string {
	th := theme.Current
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(th.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.Header
			}
			if row >= 0 && row < len(null) && col < len(null[row]) && null[row][col] {
				return th.Null
			}
			return th.Cell
		})
	return t.Render()
}

// nullCells marks the SQL NULLs of rows.
func nullCells(rows [][]any) [][]bool {
	null := make([][]bool, len(rows))
	for i, row := range rows {
		null[i] = make([]bool, len(row))
		for j, v := range row {
			null[i][j] = v == nil
		}
	}
	return null
}

// formatCell renders a raw driver value for display.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return nullText
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
