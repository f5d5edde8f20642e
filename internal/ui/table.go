package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// ColumnsFor sizes one column per title to fit the widest cell, plus padding.
func ColumnsFor(titles []string, rows [][]string) []TableColumn {
	cols := make([]TableColumn, len(titles))
	for i, title := range titles {
		cols[i] = TableColumn{Title: title, Width: lipgloss.Width(title)}
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(cols); i++ {
			if w := lipgloss.Width(row[i]); w > cols[i].Width {
				cols[i].Width = w
			}
		}
	}
	for i := range cols {
		cols[i].Width += 2
	}
	return cols
}

// NewTable creates an unfocused Bubbles table styled with the rig palette.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Nothing is ever selected in static output
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string for CLI output.
// Returns an empty string when there are no rows.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	return NewTable(columns, tableRows).View()
}
