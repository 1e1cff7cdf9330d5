// Package output renders command results as a table, JSON or YAML, and prints
// colored status messages.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table is a plain column-aligned table with a colored header.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a table with the given column headers.
func NewTable(headers []string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		widths:  widths,
	}
}

// AddRow appends a row. Cells beyond the header count are ignored.
func (t *Table) AddRow(row []string) {
	for i, cell := range row {
		if i < len(t.widths) && len(cell) > t.widths[i] {
			t.widths[i] = len(cell)
		}
	}
	t.rows = append(t.rows, row)
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	var b strings.Builder

	header := color.New(color.FgCyan, color.Bold)
	for i, h := range t.headers {
		header.Fprint(&b, pad(h, t.widths[i], i == len(t.headers)-1))
	}
	b.WriteString("\n")

	for i := range t.headers {
		b.WriteString(pad(strings.Repeat("-", t.widths[i]), t.widths[i], i == len(t.headers)-1))
	}
	b.WriteString("\n")

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(t.widths) {
				b.WriteString(pad(cell, t.widths[i], i == len(t.headers)-1 || i == len(row)-1))
			}
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// pad left-aligns s in a column of width w; the last column is not padded.
func pad(s string, w int, last bool) string {
	if last {
		return s
	}
	return fmt.Sprintf("%-*s  ", w, s)
}
