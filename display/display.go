// Package display holds the process-wide display configuration and
// renders materialized frames as box-drawn tables (show/head) or
// transposed summaries (glimpse), honoring a configurable
// max_columns/max_column_width/max_table_width and using go-runewidth so
// column widths line up for multi-byte/wide-rune cell values.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vincev/dply/plan"
)

// Config is the process-wide display configuration, mutated only by
// the config() pipeline function.
type Config struct {
	MaxColumns     int
	MaxColumnWidth int
	MaxTableWidth  int
}

// DefaultConfig returns the documented default display settings.
func DefaultConfig() Config {
	return Config{
		MaxColumns:     10,
		MaxColumnWidth: 25,
		MaxTableWidth:  120,
	}
}

// Show renders the full frame as a box-drawn table with a type row
// under the header.
func Show(w io.Writer, cfg Config, schema plan.Schema, rows []plan.Row) {
	render(w, cfg, schema, rows)
}

// Head renders the first n rows (default 6) in the same format as
// Show.
func Head(w io.Writer, cfg Config, schema plan.Schema, rows []plan.Row, n int) {
	if n <= 0 {
		n = 6
	}
	if n > len(rows) {
		n = len(rows)
	}
	render(w, cfg, schema, rows[:n])
}

// Glimpse renders one row per column: name, type, and a truncated
// comma-separated preview of values.
func Glimpse(w io.Writer, schema plan.Schema, rows []plan.Row) {
	fmt.Fprintf(w, "Rows: %d, Columns: %d\n", len(rows), len(schema))
	nameWidth := 0
	for _, f := range schema {
		if w := runewidth.StringWidth(f.Name); w > nameWidth {
			nameWidth = w
		}
	}
	for ci, f := range schema {
		var preview []string
		for ri := 0; ri < len(rows) && ri < 10; ri++ {
			preview = append(preview, rows[ri][ci].String())
		}
		line := strings.Join(preview, ", ")
		if len(line) > 60 {
			line = line[:60] + "..."
		}
		fmt.Fprintf(w, "$ %-*s <%s> %s\n", nameWidth, f.Name, f.Type, line)
	}
}

func render(w io.Writer, cfg Config, schema plan.Schema, rows []plan.Row) {
	cols := len(schema)
	truncatedCols := false
	if cfg.MaxColumns > 0 && cols > cfg.MaxColumns {
		cols = cfg.MaxColumns
		truncatedCols = true
	}

	headers := make([]string, cols)
	types := make([]string, cols)
	for i := 0; i < cols; i++ {
		headers[i] = clip(schema[i].Name, cfg.MaxColumnWidth)
		types[i] = schema[i].Type.String()
	}

	cells := make([][]string, len(rows))
	for ri, row := range rows {
		cells[ri] = make([]string, cols)
		for ci := 0; ci < cols; ci++ {
			cells[ri][ci] = clip(row[ci].String(), cfg.MaxColumnWidth)
		}
	}

	widths := make([]int, cols)
	for i := 0; i < cols; i++ {
		widths[i] = runewidth.StringWidth(headers[i])
		if w := runewidth.StringWidth(types[i]); w > widths[i] {
			widths[i] = w
		}
	}
	for _, row := range cells {
		for i, c := range row {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	if cfg.MaxTableWidth > 0 {
		shrinkToFit(widths, cfg.MaxTableWidth)
	}

	top, mid, bot := border(widths, '┌', '┬', '┐'), border(widths, '├', '┼', '┤'), border(widths, '└', '┴', '┘')

	fmt.Fprintln(w, top)
	fmt.Fprintln(w, dataRow(headers, widths))
	fmt.Fprintln(w, dataRow(types, widths))
	fmt.Fprintln(w, mid)
	for _, row := range cells {
		fmt.Fprintln(w, dataRow(row, widths))
	}
	fmt.Fprintln(w, bot)

	if truncatedCols {
		fmt.Fprintf(w, "(%d more columns)\n", len(schema)-cfg.MaxColumns)
	}
}

func clip(s string, maxWidth int) string {
	if maxWidth <= 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	out := runewidth.Truncate(s, maxWidth, "")
	if len(out) < len(s) && maxWidth > 3 {
		out = runewidth.Truncate(s, maxWidth-3, "") + "..."
	}
	return out
}

// shrinkToFit narrows the widest column by one, repeatedly, until the
// total table width (borders included) fits maxWidth, never shrinking
// a column below 3.
func shrinkToFit(widths []int, maxWidth int) {
	total := func() int {
		sum := 1
		for _, w := range widths {
			sum += w + 3
		}
		return sum
	}
	for total() > maxWidth {
		worst := -1
		for i, w := range widths {
			if w > 3 && (worst < 0 || w > widths[worst]) {
				worst = i
			}
		}
		if worst < 0 {
			break
		}
		widths[worst]--
	}
}

func border(widths []int, left, mid, right rune) string {
	var sb strings.Builder
	sb.WriteRune(left)
	for i, w := range widths {
		sb.WriteString(strings.Repeat("─", w+2))
		if i < len(widths)-1 {
			sb.WriteRune(mid)
		}
	}
	sb.WriteRune(right)
	return sb.String()
}

func dataRow(cells []string, widths []int) string {
	var sb strings.Builder
	sb.WriteRune('│')
	for i, c := range cells {
		sb.WriteByte(' ')
		sb.WriteString(c)
		pad := widths[i] - runewidth.StringWidth(c)
		if pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteByte(' ')
		sb.WriteRune('│')
	}
	return sb.String()
}
