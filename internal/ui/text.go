package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// TruncateSimple performs simple end truncation with "..." suffix.
// UTF-8 safe.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// FormatPoints prints a point value with at most two decimals and no
// trailing zeros.
func FormatPoints(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// PadRight pads s with spaces to width visible columns. ANSI escapes do not
// count toward the width.
func PadRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// Table is a plain column-aligned table. Cells may carry color.
type Table struct {
	Headers []string
	Rows    [][]string
	// MaxWidth truncates cells wider than this. Zero means no limit.
	MaxWidth int
}

// AddRow appends one row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render lays the table out with two spaces between columns. Headers are
// rendered muted and upper-cased.
func (t *Table) Render() string {
	cols := len(t.Headers)
	for _, r := range t.Rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return ""
	}

	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		if t.MaxWidth > 0 && lipgloss.Width(row[i]) > t.MaxWidth {
			return TruncateSimple(row[i], t.MaxWidth)
		}
		return row[i]
	}

	widths := make([]int, cols)
	headers := make([]string, cols)
	for i := range cols {
		headers[i] = strings.ToUpper(cell(t.Headers, i))
		widths[i] = lipgloss.Width(headers[i])
	}
	for _, r := range t.Rows {
		for i := range cols {
			widths[i] = max(widths[i], lipgloss.Width(cell(r, i)))
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(string) string) {
		for i := range cols {
			c := cells[i]
			if style != nil {
				c = style(c)
			}
			if i == cols-1 {
				b.WriteString(c)
			} else {
				b.WriteString(PadRight(c, widths[i]+2))
			}
		}
		b.WriteString("\n")
	}
	if len(t.Headers) > 0 {
		writeRow(headers, func(s string) string { return Paint(ToneMuted, s) })
	}
	for _, r := range t.Rows {
		cells := make([]string, cols)
		for i := range cols {
			cells[i] = cell(r, i)
		}
		writeRow(cells, nil)
	}
	return b.String()
}
