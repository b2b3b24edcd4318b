package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows in a compact fixed-width format for terminals.
type Table struct {
	Headers []string
	Rows    [][]string
	// MaxWidth caps every column, in runes. 0 sizes columns to content.
	MaxWidth int
	// CellStyle, when set, picks the style of a body cell from its column
	// and untruncated value.
	CellStyle func(col int, value string) lipgloss.Style
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	tableCellStyle   = lipgloss.NewStyle().Foreground(ColorText)
	tableRuleStyle   = lipgloss.NewStyle().Foreground(ColorSecondary)
)

// ColumnWidths returns the rune width of each column.
func (t *Table) ColumnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = runeLen(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runeLen(row[i]))
		}
	}
	if t.MaxWidth > 0 {
		for i := range widths {
			widths[i] = min(widths[i], t.MaxWidth)
		}
	}
	return widths
}

// Render returns the header, a rule, and one line per row.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.ColumnWidths()

	var sb strings.Builder
	cells := make([]string, len(widths))
	for i, h := range t.Headers {
		cells[i] = tableHeaderStyle.Render(fit(h, widths[i]))
	}
	writeLine(&sb, cells, "  ")

	for i, w := range widths {
		cells[i] = tableRuleStyle.Render(strings.Repeat("─", w))
	}
	writeLine(&sb, cells, "──")

	for _, row := range t.Rows {
		for i := range widths {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			style := tableCellStyle
			if t.CellStyle != nil {
				style = t.CellStyle(i, val)
			}
			cells[i] = style.Render(fit(val, widths[i]))
		}
		writeLine(&sb, cells, "  ")
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, cells []string, sep string) {
	sb.WriteString(" " + strings.Join(cells, sep) + "\n")
}

// fit truncates s with an ellipsis or pads it to exactly width runes.
func fit(s string, width int) string {
	r := []rune(s)
	switch {
	case len(r) > width && width >= 2:
		return string(r[:width-1]) + "…"
	case len(r) > width:
		return "…"
	default:
		return s + strings.Repeat(" ", width-len(r))
	}
}

func runeLen(s string) int {
	return len([]rune(s))
}
