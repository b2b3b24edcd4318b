package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// IsInteractive reports whether both stdin and stdout are terminals, so a
// prompt can be shown and answered.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

var pageTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorPrimary).
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorSecondary).
	MarginBottom(1)

// RenderPageHeader writes the project banner used by status.
func RenderPageHeader(w io.Writer, title, subtitle string) {
	_, _ = fmt.Fprintln(w, pageTitleStyle.Render(title))
	if subtitle != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", StyleSubtle.Render(subtitle))
	}
}

// panel boxes body under a bold title. width 0 sizes the box to its content.
func panel(title, body string, border lipgloss.Color, width int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
	if width > 0 {
		style = style.Width(width)
	}
	if title != "" {
		body = StyleTitle.Render(title) + "\n" + body
	}
	return style.Render(body)
}

// RenderSuccessPanel boxes a completed action in the success color.
func RenderSuccessPanel(title, body string) string {
	return panel(title, body, ColorSuccess, 0)
}

// Truncate shortens s to maxLen runes, adding an ellipsis if needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// WrapText wraps each line of text at word boundaries to width runes.
// Words longer than width are left whole.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if runeLen(line) <= width {
			continue
		}
		var wrapped []string
		current := ""
		for _, word := range strings.Fields(line) {
			switch {
			case current == "":
				current = word
			case runeLen(current)+1+runeLen(word) <= width:
				current += " " + word
			default:
				wrapped = append(wrapped, current)
				current = word
			}
		}
		lines[i] = strings.Join(append(wrapped, current), "\n")
	}
	return strings.Join(lines, "\n")
}
