package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
)

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange/Yellow
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorCyan      = lipgloss.Color("87")
	ColorBlue      = lipgloss.Color("75")

	// Base Styles
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)

	// Cursor row in interactive lists
	StyleSelected = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
)

// Icon returns a styled icon string
func Icon(icon string, style lipgloss.Style) string {
	return style.Render(icon)
}

// StatusStyle colors a lifecycle status.
func StatusStyle(s ledger.Status) lipgloss.Style {
	switch s {
	case ledger.StatusValidated:
		return StyleSuccess
	case ledger.StatusSuperseded:
		return StyleSubtle
	case ledger.StatusAwaitingImplementation, ledger.StatusAwaitingValidation:
		return StyleWarning
	case ledger.StatusInReview:
		return lipgloss.NewStyle().Foreground(ColorCyan)
	default:
		return StyleText
	}
}

// RelationshipStyle colors a classifier verdict. Verdicts that block
// automatic storage stand out.
func RelationshipStyle(r oracle.RelationshipType) lipgloss.Style {
	switch r {
	case oracle.RelDuplicate, oracle.RelConflictsWith:
		return StyleError.Bold(true)
	case oracle.RelSupersedes:
		return StyleWarning
	case oracle.RelBuildsOn, oracle.RelFixes:
		return lipgloss.NewStyle().Foreground(ColorBlue)
	default:
		return StyleSubtle
	}
}
