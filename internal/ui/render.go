package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

var titleCaser = cases.Title(language.English)

// Humanize turns a snake_case identifier into title case:
// "awaiting_implementation" -> "Awaiting Implementation".
func Humanize(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

// RenderSummary renders what the approval gate shows about a request.
func RenderSummary(s workflow.ValidationSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Type:"), Humanize(string(s.Type)))
	fmt.Fprintf(&sb, "%s %.0f%%\n", StyleSubtle.Render("Confidence:"), s.Confidence*100)
	sb.WriteString(WrapText(s.Description, 72))
	for _, issue := range s.Issues {
		fmt.Fprintf(&sb, "\n%s %s", StyleWarning.Render("!"), issue)
	}
	for _, sug := range s.Suggestions {
		fmt.Fprintf(&sb, "\n%s %s", StyleSubtle.Render("-"), sug)
	}
	return panel(s.Title, sb.String(), ColorSecondary, 80)
}

// RenderResult renders a finished workflow run.
func RenderResult(res *workflow.Result) string {
	var sb strings.Builder
	switch res.Outcome {
	case workflow.OutcomeSuccess:
		fmt.Fprintf(&sb, "Recorded %s\n", StylePrimary.Render(res.FeatureID))
		fmt.Fprintf(&sb, "%s %.0f%%", StyleSubtle.Render("Confidence:"), res.Confidence*100)
		if len(res.ConfirmedRelationships) > 0 {
			ids := make([]string, 0, len(res.ConfirmedRelationships))
			for id := range res.ConfirmedRelationships {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(&sb, "\n  %s %s", RelationshipStyle(res.ConfirmedRelationships[id]).Render(string(res.ConfirmedRelationships[id])), id)
			}
		}
		if n := len(res.Suggestions); n > 0 {
			fmt.Fprintf(&sb, "\n%s", StyleSubtle.Render(fmt.Sprintf("%d suggestion(s) from review", n)))
		}
		return RenderSuccessPanel("Feature request stored", sb.String())

	case workflow.OutcomeCancelled:
		sb.WriteString(res.ErrorMessage)
		if res.RetryCount > 0 {
			fmt.Fprintf(&sb, "\n%s", StyleSubtle.Render(fmt.Sprintf("after %d retr%s", res.RetryCount, plural(res.RetryCount, "y", "ies"))))
		}
		return panel("Feature request cancelled", sb.String(), ColorWarning, 0)

	default:
		sb.WriteString(res.ErrorMessage)
		for _, issue := range res.ValidationIssues {
			fmt.Fprintf(&sb, "\n%s %s", StyleWarning.Render("!"), issue)
		}
		for _, sug := range res.Suggestions {
			fmt.Fprintf(&sb, "\n%s %s", StyleSubtle.Render("-"), sug)
		}
		return panel("Feature request failed", sb.String(), ColorError, 0)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// RenderFeatureTable renders features one per row.
func RenderFeatureTable(features []ledger.Feature) string {
	if len(features) == 0 {
		return StyleSubtle.Render("No features found.") + "\n"
	}
	t := &Table{
		Headers:   []string{"ID", "TYPE", "STATUS", "TITLE", "CREATED"},
		MaxWidth:  48,
		CellStyle: featureCellStyle,
	}
	for _, f := range features {
		t.Rows = append(t.Rows, []string{
			f.ID,
			string(f.Type),
			string(f.Status),
			f.Title,
			f.DateCreated.Format("2006-01-02"),
		})
	}
	return t.Render()
}

const featureStatusColumn = 2

func featureCellStyle(col int, value string) lipgloss.Style {
	if col == featureStatusColumn {
		return StatusStyle(ledger.Status(value))
	}
	return tableCellStyle
}

// RenderFeature renders one feature with its relations and documents.
func RenderFeature(f *ledger.Feature) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Type:  "), Humanize(string(f.Type)))
	fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Status:"), StatusStyle(f.Status).Render(Humanize(string(f.Status))))
	fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Created:"), f.DateCreated.Format("2006-01-02 15:04"))
	if f.DateImplemented != nil {
		fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Implemented:"), f.DateImplemented.Format("2006-01-02 15:04"))
	}
	if f.DateSuperseded != nil {
		fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Superseded:"), f.DateSuperseded.Format("2006-01-02 15:04"))
	}
	if f.CommitHash != "" {
		fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Commit:"), f.CommitHash)
	}
	if len(f.ChangedFiles) > 0 {
		fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Files:"), strings.Join(f.ChangedFiles, ", "))
	}
	if len(f.Keywords) > 0 {
		fmt.Fprintf(&sb, "%s %s\n", StyleSubtle.Render("Keywords:"), strings.Join(f.Keywords, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(WrapText(f.Description, 76))

	if len(f.Relations) > 0 || len(f.IncomingRelations) > 0 {
		sb.WriteString("\n\n" + StyleSectionTitle.Render("Relations"))
		for _, r := range f.Relations {
			fmt.Fprintf(&sb, "\n  %s %s", StyleText.Render(string(r.Type)), StylePrimary.Render(r.TargetID))
		}
		for _, r := range f.IncomingRelations {
			fmt.Fprintf(&sb, "\n  %s %s %s", StylePrimary.Render(r.FeatureID), StyleText.Render(string(r.Type)), StyleSubtle.Render("this"))
		}
	}
	if len(f.Documents) > 0 {
		sb.WriteString("\n\n" + StyleSectionTitle.Render("Documents"))
		for _, d := range f.Documents {
			fmt.Fprintf(&sb, "\n  %s %s", Humanize(string(d.Type)), StyleSubtle.Render(fmt.Sprintf("(%d chars, updated %s)", len([]rune(d.Content)), d.UpdatedAt.Format("2006-01-02"))))
		}
	}
	return panel(f.ID+"  "+f.Title, sb.String(), ColorSecondary, 84)
}

// RenderStatistics renders ledger counts by status and type.
func RenderStatistics(stats *ledger.Statistics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d\n", StyleTitle.Render("Total features:"), stats.Total)

	sb.WriteString("\n" + StyleSectionTitle.Render("By status") + "\n")
	for _, s := range ledger.Statuses {
		fmt.Fprintf(&sb, "  %-26s %d\n", StatusStyle(s).Render(Humanize(string(s))), stats.ByStatus[s])
	}
	sb.WriteString("\n" + StyleSectionTitle.Render("By type") + "\n")
	for _, t := range ledger.FeatureTypes {
		fmt.Fprintf(&sb, "  %-26s %d\n", Humanize(string(t)), stats.ByType[t])
	}
	return sb.String()
}
