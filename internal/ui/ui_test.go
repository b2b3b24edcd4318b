package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/FeatureWing/internal/ledger"
	"github.com/josephgoksu/FeatureWing/internal/oracle"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m confirmModel, msgs ...tea.KeyMsg) confirmModel {
	t.Helper()
	var model tea.Model = m
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	return model.(confirmModel)
}

func testCandidates() []workflow.Candidate {
	return []workflow.Candidate{
		{FeatureID: "UP-001", RelationshipType: oracle.RelDuplicate, Confidence: 0.93, Title: "Dash"},
		{FeatureID: "UP-002", RelationshipType: oracle.RelBuildsOn, Confidence: 0.82, Title: "Movement"},
		{FeatureID: "UP-003", RelationshipType: oracle.RelFixes, Confidence: 0.8, Title: "Stamina bug"},
	}
}

func TestConfirmModel_ApproveKeepsStorableRelations(t *testing.T) {
	m := press(t, newConfirmModel(workflow.ValidationSummary{Title: "Add dash"}, testCandidates()), keyRunes("y"))

	assert.True(t, m.done)
	assert.True(t, m.decision.Approved)
	assert.Equal(t, map[string]oracle.RelationshipType{
		"UP-002": oracle.RelBuildsOn,
		"UP-003": oracle.RelFixes,
	}, m.decision.ConfirmedRelationships)
}

func TestConfirmModel_ToggleRelation(t *testing.T) {
	m := press(t, newConfirmModel(workflow.ValidationSummary{}, testCandidates()),
		keyRunes("j"),
		tea.KeyMsg{Type: tea.KeySpace},
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	assert.True(t, m.decision.Approved)
	assert.Equal(t, map[string]oracle.RelationshipType{"UP-003": oracle.RelFixes}, m.decision.ConfirmedRelationships)
}

func TestConfirmModel_DuplicateCannotBeToggledOn(t *testing.T) {
	m := press(t, newConfirmModel(workflow.ValidationSummary{}, testCandidates()),
		tea.KeyMsg{Type: tea.KeySpace},
		keyRunes("y"),
	)
	_, ok := m.decision.ConfirmedRelationships["UP-001"]
	assert.False(t, ok)
}

func TestConfirmModel_RejectAndCancel(t *testing.T) {
	m := press(t, newConfirmModel(workflow.ValidationSummary{}, testCandidates()), keyRunes("n"))
	assert.True(t, m.done)
	assert.False(t, m.decision.Approved)
	assert.False(t, m.interrupted)

	m = press(t, newConfirmModel(workflow.ValidationSummary{}, testCandidates()), tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.interrupted)

	m = press(t, newConfirmModel(workflow.ValidationSummary{}, testCandidates()), tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.interrupted)
}

func TestConfirmModel_CursorBounds(t *testing.T) {
	m := press(t, newConfirmModel(workflow.ValidationSummary{}, testCandidates()),
		keyRunes("k"), keyRunes("j"), keyRunes("j"), keyRunes("j"), keyRunes("j"))
	assert.Equal(t, 2, m.cursor)
}

func TestConfirmModel_View(t *testing.T) {
	m := newConfirmModel(workflow.ValidationSummary{Title: "Add dash ability", Description: "Dash forward", Type: ledger.TypeNewFeature, Confidence: 0.9}, testCandidates())
	view := m.View()
	assert.Contains(t, view, "Add dash ability")
	assert.Contains(t, view, "UP-001")
	assert.Contains(t, view, "duplicate")
	assert.Contains(t, view, "[x]")
	assert.Contains(t, view, "93%")

	done := press(t, m, keyRunes("n"))
	assert.Empty(t, done.View())
}

func TestTextModel(t *testing.T) {
	var model tea.Model = newTextModel(TextPromptOptions{Title: "Project name", Default: "Untitled"})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Untitled", model.(textModel).value)

	model = newTextModel(TextPromptOptions{Title: "Key", Secret: true})
	model, _ = model.Update(keyRunes("sk-123"))
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "sk-123", model.(textModel).value)

	model, _ = newTextModel(TextPromptOptions{}).Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, model.(textModel).quit)
}

func TestSelectModel(t *testing.T) {
	var model tea.Model = selectModel{options: []Option{{ID: "openai", Name: "OpenAI"}, {ID: "ollama", Name: "Ollama"}}}
	model, _ = model.Update(keyRunes("j"))
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "ollama", model.(selectModel).selectedID)
	assert.Contains(t, selectModel{title: "Provider", options: []Option{{ID: "a", Name: "A", Description: "first"}}}.View(), "first")
}

func TestStyles(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI256)

	out := StyleSuccess.Render("Test")
	assert.Contains(t, out, "Test")
	assert.NotEqual(t, "Test", out, "Style should add ANSI codes when forced")

	assert.NotEqual(t, "x", Icon("x", StyleError))
	assert.Contains(t, StatusStyle(ledger.StatusValidated).Render("validated"), "validated")
	assert.Contains(t, RelationshipStyle(oracle.RelDuplicate).Render("duplicate"), "duplicate")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 0, "abc"},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.max), tt.in)
	}
}

func TestWrapText(t *testing.T) {
	got := WrapText("the quick brown fox jumps", 10)
	for _, line := range strings.Split(got, "\n") {
		assert.LessOrEqual(t, len(line), 10)
	}
	assert.Equal(t, "a\nb", WrapText("a\nb", 10))
	assert.Equal(t, "unchanged", WrapText("unchanged", 0))
}

func TestTable(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	tbl := &Table{
		Headers:  []string{"ID", "TITLE"},
		Rows:     [][]string{{"UP-001", "A very long title that exceeds"}, {"UP-002"}},
		MaxWidth: 10,
	}
	assert.Equal(t, []int{6, 10}, tbl.ColumnWidths())

	out := tbl.Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[2], "A very lo…")
	assert.Equal(t, "", (&Table{}).Render())
}

func TestTable_CellStyle(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	var seen []string
	tbl := &Table{
		Headers:  []string{"ID", "STATUS"},
		Rows:     [][]string{{"UP-001", "awaiting_implementation"}},
		MaxWidth: 8,
		CellStyle: func(col int, value string) lipgloss.Style {
			seen = append(seen, value)
			return lipgloss.NewStyle()
		},
	}
	out := tbl.Render()
	assert.Equal(t, []string{"UP-001", "awaiting_implementation"}, seen)
	assert.Contains(t, out, "awaitin…")
}

func TestPanels(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	out := RenderSuccessPanel("Initialized", "Ids: UP-001")
	assert.Contains(t, out, "Initialized")
	assert.Contains(t, out, "Ids: UP-001")
	assert.Contains(t, out, "╭")

	warn := panel("Cancelled", "after 1 retry", ColorWarning, 0)
	assert.Contains(t, warn, "Cancelled")
	assert.Contains(t, warn, "after 1 retry")
}

func TestSpinner_Restart(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "working")
	assert.False(t, s.Active())

	s.Start()
	s.Start()
	assert.True(t, s.Active())
	s.Stop()
	assert.False(t, s.Active())

	s.Start()
	assert.True(t, s.Active())
	s.Stop()
	s.Stop()
	assert.False(t, s.Active())
	assert.Contains(t, buf.String(), "\r\033[K")
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Awaiting Implementation", Humanize("awaiting_implementation"))
	assert.Equal(t, "New Feature", Humanize(string(ledger.TypeNewFeature)))
}

func TestRenderers(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	f := &ledger.Feature{
		ID: "UP-004", Type: ledger.TypeEnhancement, Status: ledger.StatusInReview,
		Title: "Wall jump", Description: "Jump off walls.", DateCreated: created,
		Relations: []ledger.Relation{{FeatureID: "UP-004", Type: ledger.RelationBuildsOn, TargetID: "UP-001"}},
		Documents: []ledger.Document{{FeatureID: "UP-004", Type: ledger.DocFeatureRequest, Content: "Jump off walls.", UpdatedAt: created}},
	}
	out := RenderFeature(f)
	assert.Contains(t, out, "UP-004")
	assert.Contains(t, out, "In Review")
	assert.Contains(t, out, "builds_on")
	assert.Contains(t, out, "Feature Request")

	table := RenderFeatureTable([]ledger.Feature{*f})
	assert.Contains(t, table, "2025-03-01")
	assert.Contains(t, RenderFeatureTable(nil), "No features found")

	stats := RenderStatistics(&ledger.Statistics{
		Total:    3,
		ByStatus: map[ledger.Status]int{ledger.StatusRequested: 2, ledger.StatusValidated: 1},
		ByType:   map[ledger.FeatureType]int{ledger.TypeBugFix: 3},
	})
	assert.Contains(t, stats, "Total features: 3")
	assert.Contains(t, stats, "Bug Fix")

	ok := RenderResult(&workflow.Result{
		Outcome: workflow.OutcomeSuccess, FeatureID: "UP-005", Confidence: 0.9,
		ConfirmedRelationships: map[string]oracle.RelationshipType{"UP-001": oracle.RelBuildsOn},
	})
	assert.Contains(t, ok, "UP-005")
	assert.Contains(t, ok, "builds_on UP-001")

	failed := RenderResult(&workflow.Result{Outcome: workflow.OutcomeFailure, ErrorMessage: "Validation failed after 3 retries", ValidationIssues: []string{"no acceptance criteria"}})
	assert.Contains(t, failed, "no acceptance criteria")

	cancelled := RenderResult(&workflow.Result{Outcome: workflow.OutcomeCancelled, ErrorMessage: "Feature request cancelled by user", RetryCount: 1})
	assert.Contains(t, cancelled, "after 1 retry")
}
