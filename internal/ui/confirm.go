package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/josephgoksu/FeatureWing/internal/oracle"
	"github.com/josephgoksu/FeatureWing/internal/workflow"
)

type confirmKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Approve key.Binding
	Reject  key.Binding
	Quit    key.Binding
}

func (k confirmKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Approve, k.Reject, k.Quit}
}

func (k confirmKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Toggle}, {k.Approve, k.Reject, k.Quit}}
}

var confirmKeys = confirmKeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle:  key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle relation")),
	Approve: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y/enter", "approve")),
	Reject:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "reject")),
	Quit:    key.NewBinding(key.WithKeys("esc", "ctrl+c", "q"), key.WithHelp("esc", "cancel")),
}

// confirmModel shows the validation summary and candidates and collects the
// approval decision. Storable relationships start selected and can be
// toggled off; duplicate and conflicts_with verdicts are informational.
type confirmModel struct {
	summary    workflow.ValidationSummary
	candidates []workflow.Candidate
	selected   map[int]bool
	cursor     int
	keys       confirmKeyMap
	help       help.Model

	decision    workflow.Decision
	done        bool
	interrupted bool
}

func newConfirmModel(summary workflow.ValidationSummary, candidates []workflow.Candidate) confirmModel {
	selected := make(map[int]bool)
	for i, c := range candidates {
		if workflow.Storable(c.RelationshipType) {
			selected[i] = true
		}
	}
	return confirmModel{
		summary:    summary,
		candidates: candidates,
		selected:   selected,
		keys:       confirmKeys,
		help:       help.New(),
	}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.interrupted = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.candidates)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Toggle):
		if m.cursor < len(m.candidates) && workflow.Storable(m.candidates[m.cursor].RelationshipType) {
			m.selected[m.cursor] = !m.selected[m.cursor]
		}
	case key.Matches(keyMsg, m.keys.Approve):
		m.decision = workflow.Decision{Approved: true, ConfirmedRelationships: m.confirmed()}
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Reject):
		m.decision = workflow.Decision{Approved: false}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) confirmed() map[string]oracle.RelationshipType {
	out := make(map[string]oracle.RelationshipType)
	for i, c := range m.candidates {
		if !m.selected[i] {
			continue
		}
		if _, seen := out[c.FeatureID]; !seen {
			out[c.FeatureID] = c.RelationshipType
		}
	}
	return out
}

func (m confirmModel) View() string {
	if m.done || m.interrupted {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(RenderSummary(m.summary))
	sb.WriteString("\n\n")
	sb.WriteString(StyleSectionTitle.Render("Related features"))
	sb.WriteString("\n")

	for i, c := range m.candidates {
		cursor := "  "
		if i == m.cursor {
			cursor = StyleSelected.Render("> ")
		}
		box := "   "
		if workflow.Storable(c.RelationshipType) {
			box = "[ ]"
			if m.selected[i] {
				box = "[x]"
			}
		}
		fmt.Fprintf(&sb, "%s%s %s %s %s %s\n",
			cursor, box,
			StylePrimary.Render(c.FeatureID),
			RelationshipStyle(c.RelationshipType).Render(string(c.RelationshipType)),
			StyleSubtle.Render(fmt.Sprintf("(%.0f%%)", c.Confidence*100)),
			Truncate(c.Title, 50))
	}

	sb.WriteString("\n")
	sb.WriteString(StyleWarning.Render("Store this feature request?"))
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	sb.WriteString("\n")
	return sb.String()
}

// ConfirmGate is the interactive approval gate. It renders on Out and reads
// keys from In; nil uses the process terminal.
type ConfirmGate struct {
	In  io.Reader
	Out io.Writer
}

// Confirm implements workflow.ApprovalGate. Esc or ctrl+c returns
// workflow.ErrUserCancelled.
func (g ConfirmGate) Confirm(ctx context.Context, summary workflow.ValidationSummary, candidates []workflow.Candidate) (workflow.Decision, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if g.In != nil {
		opts = append(opts, tea.WithInput(g.In))
	}
	if g.Out != nil {
		opts = append(opts, tea.WithOutput(g.Out))
	}

	final, err := tea.NewProgram(newConfirmModel(summary, candidates), opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return workflow.Decision{}, ctxErr
		}
		if errors.Is(err, tea.ErrInterrupted) {
			return workflow.Decision{}, workflow.ErrUserCancelled
		}
		return workflow.Decision{}, fmt.Errorf("approval prompt: %w", err)
	}

	m := final.(confirmModel)
	if m.interrupted || !m.done {
		return workflow.Decision{}, workflow.ErrUserCancelled
	}
	return m.decision, nil
}
