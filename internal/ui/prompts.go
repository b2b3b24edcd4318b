package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrPromptCancelled is returned when the user leaves a prompt with esc.
var ErrPromptCancelled = errors.New("prompt cancelled")

// TextPromptOptions configures PromptText.
type TextPromptOptions struct {
	Title       string
	Hint        string
	Placeholder string
	Default     string
	Secret      bool
}

// PromptText asks for a single line of input. An empty answer returns
// Default.
func PromptText(opts TextPromptOptions) (string, error) {
	final, err := tea.NewProgram(newTextModel(opts)).Run()
	if err != nil {
		return "", fmt.Errorf("run prompt: %w", err)
	}
	m := final.(textModel)
	if m.quit {
		return "", ErrPromptCancelled
	}
	return m.value, nil
}

type textModel struct {
	opts      TextPromptOptions
	textInput textinput.Model
	value     string
	quit      bool
}

func newTextModel(opts TextPromptOptions) textModel {
	ti := textinput.New()
	ti.Placeholder = opts.Placeholder
	if opts.Placeholder == "" {
		ti.Placeholder = opts.Default
	}
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50
	if opts.Secret {
		ti.EchoMode = textinput.EchoPassword
	}
	return textModel{opts: opts, textInput: ti}
}

func (m textModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m textModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEnter:
			m.value = strings.TrimSpace(m.textInput.Value())
			if m.value == "" {
				m.value = m.opts.Default
			}
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m textModel) View() string {
	s := "\n" + StyleTitle.Render(m.opts.Title) + "\n"
	if m.opts.Hint != "" {
		s += StyleSubtle.Render(m.opts.Hint) + "\n"
	}
	s += "\n" + m.textInput.View() + "\n\n"
	s += StyleSubtle.Render("enter confirm • esc cancel") + "\n"
	return s
}

// Option is one row of a single-choice prompt.
type Option struct {
	ID          string
	Name        string
	Description string
}

// PromptSelect asks the user to pick one option and returns its ID.
func PromptSelect(title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options to select from")
	}
	final, err := tea.NewProgram(selectModel{title: title, options: options}).Run()
	if err != nil {
		return "", fmt.Errorf("run selection: %w", err)
	}
	m := final.(selectModel)
	if m.quit {
		return "", ErrPromptCancelled
	}
	return m.selectedID, nil
}

type selectModel struct {
	title      string
	options    []Option
	cursor     int
	selectedID string
	quit       bool
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter":
			m.selectedID = m.options[m.cursor].ID
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	s := "\n" + StyleTitle.Render(m.title) + "\n\n"
	for i, opt := range m.options {
		cursor := "  "
		style := StyleText
		if m.cursor == i {
			cursor = StyleSelected.Render("> ")
			style = StyleSelected
		}
		s += cursor + style.Render(fmt.Sprintf("%-10s", opt.Name))
		if opt.Description != "" {
			s += StyleSubtle.Render(" " + opt.Description)
		}
		s += "\n"
	}
	s += "\n" + StyleSubtle.Render("↑/↓ navigate • enter select • esc cancel") + "\n"
	return s
}
