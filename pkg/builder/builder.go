// Package builder is an interactive terminal form that fills in a message
// variant one field at a time.
package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HugKitten/KRelay/pkg/protocol"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrCancelled = errors.New("builder: cancelled")

// Model walks a message's field schema, prompting for each value. Bad input
// is reported and the same field is asked again.
type Model struct {
	name      string
	msg       protocol.Message
	fields    []protocol.Field
	index     int
	input     textinput.Model
	err       string
	done      bool
	cancelled bool
}

// New creates a form for msg, which is filled in place
func New(name string, msg protocol.Message) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 65535
	input.Focus()

	fields := msg.Fields()
	return Model{
		name:   name,
		msg:    msg,
		fields: fields,
		input:  input,
		done:   len(fields) == 0,
	}
}

func (m Model) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return textinput.Blink
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done || m.cancelled {
		return m, tea.Quit
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	field := m.fields[m.index]
	if err := protocol.ParseValue(field, m.input.Value()); err != nil {
		m.err = fmt.Sprintf("%s is not a valid %s", quote(m.input.Value()), protocol.KindOf(field))
		return m, nil
	}

	m.err = ""
	m.input.Reset()
	m.index++
	if m.index == len(m.fields) {
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func quote(s string) string {
	if s == "" {
		return "empty input"
	}
	return fmt.Sprintf("%q", s)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Building " + m.name))
	b.WriteString("\n\n")

	for i, f := range m.fields {
		if i >= m.index {
			break
		}
		b.WriteString(fmt.Sprintf("  %s %s = %s\n",
			FieldNameStyle.Render(f.Name),
			KindStyle.Render("<"+protocol.KindOf(f)+">"),
			ValueStyle.Render(protocol.FormatValue(f))))
	}

	if m.done {
		b.WriteString("\n" + ValueStyle.Render("  done") + "\n")
		return b.String()
	}
	if m.cancelled {
		b.WriteString("\n" + ErrorStyle.Render("  cancelled") + "\n")
		return b.String()
	}

	f := m.fields[m.index]
	b.WriteString(fmt.Sprintf("\n  %s %s\n  %s\n",
		FieldNameStyle.Render(f.Name),
		KindStyle.Render("<"+protocol.KindOf(f)+">"),
		m.input.View()))

	if m.err != "" {
		b.WriteString("  " + ErrorStyle.Render(m.err) + "\n")
	}

	b.WriteString(HelpStyle.Render(fmt.Sprintf("field %d/%d · enter to accept · lists are comma separated · esc to cancel", m.index+1, len(m.fields))))
	return b.String()
}

// Message returns the message being built
func (m Model) Message() protocol.Message { return m.msg }

// Done reports whether every field was filled in
func (m Model) Done() bool { return m.done }

// Cancelled reports whether the user gave up
func (m Model) Cancelled() bool { return m.cancelled }

// Run shows the form and returns the finished message
func Run(name string, msg protocol.Message, opts ...tea.ProgramOption) (protocol.Message, error) {
	final, err := tea.NewProgram(New(name, msg), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	m := final.(Model)
	if !m.Done() {
		return nil, ErrCancelled
	}
	return m.Message(), nil
}
