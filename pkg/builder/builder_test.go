package builder

import (
	"testing"

	"github.com/HugKitten/KRelay/pkg/messages/client"
	"github.com/HugKitten/KRelay/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(Model)
}

func press(t *testing.T, m Model, key tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model), cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestBuildsEveryField(t *testing.T) {
	m := New("Create", &client.Create{})
	assert.Contains(t, m.View(), "ClassType")
	assert.Contains(t, m.View(), "<UInt16>")

	m = typeText(t, m, "782")
	m, cmd := press(t, m, tea.KeyEnter)
	assert.False(t, isQuit(cmd))
	assert.False(t, m.Done())
	assert.Contains(t, m.View(), "SkinType")

	m = typeText(t, m, "0")
	m, cmd = press(t, m, tea.KeyEnter)
	assert.True(t, isQuit(cmd))
	require.True(t, m.Done())
	assert.False(t, m.Cancelled())

	msg := m.Message().(*client.Create)
	assert.Equal(t, uint16(782), msg.ClassType)
	assert.Equal(t, uint16(0), msg.SkinType)
	assert.Contains(t, m.View(), "done")
}

func TestInvalidInputReprompts(t *testing.T) {
	m := New("Create", &client.Create{})

	m = typeText(t, m, "seventy")
	m, cmd := press(t, m, tea.KeyEnter)
	assert.False(t, isQuit(cmd))
	assert.False(t, m.Done())
	assert.Contains(t, m.View(), `"seventy" is not a valid UInt16`)
	assert.Contains(t, m.View(), "ClassType")

	// Out of range for the field's width
	m.input.SetValue("70000")
	m, _ = press(t, m, tea.KeyEnter)
	assert.Contains(t, m.View(), "is not a valid UInt16")

	m.input.SetValue("7")
	m, _ = press(t, m, tea.KeyEnter)
	assert.NotContains(t, m.View(), "is not a valid")
	assert.Equal(t, uint16(7), m.Message().(*client.Create).ClassType)
}

func TestEmptyStringIsAccepted(t *testing.T) {
	m := New("PlayerText", &client.PlayerText{})
	m, cmd := press(t, m, tea.KeyEnter)
	assert.True(t, isQuit(cmd))
	assert.True(t, m.Done())
	assert.Equal(t, "", m.Message().(*client.PlayerText).Text)
}

func TestListFields(t *testing.T) {
	m := New("Opaque", &protocol.Opaque{})
	assert.Contains(t, m.View(), "<Byte[]>")

	m.input.SetValue("1, 2, 300")
	m, _ = press(t, m, tea.KeyEnter)
	assert.False(t, m.Done())

	m.input.SetValue("1, 2, 3")
	m, _ = press(t, m, tea.KeyEnter)
	require.True(t, m.Done())
	assert.Equal(t, []byte{1, 2, 3}, m.Message().(*protocol.Opaque).Payload)
}

func TestCancel(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m := New("Create", &client.Create{})
		m, cmd := press(t, m, key)
		assert.True(t, isQuit(cmd))
		assert.True(t, m.Cancelled())
		assert.False(t, m.Done())
		assert.Contains(t, m.View(), "cancelled")
	}
}

type empty struct {
	protocol.Base
}

func (*empty) Decode(*protocol.Reader) error { return nil }
func (*empty) Encode(*protocol.Writer) error { return nil }
func (*empty) Fields() []protocol.Field     { return nil }

func TestNoFieldsIsDoneImmediately(t *testing.T) {
	m := New("Empty", &empty{})
	assert.True(t, m.Done())
	assert.True(t, isQuit(m.Init()))
}
