package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestInputHistory(t *testing.T) {
	m := New(80)

	m.SetValue("first")
	m.Clear()
	m.SetValue("  second  ")
	m.Clear()
	assert.Empty(t, m.Value())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "second", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "first", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "first", m.Value(), "stops at the oldest entry")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "second", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Empty(t, m.Value())
}

func TestInputBlurIgnoresTyping(t *testing.T) {
	m := New(80)
	m.Blur()
	assert.False(t, m.IsFocused())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Empty(t, m.Value())

	m.Focus()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, "x", m.Value())
	assert.Contains(t, m.View(), "> ")
}

func TestInputBlurIgnoresHistory(t *testing.T) {
	m := New(80)
	m.SetValue("sent")
	m.Clear()

	m.Blur()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Empty(t, m.Value())
}
