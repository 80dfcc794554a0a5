package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/williamcory/skillchat/internal/styles"
)

// Model is the message box under the chat. Enter is left to the parent to
// submit; shift+enter and ctrl+j break the line. Sent messages can be recalled
// with up and down.
type Model struct {
	textarea textarea.Model
	width    int
	history  []string
	histIdx  int // -1 while editing a fresh message
	focused  bool
}

// New returns a focused, empty box for a terminal width columns wide.
func New(width int) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask me anything..."
	ta.Focus()
	ta.CharLimit = 4096
	ta.SetWidth(boxWidth(width))
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetKeys("shift+enter", "ctrl+j")

	ta.FocusedStyle.Placeholder = ta.FocusedStyle.Placeholder.Foreground(styles.Muted)
	ta.BlurredStyle.Placeholder = ta.BlurredStyle.Placeholder.Foreground(styles.Muted)

	return Model{
		textarea: ta,
		width:    width,
		histIdx:  -1,
		focused:  true,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up":
			// A draft in progress keeps up for moving between its lines.
			if m.textarea.Value() == "" || m.histIdx >= 0 {
				if m.histIdx < len(m.history)-1 {
					m.histIdx++
					m.textarea.SetValue(m.history[len(m.history)-1-m.histIdx])
					m.textarea.CursorEnd()
				}
				return m, nil
			}
		case "down":
			if m.histIdx >= 0 {
				if m.histIdx > 0 {
					m.histIdx--
					m.textarea.SetValue(m.history[len(m.history)-1-m.histIdx])
					m.textarea.CursorEnd()
				} else {
					m.histIdx = -1
					m.textarea.SetValue("")
				}
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// View draws the box behind a "> " prompt.
func (m Model) View() string {
	prompt := styles.Prompt.Render("> ")
	return lipgloss.JoinHorizontal(lipgloss.Top, prompt, m.textarea.View())
}

// Value is the draft without surrounding whitespace, so a blank box reads "".
func (m Model) Value() string {
	return strings.TrimSpace(m.textarea.Value())
}

// Clear empties the box after a send and remembers the sent text for recall.
func (m *Model) Clear() {
	if value := m.Value(); value != "" {
		m.history = append(m.history, value)
	}
	m.textarea.Reset()
	m.histIdx = -1
}

// SetWidth refits the box after a terminal resize.
func (m *Model) SetWidth(width int) {
	m.width = width
	m.textarea.SetWidth(boxWidth(width))
}

// boxWidth leaves room for the prompt and the textarea's own padding.
func boxWidth(width int) int {
	return max(width-6, 10)
}

// Focus lets the box take keys again, e.g. once a reply has finished.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	return m.textarea.Focus()
}

// Blur makes the box ignore keys while the chat owns them.
func (m *Model) Blur() {
	m.focused = false
	m.textarea.Blur()
}

func (m Model) IsFocused() bool {
	return m.focused
}

// SetValue replaces the draft, as when a card choice is picked by number.
func (m *Model) SetValue(value string) {
	m.textarea.SetValue(value)
}
