package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/williamcory/skillchat/internal/styles"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

// WelcomeText is shown while a conversation has no messages.
const WelcomeText = `Welcome to SkillChat.

Try "search for the latest Go release", "how do skillgraph docs work?"
or "book tickets". When a card offers numbered choices, type the number.`

// Model represents the chat component
type Model struct {
	viewport  viewport.Model
	messages  []skillchat.Message
	streaming bool
	width     int
	height    int
}

// New creates a new chat model
func New(width, height int) Model {
	vp := viewport.New(width, height)
	vp.SetContent("")
	return Model{
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// Init initializes the chat component
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the chat component
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "pgup":
			m.viewport.ViewUp()
			return m, nil
		case "pgdown":
			m.viewport.ViewDown()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the chat component
func (m Model) View() string {
	return m.viewport.View()
}

// SetMessages replaces the displayed messages with a snapshot.
// The slice is only read, never modified.
func (m *Model) SetMessages(msgs []skillchat.Message, streaming bool) {
	m.messages = msgs
	m.streaming = streaming
	m.updateContent()
}

// Messages returns the displayed snapshot.
func (m Model) Messages() []skillchat.Message {
	return m.messages
}

// AtBottom reports whether the newest content is in view.
func (m Model) AtBottom() bool {
	return m.viewport.AtBottom()
}

// IsEmpty reports whether there is nothing to show.
func (m Model) IsEmpty() bool {
	return len(m.messages) == 0
}

// SetSize updates the viewport dimensions
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.updateContent()
}

func (m *Model) updateContent() {
	if len(m.messages) == 0 {
		welcome := lipgloss.NewStyle().Foreground(styles.Muted).Padding(1, 2).Render(WelcomeText)
		m.viewport.SetContent(welcome)
		return
	}

	// Stay pinned to the bottom unless the user scrolled up.
	follow := m.viewport.AtBottom()

	blocks := make([]string, 0, len(m.messages))
	for i, msg := range m.messages {
		last := i == len(m.messages)-1
		blocks = append(blocks, RenderMessage(msg, m.width, m.streaming && last))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n\n"))

	if follow {
		m.viewport.GotoBottom()
	}
}
