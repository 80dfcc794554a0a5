package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/williamcory/skillchat/internal/components/spinner"
	"github.com/williamcory/skillchat/internal/messages"
)

// Update handles all application messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.state == StateStreaming {
				m.abort()
				return m, m.input.Focus()
			}
			return m, tea.Quit

		case "esc":
			if m.state == StateStreaming {
				m.abort()
				return m, m.input.Focus()
			}
			return m, nil

		case "enter":
			if m.canSend() && m.input.Value() != "" {
				return m.submit(m.input.Value())
			}
			return m, nil

		case "ctrl+n":
			if m.state == StateStreaming {
				m.abort()
			}
			m.state = StateLoading
			m.conv.Reset("", nil)
			m.chat.SetMessages(nil, false)
			m.usage = nil
			return m, m.loadConversation("")

		case "ctrl+u":
			m.showUsage = !m.showUsage
			m.layout()
			return m, nil
		}

	case messages.ConversationLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			m.state = StateError
			return m, nil
		}
		m.conv.Reset(msg.Summary.ID, msg.History)
		m.title = msg.Summary.Title
		m.state = StateIdle
		m.chat.SetMessages(m.conv.Messages(), false)
		if m.opts.OnConversation != nil {
			m.opts.OnConversation(msg.Summary.ID)
		}
		return m, tea.Batch(m.input.Focus(), m.fetchUsage(msg.Summary.ID))

	case messages.SnapshotMsg:
		if msg.Seq != m.seq || msg.ConversationID != m.conv.ID() {
			return m, nil
		}
		m.chat.SetMessages(msg.Messages, true)
		return m, nil

	case messages.StreamEndMsg:
		if msg.Seq != m.seq {
			return m, nil
		}
		m.cancel = nil
		m.spinner.Stop()
		m.state = StateIdle
		if msg.Err != nil {
			m.err = msg.Err
			m.state = StateError
		}
		m.chat.SetMessages(m.conv.Messages(), false)
		return m, tea.Batch(m.input.Focus(), m.fetchUsage(msg.ConversationID))

	case messages.TokenUsageMsg:
		if msg.Err == nil && msg.ConversationID == m.conv.ID() {
			m.usage = msg.Usage
			m.layout()
		}
		return m, nil
	}

	if m.state == StateStreaming {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	if _, tick := msg.(spinner.TickMsg); tick {
		return m, tea.Batch(cmds...)
	}

	if m.canSend() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Always allow chat scrolling
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// canSend reports whether the input accepts a new message.
func (m Model) canSend() bool {
	return (m.state == StateIdle || m.state == StateError) && m.conv.ID() != ""
}

// layout sizes the chat view to the space left by the other sections.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	// header (1), input (3), status bar (1), gaps (2)
	chatHeight := m.height - 7
	if m.showUsage {
		chatHeight -= usageHeight(m.usage)
	}
	if chatHeight < 5 {
		chatHeight = 5
	}
	m.chat.SetSize(m.width, chatHeight)
	m.input.SetWidth(m.width)
}
