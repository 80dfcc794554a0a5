package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/williamcory/skillchat/internal/messages"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

const requestTimeout = 30 * time.Second

// submit sends text as the next user message and streams the reply.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	// A number answers the card above it.
	if sr := m.conv.LastActionable(); sr != nil {
		if v, ok := skillchat.ResolveAction(sr.Payload, text); ok {
			text = v
		}
	}

	m.input.Clear()
	m.input.Blur()
	m.err = nil

	m.conv.AddUserMessage(text)
	m.seq++
	seq := m.seq
	id := m.conv.ID()
	p := m.shared.GetProgram()

	turn := m.conv.BeginTurn(skillchat.OnUpdate(func(snapshot []skillchat.Message) {
		if p != nil {
			p.Send(messages.SnapshotMsg{ConversationID: id, Seq: seq, Messages: snapshot})
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateStreaming
	m.chat.SetMessages(m.conv.Messages(), true)

	return m, tea.Batch(m.spinner.Start(), m.streamTurn(ctx, turn, text, seq))
}

// streamTurn runs the turn to completion on the command goroutine.
func (m Model) streamTurn(ctx context.Context, turn *skillchat.Turn, text string, seq int) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		err := client.SendTurn(ctx, turn, text)
		return messages.StreamEndMsg{ConversationID: turn.ConversationID(), Seq: seq, Err: err}
	}
}

// abort stops the active stream, keeping what was received so far.
func (m *Model) abort() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.seq++
	m.state = StateIdle
	m.spinner.Stop()
	m.chat.SetMessages(m.conv.Messages(), false)
}

// loadConversation opens conversation id with its history, or creates a new
// conversation when id is empty or no longer exists.
func (m Model) loadConversation(id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if id != "" {
			history, err := client.ListMessages(ctx, id)
			if err == nil {
				return messages.ConversationLoadedMsg{
					Summary: skillchat.ConversationSummary{ID: id, Title: findTitle(ctx, client, id)},
					History: history,
				}
			}
			var se *skillchat.StatusError
			if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
				return messages.ConversationLoadedMsg{Err: err}
			}
		}

		summary, err := client.CreateConversation(ctx, "")
		if err != nil {
			return messages.ConversationLoadedMsg{Err: err}
		}
		return messages.ConversationLoadedMsg{Summary: *summary}
	}
}

func findTitle(ctx context.Context, client *skillchat.Client, id string) string {
	list, err := client.ListConversations(ctx)
	if err != nil {
		return ""
	}
	for _, c := range list {
		if c.ID == id {
			return c.Title
		}
	}
	return ""
}

// fetchUsage refreshes token usage for conversation id.
func (m Model) fetchUsage(id string) tea.Cmd {
	if id == "" {
		return nil
	}
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		usage, err := client.TokenUsage(ctx, id)
		return messages.TokenUsageMsg{ConversationID: id, Usage: usage, Err: err}
	}
}
