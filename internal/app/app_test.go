package app

import (
	"encoding/json"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/skillchat/internal/messages"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func loaded(t *testing.T, history ...skillchat.Message) Model {
	t.Helper()
	m := New(skillchat.NewClient("http://127.0.0.1:1"), Options{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, messages.ConversationLoadedMsg{
		Summary: skillchat.ConversationSummary{ID: "c1", Title: "Demo"},
		History: history,
	})
	return m
}

func text(role skillchat.Role, s string) skillchat.Message {
	return skillchat.Message{Role: role, Parts: []skillchat.Part{{Type: skillchat.PartText, Text: s}}, Done: true}
}

func TestConversationLoaded(t *testing.T) {
	var opened string
	m := New(skillchat.NewClient("http://127.0.0.1:1"), Options{OnConversation: func(id string) { opened = id }})
	assert.Equal(t, StateLoading, m.state)

	m, _ = update(t, m, messages.ConversationLoadedMsg{
		Summary: skillchat.ConversationSummary{ID: "c1", Title: "Demo"},
		History: []skillchat.Message{text(skillchat.RoleUser, "hi")},
	})
	assert.Equal(t, StateIdle, m.state)
	assert.Equal(t, "c1", m.conv.ID())
	assert.Equal(t, "c1", opened)
	assert.Len(t, m.chat.Messages(), 1)

	m, _ = update(t, m, messages.ConversationLoadedMsg{Err: errors.New("offline")})
	assert.Equal(t, StateError, m.state)
}

func TestEnterStartsTurn(t *testing.T) {
	m := loaded(t)
	m.input.SetValue("hello")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.Equal(t, StateStreaming, m.state)
	assert.Equal(t, 1, m.seq)
	assert.Empty(t, m.input.Value())

	msgs := m.conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text())

	// Enter is ignored while streaming.
	m.input.SetValue("again")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, m.conv.Messages(), 1)
}

func TestNumberSelectsCardAction(t *testing.T) {
	card := skillchat.ParseSkillResult(skillchat.SkillTicketBooking, "", json.RawMessage(
		`{"type":"event_confirmation","event":{"name":"Go Meetup"},"buttons":["Confirm","View Details"]}`), false)
	m := loaded(t,
		text(skillchat.RoleUser, "book tickets"),
		skillchat.Message{Role: skillchat.RoleAssistant, Parts: []skillchat.Part{{Type: skillchat.PartSkillResult, Skill: &card}}, Done: true},
	)

	m.input.SetValue("2")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	msgs := m.conv.Messages()
	assert.Equal(t, "View Details", msgs[len(msgs)-1].Text())
}

func TestSnapshotsOfOtherTurnsIgnored(t *testing.T) {
	m := loaded(t)
	m.input.SetValue("hello")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	reply := []skillchat.Message{text(skillchat.RoleUser, "hello"), text(skillchat.RoleAssistant, "Hi!")}

	m, _ = update(t, m, messages.SnapshotMsg{ConversationID: "c1", Seq: 0, Messages: reply})
	assert.Len(t, m.chat.Messages(), 1)
	m, _ = update(t, m, messages.SnapshotMsg{ConversationID: "other", Seq: 1, Messages: reply})
	assert.Len(t, m.chat.Messages(), 1)

	m, _ = update(t, m, messages.SnapshotMsg{ConversationID: "c1", Seq: 1, Messages: reply})
	assert.Len(t, m.chat.Messages(), 2)
}

func TestEscAbortsStream(t *testing.T) {
	m := loaded(t)
	m.input.SetValue("hello")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.cancel)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateIdle, m.state)
	assert.Nil(t, m.cancel)
	assert.False(t, m.spinner.IsActive())

	// The aborted turn's end is stale.
	m, _ = update(t, m, messages.StreamEndMsg{ConversationID: "c1", Seq: 1, Err: errors.New("late")})
	assert.Equal(t, StateIdle, m.state)
	assert.NoError(t, m.err)
}

func TestStreamEnd(t *testing.T) {
	m := loaded(t)
	m.input.SetValue("hello")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, cmd := update(t, m, messages.StreamEndMsg{ConversationID: "c1", Seq: 1, Err: errors.New("HTTP 500: boom")})
	assert.NotNil(t, cmd)
	assert.Equal(t, StateError, m.state)
	assert.Contains(t, m.View(), "HTTP 500: boom")

	// Input is usable again after an error.
	m.input.SetValue("retry")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateStreaming, m.state)
	assert.Equal(t, 2, m.seq)
}

func TestTokenUsage(t *testing.T) {
	m := loaded(t)
	usage := &skillchat.TokenUsage{
		TotalInputTokens:  1500,
		TotalOutputTokens: 20,
		TotalAPICalls:     2,
		Models:            []skillchat.ModelUsage{{Provider: "user_input", Model: "user", Calls: 2}},
	}

	m, _ = update(t, m, messages.TokenUsageMsg{ConversationID: "other", Usage: usage})
	assert.Nil(t, m.usage)

	m, _ = update(t, m, messages.TokenUsageMsg{ConversationID: "c1", Usage: usage})
	assert.Contains(t, m.View(), "1.5K in / 20 out")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	assert.True(t, m.showUsage)
	view := m.View()
	assert.Contains(t, view, "Token usage")
	assert.Contains(t, view, "User Messages")
}

func TestCtrlNStartsNewConversation(t *testing.T) {
	m := loaded(t, text(skillchat.RoleUser, "hi"))

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.NotNil(t, cmd)
	assert.Equal(t, StateLoading, m.state)
	assert.Empty(t, m.conv.ID())
	assert.True(t, m.chat.IsEmpty())
	assert.False(t, m.canSend())
}

func TestCtrlCQuitsWhenIdle(t *testing.T) {
	m := loaded(t)
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
