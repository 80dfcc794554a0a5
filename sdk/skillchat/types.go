package skillchat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType discriminates message parts.
type PartType string

const (
	PartText        PartType = "text"
	PartSkillResult PartType = "skill-result"
)

// Part is one piece of a message. Use Type to determine which fields are set.
type Part struct {
	Type PartType `json:"type"`

	// Text part fields
	Text string `json:"text,omitempty"`
	// Thinking marks a text part that holds a thinking annotation rather than reply text.
	Thinking bool `json:"thinking,omitempty"`

	// Skill result fields
	Skill *SkillResult `json:"skill,omitempty"`
}

// IsText returns true if this is a reply text part.
func (p Part) IsText() bool {
	return p.Type == PartText && !p.Thinking
}

// IsThinking returns true if this is a thinking annotation.
func (p Part) IsThinking() bool {
	return p.Type == PartText && p.Thinking
}

// IsSkillResult returns true if this is a skill result part.
func (p Part) IsSkillResult() bool {
	return p.Type == PartSkillResult && p.Skill != nil
}

// Message is a unit of conversation as held by the client.
//
// Message values handed out by Conversation.Messages are snapshots and must be
// treated as read-only.
type Message struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Parts         []Part    `json:"parts"`
	MessageNumber *int      `json:"message_number,omitempty"`
	Thinking      bool      `json:"thinking,omitempty"`
	Done          bool      `json:"done,omitempty"`
	Error         bool      `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsAssistant returns true if the message was produced by the assistant.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// Text returns the reply text of the message, ignoring thinking annotations.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.IsText() {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// SkillResult returns the first skill result part, or nil.
func (m Message) SkillResult() *SkillResult {
	for _, p := range m.Parts {
		if p.IsSkillResult() {
			return p.Skill
		}
	}
	return nil
}

// clone copies the message with its own parts slice so it can be modified
// without touching a published snapshot.
func (m Message) clone() Message {
	out := m
	out.Parts = append([]Part(nil), m.Parts...)
	if m.MessageNumber != nil {
		n := *m.MessageNumber
		out.MessageNumber = &n
	}
	return out
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

// =============================================================================
// REST payloads
// =============================================================================

// User is the authenticated account returned by /auth/me.
type User struct {
	Email string `json:"email"`
}

// ConversationSummary is an entry of the conversation list.
type ConversationSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
}

// CreateConversationRequest is the body of POST /conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest is the body of the streaming endpoint.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// skillWire is the wire shape of a skill result, shared by stream events and history metadata.
type skillWire struct {
	SkillName  string          `json:"skill_name"`
	RenderType string          `json:"render_type,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
}

// HistoryMetadata is the extra_metadata object attached to stored messages.
type HistoryMetadata struct {
	Type string `json:"type,omitempty"`
	skillWire
	// SkillResults is the older array form; only the first entry is used.
	SkillResults []skillWire `json:"skill_results,omitempty"`
}

// HistoryMessage is a stored message as returned by GET /conversations/{id}/messages.
type HistoryMessage struct {
	ID            string           `json:"id"`
	Role          Role             `json:"role"`
	Content       string           `json:"content"`
	CreatedAt     string           `json:"created_at"`
	ExtraMetadata *HistoryMetadata `json:"extra_metadata,omitempty"`
}

// ToMessage converts a stored message into the client message model.
func (h HistoryMessage) ToMessage() Message {
	msg := Message{
		ID:        h.ID,
		Role:      h.Role,
		Done:      true,
		CreatedAt: parseTimestamp(h.CreatedAt),
	}
	if h.Content != "" {
		msg.Parts = append(msg.Parts, Part{Type: PartText, Text: h.Content})
	}

	if md := h.ExtraMetadata; md != nil {
		var w *skillWire
		switch {
		case md.Type == "skill_result":
			w = &md.skillWire
		case len(md.SkillResults) > 0:
			w = &md.SkillResults[0]
		}
		if w != nil {
			sr := ParseSkillResult(w.SkillName, w.RenderType, w.Data, w.Cached)
			msg.Parts = append(msg.Parts, Part{Type: PartSkillResult, Skill: &sr})
		}
	}
	return msg
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// =============================================================================
// Token usage
// =============================================================================

// ModelUsage is the per-model breakdown of token usage.
type ModelUsage struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	CacheWriteTokens int64   `json:"cache_write_tokens"`
	CacheReadTokens  int64   `json:"cache_read_tokens"`
	Cost             float64 `json:"cost"`
	Calls            int64   `json:"calls"`
}

// DisplayName returns a short human name for the model.
func (m ModelUsage) DisplayName() string {
	switch m.Provider {
	case "anthropic":
		switch {
		case strings.Contains(m.Model, "sonnet"):
			return "Claude Sonnet"
		case strings.Contains(m.Model, "haiku"):
			return "Claude Haiku"
		case strings.Contains(m.Model, "opus"):
			return "Claude Opus"
		}
	case "openai":
		// gpt-4o-mini must be checked first, it contains gpt-4o
		switch {
		case strings.Contains(m.Model, "gpt-4o-mini"):
			return "GPT-4o Mini"
		case strings.Contains(m.Model, "gpt-4o"):
			return "GPT-4o"
		}
	case "together":
		switch {
		case strings.Contains(m.Model, "Llama"):
			return "Llama 3.3 70B"
		case strings.Contains(m.Model, "QwQ"):
			return "QwQ 32B"
		}
	case "user_input":
		return "User Messages"
	}
	return m.Model
}

// TokenUsage is the per-conversation usage summary.
type TokenUsage struct {
	TotalInputTokens      int64        `json:"total_input_tokens"`
	TotalOutputTokens     int64        `json:"total_output_tokens"`
	TotalCacheWriteTokens int64        `json:"total_cache_write_tokens"`
	TotalCacheReadTokens  int64        `json:"total_cache_read_tokens"`
	TotalCostUSD          float64      `json:"total_cost_usd"`
	TotalAPICalls         int64        `json:"total_api_calls"`
	Models                []ModelUsage `json:"models,omitempty"`
}

// FormatTokens renders a token count compactly: 950, 1.2K, 3.45M.
func FormatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}
