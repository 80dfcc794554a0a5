package mock

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

// SkillMetadata is the extra_metadata stored with a skill result message.
type SkillMetadata struct {
	Type       string          `json:"type"`
	SkillName  string          `json:"skill_name"`
	RenderType string          `json:"render_type,omitempty"`
	Data       json.RawMessage `json:"data"`
	Cached     bool            `json:"cached,omitempty"`
}

// Message is a stored conversation message, in the shape the history endpoint returns.
type Message struct {
	ID            string         `json:"id"`
	Role          string         `json:"role"`
	Content       string         `json:"content"`
	CreatedAt     string         `json:"created_at"`
	ExtraMetadata *SkillMetadata `json:"extra_metadata,omitempty"`
}

// Booking is the per-conversation state of the ticket booking workflow.
type Booking struct {
	Step     string
	Quantity int
}

type conversation struct {
	summary  skillchat.ConversationSummary
	owner    string
	messages []Message
	booking  Booking
	usage    map[string]*skillchat.ModelUsage
}

type store struct {
	mu       sync.Mutex
	otps     map[string]string // email -> code
	sessions map[string]string // session token -> email
	convs    map[string]*conversation
}

func newStore() *store {
	return &store{
		otps:     make(map[string]string),
		sessions: make(map[string]string),
		convs:    make(map[string]*conversation),
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *store) issueOTP(email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[email] = code
}

// verifyOTP consumes a code and returns a new session token.
func (s *store) verifyOTP(email, code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want, ok := s.otps[email]
	if !ok || want != code {
		return "", false
	}
	delete(s.otps, email)
	token := uuid.NewString()
	s.sessions[token] = email
	return token, true
}

func (s *store) sessionEmail(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.sessions[token]
	return email, ok
}

func (s *store) endSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *store) createConversation(owner, title string) skillchat.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &conversation{
		summary: skillchat.ConversationSummary{
			ID:        uuid.NewString(),
			Title:     title,
			UpdatedAt: timestamp(),
		},
		owner: owner,
		usage: make(map[string]*skillchat.ModelUsage),
	}
	s.convs[c.summary.ID] = c
	return c.summary
}

// listConversations returns the owner's conversations, most recently updated first.
func (s *store) listConversations(owner string) []skillchat.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]skillchat.ConversationSummary, 0)
	for _, c := range s.convs {
		if c.owner == owner {
			out = append(out, c.summary)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

func (s *store) get(owner, id string) (*conversation, bool) {
	c, ok := s.convs[id]
	if !ok || c.owner != owner {
		return nil, false
	}
	return c, true
}

func (s *store) messages(owner, id string) ([]Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.get(owner, id)
	if !ok {
		return nil, false
	}
	return append([]Message(nil), c.messages...), true
}

// beginTurn records the user message and returns the request a responder works on.
func (s *store) beginTurn(owner, id, text string) (*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.get(owner, id)
	if !ok {
		return nil, false
	}
	req := &Request{
		ConversationID: id,
		Message:        text,
		History:        append([]Message(nil), c.messages...),
		Booking:        c.booking,
	}
	c.messages = append(c.messages, Message{
		ID:        uuid.NewString(),
		Role:      string(skillchat.RoleUser),
		Content:   text,
		CreatedAt: timestamp(),
	})
	if c.summary.Title == "" || c.summary.Title == DefaultTitle {
		c.summary.Title = titleFrom(text)
	}
	c.summary.UpdatedAt = timestamp()
	return req, true
}

// endTurn stores what the responder produced.
func (s *store) endTurn(owner, id string, req *Request, out *Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.get(owner, id)
	if !ok {
		return
	}
	c.messages = append(c.messages, out.records()...)
	c.booking = req.Booking
	c.summary.UpdatedAt = timestamp()

	for _, u := range out.usage {
		key := u.Provider + "/" + u.Model
		acc, ok := c.usage[key]
		if !ok {
			acc = &skillchat.ModelUsage{Provider: u.Provider, Model: u.Model}
			c.usage[key] = acc
		}
		acc.InputTokens += u.InputTokens
		acc.OutputTokens += u.OutputTokens
		acc.CacheWriteTokens += u.CacheWriteTokens
		acc.CacheReadTokens += u.CacheReadTokens
		acc.Cost += u.Cost
		acc.Calls += u.Calls
	}
}

func (s *store) tokenUsage(owner, id string) (*skillchat.TokenUsage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.get(owner, id)
	if !ok {
		return nil, false
	}

	keys := make([]string, 0, len(c.usage))
	for k := range c.usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	usage := &skillchat.TokenUsage{Models: make([]skillchat.ModelUsage, 0, len(keys))}
	for _, k := range keys {
		m := *c.usage[k]
		usage.TotalInputTokens += m.InputTokens
		usage.TotalOutputTokens += m.OutputTokens
		usage.TotalCacheWriteTokens += m.CacheWriteTokens
		usage.TotalCacheReadTokens += m.CacheReadTokens
		usage.TotalCostUSD += m.Cost
		usage.TotalAPICalls += m.Calls
		usage.Models = append(usage.Models, m)
	}
	return usage, true
}

func titleFrom(text string) string {
	const maxTitle = 40
	r := []rune(text)
	if len(r) > maxTitle {
		return string(r[:maxTitle]) + "..."
	}
	return text
}
