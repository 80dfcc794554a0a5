package skillchat

import (
	"sync"
	"sync/atomic"
	"time"
)

// Conversation is the client-side message list of one conversation view.
//
// Every change publishes a new slice; slices returned by Messages are never
// modified afterwards and may be read without locking.
type Conversation struct {
	mu         sync.Mutex
	id         string
	generation uint64
	messages   []Message
}

// NewConversation creates a view of conversation id seeded with history.
func NewConversation(id string, history []Message) *Conversation {
	return &Conversation{
		id:       id,
		messages: append([]Message(nil), history...),
	}
}

// ID returns the active conversation id.
func (c *Conversation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Messages returns the current snapshot.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// Len returns the number of messages in the current snapshot.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Reset switches the view to conversation id, replacing the message list.
// Turns begun before the switch can no longer modify the view, even when id
// is the same conversation as before.
func (c *Conversation) Reset(id string, history []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	c.generation++
	c.messages = append([]Message(nil), history...)
}

// AddUserMessage appends an optimistic user message and returns it.
func (c *Conversation) AddUserMessage(text string) Message {
	msg := Message{
		ID:        newID("user"),
		Role:      RoleUser,
		Parts:     []Part{{Type: PartText, Text: text}},
		Done:      true,
		CreatedAt: time.Now(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = appendMessage(c.messages, msg)
	return msg
}

// LastActionable returns the most recent skill result that offers actions,
// provided nothing but skill results follows it.
func (c *Conversation) LastActionable() *SkillResult {
	msgs := c.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		sr := msgs[i].SkillResult()
		if sr == nil {
			if msgs[i].Role == RoleUser {
				return nil
			}
			continue
		}
		if _, ok := sr.Payload.(*QuantityInput); ok || len(Actions(sr.Payload)) > 0 {
			return sr
		}
	}
	return nil
}

// =============================================================================
// Turns
// =============================================================================

// Turn applies the events of one stream to the conversation it was opened for.
type Turn struct {
	conv       *Conversation
	convID     string
	generation uint64
	state      *StreamState
	onUpdate   func([]Message)
	detached   atomic.Bool
	applied    atomic.Int64
}

// TurnOption configures a Turn.
type TurnOption func(*Turn)

// OnUpdate registers fn to receive every snapshot published by the turn.
// fn runs on the goroutine applying the events, after the lock is released.
func OnUpdate(fn func(snapshot []Message)) TurnOption {
	return func(t *Turn) {
		t.onUpdate = fn
	}
}

// BeginTurn opens a turn tagged with the conversation's current id.
func (c *Conversation) BeginTurn(opts ...TurnOption) *Turn {
	c.mu.Lock()
	t := &Turn{
		conv:       c,
		convID:     c.id,
		generation: c.generation,
		state:      NewStreamState(),
	}
	c.mu.Unlock()

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ConversationID returns the id the turn was opened for.
func (t *Turn) ConversationID() string {
	return t.convID
}

// Applied returns how many events changed the conversation.
func (t *Turn) Applied() int {
	return int(t.applied.Load())
}

// Detach stops the turn from making further changes. A change in progress
// completes before Detach returns.
func (t *Turn) Detach() {
	t.conv.mu.Lock()
	defer t.conv.mu.Unlock()
	t.detached.Store(true)
}

// Detached reports whether the turn can no longer change the conversation.
func (t *Turn) Detached() bool {
	return t.detached.Load()
}

// Apply applies ev and publishes the resulting snapshot.
// It returns ErrStaleConversation when the view has switched conversations
// and ErrStreamClosed after Detach.
func (t *Turn) Apply(ev *Event) (Effect, error) {
	var (
		snapshot []Message
		effect   Effect
	)
	err := t.mutate(func(msgs []Message) ([]Message, bool) {
		var next []Message
		next, effect = Apply(msgs, t.state, ev)
		snapshot = next
		return next, effect.Changed()
	})
	if err != nil {
		return EffectNone, err
	}
	if effect.Changed() {
		t.applied.Add(1)
		t.publish(snapshot)
	}
	return effect, nil
}

// Finish marks the messages opened by the turn as complete.
func (t *Turn) Finish() error {
	var snapshot []Message
	changed := false
	err := t.mutate(func(msgs []Message) ([]Message, bool) {
		snapshot, changed = Finish(msgs, t.state)
		return snapshot, changed
	})
	if err != nil {
		return err
	}
	if changed {
		t.publish(snapshot)
	}
	return nil
}

// Fail appends an error entry for a transport failure. Content already
// applied by the turn is kept.
func (t *Turn) Fail(cause error) error {
	var snapshot []Message
	err := t.mutate(func(msgs []Message) ([]Message, bool) {
		msgs, _ = Finish(msgs, t.state)
		snapshot = appendMessage(msgs, errorMessage(cause))
		return snapshot, true
	})
	if err != nil {
		return err
	}
	t.publish(snapshot)
	return nil
}

func (t *Turn) mutate(fn func([]Message) ([]Message, bool)) error {
	if t.detached.Load() {
		return ErrStreamClosed
	}

	c := t.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.detached.Load() {
		return ErrStreamClosed
	}
	if c.id != t.convID || c.generation != t.generation {
		t.detached.Store(true)
		return ErrStaleConversation
	}
	if next, changed := fn(c.messages); changed {
		c.messages = next
	}
	return nil
}

func (t *Turn) publish(snapshot []Message) {
	if t.onUpdate != nil {
		t.onUpdate(snapshot)
	}
}
