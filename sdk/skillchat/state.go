package skillchat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Effect reports what applying an event did to the message list.
type Effect int

const (
	// EffectNone means the event changed nothing (ignored or dropped).
	EffectNone Effect = iota
	// EffectAppended means a new message was added.
	EffectAppended
	// EffectUpdated means an existing message was replaced.
	EffectUpdated
	// EffectTerminate means the stream is over.
	EffectTerminate
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectAppended:
		return "appended"
	case EffectUpdated:
		return "updated"
	case EffectTerminate:
		return "terminate"
	}
	return fmt.Sprintf("Effect(%d)", int(e))
}

// Changed reports whether the message list was modified.
func (e Effect) Changed() bool {
	return e == EffectAppended || e == EffectUpdated
}

// StreamState is the correlation state of a single stream.
type StreamState struct {
	// ActiveID is the message targeted by events without a message_number.
	ActiveID string
	// ByNumber maps message_number to the ID of the message it started.
	ByNumber map[int]string
	// Started lists every streaming message opened by this stream, in order.
	Started []string
}

// NewStreamState returns an empty correlation state.
func NewStreamState() *StreamState {
	return &StreamState{ByNumber: make(map[int]string)}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Apply returns the message list that results from applying ev.
//
// messages is never modified: a changed list is a new slice in which the
// touched message is a copy, so earlier snapshots stay valid for readers.
func Apply(messages []Message, st *StreamState, ev *Event) ([]Message, Effect) {
	switch ev.Type {
	case EventMessageStart:
		msg := st.start(ev.MessageNumber)
		return appendMessage(messages, msg), EffectAppended

	case EventChunk:
		if ev.Content == "" {
			return messages, EffectNone
		}
		return st.update(messages, ev.MessageNumber, func(m *Message) {
			appendText(m, ev.Content)
		})

	case EventThinking:
		action := ev.Action
		if action == "" {
			action = "thinking"
		}
		return st.update(messages, ev.MessageNumber, func(m *Message) {
			m.Parts = append(m.Parts, Part{Type: PartText, Text: fmt.Sprintf("_%s..._\n", action), Thinking: true})
			m.Thinking = true
		})

	case EventSkillResult:
		sr := ev.SkillResult()
		msg := Message{
			ID:            newID("skill"),
			Role:          RoleAssistant,
			Parts:         []Part{{Type: PartSkillResult, Skill: &sr}},
			MessageNumber: ev.MessageNumber,
			Done:          true,
			CreatedAt:     time.Now(),
		}
		if msg.MessageNumber == nil {
			if i := indexOf(messages, st.ActiveID); i >= 0 && messages[i].MessageNumber != nil {
				msg.MessageNumber = Int(*messages[i].MessageNumber)
			}
		}
		return appendMessage(messages, msg), EffectAppended

	case EventMessageDone:
		i := st.resolve(messages, ev.MessageNumber)
		if i < 0 || messages[i].Done {
			return messages, EffectNone
		}
		m := messages[i].clone()
		m.Done = true
		m.Thinking = false
		return replaceMessage(messages, i, m), EffectUpdated

	case EventDone:
		return messages, EffectTerminate
	}

	return messages, EffectNone
}

// Finish marks every message opened by the stream as complete.
func Finish(messages []Message, st *StreamState) ([]Message, bool) {
	changed := false
	for _, id := range st.Started {
		i := indexOf(messages, id)
		if i < 0 || messages[i].Done {
			continue
		}
		m := messages[i].clone()
		m.Done = true
		m.Thinking = false
		messages = replaceMessage(messages, i, m)
		changed = true
	}
	return messages, changed
}

// start creates a streaming assistant message and makes it the active one.
func (st *StreamState) start(number *int) Message {
	msg := Message{
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
	}
	if number != nil {
		msg.MessageNumber = Int(*number)
		msg.ID = newID(fmt.Sprintf("assistant-%d", *number))
		st.ByNumber[*number] = msg.ID
	} else {
		msg.ID = newID("assistant")
	}
	st.ActiveID = msg.ID
	st.Started = append(st.Started, msg.ID)
	return msg
}

// resolve finds the message an event is addressed to, or -1.
func (st *StreamState) resolve(messages []Message, number *int) int {
	if number != nil {
		id, ok := st.ByNumber[*number]
		if !ok {
			return -1
		}
		return indexOf(messages, id)
	}
	return indexOf(messages, st.ActiveID)
}

// update applies fn to the addressed message. Events for a message that does
// not exist yet open one implicitly; events for a completed message are dropped.
func (st *StreamState) update(messages []Message, number *int, fn func(*Message)) ([]Message, Effect) {
	i := st.resolve(messages, number)
	if i < 0 {
		m := st.start(number)
		fn(&m)
		return appendMessage(messages, m), EffectAppended
	}
	if messages[i].Done {
		return messages, EffectNone
	}
	m := messages[i].clone()
	fn(&m)
	return replaceMessage(messages, i, m), EffectUpdated
}

// appendText extends the primary text part, creating it if needed.
func appendText(m *Message, s string) {
	for i := range m.Parts {
		if m.Parts[i].IsText() {
			m.Parts[i].Text += s
			return
		}
	}
	m.Parts = append(m.Parts, Part{Type: PartText, Text: s})
}

func indexOf(messages []Message, id string) int {
	if id == "" {
		return -1
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func appendMessage(messages []Message, m Message) []Message {
	out := make([]Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, m)
}

func replaceMessage(messages []Message, i int, m Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	out[i] = m
	return out
}

// errorMessage builds the assistant entry shown for a transport failure.
func errorMessage(err error) Message {
	return Message{
		ID:        newID("error"),
		Role:      RoleAssistant,
		Parts:     []Part{{Type: PartText, Text: "Error: " + err.Error()}},
		Done:      true,
		Error:     true,
		CreatedAt: time.Now(),
	}
}
