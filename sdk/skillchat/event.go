package skillchat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// EventType discriminates stream events.
type EventType string

const (
	EventMessageStart EventType = "message_start"
	EventChunk        EventType = "chunk"
	EventThinking     EventType = "thinking"
	EventSkillResult  EventType = "skill_result"
	EventMessageDone  EventType = "message_done"

	// EventDone is synthesized for the [DONE] sentinel and the legacy {"done": true} payload.
	EventDone EventType = "done"
)

// Known reports whether t is part of the event taxonomy.
func (t EventType) Known() bool {
	switch t {
	case EventMessageStart, EventChunk, EventThinking, EventSkillResult, EventMessageDone, EventDone:
		return true
	}
	return false
}

// Terminal reports whether the event ends the read loop.
func (t EventType) Terminal() bool {
	return t == EventDone
}

// Event is one decoded stream event.
type Event struct {
	Type          EventType       `json:"type"`
	MessageNumber *int            `json:"message_number,omitempty"`
	Content       string          `json:"content,omitempty"`
	Action        string          `json:"action,omitempty"`
	SkillName     string          `json:"skill_name,omitempty"`
	RenderType    string          `json:"render_type,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Cached        bool            `json:"cached,omitempty"`
	Done          bool            `json:"done,omitempty"`

	// Raw is the event JSON after proxy unwrapping.
	Raw json.RawMessage `json:"-"`
}

// SkillResult builds the typed skill result carried by a skill_result event.
func (e *Event) SkillResult() SkillResult {
	return ParseSkillResult(e.SkillName, e.RenderType, e.Data, e.Cached)
}

// DoneSentinel is the payload that terminates a stream without further parsing.
const DoneSentinel = "[DONE]"

var errEmptyPayload = errors.New("empty payload")

// ParseEvent decodes a frame payload into an Event.
//
// A payload of the form {"chunk": "<json>"}, as produced by some proxies, is
// unwrapped once and the inner JSON is decoded instead.
func ParseEvent(payload []byte) (*Event, error) {
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}
	if string(payload) == DoneSentinel {
		return &Event{Type: EventDone, Raw: payload}, nil
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("invalid event json: %q", preview(payload))
	}

	if wrapped := gjson.GetBytes(payload, "chunk"); wrapped.Type == gjson.String && wrapped.Str != "" {
		payload = []byte(wrapped.Str)
		if !gjson.ValidBytes(payload) {
			return nil, fmt.Errorf("invalid wrapped event json: %q", preview(payload))
		}
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" && ev.Done {
		ev.Type = EventDone
	}
	ev.Raw = payload
	return &ev, nil
}

func preview(b []byte) string {
	const max = 80
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
