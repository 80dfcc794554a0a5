package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

// Emitter writes stream events for one reply and remembers what was sent so the
// reply can be stored in the conversation history.
type Emitter struct {
	ctx     context.Context
	w       io.Writer
	flusher http.Flusher
	wrap    bool
	sep     string
	delay   time.Duration

	next    int
	entries []*Message
	byNum   map[int]*Message
	usage   []skillchat.ModelUsage
}

func newEmitter(ctx context.Context, w io.Writer, flusher http.Flusher, opts Options) *Emitter {
	sep := "\n"
	if opts.LineFraming {
		sep = ""
	}
	return &Emitter{
		ctx:     ctx,
		w:       w,
		flusher: flusher,
		wrap:    opts.Wrap,
		sep:     sep,
		delay:   opts.Delay,
		byNum:   make(map[int]*Message),
	}
}

func (e *Emitter) write(payload []byte) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n%s", payload, e.sep); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func (e *Emitter) send(ev skillchat.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if e.wrap {
		b, err = sjson.SetBytes([]byte(`{}`), "chunk", string(b))
		if err != nil {
			return err
		}
	}
	return e.write(b)
}

func (e *Emitter) pause(d time.Duration) error {
	if d <= 0 {
		return e.ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.ctx.Done():
		return e.ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start opens a new assistant message and returns its number.
func (e *Emitter) Start() (int, error) {
	e.next++
	n := e.next
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      string(skillchat.RoleAssistant),
		CreatedAt: timestamp(),
	}
	e.entries = append(e.entries, msg)
	e.byNum[n] = msg
	return n, e.send(skillchat.Event{Type: skillchat.EventMessageStart, MessageNumber: skillchat.Int(n)})
}

// Thinking announces what message n is doing.
func (e *Emitter) Thinking(n int, action string) error {
	if err := e.send(skillchat.Event{Type: skillchat.EventThinking, MessageNumber: skillchat.Int(n), Action: action}); err != nil {
		return err
	}
	return e.pause(e.delay * 10)
}

// Chunk sends one piece of text for message n.
func (e *Emitter) Chunk(n int, content string) error {
	if msg, ok := e.byNum[n]; ok {
		msg.Content += content
	}
	return e.send(skillchat.Event{Type: skillchat.EventChunk, MessageNumber: skillchat.Int(n), Content: content})
}

// Text streams text for message n a few characters at a time.
func (e *Emitter) Text(n int, text string) error {
	const batchSize = 3
	runes := []rune(text)

	for i := 0; i < len(runes); i += batchSize {
		end := i + batchSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[i:end])
		if err := e.Chunk(n, chunk); err != nil {
			return err
		}

		delay := e.delay
		if strings.ContainsAny(chunk, "\n.!?") {
			delay = e.delay * 3
		}
		if err := e.pause(delay); err != nil {
			return err
		}
	}
	return nil
}

// Skill sends a skill result attached to message n.
func (e *Emitter) Skill(n int, skillName, renderType string, data any, cached bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal skill data: %w", err)
	}
	e.entries = append(e.entries, &Message{
		ID:        uuid.NewString(),
		Role:      string(skillchat.RoleAssistant),
		CreatedAt: timestamp(),
		ExtraMetadata: &SkillMetadata{
			Type:       "skill_result",
			SkillName:  skillName,
			RenderType: renderType,
			Data:       raw,
			Cached:     cached,
		},
	})
	return e.send(skillchat.Event{
		Type:          skillchat.EventSkillResult,
		MessageNumber: skillchat.Int(n),
		SkillName:     skillName,
		RenderType:    renderType,
		Data:          raw,
		Cached:        cached,
	})
}

// Done completes message n.
func (e *Emitter) Done(n int) error {
	return e.send(skillchat.Event{Type: skillchat.EventMessageDone, MessageNumber: skillchat.Int(n)})
}

// Usage records token usage for the reply.
func (e *Emitter) Usage(u skillchat.ModelUsage) {
	e.usage = append(e.usage, u)
}

func (e *Emitter) finish() error {
	return e.write([]byte(skillchat.DoneSentinel))
}

// records returns the messages to store, skipping assistant messages that got no text.
func (e *Emitter) records() []Message {
	out := make([]Message, 0, len(e.entries))
	for _, m := range e.entries {
		if m.ExtraMetadata == nil && m.Content == "" {
			continue
		}
		out = append(out, *m)
	}
	return out
}
