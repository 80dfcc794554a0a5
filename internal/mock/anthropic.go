package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

// DefaultAnthropicModel is used by AnthropicResponder when no model is given.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

const anthropicSystemPrompt = "You are the fallback assistant of a skill-routing chat service. " +
	"Answer concisely in Markdown."

// AnthropicResponder answers with a live model, streaming its text deltas as chunks.
// Messages that match a scripted skill keyword are still handled by the script.
type AnthropicResponder struct {
	client anthropic.Client
	model  anthropic.Model
	script *ScriptedResponder
}

// NewAnthropicResponder creates a responder using apiKey. An empty model selects DefaultAnthropicModel.
func NewAnthropicResponder(apiKey, model string) (*AnthropicResponder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing Anthropic API key")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicResponder{
		client: anthropic.NewClient(option.WithAPIKey(strings.TrimSpace(apiKey))),
		model:  anthropic.Model(model),
		script: NewScriptedResponder(),
	}, nil
}

func (r *AnthropicResponder) Respond(ctx context.Context, req *Request, out *Emitter) error {
	lower := strings.ToLower(req.Message)
	if req.Booking.Step != "" || containsAny(lower, "book", "ticket", "search", "find", "docs", "skillgraph") {
		return r.script.Respond(ctx, req, out)
	}

	n, err := out.Start()
	if err != nil {
		return err
	}
	if err := out.Thinking(n, "asking "+string(r.model)); err != nil {
		return err
	}

	stream := r.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: anthropicSystemPrompt}},
		Messages:  buildAnthropicMessages(req.History, req.Message),
	})
	defer stream.Close()

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return err
		}
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				if err := out.Chunk(n, delta.Text); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		if chunkErr := out.Chunk(n, fmt.Sprintf("\n\n_model request failed: %v_", err)); chunkErr != nil {
			return chunkErr
		}
	}

	out.Usage(skillchat.ModelUsage{
		Provider:         "anthropic",
		Model:            string(r.model),
		InputTokens:      msg.Usage.InputTokens,
		OutputTokens:     msg.Usage.OutputTokens,
		CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
		CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		Calls:            1,
	})
	return out.Done(n)
}

// buildAnthropicMessages converts stored history into alternating model turns.
// Skill result entries carry no text and are left out.
func buildAnthropicMessages(history []Message, text string) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == string(skillchat.RoleUser) {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
}
