package mock

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnthropicResponderRequiresKey(t *testing.T) {
	_, err := NewAnthropicResponder("  ", "")
	assert.Error(t, err)

	r, err := NewAnthropicResponder("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, anthropic.Model(DefaultAnthropicModel), r.model)
}

func TestBuildAnthropicMessages(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello!"},
		{Role: "assistant", ExtraMetadata: &SkillMetadata{Type: "skill_result", SkillName: "web_search"}},
	}

	msgs := buildAnthropicMessages(history, "thanks")
	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
}
