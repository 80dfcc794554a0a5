package skillchat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

func TestParseEvent(t *testing.T) {
	t.Run("chunk", func(t *testing.T) {
		ev, err := skillchat.ParseEvent([]byte(`{"type":"chunk","message_number":2,"content":"hi"}`))
		require.NoError(t, err)
		assert.Equal(t, skillchat.EventChunk, ev.Type)
		require.NotNil(t, ev.MessageNumber)
		assert.Equal(t, 2, *ev.MessageNumber)
		assert.Equal(t, "hi", ev.Content)
	})

	t.Run("proxy wrapped", func(t *testing.T) {
		ev, err := skillchat.ParseEvent([]byte(`{"chunk":"{\"type\":\"chunk\",\"content\":\"Hi\"}"}`))
		require.NoError(t, err)
		assert.Equal(t, skillchat.EventChunk, ev.Type)
		assert.Equal(t, "Hi", ev.Content)
		assert.JSONEq(t, `{"type":"chunk","content":"Hi"}`, string(ev.Raw))
	})

	t.Run("wrapper with invalid inner json", func(t *testing.T) {
		_, err := skillchat.ParseEvent([]byte(`{"chunk":"{not json"}`))
		assert.Error(t, err)
	})

	t.Run("done sentinel", func(t *testing.T) {
		ev, err := skillchat.ParseEvent([]byte("[DONE]"))
		require.NoError(t, err)
		assert.Equal(t, skillchat.EventDone, ev.Type)
		assert.True(t, ev.Type.Terminal())
	})

	t.Run("legacy done payload", func(t *testing.T) {
		ev, err := skillchat.ParseEvent([]byte(`{"done":true}`))
		require.NoError(t, err)
		assert.Equal(t, skillchat.EventDone, ev.Type)
	})

	t.Run("skill result", func(t *testing.T) {
		ev, err := skillchat.ParseEvent([]byte(`{"type":"skill_result","skill_name":"skillgraph_docs","data":{"message":"**hi**"},"cached":true}`))
		require.NoError(t, err)
		sr := ev.SkillResult()
		assert.Equal(t, skillchat.SkillDocs, sr.SkillName)
		assert.True(t, sr.Cached)
		require.IsType(t, &skillchat.DocsPayload{}, sr.Payload)
		assert.Equal(t, "**hi**", sr.Payload.(*skillchat.DocsPayload).Message)
	})

	t.Run("unknown type", func(t *testing.T) {
		ev, err := skillchat.ParseEvent([]byte(`{"type":"heartbeat"}`))
		require.NoError(t, err)
		assert.False(t, ev.Type.Known())
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := skillchat.ParseEvent([]byte(`{"type":`))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := skillchat.ParseEvent(nil)
		assert.Error(t, err)
	})
}
