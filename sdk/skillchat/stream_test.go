package skillchat_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

// pieceReader returns its pieces one Read at a time, then err (io.EOF if nil).
type pieceReader struct {
	pieces []string
	err    error
	closed bool
}

func (r *pieceReader) Read(p []byte) (int, error) {
	if len(r.pieces) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.pieces[0])
	r.pieces[0] = r.pieces[0][n:]
	if r.pieces[0] == "" {
		r.pieces = r.pieces[1:]
	}
	return n, nil
}

func (r *pieceReader) Close() error {
	r.closed = true
	return nil
}

func frames(payloads ...string) string {
	var sb strings.Builder
	for _, p := range payloads {
		sb.WriteString("data: " + p + "\n\n")
	}
	return sb.String()
}

func splitEvery(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

var helloStream = frames(
	`{"type":"message_start","message_number":1}`,
	`{"type":"chunk","message_number":1,"content":"Hel"}`,
	`{"type":"chunk","message_number":1,"content":"lo"}`,
	`{"type":"message_done","message_number":1}`,
	`[DONE]`,
)

func TestStreamNext(t *testing.T) {
	body := &pieceReader{pieces: splitEvery(helloStream, 5)}
	s := skillchat.NewStream(body)

	var types []skillchat.EventType
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, ev.Type)
	}

	assert.Equal(t, []skillchat.EventType{
		skillchat.EventMessageStart,
		skillchat.EventChunk,
		skillchat.EventChunk,
		skillchat.EventMessageDone,
		skillchat.EventDone,
	}, types)
	assert.Equal(t, int64(len(helloStream)), s.BytesRead())

	require.NoError(t, s.Close())
	assert.True(t, body.closed)
	_, err := s.Next()
	assert.ErrorIs(t, err, skillchat.ErrStreamClosed)
}

func TestStreamSkipsMalformedFrames(t *testing.T) {
	input := frames(
		`{"type":"message_start","message_number":1}`,
		`{"type":"chunk","content":`,
		`not json at all`,
		`{"type":"chunk","content":"ok"}`,
	)
	s := skillchat.NewStream(&pieceReader{pieces: []string{input}})

	var contents []string
	for {
		ev, err := s.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		if ev.Type == skillchat.EventChunk {
			contents = append(contents, ev.Content)
		}
	}
	assert.Equal(t, []string{"ok"}, contents)
	assert.Equal(t, 2, s.Skipped())
}

func TestRunHelloWithSplitReads(t *testing.T) {
	for _, size := range []int{1, 4, 17, len(helloStream)} {
		conv := skillchat.NewConversation("c1", nil)
		s := skillchat.NewStream(&pieceReader{pieces: splitEvery(helloStream, size)})

		require.NoError(t, skillchat.Run(context.Background(), s, conv.BeginTurn()))

		msgs := conv.Messages()
		require.Len(t, msgs, 1, "chunk size %d", size)
		assert.Equal(t, "Hello", msgs[0].Text())
		assert.True(t, msgs[0].Done)
	}
}

func TestRunProxyWrappedFrames(t *testing.T) {
	input := frames(
		`{"chunk":"{\"type\":\"message_start\",\"message_number\":1}"}`,
		`{"chunk":"{\"type\":\"chunk\",\"content\":\"Hi\"}"}`,
		`{"chunk":"{\"type\":\"message_done\"}"}`,
	)
	conv := skillchat.NewConversation("c1", nil)
	s := skillchat.NewStream(&pieceReader{pieces: []string{input}})

	require.NoError(t, skillchat.Run(context.Background(), s, conv.BeginTurn()))

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi", msgs[0].Text())
	assert.True(t, msgs[0].Done)
}

func TestRunFinishesOnEOFWithoutDone(t *testing.T) {
	input := "data: {\"type\":\"message_start\"}\n\ndata: {\"type\":\"chunk\",\"content\":\"tail\"}"
	conv := skillchat.NewConversation("c1", nil)
	s := skillchat.NewStream(&pieceReader{pieces: []string{input}})

	require.NoError(t, skillchat.Run(context.Background(), s, conv.BeginTurn()))

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "tail", msgs[0].Text(), "a trailing unterminated frame is delivered")
	assert.True(t, msgs[0].Done)
}

func TestRunStopsAtDone(t *testing.T) {
	input := frames(
		`{"type":"chunk","content":"a"}`,
		`{"done":true}`,
		`{"type":"chunk","content":"ignored"}`,
	)
	conv := skillchat.NewConversation("c1", nil)
	body := &pieceReader{pieces: []string{input}}

	require.NoError(t, skillchat.Run(context.Background(), skillchat.NewStream(body), conv.BeginTurn()))

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Text())
	assert.True(t, body.closed)
}

func TestRunMidStreamFailure(t *testing.T) {
	conv := skillchat.NewConversation("c1", nil)
	body := &pieceReader{
		pieces: []string{frames(
			`{"type":"message_start","message_number":1}`,
			`{"type":"chunk","content":"partial"}`,
		)},
		err: errors.New("connection reset"),
	}

	err := skillchat.Run(context.Background(), skillchat.NewStream(body), conv.BeginTurn())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial", msgs[0].Text())
	assert.True(t, msgs[1].Error)
	assert.Equal(t, "Error: connection reset", msgs[1].Text())
}

// lastReadReader hands back all of its data in one Read together with err.
type lastReadReader struct {
	data string
	err  error
	done bool
}

func (r *lastReadReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), r.err
}

func (r *lastReadReader) Close() error { return nil }

func TestRunKeepsFramesReadWithError(t *testing.T) {
	conv := skillchat.NewConversation("c1", nil)
	body := &lastReadReader{
		data: frames(
			`{"type":"message_start","message_number":1}`,
			`{"type":"chunk","content":"partial"}`,
		),
		err: errors.New("connection reset"),
	}

	err := skillchat.Run(context.Background(), skillchat.NewStream(body), conv.BeginTurn())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial", msgs[0].Text())
	assert.True(t, msgs[1].Error)
	assert.Equal(t, "Error: connection reset", msgs[1].Text())
}

func TestStreamNextReturnsReadErrorAfterPendingFrames(t *testing.T) {
	s := skillchat.NewStream(&lastReadReader{
		data: frames(`{"type":"chunk","content":"a"}`, `{"type":"chunk","content":"b"}`),
		err:  errors.New("connection reset"),
	})

	for _, want := range []string{"a", "b"} {
		ev, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, want, ev.Content)
	}
	_, err := s.Next()
	assert.EqualError(t, err, "connection reset")
	_, err = s.Next()
	assert.EqualError(t, err, "connection reset")
}

func TestRunAbortAfterChunks(t *testing.T) {
	input := frames(
		`{"type":"message_start","message_number":1}`,
		`{"type":"chunk","content":"a"}`,
		`{"type":"chunk","content":"b"}`,
		`{"type":"chunk","content":"c"}`,
		`{"type":"chunk","content":"d"}`,
		`{"type":"chunk","content":"e"}`,
		`{"type":"message_done"}`,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conv := skillchat.NewConversation("c1", nil)
	updates := 0
	turn := conv.BeginTurn(skillchat.OnUpdate(func([]skillchat.Message) {
		updates++
		if updates == 4 {
			cancel()
		}
	}))

	err := skillchat.Run(ctx, skillchat.NewStream(&pieceReader{pieces: []string{input}}), turn)
	require.NoError(t, err)

	assert.Equal(t, 4, updates)
	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "abc", msgs[0].Text())
	assert.False(t, msgs[0].Done, "an aborted message keeps its partial state")

	require.Eventually(t, turn.Detached, time.Second, 5*time.Millisecond)
	_, err = turn.Apply(&skillchat.Event{Type: skillchat.EventChunk, Content: "x"})
	assert.ErrorIs(t, err, skillchat.ErrStreamClosed)
	assert.Equal(t, "abc", conv.Messages()[0].Text())
}

func TestRunAfterConversationSwitch(t *testing.T) {
	conv := skillchat.NewConversation("c1", nil)
	turn := conv.BeginTurn()
	conv.Reset("c2", nil)

	err := skillchat.Run(context.Background(), skillchat.NewStream(&pieceReader{pieces: []string{helloStream}}), turn)
	assert.ErrorIs(t, err, skillchat.ErrStaleConversation)
	assert.Zero(t, conv.Len())
}
