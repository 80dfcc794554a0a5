package skillchat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

func frameStrings(frames []skillchat.Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, string(f.Data))
	}
	return out
}

func TestDecoderFeed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "double newline framing",
			input: "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n",
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "single newline framing",
			input: "data: {\"a\":1}\ndata: {\"b\":2}\n",
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "no space after prefix",
			input: "data:[DONE]\n\n",
			want:  []string{"[DONE]"},
		},
		{
			name:  "crlf line endings",
			input: "data: {\"a\":1}\r\n\r\n",
			want:  []string{`{"a":1}`},
		},
		{
			name:  "comments and other fields ignored",
			input: ": keepalive\nevent: message\nid: 7\nretry: 1000\ndata: {\"a\":1}\n\n",
			want:  []string{`{"a":1}`},
		},
		{
			name:  "empty data lines dropped",
			input: "data:\ndata:   \n\n",
			want:  []string{},
		},
		{
			name:  "only one leading space stripped",
			input: "data:  x\n",
			want:  []string{" x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d skillchat.Decoder
			got := frameStrings(d.Feed([]byte(tt.input)))
			assert.Equal(t, tt.want, got)
			assert.Zero(t, d.Buffered())
		})
	}
}

func TestDecoderSplitReads(t *testing.T) {
	input := "data: {\"type\":\"message_start\",\"message_number\":1}\n\n" +
		"data: {\"type\":\"chunk\",\"content\":\"Hel\"}\n\n" +
		"data: {\"type\":\"chunk\",\"content\":\"lo\"}\n\n" +
		"data: [DONE]\n\n"

	var whole skillchat.Decoder
	want := frameStrings(whole.Feed([]byte(input)))
	require.Len(t, want, 4)

	for _, size := range []int{1, 2, 3, 7, 13, 64} {
		var d skillchat.Decoder
		var got []string
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			got = append(got, frameStrings(d.Feed([]byte(input[i:end])))...)
		}
		got = append(got, frameStrings(d.Flush())...)
		assert.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestDecoderRetainsPartialLine(t *testing.T) {
	var d skillchat.Decoder

	frames := d.Feed([]byte("data: {\"type\":\"chu"))
	assert.Empty(t, frames)
	assert.Equal(t, len("data: {\"type\":\"chu"), d.Buffered())

	frames = d.Feed([]byte("nk\"}\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, `{"type":"chunk"}`, string(frames[0].Data))
	assert.Zero(t, d.Buffered())
}

func TestDecoderFlush(t *testing.T) {
	var d skillchat.Decoder
	assert.Empty(t, d.Feed([]byte("data: [DONE]")))

	frames := d.Flush()
	require.Len(t, frames, 1)
	assert.True(t, frames[0].IsDone())
	assert.Zero(t, d.Buffered())

	assert.Empty(t, d.Flush())
}

func TestFrameDataIsCopied(t *testing.T) {
	var d skillchat.Decoder
	buf := []byte("data: abc\n")
	frames := d.Feed(buf)
	require.Len(t, frames, 1)

	copy(buf, "xxxxxxxxx\n")
	assert.Equal(t, "abc", string(frames[0].Data))
}
