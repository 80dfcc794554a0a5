package messages

import "github.com/williamcory/skillchat/sdk/skillchat"

// SnapshotMsg carries a message list published by a streaming turn.
// Seq identifies the turn; the app ignores snapshots of turns it no longer tracks.
type SnapshotMsg struct {
	ConversationID string
	Seq            int
	Messages       []skillchat.Message
}

// StreamEndMsg is sent when a turn's stream finishes, fails or is aborted.
type StreamEndMsg struct {
	ConversationID string
	Seq            int
	Err            error
}

// ConversationLoadedMsg is sent once a conversation and its history are ready.
type ConversationLoadedMsg struct {
	Summary skillchat.ConversationSummary
	History []skillchat.Message
	Err     error
}

// TokenUsageMsg carries refreshed token usage.
type TokenUsageMsg struct {
	ConversationID string
	Usage          *skillchat.TokenUsage
	Err            error
}
