package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/williamcory/skillchat/internal/components/chat"
	"github.com/williamcory/skillchat/internal/components/input"
	"github.com/williamcory/skillchat/internal/components/spinner"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

// State represents the application state
type State int

const (
	StateIdle State = iota
	StateLoading
	StateStreaming
	StateError
)

// SharedState holds state that needs to be shared between model copies
type SharedState struct {
	mu      sync.Mutex
	program *tea.Program
}

// SetProgram sets the program reference
func (s *SharedState) SetProgram(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = p
}

// GetProgram gets the program reference
func (s *SharedState) GetProgram() *tea.Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program
}

// Options configures the application.
type Options struct {
	// ConversationID resumes an existing conversation. Empty starts a new one.
	ConversationID string
	// OnConversation is called with the id of every conversation that gets opened.
	OnConversation func(id string)
}

// Model is the main application model
type Model struct {
	chat    chat.Model
	input   input.Model
	spinner spinner.Model

	client *skillchat.Client
	conv   *skillchat.Conversation
	shared *SharedState
	opts   Options

	state State
	title string
	// seq identifies the active turn; snapshots of older turns are ignored.
	seq    int
	cancel context.CancelFunc

	usage     *skillchat.TokenUsage
	showUsage bool

	width  int
	height int
	err    error
	ready  bool
}

// New creates a new application model
func New(client *skillchat.Client, opts Options) Model {
	return Model{
		chat:    chat.New(80, 20),
		input:   input.New(80),
		spinner: spinner.New(),
		client:  client,
		conv:    skillchat.NewConversation("", nil),
		shared:  &SharedState{},
		opts:    opts,
		state:   StateLoading,
	}
}

// SetProgram sets the tea.Program reference for stream callbacks
func (m *Model) SetProgram(p *tea.Program) {
	m.shared.SetProgram(p)
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.input.Init(),
		m.chat.Init(),
		m.loadConversation(m.opts.ConversationID),
	)
}
