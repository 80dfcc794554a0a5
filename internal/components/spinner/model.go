package spinner

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/williamcory/skillchat/internal/styles"
)

// Words are typed out one after another while a reply is pending.
var Words = []string{
	"talking to the llm gods...",
	"filtering tokens...",
	"brewing the code...",
	"banging my head...",
	"engineers engineering...",
	"summoning the algorithms...",
	"consulting the neural nets...",
	"debugging reality...",
	"compiling thoughts...",
	"optimizing brain cells...",
	"yelling at tensors...",
	"bribing the AI overlords...",
	"caffeinating the models...",
	"untangling the weights...",
	"negotiating with gradients...",
	"begging for convergence...",
}

const (
	charInterval = 50 * time.Millisecond
	// wordPause is how long a completed word stays on screen, in ticks.
	wordPause = int(2 * time.Second / charInterval)
)

// TickMsg is sent when the next character should be typed
type TickMsg struct {
	ID  int
	tag int
}

// Model is a spinner that types out a rotating loading message.
type Model struct {
	id     int
	tag    int
	frames spinner.Model
	active bool

	word   int
	chars  int
	paused int
}

var spinnerID int

// New creates a stopped spinner.
func New() Model {
	spinnerID++
	frames := spinner.New(spinner.WithSpinner(spinner.Dot))
	frames.Style = lipgloss.NewStyle().Foreground(styles.Accent)
	return Model{id: spinnerID, frames: frames}
}

// Init initializes the spinner (no-op, call Start to begin)
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles spinner messages
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.active {
		return m, nil
	}
	switch msg := msg.(type) {
	case TickMsg:
		if msg.ID != m.id || msg.tag != m.tag {
			return m, nil
		}
		m.tag++
		m.advance()
		return m, m.tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.frames, cmd = m.frames.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) advance() {
	word := []rune(Words[m.word])
	if m.chars < len(word) {
		m.chars++
		return
	}
	m.paused++
	if m.paused >= wordPause {
		m.word = (m.word + 1) % len(Words)
		m.chars = 0
		m.paused = 0
	}
}

// Text returns the part of the current word typed so far.
func (m Model) Text() string {
	return string([]rune(Words[m.word])[:m.chars])
}

// View renders the spinner
func (m Model) View() string {
	if !m.active {
		return ""
	}
	return m.frames.View() + " " + styles.Dim.Italic(true).Render(m.Text())
}

// Start begins the spinner animation from the first word.
func (m *Model) Start() tea.Cmd {
	m.active = true
	m.tag++
	m.word = 0
	m.chars = 0
	m.paused = 0
	return tea.Batch(m.frames.Tick, m.tick())
}

// Stop stops the spinner animation
func (m *Model) Stop() {
	m.active = false
}

// IsActive returns whether the spinner is running
func (m Model) IsActive() bool {
	return m.active
}

// tick returns a command that sends a tick after the interval
func (m Model) tick() tea.Cmd {
	id, tag := m.id, m.tag
	return tea.Tick(charInterval, func(time.Time) tea.Msg {
		return TickMsg{ID: id, tag: tag}
	})
}
