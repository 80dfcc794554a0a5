package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary     = lipgloss.Color("#7C3AED")
	Secondary   = lipgloss.Color("#10B981")
	Accent      = lipgloss.Color("#F59E0B")
	Error       = lipgloss.Color("#EF4444")
	Muted       = lipgloss.Color("#6B7280")
	CardBorder  = lipgloss.Color("#374151")
	White       = lipgloss.Color("#FFFFFF")
	LightGray   = lipgloss.Color("#E5E7EB")
	LinkColor   = lipgloss.Color("#60A5FA")
	CachedColor = lipgloss.Color("#14B8A6")

	// Message Styles
	UserMessage = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(White).
			Bold(true)

	UserLabel = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	AssistantMessage = lipgloss.NewStyle().
				Padding(0, 1).
				Foreground(LightGray)

	AssistantLabel = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	Thinking = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true).
			PaddingLeft(1)

	ErrorMessage = lipgloss.NewStyle().
			Foreground(Error).
			Padding(0, 1)

	// Skill card styles
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(CardBorder).
		Padding(0, 1).
		MarginLeft(1)

	CardTitle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	CardBadge = lipgloss.NewStyle().
			Foreground(CachedColor).
			Italic(true)

	Link = lipgloss.NewStyle().
		Foreground(LinkColor).
		Underline(true)

	Dim = lipgloss.NewStyle().
		Foreground(Muted)

	Price = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	ActionKey = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	// Status Bar Styles
	StatusBar = lipgloss.NewStyle().
			Foreground(Muted).
			Padding(0, 1)

	StatusBarStreaming = lipgloss.NewStyle().
				Foreground(Primary).
				Padding(0, 1)

	StatusBarError = lipgloss.NewStyle().
			Foreground(Error).
			Padding(0, 1)

	// Header
	Header = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true).
		Padding(0, 1)

	// Cursor for streaming
	StreamingCursor = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Prompt = lipgloss.NewStyle().
		Foreground(Muted).
		Bold(true)
)
