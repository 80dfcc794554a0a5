package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/williamcory/skillchat/internal/styles"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

// View renders the application
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var sections []string

	header := "SkillChat"
	if m.title != "" {
		header += styles.Dim.Render(" · " + m.title)
	}
	sections = append(sections, styles.Header.Render(header))

	sections = append(sections, m.chat.View())

	if m.showUsage {
		sections = append(sections, renderUsage(m.usage, m.width))
	}

	switch m.state {
	case StateStreaming:
		waiting := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.Muted).
			Padding(0, 1).
			Width(max(m.width-2, 10)).
			Render(m.spinner.View() + styles.Dim.Render("  (Esc to stop)"))
		sections = append(sections, waiting)
	case StateLoading:
		sections = append(sections, styles.Dim.Render("Opening conversation..."))
	default:
		sections = append(sections, m.input.View())
	}

	sections = append(sections, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderStatusBar renders the status bar at the bottom
func (m Model) renderStatusBar() string {
	var status string
	var statusStyle lipgloss.Style

	switch m.state {
	case StateIdle:
		status = "Ready"
		statusStyle = styles.StatusBar
	case StateLoading:
		status = "Loading..."
		statusStyle = styles.StatusBar
	case StateStreaming:
		status = "Streaming..."
		statusStyle = styles.StatusBarStreaming
		if !m.chat.AtBottom() {
			status += " (PgDn for new output)"
		}
	case StateError:
		status = fmt.Sprintf("Error: %v", m.err)
		statusStyle = styles.StatusBarError
	}
	if u := m.usage; u != nil {
		status += fmt.Sprintf(" │ %s in / %s out", skillchat.FormatTokens(u.TotalInputTokens), skillchat.FormatTokens(u.TotalOutputTokens))
	}
	left := statusStyle.Render(status)

	help := styles.StatusBar.Render("Enter: send • Esc: stop • Ctrl+N: new • Ctrl+U: usage • Ctrl+C: quit")

	spacerWidth := m.width - lipgloss.Width(left) - lipgloss.Width(help)
	if spacerWidth < 1 {
		return left
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", spacerWidth), help)
}

// usageHeight is the number of lines renderUsage produces.
func usageHeight(u *skillchat.TokenUsage) int {
	if u == nil {
		return 3
	}
	// border (2), title, totals, one line per model
	return 4 + len(u.Models)
}

func renderUsage(u *skillchat.TokenUsage, width int) string {
	card := styles.Card.Width(max(width-4, 20))
	title := styles.CardTitle.Render("Token usage")
	if u == nil {
		return card.Render(title + " " + styles.Dim.Render("not available yet"))
	}

	lines := []string{
		title,
		fmt.Sprintf("Total: %s in · %s out · cache %s/%s · %d calls · $%.4f",
			skillchat.FormatTokens(u.TotalInputTokens),
			skillchat.FormatTokens(u.TotalOutputTokens),
			skillchat.FormatTokens(u.TotalCacheWriteTokens),
			skillchat.FormatTokens(u.TotalCacheReadTokens),
			u.TotalAPICalls,
			u.TotalCostUSD),
	}
	for _, mu := range u.Models {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("  %-16s %s in · %s out · %d calls",
			mu.DisplayName(),
			skillchat.FormatTokens(mu.InputTokens),
			skillchat.FormatTokens(mu.OutputTokens),
			mu.Calls)))
	}
	return card.Render(strings.Join(lines, "\n"))
}
