package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/williamcory/skillchat/internal/styles"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

const cursor = "▊"

// RenderMessage renders one message. streaming adds a cursor to an unfinished
// assistant message.
func RenderMessage(msg skillchat.Message, width int, streaming bool) string {
	var sb strings.Builder

	if msg.IsAssistant() {
		sb.WriteString(styles.AssistantLabel.Render("Assistant"))
	} else {
		sb.WriteString(styles.UserLabel.Render("You"))
	}
	sb.WriteString("\n")

	inner := max(width-4, 10)
	var blocks []string
	for _, p := range msg.Parts {
		switch {
		case p.IsThinking():
			blocks = append(blocks, styles.Thinking.Render(strings.Trim(p.Text, "_\n")))
		case p.IsText():
			if p.Text == "" {
				continue
			}
			blocks = append(blocks, renderText(msg, p.Text, inner))
		case p.IsSkillResult():
			blocks = append(blocks, RenderSkill(*p.Skill, inner))
		}
	}

	body := strings.Join(blocks, "\n")
	if streaming && msg.IsAssistant() && !msg.Done {
		body += styles.StreamingCursor.Render(cursor)
	}
	sb.WriteString(body)
	return sb.String()
}

func renderText(msg skillchat.Message, text string, width int) string {
	switch {
	case msg.Error:
		return styles.ErrorMessage.Width(width).Render(text)
	case msg.IsAssistant():
		return styles.AssistantMessage.Render(RenderMarkdown(text, width))
	default:
		return styles.UserMessage.Width(width).Render(text)
	}
}

// RenderSkill renders a skill result as a card.
func RenderSkill(r skillchat.SkillResult, width int) string {
	var body string
	switch p := r.Payload.(type) {
	case *skillchat.WebSearchPayload:
		body = renderSearch(p, width)
	case *skillchat.DocsPayload:
		body = RenderMarkdown(p.Message, width-4)
	case *skillchat.EventConfirmation:
		body = renderEvent(p.Event, true) + "\n\n" + renderActions(skillchat.Actions(p))
	case *skillchat.EventDetails:
		body = renderEvent(p.Event, false) + "\n\n" + renderActions(skillchat.Actions(p))
	case *skillchat.QuantityInput:
		body = fmt.Sprintf("%s\n%s", p.Label,
			styles.Dim.Render(fmt.Sprintf("Type a number from %d to %d (suggested: %d)", p.Min, p.Max, p.Default)))
	case *skillchat.PaymentOptions:
		body = "Total: " + styles.Price.Render(money(p.Amount)) + "\n\n" + renderActions(skillchat.Actions(p))
	case *skillchat.BookingConfirmation:
		body = renderReceipt(p)
	default:
		reason := "no renderer"
		if raw, ok := p.(*skillchat.RawPayload); ok && raw.Reason != "" {
			reason = raw.Reason
		}
		body = styles.Dim.Render(reason) + "\n" + r.PrettyData()
	}

	title := styles.CardTitle.Render(skillTitle(r))
	if r.Cached {
		title += " " + styles.CardBadge.Render("cached")
	}
	return styles.Card.Width(width).Render(title + "\n" + body)
}

func skillTitle(r skillchat.SkillResult) string {
	switch r.SkillName {
	case skillchat.SkillWebSearch:
		return "Web Search"
	case skillchat.SkillDocs:
		return "SkillGraph Docs"
	case skillchat.SkillTicketBooking:
		return "Ticket Booking"
	}
	return r.SkillName
}

func renderSearch(p *skillchat.WebSearchPayload, width int) string {
	hits := p.UniqueResults()
	var sb strings.Builder
	if p.Query != "" {
		sb.WriteString(styles.Dim.Render(fmt.Sprintf("%q · %d results", p.Query, len(hits))))
		sb.WriteString("\n")
	}
	preview := lipgloss.NewStyle().Width(max(width-6, 10))
	for i, h := range hits {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%d. %s %s\n", i+1, h.Title, styles.Dim.Render("("+h.Domain()+")")))
		sb.WriteString("   " + styles.Link.Render(h.URL) + "\n")
		sb.WriteString(preview.Render("   " + h.Preview()))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderEvent(e skillchat.BookingEvent, brief bool) string {
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(e.Name),
		fmt.Sprintf("%s at %s", e.Date, e.Time),
		e.Venue,
		"Price: " + styles.Price.Render(money(e.Price)) + " per ticket",
	}
	if !brief {
		if e.Description != "" {
			lines = append(lines, "", e.Description)
		}
		lines = append(lines, fmt.Sprintf("%d seats available", e.AvailableSeats))
	}
	return strings.Join(lines, "\n")
}

func renderActions(actions []skillchat.Action) string {
	parts := make([]string, 0, len(actions))
	for i, a := range actions {
		parts = append(parts, styles.ActionKey.Render(fmt.Sprintf("[%d]", i+1))+" "+a.Label)
	}
	return strings.Join(parts, "  ")
}

func renderReceipt(p *skillchat.BookingConfirmation) string {
	return strings.Join([]string{
		styles.Price.Render("Booking confirmed"),
		"Booking ID: " + p.BookingID,
		fmt.Sprintf("%s × %d", p.Event.Name, p.Quantity),
		"Paid with " + p.PaymentMethod + ": " + styles.Price.Render(money(p.Total)),
	}, "\n")
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
