package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

// Request is one user message a responder replies to.
type Request struct {
	ConversationID string
	Message        string
	// History holds the messages before this one, oldest first.
	History []Message
	// Booking is the conversation's booking workflow state. Responders may
	// change it; the change is stored with the reply.
	Booking Booking
}

// Responder produces the reply to a request through out.
type Responder interface {
	Respond(ctx context.Context, req *Request, out *Emitter) error
}

// Booking workflow steps.
const (
	stepConfirm  = "confirm"
	stepQuantity = "quantity"
	stepPayment  = "payment"
)

var demoEvent = skillchat.BookingEvent{
	Name:           "Go Meetup: Streaming in Production",
	Date:           "2025-11-14",
	Time:           "19:00",
	Venue:          "The Engine Room, Berlin",
	Description:    "Talks on server-sent events, backpressure and graceful shutdown.",
	Price:          25,
	AvailableSeats: 42,
}

var demoPaymentOptions = []skillchat.PaymentOption{
	{ID: "card", Label: "Credit card"},
	{ID: "paypal", Label: "PayPal"},
	{ID: "apple_pay", Label: "Apple Pay"},
}

// ScriptedResponder routes messages to canned skills by keyword.
type ScriptedResponder struct {
	mu        sync.Mutex
	docsAsked map[string]bool
}

// NewScriptedResponder returns a responder that needs no network access.
func NewScriptedResponder() *ScriptedResponder {
	return &ScriptedResponder{docsAsked: make(map[string]bool)}
}

func (r *ScriptedResponder) Respond(ctx context.Context, req *Request, out *Emitter) error {
	out.Usage(skillchat.ModelUsage{
		Provider:    "user_input",
		Model:       "user_input",
		InputTokens: int64(len(strings.Fields(req.Message))),
		Calls:       1,
	})

	n, err := out.Start()
	if err != nil {
		return err
	}

	lower := strings.ToLower(req.Message)
	switch {
	case req.Booking.Step != "":
		err = r.continueBooking(req, out, n)
	case containsAny(lower, "book", "ticket"):
		err = r.startBooking(req, out, n)
	case containsAny(lower, "search", "find", "look up"):
		err = r.search(req, out, n)
	case containsAny(lower, "docs", "skillgraph", "how do"):
		err = r.docs(req, out, n)
	default:
		err = r.chat(req, out, n)
	}
	if err != nil {
		return err
	}

	out.Usage(skillchat.ModelUsage{
		Provider:     "mock",
		Model:        "scripted",
		OutputTokens: int64(len(req.Message)),
		Calls:        1,
	})
	return out.Done(n)
}

func (r *ScriptedResponder) chat(req *Request, out *Emitter, n int) error {
	if err := out.Thinking(n, "thinking"); err != nil {
		return err
	}
	lower := strings.ToLower(req.Message)
	if containsAny(lower, "hello", "hi") {
		return out.Text(n, "Hello! I can **search the web**, answer questions from the **docs**, "+
			"or **book tickets** for you. What would you like to do?")
	}
	return out.Text(n, fmt.Sprintf("You said: %q.\n\nTry asking me to *search* for something, "+
		"to look something up in the *docs*, or to *book* a ticket.", req.Message))
}

func (r *ScriptedResponder) search(req *Request, out *Emitter, n int) error {
	if err := out.Thinking(n, "searching the web"); err != nil {
		return err
	}
	query := strings.TrimSpace(req.Message)
	data := skillchat.WebSearchPayload{
		Query:         query,
		SearchQueries: []string{query, query + " tutorial"},
		Results: []skillchat.SearchQueryResults{
			{Query: query, Results: []skillchat.SearchHit{
				{URL: "https://go.dev/doc/", Title: "Documentation - The Go Programming Language",
					Excerpts: []string{"The Go programming language is an open source project to make programmers more productive."}},
				{URL: "https://pkg.go.dev/net/http", Title: "http package - net/http",
					Excerpts: []string{"Package http provides HTTP client and server implementations."}},
			}},
			{Query: query + " tutorial", Results: []skillchat.SearchHit{
				{URL: "https://go.dev/doc/", Title: "Documentation - The Go Programming Language",
					Excerpts: []string{"Tutorials, guides and references for Go."}},
				{URL: "https://gobyexample.com/", Title: "Go by Example",
					Excerpts: []string{"Go by Example is a hands-on introduction to Go using annotated example programs."}},
			}},
		},
		NumResults: 4,
	}
	if err := out.Skill(n, skillchat.SkillWebSearch, "", data, false); err != nil {
		return err
	}
	return out.Text(n, "I found a few relevant pages. The official documentation is the best place to start.")
}

func (r *ScriptedResponder) docs(req *Request, out *Emitter, n int) error {
	if err := out.Thinking(n, "reading the docs"); err != nil {
		return err
	}
	r.mu.Lock()
	cached := r.docsAsked[req.ConversationID]
	r.docsAsked[req.ConversationID] = true
	r.mu.Unlock()

	data := skillchat.DocsPayload{
		Message: "## Skills\n\nEach message is routed to a **skill**:\n\n" +
			"- `web_search` for fresh information\n" +
			"- `skillgraph_docs` for questions about the platform\n" +
			"- `ticket_booking` for the booking workflow\n\n" +
			"Anything else falls back to the language model.",
	}
	return out.Skill(n, skillchat.SkillDocs, "", data, cached)
}

func (r *ScriptedResponder) startBooking(req *Request, out *Emitter, n int) error {
	if err := out.Thinking(n, "finding events"); err != nil {
		return err
	}
	req.Booking = Booking{Step: stepConfirm}
	if err := bookingScreen(out, n, skillchat.BookingEventConfirmation, skillchat.EventConfirmation{
		Event:   demoEvent,
		Buttons: []string{"Yes, book it", "Show details", "Cancel"},
	}); err != nil {
		return err
	}
	return out.Text(n, "I found an upcoming event. Shall I book it?")
}

func (r *ScriptedResponder) continueBooking(req *Request, out *Emitter, n int) error {
	lower := strings.ToLower(strings.TrimSpace(req.Message))
	if strings.Contains(lower, "cancel") {
		req.Booking = Booking{}
		return out.Text(n, "Booking cancelled.")
	}

	switch req.Booking.Step {
	case stepConfirm:
		if strings.Contains(lower, "detail") {
			return bookingScreen(out, n, skillchat.BookingEventDetails, skillchat.EventDetails{
				Event:   demoEvent,
				Buttons: []string{"Yes, book it", "Cancel"},
			})
		}
		if containsAny(lower, "yes", "book") {
			req.Booking.Step = stepQuantity
			return bookingScreen(out, n, skillchat.BookingNumberInput, skillchat.QuantityInput{
				Label:   "How many tickets?",
				Min:     1,
				Max:     10,
				Default: 2,
			})
		}

	case stepQuantity:
		q, err := strconv.Atoi(lower)
		if err == nil && q >= 1 && q <= 10 {
			req.Booking.Step = stepPayment
			req.Booking.Quantity = q
			return bookingScreen(out, n, skillchat.BookingPaymentOptions, skillchat.PaymentOptions{
				Amount:  demoEvent.Price * float64(q),
				Options: demoPaymentOptions,
			})
		}
		return out.Text(n, "Please enter a number of tickets between 1 and 10.")

	case stepPayment:
		for _, opt := range demoPaymentOptions {
			if lower == opt.ID || lower == strings.ToLower(opt.Label) {
				q := req.Booking.Quantity
				req.Booking = Booking{}
				return bookingScreen(out, n, skillchat.BookingConfirmed, skillchat.BookingConfirmation{
					BookingID:     "BK-" + strings.ToUpper(req.ConversationID[:min(8, len(req.ConversationID))]),
					Event:         demoEvent,
					Quantity:      q,
					Total:         demoEvent.Price * float64(q),
					PaymentMethod: opt.Label,
				})
			}
		}
	}
	return out.Text(n, "Please choose one of the options above, or say *cancel*.")
}

// bookingScreen sends a ticket booking screen, tagging v with its screen type.
func bookingScreen(out *Emitter, n int, kind string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b, err = sjson.SetBytes(b, "type", kind)
	if err != nil {
		return err
	}
	return out.Skill(n, skillchat.SkillTicketBooking, skillchat.RenderBookingWorkflow, json.RawMessage(b), false)
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
