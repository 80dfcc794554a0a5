package skillchat

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Known skills and render types.
const (
	SkillWebSearch     = "web_search"
	SkillDocs          = "skillgraph_docs"
	SkillTicketBooking = "ticket_booking"

	RenderBookingWorkflow = "booking_workflow"
)

// Ticket booking screens, discriminated by data.type.
const (
	BookingEventConfirmation = "event_confirmation"
	BookingEventDetails      = "event_details"
	BookingNumberInput       = "number_input"
	BookingPaymentOptions    = "payment_options"
	BookingConfirmed         = "booking_confirmation"
)

// SkillResult is a structured result produced by a backend skill.
type SkillResult struct {
	SkillName  string          `json:"skill_name"`
	RenderType string          `json:"render_type,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`

	// Payload is the decoded form of Data. It is never nil; unrecognized
	// skill/render combinations decode to *RawPayload.
	Payload SkillPayload `json:"-"`
}

// PrettyData returns Data as indented JSON.
func (r SkillResult) PrettyData() string {
	if len(r.Data) == 0 {
		return "null"
	}
	return strings.TrimRight(string(pretty.Pretty(r.Data)), "\n")
}

// SkillPayload is implemented by every decoded skill payload.
type SkillPayload interface {
	skillPayload()
}

// WebSearchPayload is the web_search result.
type WebSearchPayload struct {
	Query         string               `json:"query"`
	SearchQueries []string             `json:"search_queries"`
	Results       []SearchQueryResults `json:"results"`
	NumResults    int                  `json:"num_results"`
}

// SearchQueryResults groups the hits of one search query.
type SearchQueryResults struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

// SearchHit is one search result.
type SearchHit struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Excerpts []string `json:"excerpts"`

	// SearchQuery is the query that produced the hit. Set by UniqueResults.
	SearchQuery string `json:"-"`
}

// UniqueResults flattens the results of all queries and removes duplicate URLs.
// A URL keeps the position of its first occurrence and the value of its last.
func (w *WebSearchPayload) UniqueResults() []SearchHit {
	var out []SearchHit
	index := make(map[string]int)
	for _, group := range w.Results {
		for _, hit := range group.Results {
			hit.SearchQuery = group.Query
			if i, ok := index[hit.URL]; ok {
				out[i] = hit
				continue
			}
			index[hit.URL] = len(out)
			out = append(out, hit)
		}
	}
	return out
}

// Domain returns the host of the hit URL without a leading "www.".
func (h SearchHit) Domain() string {
	u, err := url.Parse(h.URL)
	if err != nil || u.Hostname() == "" {
		return h.URL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Preview returns up to 150 characters of the first excerpt.
func (h SearchHit) Preview() string {
	if len(h.Excerpts) == 0 || h.Excerpts[0] == "" {
		return "No preview available"
	}
	r := []rune(h.Excerpts[0])
	if len(r) > 150 {
		r = r[:150]
	}
	return string(r)
}

// DocsPayload is the skillgraph_docs answer.
type DocsPayload struct {
	Message string `json:"message"`
}

// BookingEvent describes the event being booked.
type BookingEvent struct {
	Name           string  `json:"name"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Venue          string  `json:"venue"`
	Description    string  `json:"description,omitempty"`
	Price          float64 `json:"price"`
	AvailableSeats int     `json:"available_seats"`
}

// EventConfirmation asks the user to confirm the proposed event.
type EventConfirmation struct {
	Event   BookingEvent `json:"event"`
	Buttons []string     `json:"buttons"`
}

// EventDetails shows extended event information.
type EventDetails struct {
	Event   BookingEvent `json:"event"`
	Buttons []string     `json:"buttons"`
}

// QuantityInput asks for a ticket count.
type QuantityInput struct {
	Label   string `json:"label"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Default int    `json:"default"`
}

// PaymentOption is one selectable payment method.
type PaymentOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PaymentOptions asks for a payment method.
type PaymentOptions struct {
	Amount  float64         `json:"amount"`
	Options []PaymentOption `json:"options"`
}

// BookingConfirmation is the final booking receipt.
type BookingConfirmation struct {
	BookingID     string       `json:"booking_id"`
	Event         BookingEvent `json:"event"`
	Quantity      int          `json:"quantity"`
	Total         float64      `json:"total"`
	PaymentMethod string       `json:"payment_method"`
}

// RawPayload is the fallback for skill results that have no dedicated renderer.
type RawPayload struct {
	Reason string
	Data   json.RawMessage
}

func (*WebSearchPayload) skillPayload()    {}
func (*DocsPayload) skillPayload()         {}
func (*EventConfirmation) skillPayload()   {}
func (*EventDetails) skillPayload()        {}
func (*QuantityInput) skillPayload()       {}
func (*PaymentOptions) skillPayload()      {}
func (*BookingConfirmation) skillPayload() {}
func (*RawPayload) skillPayload()          {}

// ParseSkillResult decodes a skill result into its typed payload.
func ParseSkillResult(skillName, renderType string, data json.RawMessage, cached bool) SkillResult {
	r := SkillResult{
		SkillName:  skillName,
		RenderType: renderType,
		Cached:     cached,
		Data:       data,
	}
	if skillName == SkillTicketBooking && r.RenderType == "" {
		r.RenderType = RenderBookingWorkflow
	}
	r.Payload = decodePayload(skillName, data)
	return r
}

func decodePayload(skillName string, data json.RawMessage) SkillPayload {
	if len(data) == 0 || !gjson.ValidBytes(data) || gjson.ParseBytes(data).Type == gjson.Null {
		return &RawPayload{Reason: "empty data", Data: data}
	}

	switch skillName {
	case SkillWebSearch:
		var p WebSearchPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return &RawPayload{Reason: err.Error(), Data: data}
		}
		return &p

	case SkillDocs:
		msg := gjson.GetBytes(data, "message")
		if msg.Type != gjson.String || msg.Str == "" {
			return &RawPayload{Reason: "docs result without message", Data: data}
		}
		return &DocsPayload{Message: msg.Str}

	case SkillTicketBooking:
		return decodeBooking(data)
	}
	return &RawPayload{Reason: fmt.Sprintf("unknown skill: %s", skillName), Data: data}
}

func decodeBooking(data json.RawMessage) SkillPayload {
	kind := gjson.GetBytes(data, "type").String()

	var p SkillPayload
	switch kind {
	case BookingEventConfirmation:
		p = &EventConfirmation{}
	case BookingEventDetails:
		p = &EventDetails{}
	case BookingNumberInput:
		p = &QuantityInput{}
	case BookingPaymentOptions:
		p = &PaymentOptions{}
	case BookingConfirmed:
		p = &BookingConfirmation{}
	default:
		return &RawPayload{Reason: fmt.Sprintf("unknown render type: %s", kind), Data: data}
	}
	if err := json.Unmarshal(data, p); err != nil {
		return &RawPayload{Reason: err.Error(), Data: data}
	}

	if q, ok := p.(*QuantityInput); ok {
		if q.Min <= 0 {
			q.Min = 1
		}
		if q.Max <= 0 {
			q.Max = 10
		}
		if q.Default <= 0 {
			q.Default = 2
		}
		q.Default = clamp(q.Default, q.Min, q.Max)
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// =============================================================================
// User actions
// =============================================================================

// Action is a choice offered by an interactive skill result.
type Action struct {
	Label string
	// Value is what gets sent back to the backend as the next user message.
	Value string
}

// Actions lists the choices offered by a payload, in display order.
// Non-interactive payloads return nil.
func Actions(p SkillPayload) []Action {
	switch p := p.(type) {
	case *EventConfirmation:
		return buttonActions(p.Buttons)
	case *EventDetails:
		return buttonActions(p.Buttons)
	case *PaymentOptions:
		out := make([]Action, 0, len(p.Options))
		for _, o := range p.Options {
			out = append(out, Action{Label: o.Label, Value: o.ID})
		}
		return out
	}
	return nil
}

func buttonActions(buttons []string) []Action {
	out := make([]Action, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, Action{Label: b, Value: b})
	}
	return out
}

// ResolveAction maps user input onto a payload's choices. A 1-based index selects
// the n-th action; for a quantity prompt an in-range number is sent as-is.
func ResolveAction(p SkillPayload, input string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return "", false
	}
	if q, ok := p.(*QuantityInput); ok {
		if n < q.Min || n > q.Max {
			return "", false
		}
		return strconv.Itoa(n), true
	}
	actions := Actions(p)
	if n < 1 || n > len(actions) {
		return "", false
	}
	return actions[n-1].Value, true
}
