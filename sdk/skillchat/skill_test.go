package skillchat_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

func TestWebSearchUniqueResults(t *testing.T) {
	data := json.RawMessage(`{
		"query": "go sse",
		"search_queries": ["go sse", "server sent events go"],
		"results": [
			{"query": "go sse", "results": [
				{"url": "https://a.example/x", "title": "A1", "excerpts": ["first"]},
				{"url": "https://www.b.example/y", "title": "B", "excerpts": []}
			]},
			{"query": "server sent events go", "results": [
				{"url": "https://a.example/x", "title": "A2", "excerpts": ["second"]},
				{"url": "https://c.example/z", "title": "C", "excerpts": ["c"]}
			]}
		],
		"num_results": 4
	}`)

	sr := skillchat.ParseSkillResult(skillchat.SkillWebSearch, "", data, false)
	ws, ok := sr.Payload.(*skillchat.WebSearchPayload)
	require.True(t, ok, "payload is %T", sr.Payload)

	hits := ws.UniqueResults()
	require.Len(t, hits, 3)
	assert.Equal(t, "A2", hits[0].Title)
	assert.Equal(t, "server sent events go", hits[0].SearchQuery)
	assert.Equal(t, "B", hits[1].Title)
	assert.Equal(t, "C", hits[2].Title)

	assert.Equal(t, "b.example", hits[1].Domain())
	assert.Equal(t, "No preview available", hits[1].Preview())
	assert.Equal(t, "second", hits[0].Preview())
}

func TestSearchHitPreviewTruncates(t *testing.T) {
	hit := skillchat.SearchHit{Excerpts: []string{strings.Repeat("é", 200)}}
	assert.Equal(t, 150, len([]rune(hit.Preview())))
}

func TestBookingPayloads(t *testing.T) {
	tests := []struct {
		name string
		data string
		want interface{}
	}{
		{"confirmation", `{"type":"event_confirmation","event":{"name":"Gig","price":20},"buttons":["Yes","No"]}`, &skillchat.EventConfirmation{}},
		{"details", `{"type":"event_details","event":{"name":"Gig"},"buttons":["Book"]}`, &skillchat.EventDetails{}},
		{"quantity", `{"type":"number_input","label":"How many?"}`, &skillchat.QuantityInput{}},
		{"payment", `{"type":"payment_options","amount":40,"options":[{"id":"card","label":"Card"}]}`, &skillchat.PaymentOptions{}},
		{"confirmed", `{"type":"booking_confirmation","booking_id":"BK1","quantity":2,"total":40}`, &skillchat.BookingConfirmation{}},
		{"unknown screen", `{"type":"seat_map"}`, &skillchat.RawPayload{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := skillchat.ParseSkillResult(skillchat.SkillTicketBooking, "", json.RawMessage(tt.data), false)
			assert.Equal(t, skillchat.RenderBookingWorkflow, sr.RenderType)
			assert.IsType(t, tt.want, sr.Payload)
		})
	}
}

func TestQuantityInputDefaults(t *testing.T) {
	sr := skillchat.ParseSkillResult(skillchat.SkillTicketBooking, skillchat.RenderBookingWorkflow,
		json.RawMessage(`{"type":"number_input","label":"Tickets"}`), false)
	q := sr.Payload.(*skillchat.QuantityInput)
	assert.Equal(t, 1, q.Min)
	assert.Equal(t, 10, q.Max)
	assert.Equal(t, 2, q.Default)

	sr = skillchat.ParseSkillResult(skillchat.SkillTicketBooking, "",
		json.RawMessage(`{"type":"number_input","min":3,"max":5}`), false)
	q = sr.Payload.(*skillchat.QuantityInput)
	assert.Equal(t, 3, q.Default)
}

func TestFallbackPayload(t *testing.T) {
	tests := []struct {
		name  string
		skill string
		data  string
	}{
		{"unknown skill", "weather", `{"temp":21}`},
		{"null data", skillchat.SkillWebSearch, `null`},
		{"docs without message", skillchat.SkillDocs, `{"answer":"x"}`},
		{"malformed search", skillchat.SkillWebSearch, `{"results":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := skillchat.ParseSkillResult(tt.skill, "", json.RawMessage(tt.data), false)
			raw, ok := sr.Payload.(*skillchat.RawPayload)
			require.True(t, ok, "payload is %T", sr.Payload)
			assert.NotEmpty(t, raw.Reason)
		})
	}
}

func TestPrettyData(t *testing.T) {
	sr := skillchat.SkillResult{Data: json.RawMessage(`{"a":1}`)}
	assert.Equal(t, "{\n  \"a\": 1\n}", sr.PrettyData())

	assert.Equal(t, "null", skillchat.SkillResult{}.PrettyData())
}

func TestResolveAction(t *testing.T) {
	confirm := &skillchat.EventConfirmation{Buttons: []string{"Yes, book it", "No"}}
	payment := &skillchat.PaymentOptions{Options: []skillchat.PaymentOption{
		{ID: "card", Label: "Credit card"},
		{ID: "paypal", Label: "PayPal"},
	}}
	quantity := &skillchat.QuantityInput{Min: 1, Max: 4, Default: 2}

	tests := []struct {
		name    string
		payload skillchat.SkillPayload
		input   string
		want    string
		ok      bool
	}{
		{"first button", confirm, "1", "Yes, book it", true},
		{"second button", confirm, " 2 ", "No", true},
		{"out of range", confirm, "3", "", false},
		{"not a number", confirm, "yes", "", false},
		{"payment id", payment, "2", "paypal", true},
		{"quantity in range", quantity, "4", "4", true},
		{"quantity too large", quantity, "5", "", false},
		{"no actions", &skillchat.DocsPayload{Message: "x"}, "1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := skillchat.ResolveAction(tt.payload, tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
