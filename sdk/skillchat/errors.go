package skillchat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnauthorized is matched by StatusError values carrying HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStreamClosed is returned by Stream.Next after Close.
	ErrStreamClosed = errors.New("stream closed")

	// ErrStaleConversation is returned when a turn's conversation is no longer active.
	ErrStaleConversation = errors.New("conversation is no longer active")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	// Detail is the backend's "detail" field when present, otherwise the raw body.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// newStatusError builds a StatusError from a response body.
func newStatusError(status int, body []byte) *StatusError {
	detail := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		if d := gjson.GetBytes(body, "detail"); d.Type == gjson.String {
			detail = d.Str
		}
	}
	return &StatusError{StatusCode: status, Detail: detail}
}
