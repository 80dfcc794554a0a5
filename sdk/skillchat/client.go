// Package skillchat is a Go client for the skill-routing chat backend.
//
// Replies are streamed as server-sent events and folded into a Conversation,
// an immutable-snapshot message list that a UI can render at any time.
//
// Example usage:
//
//	client := skillchat.NewClient("http://localhost:8000",
//	    skillchat.WithAPIKey(os.Getenv("SKILLCHAT_API_KEY")),
//	)
//
//	summary, err := client.CreateConversation(ctx, "new conversation")
//	conv := skillchat.NewConversation(summary.ID, nil)
//
//	// Streams the reply into conv; cancel ctx to stop.
//	err = client.Send(ctx, conv, "Hello!")
//	for _, msg := range conv.Messages() {
//	    fmt.Println(msg.Role, msg.Text())
//	}
package skillchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	apiPrefix    = "/api/v1"
	apiKeyHeader = "X-API-Key"
)

// Client is the SDK client for the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *Logger

	timeout time.Duration
	cookies []*http.Cookie
}

// ClientOption configures the client. Options may be given in any order.
type ClientOption func(*Client)

// WithHTTPClient bases requests on a copy of c. The caller's client is never
// modified; the copy gets its own cookie jar if c has none.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		hc := *c
		client.httpClient = &hc
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.timeout = d
	}
}

// WithAPIKey sends key in the X-API-Key header, as development backends accept.
func WithAPIKey(key string) ClientOption {
	return func(client *Client) {
		client.apiKey = key
	}
}

// WithCookies seeds the cookie jar, e.g. with a session saved by a previous login.
func WithCookies(cookies []*http.Cookie) ClientOption {
	return func(client *Client) {
		client.cookies = append(client.cookies, cookies...)
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *Logger) ClientOption {
	return func(client *Client) {
		client.logger = l
	}
}

// NewClient creates a new SDK client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: GetLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}
	c.ensureJar()
	if len(c.cookies) > 0 {
		if u, err := url.Parse(c.baseURL); err == nil {
			c.httpClient.Jar.SetCookies(u, c.cookies)
		}
	}

	return c
}

// BaseURL returns the backend URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cookies returns the cookies the jar holds for the backend.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil || c.httpClient.Jar == nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(u)
}

func (c *Client) ensureJar() {
	if c.httpClient.Jar != nil {
		return
	}
	// cookiejar.New only fails for a bad PublicSuffixList, and we pass none.
	jar, _ := cookiejar.New(nil)
	c.httpClient.Jar = jar
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	return req, nil
}

// doRequest performs an HTTP request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	rl := c.logger.StartRequest(method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		rl.Error(err)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		serr := newStatusError(resp.StatusCode, bodyBytes)
		rl.Error(serr)
		return serr
	}
	rl.Success(resp.StatusCode)

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// =============================================================================
// Auth
// =============================================================================

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var result User
	if err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendOTP asks the backend to email a one-time login code.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	return c.doRequest(ctx, http.MethodPost, "/auth/send-otp", map[string]string{"email": email}, nil)
}

// VerifyOTP exchanges a one-time code for a session cookie, kept in the client's jar.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "otp_code": code}
	return c.doRequest(ctx, http.MethodPost, "/auth/verify-otp", body, nil)
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// =============================================================================
// Conversations
// =============================================================================

// ListConversations returns the user's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var result []ConversationSummary
	if err := c.doRequest(ctx, http.MethodGet, "/conversations", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateConversation creates a conversation with the given title.
func (c *Client) CreateConversation(ctx context.Context, title string) (*ConversationSummary, error) {
	var result ConversationSummary
	req := CreateConversationRequest{Title: title}
	if err := c.doRequest(ctx, http.MethodPost, "/conversations", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListMessages returns the stored history of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var result []HistoryMessage
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(result))
	for _, h := range result {
		msgs = append(msgs, h.ToMessage())
	}
	return msgs, nil
}

// TokenUsage returns the token usage of a conversation.
func (c *Client) TokenUsage(ctx context.Context, conversationID string) (*TokenUsage, error) {
	var result TokenUsage
	path := "/conversations/" + url.PathEscape(conversationID) + "/token-usage"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// Streaming
// =============================================================================

// StreamMessage posts text to a conversation and returns the reply stream.
// Errors are returned only for failures before the stream starts.
func (c *Client) StreamMessage(ctx context.Context, conversationID, text string) (*Stream, error) {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages/stream"
	req, err := c.newRequest(ctx, http.MethodPost, path, SendMessageRequest{Message: text})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream lives as long as ctx; the request timeout must not cut it off.
	sseClient := *c.httpClient
	sseClient.Timeout = 0

	rl := c.logger.StartRequest(http.MethodPost, path)
	resp, err := sseClient.Do(req)
	if err != nil {
		rl.Error(err)
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		serr := newStatusError(resp.StatusCode, bodyBytes)
		rl.Error(serr)
		return nil, serr
	}
	rl.Success(resp.StatusCode)

	s := NewStream(resp.Body)
	s.logger = c.logger
	return s, nil
}

// SendTurn streams the reply to text into the conversation t was opened for.
// A failure to open the stream is recorded as an error entry in the conversation
// and returned. Cancelling ctx is a clean stop and returns nil.
func (c *Client) SendTurn(ctx context.Context, t *Turn, text string) error {
	s, err := c.StreamMessage(ctx, t.ConversationID(), text)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if ferr := t.Fail(err); ferr != nil {
			return ferr
		}
		return err
	}
	return Run(ctx, s, t)
}

// Send appends text to conv as a user message and streams the reply into it.
func (c *Client) Send(ctx context.Context, conv *Conversation, text string, opts ...TurnOption) error {
	conv.AddUserMessage(text)
	return c.SendTurn(ctx, conv.BeginTurn(opts...), text)
}
