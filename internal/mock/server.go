// Package mock implements an in-memory development backend that speaks the
// chat service's REST and streaming protocol.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/williamcory/skillchat/sdk/skillchat"
)

const (
	// DevAPIKey is accepted in the X-API-Key header in place of a session.
	DevAPIKey = "dev-key-123"
	// DevEmail is the user an API key request acts as.
	DevEmail = "dev@localhost"
	// DevOTP is the one-time code every login accepts.
	DevOTP = "123456"
	// DefaultTitle is the title given to conversations created without one.
	DefaultTitle = "New Conversation"

	sessionCookie = "session"
)

// Options configures the server.
type Options struct {
	// APIKey overrides DevAPIKey. Set to "-" to disable API key access.
	APIKey string
	// Wrap sends every event wrapped as {"chunk": "<json>"}, as some proxies do.
	Wrap bool
	// LineFraming separates events with a single newline instead of a blank line.
	LineFraming bool
	// Delay paces streamed text.
	Delay time.Duration
	// Responder produces replies. Defaults to a ScriptedResponder.
	Responder Responder
	Logger    *skillchat.Logger
}

// Option configures the server.
type Option func(*Options)

// WithWrap enables proxy-style frame wrapping.
func WithWrap() Option {
	return func(o *Options) { o.Wrap = true }
}

// WithLineFraming enables single-newline framing.
func WithLineFraming() Option {
	return func(o *Options) { o.LineFraming = true }
}

// WithDelay paces streamed text.
func WithDelay(d time.Duration) Option {
	return func(o *Options) { o.Delay = d }
}

// WithResponder replaces the scripted responder.
func WithResponder(r Responder) Option {
	return func(o *Options) { o.Responder = r }
}

// WithAPIKey sets the accepted development API key.
func WithAPIKey(key string) Option {
	return func(o *Options) { o.APIKey = key }
}

// WithLogger sets the request logger.
func WithLogger(l *skillchat.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Server is the development backend.
type Server struct {
	opts  Options
	store *store
}

// NewServer creates a server.
func NewServer(opts ...Option) *Server {
	o := Options{APIKey: DevAPIKey}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Responder == nil {
		o.Responder = NewScriptedResponder()
	}
	if o.Logger == nil {
		o.Logger = skillchat.GetLogger()
	}
	return &Server{opts: o, store: newStore()}
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/send-otp", s.sendOTPHandler)
		r.Post("/auth/verify-otp", s.verifyOTPHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/me", s.meHandler)
			r.Post("/auth/logout", s.logoutHandler)
			r.Get("/conversations", s.listConversationsHandler)
			r.Post("/conversations", s.createConversationHandler)
			r.Get("/conversations/{id}/messages", s.messagesHandler)
			r.Get("/conversations/{id}/token-usage", s.tokenUsageHandler)
			r.Post("/conversations/{id}/messages/stream", s.streamHandler)
		})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streams observe ctx so shutdown does not wait for them to finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.opts.Logger.Info("mock backend listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// =============================================================================
// Middleware
// =============================================================================

type ctxKey struct{}

func userFrom(ctx context.Context) string {
	email, _ := ctx.Value(ctxKey{}).(string)
	return email
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := ""
		if key := r.Header.Get("X-API-Key"); key != "" && s.opts.APIKey != "-" && key == s.opts.APIKey {
			email = DevEmail
		} else if c, err := r.Cookie(sessionCookie); err == nil {
			email, _ = s.store.sessionEmail(c.Value)
		}
		if email == "" {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, email)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl := s.opts.Logger.StartRequest(r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rl.Success(ww.Status())
	})
}

// =============================================================================
// Handlers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) sendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	s.store.issueOTP(req.Email, DevOTP)
	s.opts.Logger.Info("otp issued", "email", req.Email, "code", DevOTP)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Code sent"})
}

func (s *Server) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		OTPCode string `json:"otp_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	token, ok := s.store.verifyOTP(req.Email, req.OTPCode)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, skillchat.User{Email: req.Email})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, skillchat.User{Email: userFrom(r.Context())})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.store.endSession(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.listConversations(userFrom(r.Context())))
}

func (s *Server) createConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req skillchat.CreateConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = DefaultTitle
	}
	writeJSON(w, http.StatusOK, s.store.createConversation(userFrom(r.Context()), req.Title))
}

func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	msgs, ok := s.store.messages(userFrom(r.Context()), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) tokenUsageHandler(w http.ResponseWriter, r *http.Request) {
	usage, ok := s.store.tokenUsage(userFrom(r.Context()), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	var body skillchat.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	owner := userFrom(r.Context())
	id := chi.URLParam(r, "id")
	req, ok := s.store.beginTurn(owner, id, body.Message)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	out := newEmitter(r.Context(), w, flusher, s.opts)
	err := s.opts.Responder.Respond(r.Context(), req, out)

	// Stored before [DONE] so a client that sends again right away sees this turn.
	s.store.endTurn(owner, id, req, out)

	if err == nil {
		err = out.finish()
	}
	if err != nil {
		s.opts.Logger.Warn("stream ended early", "conversation", id, "error", err)
	}
}
