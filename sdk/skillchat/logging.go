package skillchat

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel orders SDK log output from most to least verbose.
type LogLevel int

const (
	// LevelDebug adds every decoded event and request start.
	LevelDebug LogLevel = iota
	// LevelInfo adds completed requests and stream outcomes.
	LevelInfo
	// LevelWarn adds skipped frames and dropped turns.
	LevelWarn
	// LevelError keeps failed requests and broken streams only.
	LevelError
	// LevelOff disables all logging.
	LevelOff
)

var slogLevels = map[LogLevel]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// ParseLogLevel maps DEBUG|INFO|WARN|WARNING|ERROR (any case) to a level.
// Anything else, including "", is LevelOff.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	}
	return LevelOff
}

// Logger is the SDK's leveled logger. A nil or LevelOff Logger discards everything.
type Logger struct {
	slog  *slog.Logger
	level LogLevel
}

var defaultLogger = &Logger{level: LevelOff}

// SetLogger replaces the logger used by clients and streams created afterwards.
func SetLogger(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// GetLogger returns the package logger.
func GetLogger() *Logger {
	return defaultLogger
}

// NewLogger writes text records at level and above to w (stderr when nil).
// Timestamps are shortened to the time of day.
func NewLogger(level LogLevel, w io.Writer) *Logger {
	sl, ok := slogLevels[level]
	if !ok {
		return &Logger{level: LevelOff}
	}
	if w == nil {
		w = os.Stderr
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: sl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})
	return &Logger{slog: slog.New(h), level: level}
}

// NewLoggerFromEnv reads the level from LOG_LEVEL and writes to stderr.
func NewLoggerFromEnv() *Logger {
	return NewLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")), os.Stderr)
}

// IsEnabled reports whether any record would be written.
func (l *Logger) IsEnabled() bool {
	return l != nil && l.slog != nil && l.level != LevelOff
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if !l.IsEnabled() || level < l.level {
		return
	}
	l.slog.Log(context.Background(), slogLevels[level], msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	if !l.IsEnabled() {
		return l
	}
	return &Logger{slog: l.slog.With(args...), level: l.level}
}

// =============================================================================
// Request and stream lifecycles
// =============================================================================

// RequestLogger times one REST call.
type RequestLogger struct {
	logger *Logger
	start  time.Time
}

// StartRequest begins timing a call to path.
func (l *Logger) StartRequest(method, path string) *RequestLogger {
	rl := &RequestLogger{logger: l.With("method", method, "path", path), start: time.Now()}
	rl.logger.Debug("request started")
	return rl
}

// Success records the response status.
func (r *RequestLogger) Success(statusCode int) {
	r.logger.Info("request completed", "status", statusCode, "duration_ms", time.Since(r.start).Milliseconds())
}

// Error records a failed call.
func (r *RequestLogger) Error(err error) {
	r.logger.Error("request failed", "error", err, "duration_ms", time.Since(r.start).Milliseconds())
}

// Stream outcomes reported by StreamLogger.End.
const (
	StreamDone    = "done"
	StreamEOF     = "eof"
	StreamAborted = "aborted"
	StreamStale   = "stale"
)

// StreamLogger follows one streamed reply from the first byte to its outcome.
type StreamLogger struct {
	logger *Logger
	stream *Stream
	turn   *Turn
	start  time.Time
}

// StartStream begins following s as it is applied to t.
func (l *Logger) StartStream(s *Stream, t *Turn) *StreamLogger {
	return &StreamLogger{
		logger: l.With("conversation", t.ConversationID()),
		stream: s,
		turn:   t,
		start:  time.Now(),
	}
}

// Event records one decoded event and what it did to the conversation.
func (sl *StreamLogger) Event(ev *Event, effect Effect) {
	if effect == EffectNone && !ev.Type.Known() {
		sl.logger.Debug("ignoring unknown event", "type", ev.Type)
		return
	}
	var number any
	if ev.MessageNumber != nil {
		number = *ev.MessageNumber
	}
	sl.logger.Debug("event", "type", ev.Type, "number", number, "effect", effect)
}

// End records how the stream finished.
func (sl *StreamLogger) End(outcome string) {
	level := LevelInfo
	if outcome == StreamStale {
		level = LevelWarn
	}
	sl.logger.log(level, "stream ended", append([]any{"outcome", outcome}, sl.stats()...)...)
}

// Fail records a stream broken by a read error.
func (sl *StreamLogger) Fail(err error) {
	sl.logger.Error("stream failed", append([]any{"error", err}, sl.stats()...)...)
}

func (sl *StreamLogger) stats() []any {
	return []any{
		"bytes", sl.stream.BytesRead(),
		"applied", sl.turn.Applied(),
		"skipped", sl.stream.Skipped(),
		"duration_ms", time.Since(sl.start).Milliseconds(),
	}
}
