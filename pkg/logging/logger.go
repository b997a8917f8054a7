package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/run-bigpig/observable-agent/pkg/session"
)

// Logger is an interface for logging
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	// With returns a child logger that attaches fields to every entry
	With(fields map[string]interface{}) Logger
}

// ZeroLogger implements Logger using zerolog
type ZeroLogger struct {
	logger zerolog.Logger
	out    io.Writer
	json   bool
	level  zerolog.Level
}

// Option configures a ZeroLogger
type Option func(*ZeroLogger)

// New creates a new ZeroLogger writing human-readable lines to stdout
func New(opts ...Option) *ZeroLogger {
	l := &ZeroLogger{out: os.Stdout, level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(l)
	}

	var w io.Writer = l.out
	if !l.json {
		w = zerolog.ConsoleWriter{Out: l.out, TimeFormat: time.RFC3339, NoColor: l.out != os.Stdout}
	}
	l.logger = zerolog.New(w).Level(l.level).With().Timestamp().Logger()
	return l
}

// NewNop returns a logger that discards everything
func NewNop() *ZeroLogger {
	return &ZeroLogger{logger: zerolog.Nop()}
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error")
func WithLevel(level string) Option {
	return func(l *ZeroLogger) {
		switch level {
		case "debug":
			l.level = zerolog.DebugLevel
		case "info":
			l.level = zerolog.InfoLevel
		case "warn", "warning":
			l.level = zerolog.WarnLevel
		case "error":
			l.level = zerolog.ErrorLevel
		default:
			l.level = zerolog.InfoLevel
		}
	}
}

// WithWriter redirects output
func WithWriter(w io.Writer) Option {
	return func(l *ZeroLogger) {
		l.out = w
	}
}

// WithJSON switches to structured JSON output
func WithJSON() Option {
	return func(l *ZeroLogger) {
		l.json = true
	}
}

// With returns a child logger with the given fields attached
func (l *ZeroLogger) With(fields map[string]interface{}) Logger {
	return &ZeroLogger{
		logger: l.logger.With().Fields(fields).Logger(),
		out:    l.out,
		json:   l.json,
		level:  l.level,
	}
}

// Info logs an info message
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Info(), msg, fields)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Warn(), msg, fields)
}

// Error logs an error message
func (l *ZeroLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Error(), msg, fields)
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	write(ctx, l.logger.Debug(), msg, fields)
}

func write(ctx context.Context, event *zerolog.Event, msg string, fields map[string]interface{}) {
	if event == nil {
		return
	}
	if ctx != nil {
		if traceID := session.TraceID(ctx); traceID != "" {
			event = event.Str("trace_id", traceID)
		}
		if sessionID, err := session.GetSessionID(ctx); err == nil {
			event = event.Str("session_id", sessionID)
		}
		if userID := session.UserID(ctx); userID != "" {
			event = event.Str("user_id", userID)
		}
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
