package session

import (
	"context"
	"errors"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	userIDKey    contextKey = "user_id"
	traceIDKey   contextKey = "trace_id"
)

var (
	// ErrNoSessionID is returned when no session ID is found in the context
	ErrNoSessionID = errors.New("no session ID found in context")
)

// WithSessionID returns a new context carrying the given session ID.
// Langfuse groups traces that share a session ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// GetSessionID returns the session ID from the context
func GetSessionID(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	if !ok || sessionID == "" {
		return "", ErrNoSessionID
	}
	return sessionID, nil
}

// WithUserID returns a new context carrying the given user ID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the user ID from the context, or "" if none is set
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// WithTraceID returns a new context carrying the given trace ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID from the context, or "" if none is set
func TraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}
