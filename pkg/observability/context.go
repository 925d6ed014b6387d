package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	requestIDCtxKey     contextKey = "request_id"
	userIDCtxKey        contextKey = "user_id"
)

// Attribute keys the logging handler emits for context-carried IDs.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	UserIDKey        = "user_id"
)

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID stores the correlation ID that threads one request
// through commands, staged events and their consumers. An empty id gets
// a fresh UUID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, correlationIDCtxKey)
}

// WithRequestID stores the per-request ID. An empty id gets a fresh UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDCtxKey)
}

// WithUserID stores the ID of the authenticated caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext returns the caller ID, or "".
func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userIDCtxKey)
}

// NewRequestContext stamps a fresh request ID and either adopts the
// caller-supplied correlation ID or generates one.
func NewRequestContext(ctx context.Context, parentCorrelationID string) context.Context {
	ctx = WithRequestID(ctx, "")
	return WithCorrelationID(ctx, parentCorrelationID)
}
