package contextx

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const (
	userIDKey        ctxKey = "user_id"
	correlationIDKey ctxKey = "correlation_id"
)

// NewRequestID returns a fresh request id, e.g. req_1b4e28ba2fa1...
func NewRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithUserID records the user acting in ctx.
func WithUserID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the user recorded by WithUserID.
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCorrelationID records the id stamped on messages caused by ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the id recorded by WithCorrelationID.
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}
