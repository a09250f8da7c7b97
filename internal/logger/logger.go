// Package logger sets up the JSON logger shared by the controller, worker,
// and CLI processes, and carries the request correlation ID through context
// so handler logs and audit entries line up.
package logger

import (
	"context"
	"log/slog"
	"os"
)

// requestIDKey is the context key for the per-request correlation ID.
type requestIDKey struct{}

// New returns the process-wide structured JSON logger.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// WithRequestID stamps the correlation ID onto the context. The audit
// recorder reads it back when writing entries.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the correlation ID, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey{}); v != nil {
		return v.(string)
	}
	return ""
}

// FromContext attaches the context's correlation fields to base.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		return base.With("request_id", reqID)
	}
	return base
}
