package logger

import "context"

const (
	// CorrelationIDHeader is the HTTP header carrying the correlation id.
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDFieldKey is the field key used for correlation ID in log entries
	CorrelationIDFieldKey = "correlation_id"
)

type contextKey string

const correlationIDContextKey contextKey = "correlation_id"

// WithCorrelationIDContext adds correlation ID to context
func WithCorrelationIDContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

// GetCorrelationIDFromContext retrieves correlation ID from context
func GetCorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns base enriched with the context's correlation id, if any.
func FromContext(ctx context.Context, base Logger) Logger {
	if id := GetCorrelationIDFromContext(ctx); id != "" {
		return base.WithCorrelationID(id)
	}
	return base
}
