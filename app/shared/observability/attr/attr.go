// Package attr holds the slog attribute helpers used across modules so log
// keys stay consistent.
package attr

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey string

// CorrelationIDKey is the context key carrying the message correlation ID.
const CorrelationIDKey ctxKey = "correlation_id"

// WithCorrelationID stores a correlation ID on the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// CorrelationIDFromContext returns the stored correlation ID, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// ExtractCorrelationID returns the context's correlation ID as an attribute.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	return slog.String("correlation_id", CorrelationIDFromContext(ctx))
}

func String(key, value string) slog.Attr            { return slog.String(key, value) }
func Int(key string, value int) slog.Attr            { return slog.Int(key, value) }
func Int64(key string, value int64) slog.Attr        { return slog.Int64(key, value) }
func Float64(key string, value float64) slog.Attr    { return slog.Float64(key, value) }
func Bool(key string, value bool) slog.Attr          { return slog.Bool(key, value) }
func Any(key string, value any) slog.Attr            { return slog.Any(key, value) }
func Time(key string, value time.Time) slog.Attr     { return slog.Time(key, value) }
func Duration(key string, d time.Duration) slog.Attr { return slog.Duration(key, d) }

// Error renders err under the "error" key. A nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func MapCode(code string) slog.Attr   { return slog.String("map_code", code) }
func UserID(id string) slog.Attr      { return slog.String("user_id", id) }
func Topic(topic string) slog.Attr    { return slog.String("topic", topic) }
func Grade(grade string) slog.Attr    { return slog.String("grade", grade) }
func Operation(name string) slog.Attr { return slog.String("operation", name) }
