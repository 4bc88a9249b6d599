package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// GenerateTraceID mints a fresh request identifier.
func GenerateTraceID() string {
	return uuid.NewString()
}

// EnsureTraceID returns ctx unchanged when it already carries a trace
// ID, otherwise a child context with a generated one.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, GenerateTraceID())
}

// LoggerWithContext returns the process logger, tagged with the trace
// ID carried by ctx when present. Request handling should log through
// this rather than GetLogger.
func LoggerWithContext(ctx context.Context) *slog.Logger {
	log := GetLogger()
	if id := GetTraceID(ctx); id != "" {
		log = log.With("trace_id", id)
	}
	return log
}
