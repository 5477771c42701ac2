package core

import (
	"context"

	"go.uber.org/zap"
)

type requestIDKey struct{}
type loggerKey struct{}

// WithRequestID associates a client request id with the context. The hook
// pipeline recovers it to tag subgraph request loggers and hook payloads.
// The association lives and dies with the request context; nothing is
// attached to the execution request itself.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID, or the
// empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithLogger stores a request scoped logger on the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext returns the request scoped logger, or nil when none was
// attached.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	logger, _ := ctx.Value(loggerKey{}).(*zap.Logger)
	return logger
}
