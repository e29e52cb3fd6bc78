package logging

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithContext stores the logger in the context.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// NopLogger returns a logger that discards everything. Useful in tests and
// as a safe fallback for optional components.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
