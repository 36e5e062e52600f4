package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With derives a request-scoped logger carrying the given fields and stores
// it on the context. The middleware chain uses this to stamp request, user
// and hospital ids onto every log line written downstream.
func With(ctx context.Context, fields ...any) context.Context {
	l := From(ctx).With(fields...)
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the request-scoped logger, falling back to the process logger
// when the context carries none.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return LoggerWrapper()
}
