package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// With returns ctx carrying the context logger (or base, when ctx has none)
// extended with fields.
func With(ctx context.Context, base *zap.Logger, fields ...zap.Field) context.Context {
	l, ok := ctx.Value(ctxKey{}).(*zap.Logger)
	if !ok {
		l = base
	}
	if l == nil {
		l = zap.NewNop()
	}
	return ContextWithLogger(ctx, l.With(fields...))
}
