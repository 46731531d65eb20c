package logger

import "context"

type ctxKey struct{}

// WithContext returns a new context carrying l.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Lookup returns the logger stored in ctx, if any.
func Lookup(ctx context.Context) (Logger, bool) {
	l, ok := ctx.Value(ctxKey{}).(Logger)
	return l, ok
}
