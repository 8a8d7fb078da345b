package logging

import (
	"context"

	"github.com/rs/xid"
)

type correlationKey struct{}

// WithCorrelationID stores id in ctx. An empty id generates a new one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = xid.New().String()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID retrieves the correlation ID from the context.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// EnsureCorrelationID returns ctx unchanged if it already carries a correlation id.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	ctx = WithCorrelationID(ctx, "")
	return ctx, CorrelationID(ctx)
}
