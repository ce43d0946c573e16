package events

import "context"

type ctxCorrelationID struct{}

// WithCorrelationID tags ctx so events published under it carry id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCorrelationID{}, id)
}

func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxCorrelationID{}).(string); ok {
		return v
	}
	return ""
}
