package telemetry

import "context"

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id, picked up by
// ZerologLogger and by the error JSON writer in package server.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stashed by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}
