// Package telemetry carries the ambient logging, request-id, and
// metrics concerns shared by every other package: a structured Logger
// contract, a zerolog-backed default, and Prometheus collectors for
// the read path.
package telemetry

import "context"

// Logger specifies a contextual, structured logger. kv is an
// alternating key/value list, matching the shape every package in
// this module logs through.
type Logger interface {
	Info(ctx context.Context, msg string, kv ...any)
	Debug(ctx context.Context, msg string, kv ...any)
	Trace(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, msg string, err error, kv ...any)
}
