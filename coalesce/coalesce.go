// Package coalesce guards an origin from thundering herds: concurrent
// misses sharing a fingerprint collapse into at most one in-flight
// fetch, with every waiter receiving the leader's result.
package coalesce

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Fetch is the leader's unit of work. It is invoked with a detached
// context rather than any single caller's context: a caller canceling
// its own request must not cancel the shared fetch while other callers
// are still waiting on it.
type Fetch[T any] func(ctx context.Context) (T, error)

// Group deduplicates concurrent Fetch calls sharing a key: a typed
// wrapper over golang.org/x/sync/singleflight, one Group field, one Do
// call per logical fetch.
type Group[T any] struct {
	sf singleflight.Group
}

// Result carries a fetch outcome plus whether it was shared with other
// waiters, for telemetry (coalesce hit/miss counters).
type Result[T any] struct {
	Value  T
	Err    error
	Shared bool
}

// Do runs fn for key if no fetch is already in flight for it, or waits
// for the in-flight fetch and reuses its result. leaderCtx is the
// context handed to fn and is independent of any individual caller's
// context.
func (g *Group[T]) Do(leaderCtx context.Context, key string, fn Fetch[T]) Result[T] {

	v, err, shared := g.sf.Do(key, func() (any, error) {
		return fn(leaderCtx)
	})

	result := Result[T]{Shared: shared}
	if err != nil {
		result.Err = errors.Wrap(err, "coalesced fetch failed")
		return result
	}

	value, ok := v.(T)
	if !ok {
		result.Err = errors.New("coalesce: unexpected result type")
		return result
	}

	result.Value = value
	return result
}

// Forget removes key early, so a Do call already in flight for it will
// not be joined by callers arriving afterward; they start a fresh
// fetch instead. singleflight.Group already detaches a completed call
// from its map before broadcasting the result, so Forget is only
// needed to abandon a key before its leader finishes.
func (g *Group[T]) Forget(key string) {
	g.sf.Forget(key)
}
