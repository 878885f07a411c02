// Package cache defines the Cache contract and its tiers: Memory
// (weighted LRU, TTL), Null (no-op), Disk, and Redis. All four satisfy
// the same interface so the read orchestrator and any future tier
// behave identically from the caller's view.
package cache

import (
	"context"

	"github.com/pkg/errors"
)

// ErrStorageFull is returned by Set when an entry exceeds the tier's
// max item size. It is not wrapped further so callers can match it
// with errors.Is.
var ErrStorageFull = errors.New("cache: storage full")

// Cache is the contract every tier implements.
type Cache interface {
	// Get returns the entry iff present and not TTL-expired. It must
	// never return a stale entry, and increments hit/miss accordingly.
	Get(ctx context.Context, key Key) (Entry, bool, error)

	// Set inserts or overwrites an entry. It fails with ErrStorageFull
	// iff entry.SizeBytes exceeds the tier's max item size; otherwise
	// insertion is durable up to the tier's eviction policy.
	Set(ctx context.Context, key Key, entry Entry) error

	// Delete removes key. It is idempotent.
	Delete(ctx context.Context, key Key) (bool, error)

	// Clear removes every entry. It may be asynchronous; RunPendingTasks
	// guarantees completion.
	Clear(ctx context.Context) error

	// ClearBucket removes every entry scoped to bucket and returns the
	// count removed.
	ClearBucket(ctx context.Context, bucket string) (int, error)

	// Stats returns a snapshot. Counts may be approximate immediately
	// after a mutation.
	Stats(ctx context.Context) (Stats, error)

	// StatsForBucket returns a snapshot scoped to one bucket.
	StatsForBucket(ctx context.Context, bucket string) (Stats, error)

	// RunPendingTasks forces any deferred maintenance (evictions,
	// expirations, invalidations) to complete before returning.
	RunPendingTasks(ctx context.Context)
}
