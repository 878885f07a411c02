package cache

import (
	"sync/atomic"

	"github.com/clarktrimble/cachesto/telemetry"
)

// Stats is an on-demand snapshot; it is never itself a source of
// truth.
type Stats struct {
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	Evictions        uint64 `json:"evictions"`
	CurrentSizeBytes uint64 `json:"current_size_bytes"`
	CurrentItemCount uint64 `json:"current_item_count"`
	MaxSizeBytes     uint64 `json:"max_size_bytes"`
}

// statsTracker holds the relaxed-atomic hit/miss/eviction counters
// shared between a cache tier and its eviction path. It is handed out
// by reference so an eviction listener can increment the same counters
// the tier's Stats() reads.
type statsTracker struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func (t *statsTracker) incHit()  { t.hits.Add(1) }
func (t *statsTracker) incMiss() { t.misses.Add(1) }

// incEviction records an eviction against both the tracker's own
// counter (read back by Stats) and the process-wide Prometheus counter,
// labeled by tier so memory/disk pressure is distinguishable in
// dashboards.
func (t *statsTracker) incEviction(tier string) {
	t.evictions.Add(1)
	telemetry.CacheEvictions.WithLabelValues(tier).Inc()
}

func (t *statsTracker) snapshot(currentSize, currentCount, maxSize uint64) Stats {
	return Stats{
		Hits:             t.hits.Load(),
		Misses:           t.misses.Load(),
		Evictions:        t.evictions.Load(),
		CurrentSizeBytes: currentSize,
		CurrentItemCount: currentCount,
		MaxSizeBytes:     maxSize,
	}
}
