package cache

import (
	"container/list"
	"context"
	"math"
	"sync"
	"time"
)

// MemoryConfig configures the in-process weighted-LRU tier.
type MemoryConfig struct {
	MaxItemSizeMB     int64 `yaml:"max_item_size_mb" json:"max_item_size_mb" desc:"largest single entry admitted" default:"10"`
	MaxCacheSizeMB    int64 `yaml:"max_cache_size_mb" json:"max_cache_size_mb" desc:"total weighted capacity" default:"100"`
	DefaultTTLSeconds int64 `yaml:"default_ttl_seconds" json:"default_ttl_seconds" desc:"entry time-to-live" default:"3600"`
}

func (cfg MemoryConfig) maxItemBytes() uint64  { return uint64(cfg.MaxItemSizeMB) * 1024 * 1024 }
func (cfg MemoryConfig) maxCacheBytes() uint64 { return uint64(cfg.MaxCacheSizeMB) * 1024 * 1024 }

// New builds a Memory tier from cfg.
func (cfg MemoryConfig) New() *Memory {
	return &Memory{
		ll:           list.New(),
		items:        make(map[string]*list.Element),
		maxItemBytes: cfg.maxItemBytes(),
		maxWeight:    cfg.maxCacheBytes(),
		ttl:          time.Duration(cfg.DefaultTTLSeconds) * time.Second,
		stats:        &statsTracker{},
	}
}

// record is the value stored in each list.Element.
type record struct {
	key      Key
	entry    Entry
	weight   uint64
	insertAt time.Time
}

// Memory is a concurrency-safe, approximate-LRU cache weighted by
// entry size, with a per-entry TTL. Eviction runs synchronously inside
// Set, so RunPendingTasks is a no-op for this tier: there is nothing
// deferred to drain.
type Memory struct {
	mu sync.Mutex

	ll    *list.List
	items map[string]*list.Element

	weight       uint64
	maxWeight    uint64
	maxItemBytes uint64
	ttl          time.Duration

	stats *statsTracker
}

var _ Cache = (*Memory)(nil)

// weightOf caps an entry's weight at a 32-bit ceiling.
func weightOf(sizeBytes int64) uint64 {
	if sizeBytes < 0 {
		return 0
	}
	if sizeBytes > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint64(sizeBytes)
}

func (m *Memory) Get(_ context.Context, key Key) (Entry, bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key.String()]
	if !ok {
		m.stats.incMiss()
		return Entry{}, false, nil
	}

	rec := el.Value.(*record)
	if m.ttl > 0 && time.Since(rec.insertAt) >= m.ttl {
		m.removeElementLocked(el)
		m.stats.incEviction("memory")
		m.stats.incMiss()
		return Entry{}, false, nil
	}

	m.ll.MoveToFront(el)
	m.stats.incHit()
	return rec.entry, true, nil
}

func (m *Memory) Set(_ context.Context, key Key, entry Entry) error {

	w := weightOf(entry.SizeBytes)
	if w > m.maxItemBytes {
		return ErrStorageFull
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key.String()]; ok {
		m.removeElementLocked(el)
	}

	rec := &record{key: key, entry: entry, weight: w, insertAt: time.Now()}
	el := m.ll.PushFront(rec)
	m.items[key.String()] = el
	m.weight += w

	for m.weight > m.maxWeight {
		back := m.ll.Back()
		if back == nil {
			break
		}
		m.removeElementLocked(back)
		m.stats.incEviction("memory")
	}

	return nil
}

// Delete reports whether key was present; the map index makes a
// faithful check free to obtain. It is idempotent either way.
func (m *Memory) Delete(_ context.Context, key Key) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key.String()]
	if ok {
		m.removeElementLocked(el)
	}
	return ok, nil
}

func (m *Memory) Clear(_ context.Context) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ll.Init()
	m.items = make(map[string]*list.Element)
	m.weight = 0
	return nil
}

func (m *Memory) ClearBucket(_ context.Context, bucket string) (int, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, el := range m.items {
		if el.Value.(*record).key.Bucket == bucket {
			m.removeElementLocked(el)
			count++
		}
	}
	return count, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats.snapshot(m.weight, uint64(len(m.items)), m.maxWeight), nil
}

func (m *Memory) StatsForBucket(_ context.Context, bucket string) (Stats, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	var size, count uint64
	for _, el := range m.items {
		rec := el.Value.(*record)
		if rec.key.Bucket == bucket {
			size += rec.weight
			count++
		}
	}

	return Stats{CurrentSizeBytes: size, CurrentItemCount: count, MaxSizeBytes: m.maxWeight}, nil
}

func (m *Memory) RunPendingTasks(_ context.Context) {
	// eviction is synchronous within Set/Delete/Clear; nothing to drain.
}

// removeElementLocked removes el from both the list and the index and
// subtracts its weight. Caller must hold mu.
func (m *Memory) removeElementLocked(el *list.Element) {
	rec := el.Value.(*record)
	m.ll.Remove(el)
	delete(m.items, rec.key.String())
	if m.weight >= rec.weight {
		m.weight -= rec.weight
	} else {
		m.weight = 0
	}
}
