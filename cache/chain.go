package cache

import "context"

// Chain composes cache tiers into one Cache, front to back. A Get
// misses down the chain and backfills every tier
// it skipped past on the way to a hit; a Set, Delete, Clear, and
// ClearBucket apply to every tier so they stay consistent.
type Chain struct {
	tiers []Cache
}

var _ Cache = (*Chain)(nil)

// NewChain builds a Chain from tiers in lookup order (fastest first).
// A single-tier or empty Chain is valid and behaves like that tier (or
// like Null for zero tiers).
func NewChain(tiers ...Cache) *Chain {
	return &Chain{tiers: tiers}
}

func (c *Chain) Get(ctx context.Context, key Key) (Entry, bool, error) {

	for i, tier := range c.tiers {
		entry, ok, err := tier.Get(ctx, key)
		if err != nil {
			return Entry{}, false, err
		}
		if !ok {
			continue
		}
		for _, backfill := range c.tiers[:i] {
			_ = backfill.Set(ctx, key, entry)
		}
		return entry, true, nil
	}
	return Entry{}, false, nil
}

func (c *Chain) Set(ctx context.Context, key Key, entry Entry) error {

	var stored bool
	var last error
	for _, tier := range c.tiers {
		if err := tier.Set(ctx, key, entry); err != nil {
			last = err
			continue
		}
		stored = true
	}
	if !stored {
		return last
	}
	return nil
}

func (c *Chain) Delete(ctx context.Context, key Key) (bool, error) {

	var deleted bool
	for _, tier := range c.tiers {
		ok, err := tier.Delete(ctx, key)
		if err != nil {
			return deleted, err
		}
		deleted = deleted || ok
	}
	return deleted, nil
}

func (c *Chain) Clear(ctx context.Context) error {
	for _, tier := range c.tiers {
		if err := tier.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) ClearBucket(ctx context.Context, bucket string) (int, error) {

	var total int
	for _, tier := range c.tiers {
		n, err := tier.ClearBucket(ctx, bucket)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Stats returns the front tier's snapshot, since it is the one the
// read path actually consults first and the one operators care about
// for hit-rate purposes.
func (c *Chain) Stats(ctx context.Context) (Stats, error) {
	if len(c.tiers) == 0 {
		return Stats{}, nil
	}
	return c.tiers[0].Stats(ctx)
}

func (c *Chain) StatsForBucket(ctx context.Context, bucket string) (Stats, error) {
	if len(c.tiers) == 0 {
		return Stats{}, nil
	}
	return c.tiers[0].StatsForBucket(ctx, bucket)
}

func (c *Chain) RunPendingTasks(ctx context.Context) {
	for _, tier := range c.tiers {
		tier.RunPendingTasks(ctx)
	}
}

// Tiers exposes the underlying tiers in lookup order, for callers (the
// admin endpoints) that need to operate on every configured tier
// directly rather than through the composed Cache interface.
func (c *Chain) Tiers() []Cache {
	return c.tiers
}
