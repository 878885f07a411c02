package cache

import "context"

// Null is a no-op Cache used when caching is disabled entirely.
type Null struct{}

var _ Cache = Null{}

func (Null) Get(context.Context, Key) (Entry, bool, error)         { return Entry{}, false, nil }
func (Null) Set(context.Context, Key, Entry) error                 { return nil }
func (Null) Delete(context.Context, Key) (bool, error)             { return false, nil }
func (Null) Clear(context.Context) error                           { return nil }
func (Null) ClearBucket(context.Context, string) (int, error)      { return 0, nil }
func (Null) Stats(context.Context) (Stats, error)                  { return Stats{}, nil }
func (Null) StatsForBucket(context.Context, string) (Stats, error) { return Stats{}, nil }
func (Null) RunPendingTasks(context.Context)                       {}
