package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/clarktrimble/cachesto/telemetry"
)

// RedisConfig configures the shared Redis-backed tier.
type RedisConfig struct {
	Addr              string           `yaml:"addr" json:"addr" desc:"host:port of the redis server" required:"true"`
	Password          telemetry.Redact `yaml:"password" json:"password" desc:"redis auth password"`
	DB                int              `yaml:"db" json:"db" desc:"redis logical database index"`
	KeyPrefix         string           `yaml:"key_prefix" json:"key_prefix" default:"cachesto:"`
	MaxItemSizeMB     int64            `yaml:"max_item_size_mb" json:"max_item_size_mb" default:"20"`
	DefaultTTLSeconds int64            `yaml:"default_ttl_seconds" json:"default_ttl_seconds" default:"3600"`
}

// New dials a Redis tier from cfg. The client is lazy: no connection is
// made until the first command.
func (cfg RedisConfig) New() *Redis {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: string(cfg.Password),
		DB:       cfg.DB,
	})
	return &Redis{
		client:       client,
		prefix:       cfg.KeyPrefix,
		maxItemBytes: cfg.MaxItemSizeMB * 1024 * 1024,
		ttl:          time.Duration(cfg.DefaultTTLSeconds) * time.Second,
	}
}

// Redis is a Cache tier backed by a shared redis instance, letting
// multiple proxy processes share one cache population.
type Redis struct {
	client       *goredis.Client
	prefix       string
	maxItemBytes int64
	ttl          time.Duration
}

var _ Cache = (*Redis)(nil)

// wireEntry is the gob-encoded value stored under each redis key.
type wireEntry struct {
	Payload      []byte
	ContentType  string
	ETag         string
	CacheControl string
	LastModified time.Time
	HasLastMod   bool
	SizeBytes    int64
}

func (r *Redis) objectKey(key Key) string {
	return r.prefix + key.String()
}

func (r *Redis) bucketIndexKey(bucket string) string {
	return r.prefix + "bucket:" + bucket
}

func (r *Redis) Get(ctx context.Context, key Key) (Entry, bool, error) {

	raw, err := r.client.Get(ctx, r.objectKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "failed to get redis cache entry")
	}

	var we wireEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&we); err != nil {
		return Entry{}, false, errors.Wrap(err, "failed to decode redis cache entry")
	}

	entry := Entry{
		Payload:      we.Payload,
		ContentType:  we.ContentType,
		ETag:         we.ETag,
		CacheControl: we.CacheControl,
		LastModified: we.LastModified,
		HasLastMod:   we.HasLastMod,
		SizeBytes:    we.SizeBytes,
	}
	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, key Key, entry Entry) error {

	if r.maxItemBytes > 0 && entry.SizeBytes > r.maxItemBytes {
		return ErrStorageFull
	}

	we := wireEntry{
		Payload:      entry.Payload,
		ContentType:  entry.ContentType,
		ETag:         entry.ETag,
		CacheControl: entry.CacheControl,
		LastModified: entry.LastModified,
		HasLastMod:   entry.HasLastMod,
		SizeBytes:    entry.SizeBytes,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(we); err != nil {
		return errors.Wrap(err, "failed to encode redis cache entry")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.objectKey(key), buf.Bytes(), r.ttl)
	pipe.SAdd(ctx, r.bucketIndexKey(key.Bucket), r.objectKey(key))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.bucketIndexKey(key.Bucket), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to write redis cache entry")
	}

	return nil
}

func (r *Redis) Delete(ctx context.Context, key Key) (bool, error) {

	n, err := r.client.Del(ctx, r.objectKey(key)).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to delete redis cache entry")
	}
	r.client.SRem(ctx, r.bucketIndexKey(key.Bucket), r.objectKey(key))
	return n > 0, nil
}

func (r *Redis) Clear(ctx context.Context) error {

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to scan redis cache keys")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to clear redis cache")
	}
	return nil
}

func (r *Redis) ClearBucket(ctx context.Context, bucket string) (int, error) {

	members, err := r.client.SMembers(ctx, r.bucketIndexKey(bucket)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list redis bucket index")
	}
	if len(members) == 0 {
		return 0, nil
	}

	n, err := r.client.Del(ctx, members...).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear redis bucket entries")
	}
	r.client.Del(ctx, r.bucketIndexKey(bucket))
	return int(n), nil
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	// A shared redis instance may serve other proxy processes; per-process
	// hit/miss counters are not meaningful here, so Stats reports the
	// item count only.
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var count uint64
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, errors.Wrap(err, "failed to scan redis cache keys")
	}
	return Stats{CurrentItemCount: count}, nil
}

func (r *Redis) StatsForBucket(ctx context.Context, bucket string) (Stats, error) {

	n, err := r.client.SCard(ctx, r.bucketIndexKey(bucket)).Result()
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to count redis bucket index")
	}
	return Stats{CurrentItemCount: uint64(n)}, nil
}

func (r *Redis) RunPendingTasks(_ context.Context) {
	// redis expiry is server-side; nothing local to drain.
}
