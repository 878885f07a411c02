package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DiskConfig configures the filesystem-backed tier.
type DiskConfig struct {
	Dir               string `yaml:"dir" json:"dir" desc:"directory for cached payloads" required:"true"`
	MaxItemSizeMB     int64  `yaml:"max_item_size_mb" json:"max_item_size_mb" default:"50"`
	DefaultTTLSeconds int64  `yaml:"default_ttl_seconds" json:"default_ttl_seconds" default:"86400"`
}

// New builds a Disk tier from cfg.
func (cfg DiskConfig) New() *Disk {
	return &Disk{
		dir:          cfg.Dir,
		maxItemBytes: cfg.MaxItemSizeMB * 1024 * 1024,
		ttl:          time.Duration(cfg.DefaultTTLSeconds) * time.Second,
		stats:        &statsTracker{},
	}
}

// sidecar is the JSON metadata stored alongside each payload file.
type sidecar struct {
	Bucket       string    `yaml:"bucket" json:"bucket"`
	ObjectKey    string    `yaml:"object_key" json:"object_key"`
	ETag         string    `yaml:"etag" json:"etag"`
	ContentType  string    `yaml:"content_type" json:"content_type"`
	CacheControl string    `yaml:"cache_control" json:"cache_control"`
	LastModified time.Time `yaml:"last_modified" json:"last_modified"`
	HasLastMod   bool      `yaml:"has_last_mod" json:"has_last_mod"`
	SizeBytes    int64     `yaml:"size_bytes" json:"size_bytes"`
	InsertedAt   time.Time `yaml:"inserted_at" json:"inserted_at"`
}

// Disk is a filesystem-backed Cache tier: each key maps to a payload
// file plus a JSON sidecar of metadata, hashed into the directory to
// avoid filesystem-unsafe object keys.
type Disk struct {
	mu           sync.Mutex
	dir          string
	maxItemBytes int64
	ttl          time.Duration
	stats        *statsTracker
}

var _ Cache = (*Disk)(nil)

func (d *Disk) pathFor(key Key) (payload, meta string) {
	sum := sha256.Sum256([]byte(key.String()))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(d.dir, name+".bin"), filepath.Join(d.dir, name+".json")
}

func (d *Disk) Get(_ context.Context, key Key) (Entry, bool, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	payloadPath, metaPath := d.pathFor(key)

	metaBytes, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		d.stats.incMiss()
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "failed to read disk cache sidecar")
	}

	var sc sidecar
	if err := json.Unmarshal(metaBytes, &sc); err != nil {
		return Entry{}, false, errors.Wrap(err, "failed to decode disk cache sidecar")
	}

	if d.ttl > 0 && time.Since(sc.InsertedAt) >= d.ttl {
		_ = os.Remove(payloadPath)
		_ = os.Remove(metaPath)
		d.stats.incEviction("disk")
		d.stats.incMiss()
		return Entry{}, false, nil
	}

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "failed to read disk cache payload")
	}

	entry := Entry{
		Payload:      payload,
		ContentType:  sc.ContentType,
		ETag:         sc.ETag,
		CacheControl: sc.CacheControl,
		LastModified: sc.LastModified,
		HasLastMod:   sc.HasLastMod,
		SizeBytes:    sc.SizeBytes,
	}
	d.stats.incHit()
	return entry, true, nil
}

func (d *Disk) Set(_ context.Context, key Key, entry Entry) error {

	if d.maxItemBytes > 0 && entry.SizeBytes > d.maxItemBytes {
		return ErrStorageFull
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create disk cache directory")
	}

	payloadPath, metaPath := d.pathFor(key)
	if err := os.WriteFile(payloadPath, entry.Payload, 0o644); err != nil {
		return errors.Wrap(err, "failed to write disk cache payload")
	}

	sc := sidecar{
		Bucket:       key.Bucket,
		ObjectKey:    key.ObjectKey,
		ETag:         entry.ETag,
		ContentType:  entry.ContentType,
		CacheControl: entry.CacheControl,
		LastModified: entry.LastModified,
		HasLastMod:   entry.HasLastMod,
		SizeBytes:    entry.SizeBytes,
		InsertedAt:   time.Now(),
	}
	metaBytes, err := json.Marshal(sc)
	if err != nil {
		return errors.Wrap(err, "failed to encode disk cache sidecar")
	}
	if err := os.WriteFile(metaPath, metaBytes, 0o644); err != nil {
		return errors.Wrap(err, "failed to write disk cache sidecar")
	}

	return nil
}

func (d *Disk) Delete(_ context.Context, key Key) (bool, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	payloadPath, metaPath := d.pathFor(key)
	_, statErr := os.Stat(metaPath)
	existed := statErr == nil

	_ = os.Remove(payloadPath)
	_ = os.Remove(metaPath)
	return existed, nil
}

func (d *Disk) Clear(_ context.Context) error {

	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to list disk cache directory")
	}
	for _, ent := range entries {
		_ = os.Remove(filepath.Join(d.dir, ent.Name()))
	}
	return nil
}

func (d *Disk) ClearBucket(ctx context.Context, bucket string) (int, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to list disk cache directory")
	}

	count := 0
	for _, ent := range entries {
		if filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		metaPath := filepath.Join(d.dir, ent.Name())
		metaBytes, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var sc sidecar
		if err := json.Unmarshal(metaBytes, &sc); err != nil {
			continue
		}
		if sc.Bucket != bucket {
			continue
		}
		_ = os.Remove(metaPath)
		_ = os.Remove(filepath.Join(d.dir, ent.Name()[:len(ent.Name())-len(".json")]+".bin"))
		count++
	}
	return count, nil
}

func (d *Disk) Stats(_ context.Context) (Stats, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	size, count := d.sumLocked("")
	return d.stats.snapshot(size, count, 0), nil
}

func (d *Disk) StatsForBucket(_ context.Context, bucket string) (Stats, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	size, count := d.sumLocked(bucket)
	return Stats{CurrentSizeBytes: size, CurrentItemCount: count}, nil
}

func (d *Disk) sumLocked(bucket string) (size, count uint64) {

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, 0
	}
	for _, ent := range entries {
		if filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		metaBytes, err := os.ReadFile(filepath.Join(d.dir, ent.Name()))
		if err != nil {
			continue
		}
		var sc sidecar
		if err := json.Unmarshal(metaBytes, &sc); err != nil {
			continue
		}
		if bucket != "" && sc.Bucket != bucket {
			continue
		}
		size += uint64(sc.SizeBytes)
		count++
	}
	return size, count
}

func (d *Disk) RunPendingTasks(_ context.Context) {
	// disk operations are synchronous; nothing to drain.
}
