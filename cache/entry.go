package cache

import (
	"strings"
	"time"
)

// Entry is an immutable cached artifact. SizeBytes must equal
// len(Payload) and is what the weigher and size invariants use; it is
// carried explicitly rather than recomputed so a tier backed by a
// remote store (Redis) can weigh entries without holding the payload
// in memory.
type Entry struct {
	Payload      []byte
	ContentType  string
	ETag         string
	LastModified time.Time
	HasLastMod   bool
	CacheControl string
	SizeBytes    int64
}

// NewEntry builds an Entry, deriving SizeBytes from payload.
func NewEntry(payload []byte, contentType, etag string) Entry {
	return Entry{
		Payload:     payload,
		ContentType: contentType,
		ETag:        etag,
		SizeBytes:   int64(len(payload)),
	}
}

// WithLastModified returns a copy of e with LastModified set.
func (e Entry) WithLastModified(t time.Time) Entry {
	e.LastModified = t
	e.HasLastMod = true
	return e
}

// WithCacheControl returns a copy of e with CacheControl set.
func (e Entry) WithCacheControl(cc string) Entry {
	e.CacheControl = cc
	return e
}

// PermitsStorage reports whether e's Cache-Control allows population:
// no-store, no-cache, private, and max-age=0 all forbid insertion.
func (e Entry) PermitsStorage() bool {

	cc := e.CacheControl
	if cc == "" {
		return true
	}

	lower := strings.ToLower(cc)
	forbidden := []string{"no-store", "no-cache", "private", "max-age=0"}
	for _, f := range forbidden {
		if strings.Contains(lower, f) {
			return false
		}
	}
	return true
}
