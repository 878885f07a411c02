package cache

import "strings"

// Key identifies a cached artifact: a bucket-scoped object, optionally
// bound to a specific origin ETag, optionally qualified by a variant
// fingerprint for transformed artifacts. Key is a plain value type:
// comparable, hashable via String, safe to use as a map key.
type Key struct {
	Bucket    string
	ObjectKey string
	ETag      string // optional; "" means "any version"
	Variant   string // optional; "" means the untransformed original
}

// String renders a stable, delimiter-safe fingerprint for Key, used by
// the memory tier's map and by the coalescer.
func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(k.Bucket)
	sb.WriteByte('\x00')
	sb.WriteString(k.ObjectKey)
	sb.WriteByte('\x00')
	sb.WriteString(k.ETag)
	sb.WriteByte('\x00')
	sb.WriteString(k.Variant)
	return sb.String()
}
