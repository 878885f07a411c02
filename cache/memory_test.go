package cache_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/cache"
)

var _ = Describe("Memory", func() {
	var (
		ctx context.Context
		mem *cache.Memory
		key cache.Key
	)

	BeforeEach(func() {
		ctx = context.Background()
		key = cache.Key{Bucket: "products", ObjectKey: "file.txt"}
	})

	Describe("Get/Set round trip", func() {
		BeforeEach(func() {
			mem = cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		})

		It("misses before any Set", func() {
			_, ok, err := mem.Get(ctx, key)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns what was Set, and counts a hit", func() {
			entry := cache.NewEntry([]byte("Hello, World!"), "text/plain", `"e59ff97941044f85df5297e1c302d260"`)
			Expect(mem.Set(ctx, key, entry)).To(Succeed())

			got, ok, err := mem.Get(ctx, key)
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got.Payload).To(Equal([]byte("Hello, World!")))

			stats, err := mem.Stats(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.Hits).To(Equal(uint64(1)))
		})
	})

	Describe("invariant: entries larger than max item size are rejected", func() {
		BeforeEach(func() {
			mem = cache.MemoryConfig{MaxItemSizeMB: 1, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		})

		It("returns ErrStorageFull and leaves the cache unchanged", func() {
			oversize := make([]byte, 2*1024*1024)
			entry := cache.NewEntry(oversize, "application/octet-stream", `"big"`)

			err := mem.Set(ctx, key, entry)
			Expect(err).To(MatchError(cache.ErrStorageFull))

			_, ok, _ := mem.Get(ctx, key)
			Expect(ok).To(BeFalse())
		})

		It("scenario: a 2MiB object under a 1MB max stays uncached across repeated fetches", func() {
			oversize := make([]byte, 2*1024*1024)
			entry := cache.NewEntry(oversize, "application/octet-stream", `"big"`)

			Expect(mem.Set(ctx, key, entry)).To(MatchError(cache.ErrStorageFull))
			_, ok, _ := mem.Get(ctx, key)
			Expect(ok).To(BeFalse())

			Expect(mem.Set(ctx, key, entry)).To(MatchError(cache.ErrStorageFull))
			_, ok, _ = mem.Get(ctx, key)
			Expect(ok).To(BeFalse())

			stats, err := mem.Stats(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.Misses).To(Equal(uint64(2)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})
	})

	Describe("invariant: weighted size never exceeds capacity", func() {
		BeforeEach(func() {
			mem = cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 1, DefaultTTLSeconds: 3600}.New()
		})

		It("evicts oldest entries to stay within max_cache_size_bytes", func() {
			chunk := make([]byte, 300*1024)
			for i := 0; i < 10; i++ {
				k := cache.Key{Bucket: "b", ObjectKey: string(rune('a' + i))}
				entry := cache.NewEntry(chunk, "application/octet-stream", "")
				Expect(mem.Set(ctx, k, entry)).To(Succeed())
			}

			stats, err := mem.Stats(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.CurrentSizeBytes).To(BeNumerically("<=", stats.MaxSizeBytes))
			Expect(stats.Evictions).To(BeNumerically(">", 0))
		})

		It("evicts the least-recently-used entry first", func() {
			chunk := make([]byte, 700*1024)
			first := cache.Key{Bucket: "b", ObjectKey: "first"}
			second := cache.Key{Bucket: "b", ObjectKey: "second"}

			Expect(mem.Set(ctx, first, cache.NewEntry(chunk, "", ""))).To(Succeed())
			Expect(mem.Set(ctx, second, cache.NewEntry(chunk, "", ""))).To(Succeed())

			_, ok, _ := mem.Get(ctx, first)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			mem = cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		})

		It("is idempotent", func() {
			entry := cache.NewEntry([]byte("x"), "", "")
			Expect(mem.Set(ctx, key, entry)).To(Succeed())

			first, err := mem.Delete(ctx, key)
			Expect(err).ToNot(HaveOccurred())
			Expect(first).To(BeTrue())

			second, err := mem.Delete(ctx, key)
			Expect(err).ToNot(HaveOccurred())
			Expect(second).To(BeFalse())
		})
	})

	Describe("ClearBucket", func() {
		BeforeEach(func() {
			mem = cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		})

		It("removes only the entries scoped to that bucket", func() {
			other := cache.Key{Bucket: "other", ObjectKey: "file.txt"}
			Expect(mem.Set(ctx, key, cache.NewEntry([]byte("a"), "", ""))).To(Succeed())
			Expect(mem.Set(ctx, other, cache.NewEntry([]byte("b"), "", ""))).To(Succeed())

			n, err := mem.ClearBucket(ctx, "products")
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(1))

			_, ok, _ := mem.Get(ctx, key)
			Expect(ok).To(BeFalse())
			_, ok, _ = mem.Get(ctx, other)
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Clear", func() {
		BeforeEach(func() {
			mem = cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		})

		It("is idempotent", func() {
			Expect(mem.Set(ctx, key, cache.NewEntry([]byte("a"), "", ""))).To(Succeed())
			Expect(mem.Clear(ctx)).To(Succeed())
			Expect(mem.Clear(ctx)).To(Succeed())

			_, ok, _ := mem.Get(ctx, key)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("StatsForBucket", func() {
		BeforeEach(func() {
			mem = cache.MemoryConfig{MaxItemSizeMB: 10, MaxCacheSizeMB: 100, DefaultTTLSeconds: 3600}.New()
		})

		It("scopes size and count to the named bucket", func() {
			other := cache.Key{Bucket: "other", ObjectKey: "file.txt"}
			Expect(mem.Set(ctx, key, cache.NewEntry([]byte("abc"), "", ""))).To(Succeed())
			Expect(mem.Set(ctx, other, cache.NewEntry([]byte("abcde"), "", ""))).To(Succeed())

			stats, err := mem.StatsForBucket(ctx, "products")
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.CurrentItemCount).To(Equal(uint64(1)))
			Expect(stats.CurrentSizeBytes).To(Equal(uint64(3)))
		})
	})
})
