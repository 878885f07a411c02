package cache_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/cache"
)

var _ = Describe("Chain", func() {
	var (
		ctx   context.Context
		front *cache.Memory
		back  *cache.Memory
		chain *cache.Chain
		key   cache.Key
		entry cache.Entry
	)

	BeforeEach(func() {
		ctx = context.Background()
		front = cache.MemoryConfig{MaxItemSizeMB: 1, MaxCacheSizeMB: 1, DefaultTTLSeconds: 3600}.New()
		back = cache.MemoryConfig{MaxItemSizeMB: 1, MaxCacheSizeMB: 1, DefaultTTLSeconds: 3600}.New()
		chain = cache.NewChain(front, back)
		key = cache.Key{Bucket: "products", ObjectKey: "file.txt"}
		entry = cache.NewEntry([]byte("Hello, World!"), "text/plain", `"etag"`)
	})

	It("backfills an earlier tier on a lower-tier hit", func() {
		Expect(back.Set(ctx, key, entry)).To(Succeed())

		_, ok, err := front.Get(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())

		got, ok, err := chain.Get(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got.Payload).To(Equal(entry.Payload))

		_, ok, err = front.Get(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("sets and clears every tier", func() {
		Expect(chain.Set(ctx, key, entry)).To(Succeed())

		_, ok, _ := front.Get(ctx, key)
		Expect(ok).To(BeTrue())
		_, ok, _ = back.Get(ctx, key)
		Expect(ok).To(BeTrue())

		Expect(chain.Clear(ctx)).To(Succeed())

		_, ok, _ = front.Get(ctx, key)
		Expect(ok).To(BeFalse())
		_, ok, _ = back.Get(ctx, key)
		Expect(ok).To(BeFalse())
	})

	It("reports the front tier's stats", func() {
		Expect(chain.Set(ctx, key, entry)).To(Succeed())
		_, _, _ = chain.Get(ctx, key)

		stats, err := chain.Stats(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats.Hits).To(Equal(uint64(1)))
	})
})
