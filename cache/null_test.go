package cache_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/cache"
)

var _ = Describe("Null", func() {
	var (
		ctx context.Context
		n   cache.Null
		key cache.Key
	)

	BeforeEach(func() {
		ctx = context.Background()
		n = cache.Null{}
		key = cache.Key{Bucket: "b", ObjectKey: "o"}
	})

	It("never hits", func() {
		Expect(n.Set(ctx, key, cache.NewEntry([]byte("x"), "", ""))).To(Succeed())

		_, ok, err := n.Get(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("reports zeroed stats", func() {
		stats, err := n.Stats(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats).To(Equal(cache.Stats{}))
	})

	It("Delete and Clear are no-ops that never error", func() {
		ok, err := n.Delete(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())

		Expect(n.Clear(ctx)).To(Succeed())

		count, err := n.ClearBucket(ctx, "b")
		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(Equal(0))
	})
})
