package cache_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/cache"
)

var _ = Describe("Disk", func() {
	var (
		ctx  context.Context
		dir  string
		disk *cache.Disk
		key  cache.Key
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		dir, err = os.MkdirTemp("", "cachesto-disk-*")
		Expect(err).ToNot(HaveOccurred())

		disk = cache.DiskConfig{Dir: dir, MaxItemSizeMB: 1, DefaultTTLSeconds: 3600}.New()
		key = cache.Key{Bucket: "products", ObjectKey: "file.txt"}
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("misses when nothing was written", func() {
		_, ok, err := disk.Get(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("round-trips a Set through Get", func() {
		entry := cache.NewEntry([]byte("Hello, World!"), "text/plain", `"etag"`)
		Expect(disk.Set(ctx, key, entry)).To(Succeed())

		got, ok, err := disk.Get(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got.Payload).To(Equal([]byte("Hello, World!")))
		Expect(got.ContentType).To(Equal("text/plain"))
	})

	It("rejects entries larger than the configured max", func() {
		oversize := make([]byte, 2*1024*1024)
		err := disk.Set(ctx, key, cache.NewEntry(oversize, "", ""))
		Expect(err).To(MatchError(cache.ErrStorageFull))
	})

	It("Delete is idempotent", func() {
		Expect(disk.Set(ctx, key, cache.NewEntry([]byte("a"), "", ""))).To(Succeed())

		first, err := disk.Delete(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(first).To(BeTrue())

		second, err := disk.Delete(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(second).To(BeFalse())
	})

	It("ClearBucket only removes matching-bucket entries", func() {
		other := cache.Key{Bucket: "other", ObjectKey: "file.txt"}
		Expect(disk.Set(ctx, key, cache.NewEntry([]byte("a"), "", ""))).To(Succeed())
		Expect(disk.Set(ctx, other, cache.NewEntry([]byte("b"), "", ""))).To(Succeed())

		n, err := disk.ClearBucket(ctx, "products")
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(1))

		_, ok, _ := disk.Get(ctx, key)
		Expect(ok).To(BeFalse())
		_, ok, _ = disk.Get(ctx, other)
		Expect(ok).To(BeTrue())
	})

	It("Stats counts entries across the directory", func() {
		Expect(disk.Set(ctx, key, cache.NewEntry([]byte("a"), "", ""))).To(Succeed())

		stats, err := disk.Stats(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(stats.CurrentItemCount).To(Equal(uint64(1)))
	})
})
