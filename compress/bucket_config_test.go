package compress_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/compress"
)

func boolPtr(b bool) *bool  { return &b }
func intPtr(i int) *int     { return &i }
func i64Ptr(i int64) *int64 { return &i }

var _ = Describe("BucketConfig", func() {

	Describe("Validate", func() {
		It("accepts a config with no overrides", func() {
			Expect(compress.BucketConfig{}.Validate()).To(Succeed())
		})

		It("rejects a bucket level above 9 even for brotli", func() {
			cfg := compress.BucketConfig{CompressionLevel: intPtr(10)}
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("rejects size bounds where min >= max", func() {
			cfg := compress.BucketConfig{
				MinResponseSizeBytes: i64Ptr(10_000_000),
				MaxResponseSizeBytes: i64Ptr(1024),
			}
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("allows brotli's own algorithm override up to level 11", func() {
			cfg := compress.BucketConfig{
				Algorithms: map[compress.Algorithm]compress.AlgorithmConfig{
					compress.Brotli: {Enabled: true, Level: 11},
				},
			}
			Expect(cfg.Validate()).To(Succeed())
		})

		It("rejects gzip's algorithm override above level 9", func() {
			cfg := compress.BucketConfig{
				Algorithms: map[compress.Algorithm]compress.AlgorithmConfig{
					compress.Gzip: {Enabled: true, Level: 10},
				},
			}
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})

	Describe("Resolve", func() {
		global := compress.GlobalConfig{
			Enabled:              true,
			DefaultAlgorithm:     compress.Gzip,
			MinResponseSizeBytes: 1024,
			MaxResponseSizeBytes: 10 * 1024 * 1024,
		}

		It("falls back to global values when the bucket sets nothing", func() {
			resolved := compress.Resolve(global, compress.BucketConfig{})
			Expect(resolved.Enabled).To(BeTrue())
			Expect(resolved.DefaultAlgorithm).To(Equal(compress.Gzip))
		})

		It("lets a bucket disable compression the global config enabled", func() {
			resolved := compress.Resolve(global, compress.BucketConfig{Enabled: boolPtr(false)})
			Expect(resolved.Enabled).To(BeFalse())
		})

		It("never lets a bucket re-enable compression the global config disabled", func() {
			disabledGlobal := global
			disabledGlobal.Enabled = false

			resolved := compress.Resolve(disabledGlobal, compress.BucketConfig{Enabled: boolPtr(true)})
			Expect(resolved.Enabled).To(BeFalse())
		})
	})

	Describe("Resolved.ShouldCompress", func() {
		resolved := compress.Resolve(compress.GlobalConfig{
			Enabled:              true,
			MinResponseSizeBytes: 1024,
			MaxResponseSizeBytes: 10_000_000,
		}, compress.BucketConfig{})

		It("rejects responses below the minimum size", func() {
			Expect(resolved.ShouldCompress(100, "text/plain")).To(BeFalse())
		})

		It("rejects already-compressed content types", func() {
			Expect(resolved.ShouldCompress(2048, "image/jpeg")).To(BeFalse())
		})

		It("accepts a compressible response within bounds", func() {
			Expect(resolved.ShouldCompress(2048, "text/plain")).To(BeTrue())
		})
	})
})
