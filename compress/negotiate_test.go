package compress_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/compress"
)

func allEnabled() compress.Resolved {
	return compress.Resolve(compress.GlobalConfig{
		Enabled:              true,
		MinResponseSizeBytes: 0,
		MaxResponseSizeBytes: 10 << 20,
		Algorithms: map[compress.Algorithm]compress.AlgorithmConfig{
			compress.Gzip:    compress.GzipDefault(),
			compress.Brotli:  compress.BrotliDefault(),
			compress.Deflate: {Enabled: true, Level: 6},
		},
	}, compress.BucketConfig{})
}

var _ = Describe("Negotiate", func() {

	It("prefers brotli when the client accepts everything", func() {
		algo, ok := compress.Negotiate("gzip, deflate, br", allEnabled())
		Expect(ok).To(BeTrue())
		Expect(algo).To(Equal(compress.Brotli))
	})

	It("falls back to gzip when brotli is not accepted", func() {
		algo, ok := compress.Negotiate("gzip, deflate", allEnabled())
		Expect(ok).To(BeTrue())
		Expect(algo).To(Equal(compress.Gzip))
	})

	It("treats a wildcard as accepting every algorithm", func() {
		algo, ok := compress.Negotiate("*", allEnabled())
		Expect(ok).To(BeTrue())
		Expect(algo).To(Equal(compress.Brotli))
	})

	It("ignores quality parameters on the tokens", func() {
		algo, ok := compress.Negotiate("gzip;q=0.8, br;q=1.0", allEnabled())
		Expect(ok).To(BeTrue())
		Expect(algo).To(Equal(compress.Brotli))
	})

	It("skips an accepted algorithm the bucket has disabled", func() {
		r := compress.Resolve(compress.GlobalConfig{
			Enabled:              true,
			MaxResponseSizeBytes: 10 << 20,
			Algorithms: map[compress.Algorithm]compress.AlgorithmConfig{
				compress.Gzip:   compress.GzipDefault(),
				compress.Brotli: compress.BrotliDefault(),
			},
		}, compress.BucketConfig{
			Algorithms: map[compress.Algorithm]compress.AlgorithmConfig{
				compress.Brotli: {Enabled: false, Level: 4},
			},
		})

		algo, ok := compress.Negotiate("br, gzip", r)
		Expect(ok).To(BeTrue())
		Expect(algo).To(Equal(compress.Gzip))
	})

	DescribeTable("negotiation yields nothing",
		func(acceptEncoding string, r compress.Resolved) {
			_, ok := compress.Negotiate(acceptEncoding, r)
			Expect(ok).To(BeFalse())
		},
		Entry("absent header", "", allEnabled()),
		Entry("unknown codings only", "zstd, identity", allEnabled()),
		Entry("compression disabled globally", "gzip",
			compress.Resolve(compress.GlobalConfig{Enabled: false}, compress.BucketConfig{})),
	)
})

var _ = Describe("ShouldCompress", func() {

	r := compress.Resolve(compress.GlobalConfig{
		Enabled:              true,
		MinResponseSizeBytes: 1024,
		MaxResponseSizeBytes: 1 << 20,
		Algorithms: map[compress.Algorithm]compress.AlgorithmConfig{
			compress.Gzip: compress.GzipDefault(),
		},
	}, compress.BucketConfig{})

	DescribeTable("size and content-type gating",
		func(size int64, contentType string, want bool) {
			Expect(r.ShouldCompress(size, contentType)).To(Equal(want))
		},
		Entry("in-bounds text", int64(4096), "text/plain", true),
		Entry("below the minimum", int64(512), "text/plain", false),
		Entry("above the maximum", int64(2<<20), "text/plain", false),
		Entry("already-compressed image", int64(4096), "image/jpeg", false),
		Entry("zip archive", int64(4096), "application/zip", false),
	)
})
