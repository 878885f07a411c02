package cache_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/cache"
)

var _ = Describe("Entry", func() {

	Describe("NewEntry", func() {
		It("derives SizeBytes from the payload", func() {
			e := cache.NewEntry([]byte("hello"), "text/plain", `"abc"`)
			Expect(e.SizeBytes).To(Equal(int64(5)))
			Expect(e.ContentType).To(Equal("text/plain"))
			Expect(e.ETag).To(Equal(`"abc"`))
		})
	})

	Describe("WithLastModified", func() {
		It("sets HasLastMod and leaves the original untouched", func() {
			e := cache.NewEntry([]byte("x"), "text/plain", "")
			lm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			withLM := e.WithLastModified(lm)
			Expect(withLM.HasLastMod).To(BeTrue())
			Expect(withLM.LastModified).To(Equal(lm))
			Expect(e.HasLastMod).To(BeFalse())
		})
	})

	Describe("PermitsStorage", func() {

		DescribeTable("Cache-Control directives",
			func(cc string, permitted bool) {
				e := cache.NewEntry([]byte("x"), "text/plain", "").WithCacheControl(cc)
				Expect(e.PermitsStorage()).To(Equal(permitted))
			},
			Entry("empty is permitted", "", true),
			Entry("public max-age is permitted", "public, max-age=3600", true),
			Entry("no-store forbids", "no-store", false),
			Entry("no-cache forbids", "no-cache", false),
			Entry("private forbids", "private", false),
			Entry("max-age=0 forbids", "max-age=0", false),
			Entry("is case insensitive", "NO-STORE", false),
		)
	})
})
