package conditional_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/conditional"
)

func TestConditional(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Conditional Suite")
}

var _ = Describe("MatchesAny", func() {

	DescribeTable("If-None-Match evaluation",
		func(header, etag string, matches bool) {
			Expect(conditional.MatchesAny(header, etag)).To(Equal(matches))
		},
		Entry("exact match", `"e59ff97941044f85df5297e1c302d260"`, `"e59ff97941044f85df5297e1c302d260"`, true),
		Entry("wildcard matches any etag", "*", `"abc"`, true),
		Entry("wildcard does not match empty etag", "*", "", false),
		Entry("mismatch", `"abc"`, `"def"`, false),
		Entry("list with a matching member", `"abc", "def"`, `"def"`, true),
		Entry("weak comparison ignores W/ prefix on both sides", `W/"abc"`, `"abc"`, true),
		Entry("whitespace around list members is tolerated", `"abc" , "def"`, `"def"`, true),
	)
})

var _ = Describe("NotModifiedHeaders", func() {
	It("carries only validator headers", func() {
		h := conditional.NotModifiedHeaders(`"abc"`, "Mon, 01 Jan 2024 00:00:00 GMT", "public, max-age=3600")
		Expect(h.Get("ETag")).To(Equal(`"abc"`))
		Expect(h.Get("Last-Modified")).To(Equal("Mon, 01 Jan 2024 00:00:00 GMT"))
		Expect(h.Get("Cache-Control")).To(Equal("public, max-age=3600"))
		Expect(h.Get("Content-Type")).To(BeEmpty())
	})

	It("omits headers that were not supplied", func() {
		h := conditional.NotModifiedHeaders("", "", "")
		Expect(h).To(BeEmpty())
	})
})
