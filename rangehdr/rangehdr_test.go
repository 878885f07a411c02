package rangehdr_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/rangehdr"
)

func TestRangehdr(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rangehdr Suite")
}

var _ = Describe("Parse", func() {

	DescribeTable("rejects syntactically invalid input",
		func(raw string) {
			_, ok := rangehdr.Parse(raw)
			Expect(ok).To(BeFalse())
		},
		Entry("empty", ""),
		Entry("missing equals", "bytes100-199"),
		Entry("bare dash", "bytes=-"),
		Entry("non-numeric", "bytes=abc-def"),
		Entry("leading comma", "bytes=,100-199"),
		Entry("trailing comma", "bytes=100-199,"),
		Entry("double comma", "bytes=100-199,,200-299"),
	)

	It("parses a closed range", func() {
		parsed, ok := rangehdr.Parse("bytes=100-199")
		Expect(ok).To(BeTrue())
		Expect(parsed.Unit).To(Equal("bytes"))
		Expect(parsed.Units).To(HaveLen(1))
		Expect(parsed.Units[0]).To(Equal(rangehdr.Unit{HasStart: true, Start: 100, HasEnd: true, End: 199}))
	})

	It("parses an open-ended range", func() {
		parsed, ok := rangehdr.Parse("bytes=100-")
		Expect(ok).To(BeTrue())
		Expect(parsed.Units[0]).To(Equal(rangehdr.Unit{HasStart: true, Start: 100}))
	})

	It("parses a suffix range", func() {
		parsed, ok := rangehdr.Parse("bytes=-500")
		Expect(ok).To(BeTrue())
		Expect(parsed.Units[0]).To(Equal(rangehdr.Unit{HasEnd: true, End: 500}))
	})

	It("tolerates whitespace around tokens", func() {
		parsed, ok := rangehdr.Parse("bytes= 100-199 , 300-399 ")
		Expect(ok).To(BeTrue())
		Expect(parsed.Units).To(HaveLen(2))
	})
})

var _ = Describe("Resolve", func() {

	It("classifies a closed range against a 256-byte object", func() {
		parsed, ok := rangehdr.Parse("bytes=100-199")
		Expect(ok).To(BeTrue())

		resolved := rangehdr.Resolve(parsed, 256)
		Expect(resolved).To(HaveLen(1))
		Expect(resolved[0].Kind).To(Equal(rangehdr.SatisfiableClosed))
		Expect(resolved[0].Start).To(Equal(int64(100)))
		Expect(resolved[0].End).To(Equal(int64(199)))
		Expect(resolved[0].Length()).To(Equal(int64(100)))
		Expect(rangehdr.ContentRange(resolved[0], 256)).To(Equal("bytes 100-199/256"))
	})

	It("clamps an open-ended range to the object size", func() {
		parsed, _ := rangehdr.Parse("bytes=200-")
		resolved := rangehdr.Resolve(parsed, 256)
		Expect(resolved[0].Kind).To(Equal(rangehdr.SatisfiableOpenEnded))
		Expect(resolved[0].End).To(Equal(int64(255)))
	})

	It("clamps a suffix range to the object size", func() {
		parsed, _ := rangehdr.Parse("bytes=-1000")
		resolved := rangehdr.Resolve(parsed, 256)
		Expect(resolved[0].Kind).To(Equal(rangehdr.Suffix))
		Expect(resolved[0].Start).To(Equal(int64(0)))
		Expect(resolved[0].End).To(Equal(int64(255)))
	})

	It("marks an out-of-bounds range unsatisfiable", func() {
		parsed, _ := rangehdr.Parse("bytes=1000-2000")
		resolved := rangehdr.Resolve(parsed, 256)
		Expect(resolved[0].Kind).To(Equal(rangehdr.Unsatisfiable))
		Expect(rangehdr.UnsatisfiableContentRange(256)).To(Equal("bytes */256"))
	})

	It("marks start > end unsatisfiable", func() {
		parsed, _ := rangehdr.Parse("bytes=199-100")
		resolved := rangehdr.Resolve(parsed, 256)
		Expect(resolved[0].Kind).To(Equal(rangehdr.Unsatisfiable))
	})
})
