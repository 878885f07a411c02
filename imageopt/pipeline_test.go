package imageopt_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/imageopt"
)

var _ = Describe("Pipeline", func() {

	var (
		pipeline *imageopt.Pipeline
		params   imageopt.Params
		out      imageopt.Output
		err      error
	)

	BeforeEach(func() {
		pipeline = imageopt.NewPipeline(imageopt.DefaultSecurityConfig())
		params = imageopt.Default()
	})

	JustBeforeEach(func() {
		out, err = pipeline.Run(context.Background(), encodeTestPNG(64, 32), params)
	})

	When("no resize params are requested", func() {
		It("re-encodes in the auto-resolved format at source dimensions", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(out.ContentType).To(Equal("image/png"))
			Expect(out.Width).To(Equal(64))
			Expect(out.Height).To(Equal(32))
		})
	})

	When("width is requested", func() {
		BeforeEach(func() {
			params.Width = 32
			params.Format = imageopt.FormatJPEG
		})

		It("resizes preserving aspect ratio and re-encodes as jpeg", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(out.ContentType).To(Equal("image/jpeg"))
			Expect(out.Width).To(Equal(32))
			Expect(out.Height).To(Equal(16))
			Expect(out.Payload).ToNot(BeEmpty())
		})
	})

	When("format=webp is requested", func() {
		BeforeEach(func() {
			params.Format = imageopt.FormatWebP
		})

		It("produces a RIFF/WEBP payload", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(out.ContentType).To(Equal("image/webp"))
			Expect(string(out.Payload[0:4])).To(Equal("RIFF"))
			Expect(string(out.Payload[8:12])).To(Equal("WEBP"))
		})
	})

	When("cover fit with explicit target dims changes aspect ratio", func() {
		BeforeEach(func() {
			params.Width = 20
			params.Height = 20
			params.Fit = imageopt.FitCover
		})

		It("crops to the target aspect before resizing", func() {
			Expect(err).ToNot(HaveOccurred())
			Expect(out.Width).To(Equal(20))
			Expect(out.Height).To(Equal(20))
		})
	})

	When("the source exceeds the bomb guard bounds", func() {
		BeforeEach(func() {
			pipeline = imageopt.NewPipeline(imageopt.SecurityConfig{MaxSourceFileSize: 1})
		})

		It("returns an error without decoding further", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
