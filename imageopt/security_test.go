package imageopt_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/imageopt"
)

func encodeTestPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

var _ = Describe("SecurityConfig", func() {

	cfg := imageopt.DefaultSecurityConfig()

	It("accepts a small, well-formed source", func() {
		src := encodeTestPNG(16, 16)
		img, format, err := imageopt.Decode(src, cfg)
		Expect(err).ToNot(HaveOccurred())
		Expect(format).To(Equal("png"))
		Expect(img.Bounds().Dx()).To(Equal(16))
	})

	It("rejects a file over the size bound", func() {
		tiny := imageopt.SecurityConfig{MaxSourceFileSize: 4}
		_, _, err := imageopt.Decode(encodeTestPNG(4, 4), tiny)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, imageopt.ErrImageBomb)).To(BeTrue())
	})

	It("rejects declared dimensions over the pixel bound", func() {
		tiny := imageopt.SecurityConfig{MaxSourceFileSize: 1 << 20, MaxSourcePixels: 10}
		_, _, err := imageopt.Decode(encodeTestPNG(8, 8), tiny)
		Expect(err).To(HaveOccurred())
	})
})
