package imageopt_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clarktrimble/cachesto/imageopt"
)

var _ = Describe("Fingerprint", func() {

	It("is empty for untouched defaults (the untransformed original)", func() {
		Expect(imageopt.Fingerprint(imageopt.Default())).To(Equal(""))
	})

	It("is deterministic for the same params", func() {
		p := imageopt.Default()
		p.Width = 800
		p.Format = imageopt.FormatWebP
		Expect(imageopt.Fingerprint(p)).To(Equal(imageopt.Fingerprint(p)))
	})

	It("differs when a field differs", func() {
		p1 := imageopt.Default()
		p1.Width = 800
		p2 := imageopt.Default()
		p2.Width = 400
		Expect(imageopt.Fingerprint(p1)).ToNot(Equal(imageopt.Fingerprint(p2)))
	})

	It("is order-independent across equivalent field sets", func() {
		p1 := imageopt.Default()
		p1.Width, p1.Height = 800, 600
		p2 := imageopt.Default()
		p2.Height, p2.Width = 600, 800
		Expect(imageopt.Fingerprint(p1)).To(Equal(imageopt.Fingerprint(p2)))
	})
})

var _ = Describe("Signature", func() {

	It("verifies its own signature", func() {
		cfg := imageopt.SignatureConfig{Enabled: true, Key: "secret", Salt: "pepper"}
		sig := cfg.Sign("w:800", "https://example.com/a.jpg")
		ok, err := cfg.Verify(sig, "w:800", "https://example.com/a.jpg")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("rejects a tampered options string", func() {
		cfg := imageopt.SignatureConfig{Enabled: true, Key: "secret"}
		sig := cfg.Sign("w:800", "https://example.com/a.jpg")
		ok, _ := cfg.Verify(sig, "w:801", "https://example.com/a.jpg")
		Expect(ok).To(BeFalse())
	})

	It("accepts anything when disabled", func() {
		cfg := imageopt.SignatureConfig{Enabled: false}
		ok, err := cfg.Verify("garbage", "w:800", "https://example.com/a.jpg")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("TargetDims", func() {

	It("preserves aspect ratio when only width is given", func() {
		w, h := imageopt.TargetDims(withWidth(400), 800, 600)
		Expect(w).To(Equal(400))
		Expect(h).To(Equal(300))
	})

	It("clamps below source unless enlarge is set", func() {
		p := withWidth(2000)
		w, _ := imageopt.TargetDims(p, 800, 600)
		Expect(w).To(Equal(800))

		p.Enlarge = true
		w, _ = imageopt.TargetDims(p, 800, 600)
		Expect(w).To(Equal(2000))
	})

	It("floors at 1 pixel", func() {
		p := imageopt.Default()
		p.WidthPercent = 0.01
		p.HeightPercent = 0.01
		w, h := imageopt.TargetDims(p, 100, 100)
		Expect(w).To(BeNumerically(">=", 1))
		Expect(h).To(BeNumerically(">=", 1))
	})
})

func withWidth(w int) imageopt.Params {
	p := imageopt.Default()
	p.Width = w
	return p
}
