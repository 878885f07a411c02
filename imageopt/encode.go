package imageopt

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/pkg/errors"
)

// Encode renders img in format at quality, returning the bytes and the
// content-type to serve. format=auto resolves to sourceFormat's closest
// supported encoder. AVIF is a recognized Format value but has no
// registered encoder in this module's dependency set; selecting it
// directly is an error, and auto never selects it.
func Encode(img image.Image, format Format, sourceFormat string, quality int, progressive bool) ([]byte, string, error) {

	resolved := format
	if resolved == FormatAuto {
		resolved = resolveAuto(sourceFormat)
	}

	switch resolved {
	case FormatJPEG:
		return encodeJPEG(img, quality, progressive)
	case FormatPNG:
		return encodePNG(img)
	case FormatWebP:
		return encodeWebP(img)
	case FormatAVIF:
		return nil, "", errors.New("imageopt: avif encode target is unsupported")
	default:
		return encodeJPEG(img, quality, progressive)
	}
}

func resolveAuto(sourceFormat string) Format {
	switch sourceFormat {
	case "png":
		return FormatPNG
	case "webp":
		return FormatWebP
	default:
		return FormatJPEG
	}
}

// encodeJPEG discards alpha, flattening against opaque white.
func encodeJPEG(img image.Image, quality int, progressive bool) ([]byte, string, error) {

	flat := flattenAlpha(img)

	var buf bytes.Buffer
	// progressive JPEG encoding is not exposed by the stdlib encoder;
	// the option is accepted and otherwise has no effect here.
	_ = progressive
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, "", errors.Wrap(err, "failed to encode jpeg")
	}
	return buf.Bytes(), "image/jpeg", nil
}

// encodePNG preserves the full RGBA channel set.
func encodePNG(img image.Image) ([]byte, string, error) {

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", errors.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), "image/png", nil
}

func encodeWebP(img image.Image) ([]byte, string, error) {
	out, err := EncodeWebPLossless(img)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to encode webp")
	}
	return out, "image/webp", nil
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

func flattenAlpha(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0xffff {
				dst.Set(x, y, img.At(x, y))
				continue
			}
			// alpha-composite over opaque white; RGBA() values are
			// already alpha-premultiplied
			af := float64(a) / 0xffff
			rr := uint8(float64(r>>8) + 255*(1-af))
			gg := uint8(float64(g>>8) + 255*(1-af))
			bb := uint8(float64(bl>>8) + 255*(1-af))
			dst.Set(x, y, color.RGBA{R: rr, G: gg, B: bb, A: 255})
		}
	}
	return dst
}
