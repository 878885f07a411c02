package imageopt

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// Pipeline runs the decode, resize, encode sequence against an
// already-fetched source payload. The source fetch itself is the
// caller's responsibility: it belongs to the read orchestrator, which
// knows how to reach cache/coalescer/origin without creating an
// import cycle back into this package.
type Pipeline struct {
	Security SecurityConfig
}

// NewPipeline builds a Pipeline from cfg.
func NewPipeline(cfg SecurityConfig) *Pipeline {
	return &Pipeline{Security: cfg}
}

// Output is the transformed artifact.
type Output struct {
	Payload     []byte
	ContentType string
	Width       int
	Height      int
}

// Run decodes source, applies p, and encodes the result. ctx is
// accepted for symmetry with the rest of the read path even though
// every step here is pure CPU work. Run does that work on the calling
// goroutine; the read path calls it inline on the request goroutine,
// with no separate worker pool.
func (p *Pipeline) Run(_ context.Context, source []byte, params Params) (Output, error) {

	img, srcFormat, err := Decode(source, p.Security)
	if err != nil {
		return Output{}, err
	}

	orientation := 1
	if srcFormat == "jpeg" {
		orientation = ExifOrientation(source)
	}
	if params.AutoRotate && orientation != 1 {
		img = applyExifOrientation(img, orientation)
	}

	if params.Rotate != 0 {
		img = Rotate90(img, params.Rotate)
	}
	if params.FlipH {
		img = FlipHorizontal(img)
	}
	if params.FlipV {
		img = FlipVertical(img)
	}

	if params.HasCrop {
		img = Crop(img, params.Crop)
	}

	srcBounds := img.Bounds()
	srcW, srcH := srcBounds.Dx(), srcBounds.Dy()

	if params.Width > 0 || params.Height > 0 || params.WidthPercent > 0 || params.HeightPercent > 0 {
		targetW, targetH := TargetDims(params, srcW, srcH)

		if params.Fit == FitCover || params.Fit == FitOutside {
			cropRect := ApplyFit(params.Fit, params.Gravity, srcW, srcH, targetW, targetH)
			img = Crop(img, Box{X: cropRect.Min.X, Y: cropRect.Min.Y, Width: cropRect.Dx(), Height: cropRect.Dy()})
		}

		if params.Fit == FitPad {
			scaled := scaleToFit(img, targetW, targetH)
			img = PadToBackground(scaled, targetW, targetH, ParseBackground(params.BackgroundHex))
		} else {
			img = Resize(img, targetW, targetH)
		}
	}

	out, contentType, err := Encode(img, params.Format, srcFormat, params.Quality, params.Progressive)
	if err != nil {
		return Output{}, errors.Wrap(err, "image encode failed")
	}

	b := img.Bounds()
	return Output{Payload: out, ContentType: contentType, Width: b.Dx(), Height: b.Dy()}, nil
}

// scaleToFit resizes src to fit entirely within targetW x targetH
// while preserving aspect ratio, for fit=pad.
func scaleToFit(src image.Image, targetW, targetH int) image.Image {

	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return src
	}

	srcRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(targetW) / float64(targetH)

	var w, h int
	if srcRatio > targetRatio {
		w = targetW
		h = int(float64(w) / srcRatio)
	} else {
		h = targetH
		w = int(float64(h) * srcRatio)
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	return Resize(src, w, h)
}

// applyExifOrientation undoes a JPEG's declared EXIF orientation so
// the output always renders upright.
func applyExifOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return FlipHorizontal(img)
	case 3:
		return Rotate90(img, 180)
	case 4:
		return FlipVertical(img)
	case 5:
		return FlipHorizontal(Rotate90(img, 90))
	case 6:
		return Rotate90(img, 90)
	case 7:
		return FlipHorizontal(Rotate90(img, 270))
	case 8:
		return Rotate90(img, 270)
	default:
		return img
	}
}
