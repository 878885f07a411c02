package imageopt

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// lanczos3 is the resampling kernel the resize path uses.
// golang.org/x/image/draw ships CatmullRom and BiLinear as Kernel
// values built the same way: a support radius and a windowed weight
// function. Lanczos3 isn't one of the package's predefined Scalers, so
// it's assembled here from the same exported draw.Kernel type the
// package itself uses for CatmullRom, rather than hand-rolling a
// separate convolution path.
var lanczos3 = draw.Kernel{Support: 3, At: lanczosAt}

func lanczosAt(t float64) float64 {
	if t == 0 {
		return 1
	}
	if t < -3 || t > 3 {
		return 0
	}
	x := math.Pi * t
	return 3 * math.Sin(x) * math.Sin(x/3) / (x * x)
}

// TargetDims resolves p's width/height against a source size: pixels
// or percentage resolved against source, multiplied by DPR, clamped
// below source unless Enlarge, floored at 1.
func TargetDims(p Params, srcW, srcH int) (w, h int) {

	w, h = srcW, srcH

	switch {
	case p.Width > 0 && p.Height > 0:
		w, h = p.Width, p.Height
	case p.WidthPercent > 0 && p.HeightPercent > 0:
		w = int(float64(srcW) * p.WidthPercent / 100)
		h = int(float64(srcH) * p.HeightPercent / 100)
	case p.Width > 0:
		w = p.Width
		h = int(float64(srcH) * float64(w) / float64(srcW))
	case p.Height > 0:
		h = p.Height
		w = int(float64(srcW) * float64(h) / float64(srcH))
	case p.WidthPercent > 0:
		w = int(float64(srcW) * p.WidthPercent / 100)
		h = int(float64(srcH) * float64(w) / float64(srcW))
	case p.HeightPercent > 0:
		h = int(float64(srcH) * p.HeightPercent / 100)
		w = int(float64(srcW) * float64(h) / float64(srcH))
	}

	dpr := p.DPR
	if dpr <= 0 {
		dpr = 1
	}
	w = int(float64(w) * dpr)
	h = int(float64(h) * dpr)

	if !p.Enlarge {
		if w > srcW {
			w = srcW
		}
		if h > srcH {
			h = srcH
		}
	}

	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	return w, h
}

// Resize scales src to exactly width x height using the Lanczos3
// kernel, skipping the convolution entirely when dimensions already
// match.
func Resize(src image.Image, width, height int) image.Image {

	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	lanczos3.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// ApplyFit computes the crop geometry for fit before Resize runs,
// returning the crop rectangle to apply to src (in source coordinates)
// ahead of scaling to targetW x targetH. The target dimensions are not
// changed.
func ApplyFit(fit Fit, gravity Gravity, srcW, srcH, targetW, targetH int) image.Rectangle {

	switch fit {
	case FitFill, FitContain, FitInside, FitPad:
		// no crop: the full source is scaled, possibly distorting
		// aspect ratio (Fill) or letterboxing is left to the caller (Pad).
		return image.Rect(0, 0, srcW, srcH)

	case FitOutside:
		return image.Rect(0, 0, srcW, srcH)

	case FitCover:
		fallthrough
	default:
		return coverCrop(gravity, srcW, srcH, targetW, targetH)
	}
}

// coverCrop computes the largest centered (or gravity-anchored)
// rectangle of the target aspect ratio that fits within the source,
// so a subsequent Resize to targetW x targetH crops rather than
// distorts.
func coverCrop(gravity Gravity, srcW, srcH, targetW, targetH int) image.Rectangle {

	if targetW <= 0 || targetH <= 0 {
		return image.Rect(0, 0, srcW, srcH)
	}

	srcRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(targetW) / float64(targetH)

	var cw, ch int
	if srcRatio > targetRatio {
		ch = srcH
		cw = int(float64(ch) * targetRatio)
	} else {
		cw = srcW
		ch = int(float64(cw) / targetRatio)
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}

	x, y := anchor(gravity, srcW, srcH, cw, ch)
	return image.Rect(x, y, x+cw, y+ch)
}

// anchor positions a cw x ch box within a srcW x srcH source per
// gravity. Smart gravity has no saliency model in scope and falls
// back to center.
func anchor(gravity Gravity, srcW, srcH, cw, ch int) (x, y int) {

	maxX, maxY := srcW-cw, srcH-ch
	midX, midY := maxX/2, maxY/2

	switch gravity {
	case GravityNorth:
		return midX, 0
	case GravityNorthEast:
		return maxX, 0
	case GravityEast:
		return maxX, midY
	case GravitySouthEast:
		return maxX, maxY
	case GravitySouth:
		return midX, maxY
	case GravitySouthWest:
		return 0, maxY
	case GravityWest:
		return 0, midY
	case GravityNorthWest:
		return 0, 0
	case GravityCenter, GravitySmart:
		fallthrough
	default:
		return midX, midY
	}
}
