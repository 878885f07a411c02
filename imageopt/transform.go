package imageopt

import (
	"image"
	"image/color"
	"strconv"
)

// toRGBA materializes img as an *image.RGBA, the common raster every
// transform in this file (and the resize kernel) operates on.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return dst
}

// Rotate90 rotates img clockwise by the given multiple of 90 degrees.
func Rotate90(img image.Image, degrees int) image.Image {

	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	switch ((degrees % 360) + 360) % 360 {
	case 90:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(h-1-y, x, src.At(x, y))
			}
		}
		return dst
	case 180:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(w-1-x, h-1-y, src.At(x, y))
			}
		}
		return dst
	case 270:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(y, w-1-x, src.At(x, y))
			}
		}
		return dst
	default:
		return img
	}
}

// FlipHorizontal mirrors img left-to-right.
func FlipHorizontal(img image.Image) image.Image {
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(w-1-x, y, src.At(x, y))
		}
	}
	return dst
}

// FlipVertical mirrors img top-to-bottom.
func FlipVertical(img image.Image) image.Image {
	src := toRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(x, h-1-y, src.At(x, y))
		}
	}
	return dst
}

// Crop extracts box from img, clamping to img's bounds.
func Crop(img image.Image, box Box) image.Image {

	b := img.Bounds()
	x0 := b.Min.X + box.X
	y0 := b.Min.Y + box.Y
	x1 := x0 + box.Width
	y1 := y0 + box.Height
	if x1 > b.Max.X {
		x1 = b.Max.X
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	if x0 >= x1 || y0 >= y1 {
		return img
	}

	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(image.Rect(x0, y0, x1, y1))
	}

	rgba := toRGBA(img)
	return rgba.SubImage(image.Rect(x0, y0, x1, y1))
}

// PadToBackground centers src within a targetW x targetH canvas filled
// with bg, for fit=pad.
func PadToBackground(src image.Image, targetW, targetH int, bg color.Color) image.Image {

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			dst.Set(x, y, bg)
		}
	}

	b := src.Bounds()
	offX := (targetW - b.Dx()) / 2
	offY := (targetH - b.Dy()) / 2
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(offX+x, offY+y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// ParseBackground parses a 6-digit hex color (no leading '#'),
// defaulting to opaque white when blank or malformed.
func ParseBackground(hexColor string) color.Color {

	if len(hexColor) != 6 {
		return color.White
	}

	r, errR := strconv.ParseUint(hexColor[0:2], 16, 8)
	g, errG := strconv.ParseUint(hexColor[2:4], 16, 8)
	b, errB := strconv.ParseUint(hexColor[4:6], 16, 8)
	if errR != nil || errG != nil || errB != nil {
		return color.White
	}

	return color.RGBA{R: byte(r), G: byte(g), B: byte(b), A: 0xff}
}
