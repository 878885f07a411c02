package imageopt

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// Decode probes src's declared dimensions and file size against cfg's
// bounds, then fully decodes it. Format is auto-detected from magic
// bytes via the registered image.Decode codecs; the blank imports
// above register gif, png, and webp decoding. AVIF has no registered
// Go decoder in this module's dependency set and is therefore rejected
// as a source format, even though Format recognizes it as an encode
// target value.
func Decode(src []byte, cfg SecurityConfig) (image.Image, string, error) {

	if err := cfg.CheckFileSize(int64(len(src))); err != nil {
		return nil, "", err
	}

	if _, _, err := cfg.Probe(bytes.NewReader(src)); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to decode source image")
	}

	return img, format, nil
}

// ExifOrientation returns the JPEG EXIF orientation tag (1-8) if
// present, or 1 (no transform needed) otherwise. Only JPEG carries
// EXIF in this pipeline's supported source formats.
func ExifOrientation(src []byte) int {

	_, err := jpeg.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return 1
	}

	marker := []byte{0xFF, 0xE1}
	idx := bytes.Index(src, marker)
	if idx < 0 || idx+10 >= len(src) {
		return 1
	}

	exifIdx := bytes.Index(src[idx:], []byte("Exif\x00\x00"))
	if exifIdx < 0 {
		return 1
	}
	tiffStart := idx + exifIdx + 6
	if tiffStart+8 >= len(src) {
		return 1
	}

	littleEndian := src[tiffStart] == 'I'
	readU16 := func(off int) int {
		if littleEndian {
			return int(src[off]) | int(src[off+1])<<8
		}
		return int(src[off])<<8 | int(src[off+1])
	}
	readU32 := func(off int) int {
		if littleEndian {
			return int(src[off]) | int(src[off+1])<<8 | int(src[off+2])<<16 | int(src[off+3])<<24
		}
		return int(src[off])<<24 | int(src[off+1])<<16 | int(src[off+2])<<8 | int(src[off+3])
	}

	ifdOffset := tiffStart + readU32(tiffStart+4)
	if ifdOffset+2 >= len(src) {
		return 1
	}
	numEntries := readU16(ifdOffset)

	for i := 0; i < numEntries; i++ {
		entryOff := ifdOffset + 2 + i*12
		if entryOff+12 > len(src) {
			break
		}
		tag := readU16(entryOff)
		if tag == 0x0112 { // Orientation
			val := readU16(entryOff + 8)
			if val >= 1 && val <= 8 {
				return val
			}
		}
	}

	return 1
}
