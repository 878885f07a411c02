package imageopt

import (
	"bytes"
	"encoding/binary"
	"image"

	"github.com/pkg/errors"
)

// EncodeWebPLossless writes img as a lossless WebP (VP8L) image. This
// is a from-scratch, deliberately minimal encoder: no spatial
// prediction transform, no color-indexing transform, no color cache,
// no LZ77 back-references — every pixel is coded as four independent
// literal symbols (alpha, red, green, blue), each under a degenerate
// canonical Huffman code of uniform length 8 (i.e. the symbol's byte
// value, bit-reversed). Output is larger than a real encoder's but
// decodes everywhere. There is no quality parameter, since quality has
// no meaning for a lossless codec.
func EncodeWebPLossless(img image.Image) ([]byte, error) {

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 1 || h < 1 || w > 1<<14 || h > 1<<14 {
		return nil, errors.Errorf("webp: dimensions %dx%d out of range", w, h)
	}

	bw := newBitWriter()

	// VP8L signature + 14-bit (width-1), (height-1), no-alpha hint
	// deferred (we always carry an alpha channel), version 0.
	bw.writeBits(0x2F, 8)
	bw.writeBits(uint32(w-1), 14)
	bw.writeBits(uint32(h-1), 14)
	bw.writeBits(1, 1) // alpha_is_used
	bw.writeBits(0, 3) // version_number

	// No transforms.
	bw.writeBits(0, 1)

	// No color cache.
	bw.writeBits(0, 1)
	// No meta-Huffman image (single Huffman code group for the whole image).
	bw.writeBits(0, 1)

	// Huffman code groups, in order: green+length(256+24), red(256),
	// blue(256), alpha(256), distance(40). Every real pixel value uses
	// the fixed-length-8 code; unused higher symbols (length/distance
	// alphabet tail) get code length 0 (absent from the tree).
	writeFixedLengthTree(bw, 256+24, 256)
	writeFixedLengthTree(bw, 256, 256)
	writeFixedLengthTree(bw, 256, 256)
	writeFixedLengthTree(bw, 256, 256)
	writeFixedLengthTree(bw, 40, 0) // distance tree: never used, 0 live symbols

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := rgba8At(img, b.Min.X+x, b.Min.Y+y)
			bw.writeFixed8(g)
			bw.writeFixed8(r)
			bw.writeFixed8(bl)
			bw.writeFixed8(a)
		}
	}

	payload := bw.bytes()

	var riff bytes.Buffer
	riff.WriteString("RIFF")
	sizeField := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeField, uint32(4+8+len(payload)+len(payload)%2))
	riff.Write(sizeField)
	riff.WriteString("WEBP")
	riff.WriteString("VP8L")
	chunkSize := make([]byte, 4)
	binary.LittleEndian.PutUint32(chunkSize, uint32(len(payload)))
	riff.Write(chunkSize)
	riff.Write(payload)
	if len(payload)%2 == 1 {
		riff.WriteByte(0)
	}

	return riff.Bytes(), nil
}

func rgba8At(img image.Image, x, y int) (r, g, b, a uint8) {
	cr, cg, cb, ca := img.At(x, y).RGBA()
	return uint8(cr >> 8), uint8(cg >> 8), uint8(cb >> 8), uint8(ca >> 8)
}

// writeFixedLengthTree emits one VP8L Huffman code. With no live
// symbols it writes a simple code holding only symbol 0, which no pixel
// reads. Otherwise it takes the "normal" code-length-code path: the
// code-length alphabet only ever uses two values (0 = absent,
// 8 = present), each given a 1-bit code, then each of alphabetSize real
// symbols is coded through it: liveSymbols consecutive present-length-8
// entries followed by absent entries out to alphabetSize.
func writeFixedLengthTree(bw *bitWriter, alphabetSize, liveSymbols int) {

	if liveSymbols == 0 {
		bw.writeBits(1, 4) // is_simple=1, num_symbols-1=0, is_first_8bits=0, symbol=0
		return
	}
	// is_simple=0, then 12 code-length-code lengths in the order
	// 17, 18, 0, 1, 2, 3, 4, 5, 16, 6, 7, 8: only 0 (index 2) and 8
	// (index 11) get length 1
	bw.writeBits(0, 1)
	bw.writeBits(12-4, 4)
	for i := 0; i < 12; i++ {
		if i == 2 || i == 11 {
			bw.writeBits(1, 3)
		} else {
			bw.writeBits(0, 3)
		}
	}
	bw.writeBits(0, 1) // no max_symbol: every entry is coded

	for i := 0; i < alphabetSize; i++ {
		if i < liveSymbols {
			bw.writeBits(1, 1) // code-length-code symbol for value 8
		} else {
			bw.writeBits(0, 1) // code-length-code symbol for value 0
		}
	}
}

// bitWriter packs bits LSB-first into bytes, matching VP8L's bit
// order (the first bit written becomes the least significant bit of
// the first byte).
type bitWriter struct {
	buf   []byte
	cur   uint32
	nbits uint
}

func newBitWriter() *bitWriter {
	return &bitWriter{}
}

func (w *bitWriter) writeBits(value uint32, n uint) {
	w.cur |= (value & ((1 << n) - 1)) << w.nbits
	w.nbits += n
	for w.nbits >= 8 {
		w.buf = append(w.buf, byte(w.cur))
		w.cur >>= 8
		w.nbits -= 8
	}
}

// writeFixed8 writes v's bit-reversed value as an 8-bit canonical
// Huffman codeword under the uniform-length-8 code this encoder uses.
func (w *bitWriter) writeFixed8(v uint8) {
	w.writeBits(uint32(reverseBits8(v)), 8)
}

func reverseBits8(v uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= v & 1
		v >>= 1
	}
	return r
}

func (w *bitWriter) bytes() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, byte(w.cur))
		w.cur = 0
		w.nbits = 0
	}
	return w.buf
}
