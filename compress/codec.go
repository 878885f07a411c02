package compress

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/pkg/errors"
)

// Compress encodes data with algorithm at level. level is interpreted
// per-algorithm: 1-9 for gzip/deflate (mapped onto flate's -2..9 native
// range by clamping to flate's max), 1-11 for brotli.
func Compress(data []byte, algorithm Algorithm, level int) ([]byte, error) {
	switch algorithm {
	case Gzip:
		return compressGzip(data, level)
	case Brotli:
		return compressBrotli(data, level)
	case Deflate:
		return compressDeflate(data, level)
	default:
		return nil, errors.Errorf("unsupported compression algorithm: %q", algorithm)
	}
}

// Decompress decodes data with algorithm, refusing to read more than
// maxSize+1 bytes so an oversized or decompression-bomb payload fails
// fast rather than exhausting memory.
func Decompress(data []byte, algorithm Algorithm, maxSize int64) ([]byte, error) {
	switch algorithm {
	case Gzip:
		return decompressGzip(data, maxSize)
	case Brotli:
		return decompressBrotli(data, maxSize)
	case Deflate:
		return decompressDeflate(data, maxSize)
	default:
		return nil, errors.Errorf("unsupported compression algorithm: %q", algorithm)
	}
}

func clampFlateLevel(level int) int {
	if level > 9 {
		return 9
	}
	if level < 1 {
		return 1
	}
	return level
}

func compressGzip(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, clampFlateLevel(level))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gzip writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "gzip compression failed")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip compression failed")
	}
	return buf.Bytes(), nil
}

func decompressGzip(data []byte, maxSize int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gzip reader")
	}
	defer r.Close()
	return readBounded(r, maxSize)
}

func compressDeflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, clampFlateLevel(level))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create deflate writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "deflate compression failed")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "deflate compression failed")
	}
	return buf.Bytes(), nil
}

func decompressDeflate(data []byte, maxSize int64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return readBounded(r, maxSize)
}

func compressBrotli(data []byte, level int) ([]byte, error) {
	if level > 11 {
		level = 11
	}
	if level < 0 {
		level = 0
	}
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, level)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "brotli compression failed")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "brotli compression failed")
	}
	return buf.Bytes(), nil
}

func decompressBrotli(data []byte, maxSize int64) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	return readBounded(r, maxSize)
}

// readBounded reads at most maxSize+1 bytes from r, erroring if the
// decompressed payload exceeds maxSize rather than buffering it all
// unconditionally.
func readBounded(r io.Reader, maxSize int64) ([]byte, error) {
	limited := io.LimitReader(r, maxSize+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.Wrap(err, "decompression failed")
	}
	if int64(len(out)) > maxSize {
		return nil, errors.Errorf("decompressed size exceeds maximum allowed size %d", maxSize)
	}
	return out, nil
}
