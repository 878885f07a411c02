// Package compress implements response compression: algorithm
// selection, per-bucket config overriding global config, and
// size-bounded encode/decode.
package compress

import (
	"strings"

	"github.com/pkg/errors"
)

// Algorithm is a supported response compression codec.
type Algorithm string

// Recognized algorithms.
const (
	Gzip    Algorithm = "gzip"
	Brotli  Algorithm = "br"
	Deflate Algorithm = "deflate"
)

// ContentEncoding returns the Content-Encoding header value for a.
func (a Algorithm) ContentEncoding() string {
	return string(a)
}

// ParseAlgorithm parses s case-insensitively, accepting "brotli" as an
// alias for "br".
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "gzip":
		return Gzip, nil
	case "br", "brotli":
		return Brotli, nil
	case "deflate":
		return Deflate, nil
	default:
		return "", errors.Errorf("unsupported compression algorithm: %q", s)
	}
}

// maxLevel is the highest compression level each algorithm accepts.
func (a Algorithm) maxLevel() int {
	if a == Brotli {
		return 11
	}
	return 9
}

// AlgorithmConfig is one algorithm's enablement and level.
type AlgorithmConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" default:"true"`
	Level   int  `yaml:"level" json:"level" default:"6"`
}

// NewAlgorithmConfig validates level against the widest range any
// algorithm accepts, 1-11 (a per-bucket override narrows this further
// via BucketConfig.Validate).
func NewAlgorithmConfig(enabled bool, level int) (AlgorithmConfig, error) {
	if level < 1 || level > 11 {
		return AlgorithmConfig{}, errors.Errorf("compression level must be 1-11, got %d", level)
	}
	return AlgorithmConfig{Enabled: enabled, Level: level}, nil
}

// GzipDefault is gzip's default algorithm configuration.
func GzipDefault() AlgorithmConfig { return AlgorithmConfig{Enabled: true, Level: 6} }

// BrotliDefault is brotli's default algorithm configuration.
func BrotliDefault() AlgorithmConfig { return AlgorithmConfig{Enabled: true, Level: 4} }

// DeflateDefault is deflate's default algorithm configuration: disabled.
func DeflateDefault() AlgorithmConfig { return AlgorithmConfig{Enabled: false, Level: 6} }
