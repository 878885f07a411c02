package compress

import (
	"strings"

	"github.com/pkg/errors"
)

// GlobalConfig is the proxy-wide compression configuration.
type GlobalConfig struct {
	Enabled              bool                          `yaml:"enabled" json:"enabled" default:"true"`
	DefaultAlgorithm     Algorithm                     `yaml:"default_algorithm" json:"default_algorithm" default:"gzip"`
	MinResponseSizeBytes int64                         `yaml:"min_response_size_bytes" json:"min_response_size_bytes" default:"1024"`
	MaxResponseSizeBytes int64                         `yaml:"max_response_size_bytes" json:"max_response_size_bytes" default:"10485760"`
	Algorithms           map[Algorithm]AlgorithmConfig `yaml:"algorithms" json:"algorithms"`
}

// BucketConfig is a per-bucket compression override: every field is
// optional and, when unset, falls back to GlobalConfig. Enablement only
// narrows: a bucket may disable compression, or an algorithm, that the
// global config enables, never enable one the global config disables.
// The default algorithm and the size bounds, when set, replace the
// global values as given.
type BucketConfig struct {
	Enabled              *bool                         `yaml:"enabled"`
	DefaultAlgorithm     *Algorithm                    `yaml:"default_algorithm"`
	CompressionLevel     *int                          `yaml:"compression_level"`
	MinResponseSizeBytes *int64                        `yaml:"min_response_size_bytes"`
	MaxResponseSizeBytes *int64                        `yaml:"max_response_size_bytes"`
	Algorithms           map[Algorithm]AlgorithmConfig `yaml:"algorithms"`
}

// Validate checks level and size-bound consistency. The bucket-wide
// level is capped at 9, safe for every algorithm; per-algorithm
// overrides within Algorithms may still go to each algorithm's own max
// (11 for brotli).
func (b BucketConfig) Validate() error {

	if b.CompressionLevel != nil {
		lvl := *b.CompressionLevel
		if lvl < 1 || lvl > 9 {
			return errors.Errorf("bucket compression level must be 1-9 (safe for all algorithms), got %d", lvl)
		}
	}

	if b.MinResponseSizeBytes != nil && b.MaxResponseSizeBytes != nil {
		if *b.MinResponseSizeBytes >= *b.MaxResponseSizeBytes {
			return errors.New("min_response_size_bytes must be less than max_response_size_bytes")
		}
	}

	for algo, cfg := range b.Algorithms {
		if cfg.Level < 1 || cfg.Level > algo.maxLevel() {
			return errors.Errorf("algorithm %q level must be 1-%d, got %d", algo, algo.maxLevel(), cfg.Level)
		}
	}

	return nil
}

// Resolved is the effective compression configuration for one bucket,
// after folding BucketConfig over GlobalConfig.
type Resolved struct {
	Enabled              bool
	DefaultAlgorithm     Algorithm
	MinResponseSizeBytes int64
	MaxResponseSizeBytes int64
	Algorithms           map[Algorithm]AlgorithmConfig
}

// Resolve folds b over global: a bucket may only disable compression
// the global config enabled, never enable compression the global
// config left disabled.
func Resolve(global GlobalConfig, b BucketConfig) Resolved {

	enabled := global.Enabled
	if b.Enabled != nil {
		enabled = global.Enabled && *b.Enabled
	}

	algo := global.DefaultAlgorithm
	if b.DefaultAlgorithm != nil {
		algo = *b.DefaultAlgorithm
	}

	minSize := global.MinResponseSizeBytes
	if b.MinResponseSizeBytes != nil {
		minSize = *b.MinResponseSizeBytes
	}

	maxSize := global.MaxResponseSizeBytes
	if b.MaxResponseSizeBytes != nil {
		maxSize = *b.MaxResponseSizeBytes
	}

	algorithms := make(map[Algorithm]AlgorithmConfig, len(global.Algorithms))
	for k, v := range global.Algorithms {
		algorithms[k] = v
	}
	for k, v := range b.Algorithms {
		if existing, ok := algorithms[k]; ok {
			v.Enabled = existing.Enabled && v.Enabled
		}
		algorithms[k] = v
	}

	return Resolved{
		Enabled:              enabled,
		DefaultAlgorithm:     algo,
		MinResponseSizeBytes: minSize,
		MaxResponseSizeBytes: maxSize,
		Algorithms:           algorithms,
	}
}

// ShouldCompress reports whether a response of size bytes, with
// content type contentType, should be compressed under r.
func (r Resolved) ShouldCompress(size int64, contentType string) bool {

	if !r.Enabled {
		return false
	}
	if size < r.MinResponseSizeBytes || size > r.MaxResponseSizeBytes {
		return false
	}
	return isCompressible(contentType)
}

// isCompressible excludes content types that are already compressed
// (images, video, archives) where re-compression wastes CPU for no
// size benefit.
func isCompressible(contentType string) bool {
	switch {
	case strings.HasPrefix(contentType, "image/"),
		strings.HasPrefix(contentType, "video/"),
		strings.HasPrefix(contentType, "audio/"),
		contentType == "application/zip",
		contentType == "application/gzip",
		contentType == "application/x-gzip":
		return false
	default:
		return true
	}
}
