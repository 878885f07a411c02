package imageopt

import (
	"image"
	"io"

	"github.com/pkg/errors"
)

// SecurityConfig bounds source images before they are fully decoded,
// defending against image bombs: small compressed files that decode
// into an enormous raster.
type SecurityConfig struct {
	MaxSourceWidth    int   `yaml:"max_source_width" json:"max_source_width" default:"10000"`
	MaxSourceHeight   int   `yaml:"max_source_height" json:"max_source_height" default:"10000"`
	MaxSourcePixels   int64 `yaml:"max_source_pixels" json:"max_source_pixels" default:"50000000"`
	MaxSourceFileSize int64 `yaml:"max_source_file_size" json:"max_source_file_size" default:"52428800"`
}

// DefaultSecurityConfig returns the stock bounds.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxSourceWidth:    10000,
		MaxSourceHeight:   10000,
		MaxSourcePixels:   50_000_000,
		MaxSourceFileSize: 50 * 1024 * 1024,
	}
}

// ErrImageBomb is returned when a source image's declared dimensions
// or file size exceed the configured bounds.
var ErrImageBomb = errors.New("imageopt: source exceeds safe decode bounds")

// CheckFileSize rejects a source before any decoding if its byte
// length alone exceeds the configured maximum.
func (cfg SecurityConfig) CheckFileSize(size int64) error {
	if cfg.MaxSourceFileSize > 0 && size > cfg.MaxSourceFileSize {
		return errors.Wrapf(ErrImageBomb, "source file size %d exceeds maximum %d", size, cfg.MaxSourceFileSize)
	}
	return nil
}

// Probe reads only enough of r to extract the declared dimensions
// (image.DecodeConfig stops after the header) and enforces the bound
// checks before the caller allocates a full raster.
func (cfg SecurityConfig) Probe(r io.Reader) (image.Config, string, error) {

	icfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return image.Config{}, "", errors.Wrap(err, "failed to read image header")
	}

	if err := cfg.CheckDimensions(icfg.Width, icfg.Height); err != nil {
		return image.Config{}, "", err
	}

	return icfg, format, nil
}

// CheckDimensions enforces the width/height/pixel-count bounds.
func (cfg SecurityConfig) CheckDimensions(width, height int) error {

	if cfg.MaxSourceWidth > 0 && width > cfg.MaxSourceWidth {
		return errors.Wrapf(ErrImageBomb, "source width %d exceeds maximum %d", width, cfg.MaxSourceWidth)
	}
	if cfg.MaxSourceHeight > 0 && height > cfg.MaxSourceHeight {
		return errors.Wrapf(ErrImageBomb, "source height %d exceeds maximum %d", height, cfg.MaxSourceHeight)
	}
	pixels := int64(width) * int64(height)
	if cfg.MaxSourcePixels > 0 && pixels > cfg.MaxSourcePixels {
		return errors.Wrapf(ErrImageBomb, "source pixel count %d exceeds maximum %d", pixels, cfg.MaxSourcePixels)
	}
	return nil
}
