// Package imageopt implements the on-the-fly image transformation
// pipeline: parameter parsing, URL signing, a bomb guard that inspects
// declared dimensions before decoding, resize via a Lanczos3 kernel,
// and format-specific re-encode.
package imageopt

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Fit is the resize strategy applied when target dimensions don't
// match the source aspect ratio.
type Fit string

// Recognized fit strategies.
const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
	FitFill    Fit = "fill"
	FitInside  Fit = "inside"
	FitOutside Fit = "outside"
	FitPad     Fit = "pad"
)

// Gravity anchors a crop or pad operation.
type Gravity string

// Recognized gravities: 9 compass points plus smart (content-aware,
// approximated here as center since no saliency model is in scope).
const (
	GravityCenter    Gravity = "center"
	GravityNorth     Gravity = "north"
	GravityNorthEast Gravity = "north_east"
	GravityEast      Gravity = "east"
	GravitySouthEast Gravity = "south_east"
	GravitySouth     Gravity = "south"
	GravitySouthWest Gravity = "south_west"
	GravityWest      Gravity = "west"
	GravityNorthWest Gravity = "north_west"
	GravitySmart     Gravity = "smart"
)

// Format is a recognized encode target. Auto defers to the source
// format's closest supported encoder.
type Format string

// Recognized formats.
const (
	FormatAuto Format = "auto"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
)

// Box is a crop rectangle in source pixel coordinates.
type Box struct {
	X, Y, Width, Height int
}

// Params is the parsed, validated set of image transform options
// recognized from a request.
type Params struct {
	Width         int     // target pixels; 0 means unset
	Height        int     // target pixels; 0 means unset
	WidthPercent  float64 // 0 means unset; max 1000 (1000%)
	HeightPercent float64
	DPR           float64 // 1.0-4.0, default 1.0
	Fit           Fit
	Gravity       Gravity
	Quality       int // 1-100, default 85
	Format        Format
	Rotate        int // one of 0, 90, 180, 270
	AutoRotate    bool
	FlipH         bool
	FlipV         bool
	Blur          int // 0-100
	Sharpen       int // 0-10
	Enlarge       bool
	StripMetadata bool
	Progressive   bool
	Crop          Box
	HasCrop       bool
	BackgroundHex string // e.g. "ffffff", used by pad fit
}

// Default returns Params with every option at its default.
func Default() Params {
	return Params{
		DPR:        1.0,
		Fit:        FitCover,
		Gravity:    GravityCenter,
		Quality:    85,
		Format:     FormatAuto,
		AutoRotate: true,
	}
}

// HasAny reports whether p differs from Default() in any recognized
// field, used to decide whether the image pipeline should run at all
// for a given request.
func (p Params) HasAny() bool {
	return p != Default() || p.HasCrop
}

// ParseQuery parses recognized image parameters out of an
// url.Values, e.g. ?w=800&h=600&q=80&f=webp. Unrecognized keys are
// ignored so the same query string can carry unrelated parameters.
func ParseQuery(q url.Values) (Params, error) {

	p := Default()
	var err error

	if v := q.Get("w"); v != "" {
		if p.Width, p.WidthPercent, err = parseDimension(v); err != nil {
			return p, errors.Wrap(err, "invalid width")
		}
	}
	if v := q.Get("h"); v != "" {
		if p.Height, p.HeightPercent, err = parseDimension(v); err != nil {
			return p, errors.Wrap(err, "invalid height")
		}
	}
	if v := q.Get("dpr"); v != "" {
		if p.DPR, err = parseDPR(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("fit"); v != "" {
		if p.Fit, err = parseFit(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("gravity"); v != "" {
		if p.Gravity, err = parseGravity(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("q"); v != "" {
		if p.Quality, err = parseQuality(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("f"); v != "" {
		if p.Format, err = parseFormat(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("rotate"); v != "" {
		if p.Rotate, err = parseRotate(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("auto_rotate"); v != "" {
		p.AutoRotate = parseBool(v, true)
	}
	if v := q.Get("flip_h"); v != "" {
		p.FlipH = parseBool(v, false)
	}
	if v := q.Get("flip_v"); v != "" {
		p.FlipV = parseBool(v, false)
	}
	if v := q.Get("blur"); v != "" {
		if p.Blur, err = parseBounded(v, 0, 100, "blur"); err != nil {
			return p, err
		}
	}
	if v := q.Get("sharpen"); v != "" {
		if p.Sharpen, err = parseBounded(v, 0, 10, "sharpen"); err != nil {
			return p, err
		}
	}
	if v := q.Get("enlarge"); v != "" {
		p.Enlarge = parseBool(v, false)
	}
	if v := q.Get("strip_metadata"); v != "" {
		p.StripMetadata = parseBool(v, false)
	}
	if v := q.Get("progressive"); v != "" {
		p.Progressive = parseBool(v, false)
	}
	if v := q.Get("bg"); v != "" {
		p.BackgroundHex = strings.TrimPrefix(v, "#")
	}
	if v := q.Get("crop"); v != "" {
		if p.Crop, err = parseCrop(v); err != nil {
			return p, err
		}
		p.HasCrop = true
	}

	return p, nil
}

// ParsePathSegment parses a colon/comma-delimited options segment
// embedded in the URL path, e.g. "w:800,h:600,q:80,f:webp", converting
// it to the same query-string form ParseQuery accepts.
func ParsePathSegment(segment string) (Params, error) {

	values := url.Values{}
	for _, pair := range strings.Split(segment, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return Params{}, errors.Errorf("malformed image option %q", pair)
		}
		values.Set(aliasKey(kv[0]), kv[1])
	}
	return ParseQuery(values)
}

// aliasKey maps the path-segment's short keys onto ParseQuery's names.
func aliasKey(k string) string {
	switch k {
	case "w", "h", "q", "f", "dpr", "fit", "gravity", "rotate", "blur", "sharpen", "bg", "crop":
		return k
	default:
		return k
	}
}

func parseDimension(v string) (pixels int, percent float64, err error) {
	if strings.HasSuffix(v, "%") {
		n, perr := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if perr != nil || n <= 0 || n > 1000 {
			return 0, 0, errors.Errorf("dimension percentage must be in (0, 1000], got %q", v)
		}
		return 0, n, nil
	}
	n, perr := strconv.Atoi(v)
	if perr != nil || n <= 0 {
		return 0, 0, errors.Errorf("dimension must be a positive integer, got %q", v)
	}
	return n, 0, nil
}

func parseDPR(v string) (float64, error) {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 1.0 || n > 4.0 {
		return 0, errors.Errorf("dpr must be in [1.0, 4.0], got %q", v)
	}
	return n, nil
}

func parseFit(v string) (Fit, error) {
	switch Fit(v) {
	case FitCover, FitContain, FitFill, FitInside, FitOutside, FitPad:
		return Fit(v), nil
	default:
		return "", errors.Errorf("unrecognized fit %q", v)
	}
}

func parseGravity(v string) (Gravity, error) {
	switch Gravity(v) {
	case GravityCenter, GravityNorth, GravityNorthEast, GravityEast, GravitySouthEast,
		GravitySouth, GravitySouthWest, GravityWest, GravityNorthWest, GravitySmart:
		return Gravity(v), nil
	default:
		return "", errors.Errorf("unrecognized gravity %q", v)
	}
}

func parseQuality(v string) (int, error) {
	return parseBounded(v, 1, 100, "quality")
}

func parseFormat(v string) (Format, error) {
	switch Format(strings.ToLower(v)) {
	case FormatAuto, FormatJPEG, FormatPNG, FormatWebP, FormatAVIF:
		return Format(strings.ToLower(v)), nil
	default:
		return "", errors.Errorf("unrecognized format %q", v)
	}
}

func parseRotate(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Errorf("rotate must be numeric, got %q", v)
	}
	switch n {
	case 0, 90, 180, 270:
		return n, nil
	default:
		return 0, errors.Errorf("rotate must be one of 0, 90, 180, 270, got %d", n)
	}
}

func parseBounded(v string, min, max int, field string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, errors.Errorf("%s must be in [%d, %d], got %q", field, min, max, v)
	}
	return n, nil
}

func parseBool(v string, defVal bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defVal
	}
	return b
}

func parseCrop(v string) (Box, error) {
	parts := strings.Split(v, "x")
	if len(parts) != 4 {
		return Box{}, errors.Errorf("crop must be x,y,width,height as 4 values joined by 'x', got %q", v)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Box{}, errors.Errorf("crop values must be non-negative integers, got %q", v)
		}
		nums[i] = n
	}
	if nums[2] == 0 || nums[3] == 0 {
		return Box{}, errors.Errorf("crop width and height must be positive, got %q", v)
	}
	return Box{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}, nil
}
