package imageopt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint derives a deterministic cache key variant string from p:
// an ordered concatenation of every non-default field, hashed so the
// resulting string is short and filesystem/Redis-key safe. Two Params
// that differ only in field order or in a field left at its default
// produce the same fingerprint.
func Fingerprint(p Params) string {

	def := Default()
	var parts []string

	addInt := func(name string, v, d int) {
		if v != d {
			parts = append(parts, fmt.Sprintf("%s=%d", name, v))
		}
	}
	addFloat := func(name string, v, d float64) {
		if v != d {
			parts = append(parts, fmt.Sprintf("%s=%.4f", name, v))
		}
	}
	addBool := func(name string, v, d bool) {
		if v != d {
			parts = append(parts, fmt.Sprintf("%s=%t", name, v))
		}
	}
	addStr := func(name, v, d string) {
		if v != d {
			parts = append(parts, fmt.Sprintf("%s=%s", name, v))
		}
	}

	addInt("w", p.Width, def.Width)
	addInt("h", p.Height, def.Height)
	addFloat("wp", p.WidthPercent, def.WidthPercent)
	addFloat("hp", p.HeightPercent, def.HeightPercent)
	addFloat("dpr", p.DPR, def.DPR)
	addStr("fit", string(p.Fit), string(def.Fit))
	addStr("gravity", string(p.Gravity), string(def.Gravity))
	addInt("q", p.Quality, def.Quality)
	addStr("f", string(p.Format), string(def.Format))
	addInt("rotate", p.Rotate, def.Rotate)
	addBool("auto_rotate", p.AutoRotate, def.AutoRotate)
	addBool("flip_h", p.FlipH, def.FlipH)
	addBool("flip_v", p.FlipV, def.FlipV)
	addInt("blur", p.Blur, def.Blur)
	addInt("sharpen", p.Sharpen, def.Sharpen)
	addBool("enlarge", p.Enlarge, def.Enlarge)
	addBool("strip_metadata", p.StripMetadata, def.StripMetadata)
	addBool("progressive", p.Progressive, def.Progressive)
	addStr("bg", p.BackgroundHex, def.BackgroundHex)
	if p.HasCrop {
		parts = append(parts, fmt.Sprintf("crop=%d,%d,%d,%d", p.Crop.X, p.Crop.Y, p.Crop.Width, p.Crop.Height))
	}

	if len(parts) == 0 {
		return ""
	}

	joined := strings.Join(parts, "&")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:32]
}
