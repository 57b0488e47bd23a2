// Package colorutil provides color helpers for rendering detector frames and mask overlays.
package colorutil

import (
	"image/color"
	"math"
)

// Overlay colors for mask previews.
var (
	Black   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Magenta = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	Red     = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// GrayLevel maps v linearly from [lo, hi] to an opaque gray, clipping outside.
// A degenerate range renders everything black.
func GrayLevel(v, lo, hi float64) color.RGBA {
	if hi <= lo || math.IsNaN(v) {
		return Black
	}
	t := (v - lo) / (hi - lo)
	t = math.Max(0, math.Min(1, t))
	g := uint8(math.Round(t * 255))
	return color.RGBA{R: g, G: g, B: g, A: 255}
}

// Blend mixes over onto base with the given opacity (0 = base, 1 = over).
func Blend(base, over color.RGBA, alpha float64) color.RGBA {
	alpha = math.Max(0, math.Min(1, alpha))
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a)*(1-alpha) + float64(b)*alpha))
	}
	return color.RGBA{
		R: mix(base.R, over.R),
		G: mix(base.G, over.G),
		B: mix(base.B, over.B),
		A: 255,
	}
}
