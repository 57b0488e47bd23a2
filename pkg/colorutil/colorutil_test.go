package colorutil

import (
	"image/color"
	"math"
	"testing"
)

func TestGrayLevel(t *testing.T) {
	tests := []struct {
		v, lo, hi float64
		want      uint8
	}{
		{0, 0, 10, 0},
		{10, 0, 10, 255},
		{5, 0, 10, 128},
		{-3, 0, 10, 0},
		{50, 0, 10, 255},
		{5, 5, 5, 0},
		{math.NaN(), 0, 1, 0},
	}
	for _, tt := range tests {
		got := GrayLevel(tt.v, tt.lo, tt.hi)
		if got.R != tt.want || got.G != tt.want || got.B != tt.want || got.A != 255 {
			t.Errorf("GrayLevel(%v, %v, %v) = %v, want gray %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestBlend(t *testing.T) {
	if got := Blend(Black, White, 0); got != Black {
		t.Errorf("alpha 0 = %v, want base", got)
	}
	if got := Blend(Black, White, 1); got != White {
		t.Errorf("alpha 1 = %v, want overlay", got)
	}
	want := color.RGBA{R: 128, G: 0, B: 0, A: 255}
	if got := Blend(Black, Red, 0.5); got != want {
		t.Errorf("Blend(Black, Red, 0.5) = %v, want %v", got, want)
	}
}
