// Package image provides detector image decoding, orientation and loading.
//
// Images are returned as gonum dense matrices indexed (row, col) with rows
// running down the detector.
package image

import (
	"errors"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNotFound is returned when an image file is still missing after all retries.
	ErrNotFound = errors.New("image not found")

	// ErrUnsupportedFormat is returned for files no codec can decode.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Format identifies an on-disk image or mask format by file extension.
type Format int

const (
	FormatUnknown Format = iota
	FormatNPY            // NumPy .npy array
	FormatTIFF           // .tif / .tiff detector frame
)

func (f Format) String() string {
	switch f {
	case FormatNPY:
		return "npy"
	case FormatTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// FormatOf guesses the format from the path extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return FormatNPY
	case ".tif", ".tiff":
		return FormatTIFF
	default:
		return FormatUnknown
	}
}

// Flip returns a copy of m mirrored left-right (horizontal) and/or top-bottom (vertical).
func Flip(m *mat.Dense, horizontal, vertical bool) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		sr := r
		if vertical {
			sr = rows - 1 - r
		}
		for c := 0; c < cols; c++ {
			sc := c
			if horizontal {
				sc = cols - 1 - c
			}
			out.Set(r, c, m.At(sr, sc))
		}
	}
	return out
}

// ClampNegative sets every negative element of m to zero in place.
func ClampNegative(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, m)
}
