// Package mask generates per-pixel validity masks for diffraction detector
// images: a static defect mask loaded from disk plus dynamic masks computed
// from each frame's intensity statistics.
package mask

import (
	"errors"
	"fmt"

	"srxmask/internal/config"
	"srxmask/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidConfig is returned for unusable parameters such as a crop that
	// leaves no interior.
	ErrInvalidConfig = config.ErrInvalidConfig

	// ErrUnsupportedFormat is returned for mask files that are neither .npy nor .tif.
	ErrUnsupportedFormat = errors.New("unsupported mask format")

	// ErrShapeMismatch is returned when an image or mask does not match the detector shape.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Mask is a dense row-major boolean grid. True marks a pixel excluded from integration.
type Mask struct {
	Rows int
	Cols int
	Data []bool
}

// New returns an all-false rows x cols mask.
func New(rows, cols int) Mask {
	return Mask{Rows: rows, Cols: cols, Data: make([]bool, rows*cols)}
}

// Full returns an all-true rows x cols mask.
func Full(rows, cols int) Mask {
	m := New(rows, cols)
	for i := range m.Data {
		m.Data[i] = true
	}
	return m
}

// FromDense thresholds d: elements > 0 become masked.
func FromDense(d mat.Matrix) Mask {
	rows, cols := d.Dims()
	m := New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Data[r*cols+c] = d.At(r, c) > 0
		}
	}
	return m
}

// Dense returns the mask as a 0/1 matrix.
func (m Mask) Dense() *mat.Dense {
	data := make([]float64, len(m.Data))
	for i, v := range m.Data {
		if v {
			data[i] = 1
		}
	}
	return mat.NewDense(m.Rows, m.Cols, data)
}

// Size returns the mask shape.
func (m Mask) Size() geometry.Size {
	return geometry.Size{Rows: m.Rows, Cols: m.Cols}
}

// At reports whether pixel (r, c) is masked.
func (m Mask) At(r, c int) bool {
	return m.Data[r*m.Cols+c]
}

// Set sets pixel (r, c).
func (m Mask) Set(r, c int, v bool) {
	m.Data[r*m.Cols+c] = v
}

// Count returns the number of masked pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// Fraction returns the masked share of pixels.
func (m Mask) Fraction() float64 {
	if len(m.Data) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Data))
}

// Clone returns a deep copy.
func (m Mask) Clone() Mask {
	out := Mask{Rows: m.Rows, Cols: m.Cols, Data: make([]bool, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// Equal reports whether both masks have the same shape and values.
func (m Mask) Equal(o Mask) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// SameShape returns ErrShapeMismatch unless o has m's shape.
func (m Mask) SameShape(o Mask) error {
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return fmt.Errorf("%w: mask %dx%d vs %dx%d", ErrShapeMismatch, m.Rows, m.Cols, o.Rows, o.Cols)
	}
	return nil
}

// Union returns the element-wise OR of the given masks, which must share one shape.
func Union(first Mask, rest ...Mask) (Mask, error) {
	out := first.Clone()
	for _, m := range rest {
		if err := out.SameShape(m); err != nil {
			return Mask{}, err
		}
		for i, v := range m.Data {
			if v {
				out.Data[i] = true
			}
		}
	}
	return out, nil
}

// checkImage returns ErrShapeMismatch unless img is rows x cols.
func checkImage(img mat.Matrix, rows, cols int) error {
	r, c := img.Dims()
	if r != rows || c != cols {
		return fmt.Errorf("%w: image %dx%d, detector %dx%d", ErrShapeMismatch, r, c, rows, cols)
	}
	return nil
}
