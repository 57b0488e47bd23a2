package image

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// ReadNPY reads a 2D NumPy array of any boolean, integer or float dtype as float64.
// Fortran-ordered arrays are returned in (row, col) order like C-ordered ones.
func ReadNPY(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open npy: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy header %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 || shape[0] <= 0 || shape[1] <= 0 {
		return nil, fmt.Errorf("%w: %s has shape %v, want a non-empty 2D array", ErrUnsupportedFormat, path, shape)
	}
	rows, cols := shape[0], shape[1]

	values, err := readNPYValues(r, rows*cols)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy data %s: %w", path, err)
	}

	if !r.Header.Descr.Fortran {
		return mat.NewDense(rows, cols, values), nil
	}
	d := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		for row := 0; row < rows; row++ {
			d.Set(row, c, values[c*rows+row])
		}
	}
	return d, nil
}

// readNPYValues decodes n elements of the reader's dtype into float64.
func readNPYValues(r *npyio.Reader, n int) ([]float64, error) {
	out := make([]float64, n)
	dtype := r.Header.Descr.Type

	switch dtype {
	case "<f8", "|f8":
		if err := r.Read(&out); err != nil {
			return nil, err
		}
		return out, nil
	case "<f4", "|f4":
		v := make([]float32, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "|b1", "<b1":
		v := make([]bool, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			if x {
				out[i] = 1
			}
		}
	case "|u1", "<u1":
		v := make([]uint8, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "|i1", "<i1":
		v := make([]int8, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "<u2":
		v := make([]uint16, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "<i2":
		v := make([]int16, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "<u4":
		v := make([]uint32, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "<i4":
		v := make([]int32, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "<u8":
		v := make([]uint64, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	case "<i8":
		v := make([]int64, n)
		if err := r.Read(&v); err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = float64(x)
		}
	default:
		return nil, fmt.Errorf("%w: npy dtype %q", ErrUnsupportedFormat, dtype)
	}
	return out, nil
}

// WriteNPY writes m as a float64 NumPy array, creating parent directories.
func WriteNPY(path string, m mat.Matrix) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create npy: %w", err)
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("failed to write npy %s: %w", path, err)
	}
	return f.Close()
}
