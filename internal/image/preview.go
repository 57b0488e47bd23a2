package image

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"srxmask/pkg/colorutil"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// previewClip is the intensity quantile mapped to white, so a few hot pixels
// do not flatten the rest of the frame to black.
const previewClip = 0.995

// RenderPreview draws img in gray levels and tints every pixel for which
// masked is true. masked is row-major with one entry per pixel.
func RenderPreview(img *mat.Dense, masked []bool) (*image.RGBA, error) {
	rows, cols := img.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("preview: empty image")
	}
	if len(masked) != rows*cols {
		return nil, fmt.Errorf("preview: %d mask values for a %dx%d image", len(masked), rows, cols)
	}

	values := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		values = append(values, img.RawRowView(r)...)
	}
	sort.Float64s(values)
	lo := values[0]
	hi := stat.Quantile(previewClip, stat.Empirical, values, nil)

	out := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			px := colorutil.GrayLevel(img.At(r, c), lo, hi)
			if masked[r*cols+c] {
				px = colorutil.Blend(px, colorutil.Magenta, 0.6)
			}
			out.SetRGBA(c, r, px)
		}
	}
	return out, nil
}

// WritePreview renders img with its mask and saves it as PNG.
func WritePreview(path string, img *mat.Dense, masked []bool) error {
	rgba, err := RenderPreview(img, masked)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}
	if err := png.Encode(f, rgba); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return f.Close()
}
