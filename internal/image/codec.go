package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

// Codec decodes a raw detector frame into an intensity matrix without
// applying any orientation or clamping.
type Codec interface {
	Name() string
	Decode(path string) (*mat.Dense, error)
}

// NewCodec returns the codec registered under name ("tiff" or "opencv").
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "tiff":
		return TIFFCodec{}, nil
	case "opencv":
		return OpenCVCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: no codec named %q", ErrUnsupportedFormat, name)
	}
}

// TIFFCodec decodes integer TIFF frames with golang.org/x/image/tiff.
// Floating point TIFFs need OpenCVCodec.
type TIFFCodec struct{}

// Name implements Codec.
func (TIFFCodec) Name() string { return "tiff" }

// Decode implements Codec.
func (TIFFCodec) Decode(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tiff %s: %w", path, err)
	}
	return imageToDense(img)
}

// imageToDense converts a decoded image to intensities. Gray16 and Gray keep
// their raw counts; anything else goes through the 16-bit gray model.
func imageToDense(img image.Image) (*mat.Dense, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}
	d := mat.NewDense(b.Dy(), b.Dx(), nil)

	switch src := img.(type) {
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				d.Set(y-b.Min.Y, x-b.Min.X, float64(src.Gray16At(x, y).Y))
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				d.Set(y-b.Min.Y, x-b.Min.X, float64(src.GrayAt(x, y).Y))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				d.Set(y-b.Min.Y, x-b.Min.X, float64(g.Y))
			}
		}
	}
	return d, nil
}

// OpenCVCodec decodes frames with OpenCV, which also handles 32-bit float TIFFs.
type OpenCVCodec struct{}

// Name implements Codec.
func (OpenCVCodec) Name() string { return "opencv" }

// Decode implements Codec.
func (OpenCVCodec) Decode(path string) (*mat.Dense, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	src := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("failed to decode %s with opencv", path)
	}

	gray := src
	switch src.Channels() {
	case 1:
	case 3:
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	case 4:
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	default:
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, src.Channels())
	}

	f64 := gocv.NewMat()
	defer f64.Close()
	gray.ConvertTo(&f64, gocv.MatTypeCV64F)

	rows, cols := f64.Rows(), f64.Cols()
	d := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			d.Set(r, c, f64.GetDoubleAt(r, c))
		}
	}
	return d, nil
}
