package mask

import (
	"gonum.org/v1/gonum/mat"
)

// BrightPixelDetector flags local hot spots that exceed a robust local maximum.
// Only reliable on well averaged frames; single noisy exposures over-flag.
type BrightPixelDetector struct {
	params BrightParams
}

// NewBrightPixelDetector validates p and returns a detector.
func NewBrightPixelDetector(p BrightParams) (*BrightPixelDetector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &BrightPixelDetector{params: p}, nil
}

// Params returns the detector parameters.
func (b *BrightPixelDetector) Params() BrightParams {
	return b.params
}

// Detect returns the bright pixel mask of img, including a halo around each hit.
func (b *BrightPixelDetector) Detect(img mat.Matrix) Mask {
	dense := asDense(img)
	rows, cols := dense.Dims()

	// Size-th highest value of the Size x Size window
	reference := rankFilter(dense, b.params.Size, -b.params.Size)

	flagged := New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			flagged.Data[r*cols+c] = dense.At(r, c) > reference.At(r, c)*b.params.Ratio
		}
	}
	return dilate(flagged, b.params.DilateSize)
}
