package mask

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DarkPixelDetector flags dead or dim pixels: those whose local low percentile
// falls well below the global mean. A dilate/erode pass then drops tiny
// responses and keeps connected dark clusters.
type DarkPixelDetector struct {
	params DarkParams
}

// NewDarkPixelDetector validates p and returns a detector.
func NewDarkPixelDetector(p DarkParams) (*DarkPixelDetector, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &DarkPixelDetector{params: p}, nil
}

// Params returns the detector parameters.
func (d *DarkPixelDetector) Params() DarkParams {
	return d.params
}

// Detect returns the dark pixel mask of img.
func (d *DarkPixelDetector) Detect(img mat.Matrix) Mask {
	dense := asDense(img)
	rows, cols := dense.Dims()
	mean := stat.Mean(flatten(dense), nil)
	threshold := mean * d.params.Ratio

	n := d.params.Window * d.params.Window
	rank := percentileRank(d.params.Percentile, n)
	var local *mat.Dense
	if rank == 0 {
		local = minFilter(dense, d.params.Window)
	} else {
		local = rankFilter(dense, d.params.Window, rank)
	}

	flagged := New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			flagged.Data[r*cols+c] = local.At(r, c) < threshold
		}
	}

	flagged = dilate(flagged, d.params.DilateSize)
	return erode(flagged, d.params.ErodeSize)
}

// asDense returns m as a *mat.Dense, copying only when necessary.
func asDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

// flatten returns the row-major elements of d.
func flatten(d *mat.Dense) []float64 {
	raw := d.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for r := 0; r < raw.Rows; r++ {
		out = append(out, raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols]...)
	}
	return out
}
