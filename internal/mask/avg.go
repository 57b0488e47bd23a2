package mask

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// IntegrationEngine supplies the per-pixel scattering angle geometry and the
// per-bin average intensity used by AngularOutlierMasker.
type IntegrationEngine interface {
	// GenIntegrationInds prepares bin indices for pixels not excluded by m.
	GenIntegrationInds(m Mask) error
	// Intensity integrates img over the prepared bins and returns the bin
	// centres and the average intensity per bin.
	Intensity(img mat.Matrix) (bins, avg []float64, err error)
	// AngleMatrix returns the continuous angle (or q) value of every pixel.
	AngleMatrix() *mat.Dense
	// AngleStep returns the bin width in AngleMatrix units.
	AngleStep() float64
}

// AngularOutlierMasker flags pixels whose intensity is far from the average
// of pixels at a similar scattering angle.
type AngularOutlierMasker struct {
	engine IntegrationEngine
	params AvgParams

	// serialises GenIntegrationInds+Intensity on a shared engine
	mu sync.Mutex
}

// NewAngularOutlierMasker returns a masker using engine for the angle geometry.
func NewAngularOutlierMasker(engine IntegrationEngine, p AvgParams) (*AngularOutlierMasker, error) {
	if engine == nil {
		return nil, fmt.Errorf("%w: angular outlier mask needs an integration engine", ErrInvalidConfig)
	}
	if p.Low < 0 || p.High < p.Low {
		return nil, fmt.Errorf("%w: need 0 <= low <= high, got %g and %g", ErrInvalidConfig, p.Low, p.High)
	}
	return &AngularOutlierMasker{engine: engine, params: p}, nil
}

// Params returns the masker parameters.
func (a *AngularOutlierMasker) Params() AvgParams {
	return a.params
}

// Mask computes the outlier mask of img. reference selects the pixels the
// engine averages over. Pixels in the crop band are never flagged here.
func (a *AngularOutlierMasker) Mask(img mat.Matrix, reference Mask) (Mask, error) {
	rows, cols := img.Dims()
	if err := checkImage(img, reference.Rows, reference.Cols); err != nil {
		return Mask{}, err
	}
	if err := a.params.Crop.Validate(rows, cols); err != nil {
		return Mask{}, err
	}

	angles := a.engine.AngleMatrix()
	if ar, ac := angles.Dims(); ar != rows || ac != cols {
		return Mask{}, fmt.Errorf("%w: angle matrix %dx%d, image %dx%d", ErrShapeMismatch, ar, ac, rows, cols)
	}

	a.mu.Lock()
	err := a.engine.GenIntegrationInds(reference)
	var avg []float64
	if err == nil {
		_, avg, err = a.engine.Intensity(img)
	}
	a.mu.Unlock()
	if err != nil {
		return Mask{}, fmt.Errorf("integration failed: %w", err)
	}
	if len(avg) == 0 {
		return Mask{}, fmt.Errorf("integration returned no bins")
	}

	step := a.engine.AngleStep()
	last := len(avg) - 1
	out := New(rows, cols)
	in := a.params.Crop.Interior(rows, cols)
	for r := in.Y; r < in.Y+in.Height; r++ {
		for c := in.X; c < in.X+in.Width; c++ {
			bin := angleBin(angles.At(r, c), step, last)
			mean := avg[bin]
			v := img.At(r, c)
			out.Data[r*cols+c] = v < mean*a.params.Low || v > mean*a.params.High
		}
	}
	return out, nil
}

// angleBin rounds angle/step half-to-even and clamps into [0, last].
func angleBin(angle, step float64, last int) int {
	b := math.RoundToEven(angle / step)
	if math.IsNaN(b) || b < 0 {
		return 0
	}
	if b >= float64(last) {
		return last
	}
	return int(b)
}
