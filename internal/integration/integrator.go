// Package integration bins detector pixels by scattering angle for a flat
// detector perpendicular to the beam and averages intensity per bin.
package integration

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"srxmask/internal/config"
	"srxmask/internal/mask"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNotPrepared is returned by Intensity before any GenIntegrationInds call.
var ErrNotPrepared = errors.New("integration indices not generated")

// Integrator maps every pixel to a two-theta or q bin. The bin indices depend
// on the mask they were generated for and are cached until a different mask
// arrives. All methods are safe for concurrent use, but a caller pairing
// GenIntegrationInds with Intensity must hold its own lock across both.
type Integrator struct {
	rows, cols int
	space      string
	step       float64
	angles     *mat.Dense
	nbins      int

	mu      sync.RWMutex
	maskKey uint64
	ready   bool
	inds    []int // bin per pixel, -1 for masked pixels
	counts  []float64
}

var _ mask.IntegrationEngine = (*Integrator)(nil)

// New computes the angle of every pixel from cfg's detector geometry.
func New(cfg *config.Config) (*Integrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rows, cols := cfg.YDimension, cfg.XDimension
	angles := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		dy := (float64(r) - cfg.YBeamCenter) * cfg.YPixelSize
		for c := 0; c < cols; c++ {
			dx := (float64(c) - cfg.XBeamCenter) * cfg.XPixelSize
			tth := math.Atan2(math.Hypot(dx, dy), cfg.Distance)
			if cfg.IntegrationSpace == config.SpaceQ {
				angles.Set(r, c, 4*math.Pi*math.Sin(tth/2)/cfg.Wavelength)
			} else {
				angles.Set(r, c, tth*180/math.Pi)
			}
		}
	}

	step := cfg.AngleStep()
	maxAngle := floats.Max(angles.RawMatrix().Data)
	return &Integrator{
		rows:   rows,
		cols:   cols,
		space:  cfg.IntegrationSpace,
		step:   step,
		angles: angles,
		nbins:  int(math.RoundToEven(maxAngle/step)) + 1,
	}, nil
}

// AngleMatrix returns the per-pixel angle in degrees (twotheta) or inverse angstrom (qspace).
func (in *Integrator) AngleMatrix() *mat.Dense {
	return in.angles
}

// AngleStep returns the bin width.
func (in *Integrator) AngleStep() float64 {
	return in.step
}

// Space returns the integration space name.
func (in *Integrator) Space() string {
	return in.space
}

// Bins returns the number of bins.
func (in *Integrator) Bins() int {
	return in.nbins
}

// GenIntegrationInds assigns each unmasked pixel to its bin. Calls with the
// same mask as the previous call reuse the cached indices.
func (in *Integrator) GenIntegrationInds(m mask.Mask) error {
	if m.Rows != in.rows || m.Cols != in.cols {
		return fmt.Errorf("%w: mask %dx%d, detector %dx%d", mask.ErrShapeMismatch, m.Rows, m.Cols, in.rows, in.cols)
	}
	key := maskHash(m)

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.ready && in.maskKey == key {
		return nil
	}

	inds := make([]int, in.rows*in.cols)
	counts := make([]float64, in.nbins)
	raw := in.angles.RawMatrix()
	for r := 0; r < in.rows; r++ {
		for c := 0; c < in.cols; c++ {
			i := r*in.cols + c
			if m.Data[i] {
				inds[i] = -1
				continue
			}
			b := int(math.RoundToEven(raw.Data[r*raw.Stride+c] / in.step))
			if b >= in.nbins {
				b = in.nbins - 1
			}
			inds[i] = b
			counts[b]++
		}
	}
	in.inds, in.counts = inds, counts
	in.maskKey, in.ready = key, true
	return nil
}

// Intensity returns the bin centres and the mean intensity of unmasked
// pixels in each bin. Empty bins average to zero.
func (in *Integrator) Intensity(img mat.Matrix) (bins, avg []float64, err error) {
	rows, cols := img.Dims()
	if rows != in.rows || cols != in.cols {
		return nil, nil, fmt.Errorf("%w: image %dx%d, detector %dx%d", mask.ErrShapeMismatch, rows, cols, in.rows, in.cols)
	}

	in.mu.RLock()
	defer in.mu.RUnlock()
	if !in.ready {
		return nil, nil, ErrNotPrepared
	}

	sums := make([]float64, in.nbins)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			b := in.inds[r*cols+c]
			if b < 0 {
				continue
			}
			sums[b] += img.At(r, c)
		}
	}

	bins = make([]float64, in.nbins)
	avg = make([]float64, in.nbins)
	for b := range sums {
		bins[b] = float64(b) * in.step
		if in.counts[b] > 0 {
			avg[b] = sums[b] / in.counts[b]
		}
	}
	return bins, avg, nil
}

func maskHash(m mask.Mask) uint64 {
	h := fnv.New64a()
	buf := make([]byte, (len(m.Data)+7)/8)
	for i, v := range m.Data {
		if v {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	h.Write(buf)
	return h.Sum64()
}
