package mask

import (
	"fmt"

	"srxmask/internal/config"
)

// DarkParams holds parameters for dark pixel detection.
type DarkParams struct {
	Ratio      float64 // flag when local percentile < global mean * Ratio
	Percentile float64 // local percentile, 0-100
	Window     int    // percentile window edge length
	DilateSize int    // dilation structuring element edge length
	ErodeSize  int    // erosion structuring element edge length
}

// DefaultDarkParams returns the tuned defaults: 5th percentile over 3x3,
// dilate 5x5 then erode 7x7.
func DefaultDarkParams() DarkParams {
	return DarkParams{
		Ratio:      0.1,
		Percentile: 5,
		Window:     3,
		DilateSize: 5,
		ErodeSize:  7,
	}
}

// WithRatio returns a copy of p with the threshold ratio set.
func (p DarkParams) WithRatio(r float64) DarkParams {
	p.Ratio = r
	return p
}

func (p DarkParams) validate() error {
	if p.Window < 1 || p.DilateSize < 1 || p.ErodeSize < 1 {
		return fmt.Errorf("%w: dark pixel window sizes must be >= 1", ErrInvalidConfig)
	}
	if p.Percentile < 0 || p.Percentile > 100 {
		return fmt.Errorf("%w: dark pixel percentile %g outside [0, 100]", ErrInvalidConfig, p.Percentile)
	}
	return nil
}

// BrightParams holds parameters for bright pixel detection.
type BrightParams struct {
	Size       int     // rank window edge length; the Size-th highest value is the reference
	Ratio      float64 // flag when intensity > reference * Ratio
	DilateSize int     // halo dilation edge length
}

// DefaultBrightParams returns size 5, ratio 1.2 and a 3x3 halo.
func DefaultBrightParams() BrightParams {
	return BrightParams{
		Size:       5,
		Ratio:      1.2,
		DilateSize: 3,
	}
}

// WithSize returns a copy of p with the rank window size set.
func (p BrightParams) WithSize(size int) BrightParams {
	p.Size = size
	return p
}

// WithRatio returns a copy of p with the threshold ratio set.
func (p BrightParams) WithRatio(r float64) BrightParams {
	p.Ratio = r
	return p
}

func (p BrightParams) validate() error {
	if p.Size < 1 || p.DilateSize < 1 {
		return fmt.Errorf("%w: bright pixel sizes must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// AvgParams holds parameters for angle-binned outlier detection.
type AvgParams struct {
	High float64     // flag when intensity > bin average * High
	Low  float64     // flag when intensity < bin average * Low
	Crop config.Crop // border band left unevaluated
}

// DefaultAvgParams returns high 2.0 and low 0.5 with no crop.
func DefaultAvgParams() AvgParams {
	return AvgParams{High: 2.0, Low: 0.5}
}

// Params groups the parameters of all detectors.
type Params struct {
	Dark   DarkParams
	Bright BrightParams
	Avg    AvgParams
}

// ParamsFromConfig copies the detector options out of cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Dark:   DefaultDarkParams().WithRatio(cfg.DarkPixelR),
		Bright: DefaultBrightParams().WithSize(cfg.BrightPixelSize).WithRatio(cfg.BrightPixelR),
		Avg: AvgParams{
			High: cfg.AvgMaskHigh,
			Low:  cfg.AvgMaskLow,
			Crop: cfg.CropEdges,
		},
	}
}
