// Package config provides the mask engine configuration: defaults, YAML loading,
// environment overrides and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"srxmask/pkg/geometry"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for configuration values the engine cannot work with.
var ErrInvalidConfig = errors.New("invalid config")

// Integration spaces understood by the integrator.
const (
	SpaceTwoTheta = "twotheta"
	SpaceQ        = "qspace"
)

// Image codecs selectable at startup.
const (
	CodecTIFF   = "tiff"
	CodecOpenCV = "opencv"
)

// Crop holds the widths of the masked border band in pixels.
// In YAML it is written as a four element sequence [left, right, top, bottom].
type Crop struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// UnmarshalYAML decodes a [left, right, top, bottom] sequence.
func (c *Crop) UnmarshalYAML(value *yaml.Node) error {
	var v []int
	if err := value.Decode(&v); err != nil {
		return fmt.Errorf("cropedges: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("%w: cropedges needs 4 values (left, right, top, bottom), got %d", ErrInvalidConfig, len(v))
	}
	*c = Crop{Left: v[0], Right: v[1], Top: v[2], Bottom: v[3]}
	return nil
}

// MarshalYAML encodes the crop as a sequence.
func (c Crop) MarshalYAML() (interface{}, error) {
	return []int{c.Left, c.Right, c.Top, c.Bottom}, nil
}

// Interior returns the unmasked rectangle left after cropping a rows x cols grid.
func (c Crop) Interior(rows, cols int) geometry.RectInt {
	return geometry.RectInt{
		X:      c.Left,
		Y:      c.Top,
		Width:  cols - c.Left - c.Right,
		Height: rows - c.Top - c.Bottom,
	}
}

// Validate checks the crop against a rows x cols grid. The interior must be non-empty.
func (c Crop) Validate(rows, cols int) error {
	if c.Left < 0 || c.Right < 0 || c.Top < 0 || c.Bottom < 0 {
		return fmt.Errorf("%w: negative crop width %v", ErrInvalidConfig, c)
	}
	if c.Top+c.Bottom >= rows {
		return fmt.Errorf("%w: crop top+bottom (%d) leaves no rows of %d", ErrInvalidConfig, c.Top+c.Bottom, rows)
	}
	if c.Left+c.Right >= cols {
		return fmt.Errorf("%w: crop left+right (%d) leaves no columns of %d", ErrInvalidConfig, c.Left+c.Right, cols)
	}
	return nil
}

// Config is the full set of options recognised by the engine. Treat a loaded
// Config as read-only; components copy what they need at construction.
type Config struct {
	// Detector shape
	XDimension int `yaml:"xdimension"`
	YDimension int `yaml:"ydimension"`

	// Orientation applied to raw detector images
	FlipHorizontal bool `yaml:"fliphorizontal"`
	FlipVertical   bool `yaml:"flipvertical"`

	// Static mask
	MaskFile  string `yaml:"maskfile"`
	CropEdges Crop   `yaml:"cropedges"`

	// Dynamic detectors
	DarkPixelMask   bool    `yaml:"darkpixelmask"`
	BrightPixelMask bool    `yaml:"brightpixelmask"`
	AvgMask         bool    `yaml:"avgmask"`
	DarkPixelR      float64 `yaml:"darkpixelr"`
	BrightPixelSize int     `yaml:"brightpixelsize"`
	BrightPixelR    float64 `yaml:"brightpixelr"`
	AvgMaskHigh     float64 `yaml:"avgmaskhigh"`
	AvgMaskLow      float64 `yaml:"avgmasklow"`

	// Integration geometry (lengths in mm, wavelength in angstrom, tthstep in degrees)
	IntegrationSpace string  `yaml:"integrationspace"`
	Wavelength       float64 `yaml:"wavelength"`
	Distance         float64 `yaml:"distance"`
	XPixelSize       float64 `yaml:"xpixelsize"`
	YPixelSize       float64 `yaml:"ypixelsize"`
	XBeamCenter      float64 `yaml:"xbeamcenter"`
	YBeamCenter      float64 `yaml:"ybeamcenter"`
	TthStep          float64 `yaml:"tthstep"`
	QStep            float64 `yaml:"qstep"`

	// Image source
	ImageCodec     string        `yaml:"imagecodec"`
	OpenDirectory  string        `yaml:"opendirectory"`
	Filenames      []string      `yaml:"filenames"`
	IncludePattern []string      `yaml:"includepattern"`
	ExcludePattern []string      `yaml:"excludepattern"`
	LoadRetries    int           `yaml:"loadretries"`
	RetryInterval  time.Duration `yaml:"retryinterval"`
}

// DefaultConfig returns the defaults for a 2048x2048 area detector.
func DefaultConfig() Config {
	return Config{
		XDimension: 2048,
		YDimension: 2048,

		CropEdges: Crop{Left: 10, Right: 10, Top: 10, Bottom: 10},

		DarkPixelR:      0.1,
		BrightPixelSize: 5,
		BrightPixelR:    1.2,
		AvgMaskHigh:     2.0,
		AvgMaskLow:      0.5,

		IntegrationSpace: SpaceTwoTheta,
		Wavelength:       0.1,
		Distance:         200.0,
		XPixelSize:       0.2,
		YPixelSize:       0.2,
		XBeamCenter:      1024.0,
		YBeamCenter:      1024.0,
		TthStep:          0.02,
		QStep:            0.02,

		ImageCodec:     CodecTIFF,
		OpenDirectory:  ".",
		IncludePattern: []string{"*.tif", "*.tiff", "*.npy"},
		ExcludePattern: []string{"*.dark.tif", "*.raw.tif"},
		LoadRetries:    10,
		RetryInterval:  500 * time.Millisecond,
	}
}

// Load reads a YAML config file on top of DefaultConfig and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every option the engine relies on.
func (c Config) Validate() error {
	if c.XDimension <= 0 || c.YDimension <= 0 {
		return fmt.Errorf("%w: detector dimensions must be positive, got %dx%d", ErrInvalidConfig, c.XDimension, c.YDimension)
	}
	if err := c.CropEdges.Validate(c.YDimension, c.XDimension); err != nil {
		return err
	}
	if c.DarkPixelR < 0 {
		return fmt.Errorf("%w: darkpixelr must be >= 0, got %g", ErrInvalidConfig, c.DarkPixelR)
	}
	if c.BrightPixelSize < 1 {
		return fmt.Errorf("%w: brightpixelsize must be >= 1, got %d", ErrInvalidConfig, c.BrightPixelSize)
	}
	if c.BrightPixelR < 0 {
		return fmt.Errorf("%w: brightpixelr must be >= 0, got %g", ErrInvalidConfig, c.BrightPixelR)
	}
	if c.AvgMaskLow < 0 || c.AvgMaskHigh < c.AvgMaskLow {
		return fmt.Errorf("%w: need 0 <= avgmasklow <= avgmaskhigh, got %g and %g", ErrInvalidConfig, c.AvgMaskLow, c.AvgMaskHigh)
	}
	switch c.IntegrationSpace {
	case SpaceTwoTheta, SpaceQ:
	default:
		return fmt.Errorf("%w: unknown integrationspace %q", ErrInvalidConfig, c.IntegrationSpace)
	}
	if c.AngleStep() <= 0 {
		return fmt.Errorf("%w: integration step must be positive", ErrInvalidConfig)
	}
	if c.Distance <= 0 || c.XPixelSize <= 0 || c.YPixelSize <= 0 {
		return fmt.Errorf("%w: distance and pixel sizes must be positive", ErrInvalidConfig)
	}
	if c.IntegrationSpace == SpaceQ && c.Wavelength <= 0 {
		return fmt.Errorf("%w: qspace integration needs a positive wavelength", ErrInvalidConfig)
	}
	switch c.ImageCodec {
	case CodecTIFF, CodecOpenCV:
	default:
		return fmt.Errorf("%w: unknown imagecodec %q", ErrInvalidConfig, c.ImageCodec)
	}
	if c.LoadRetries < 1 {
		return fmt.Errorf("%w: loadretries must be >= 1, got %d", ErrInvalidConfig, c.LoadRetries)
	}
	return nil
}

// Shape returns the detector shape as rows x cols.
func (c Config) Shape() geometry.Size {
	return geometry.Size{Rows: c.YDimension, Cols: c.XDimension}
}

// AngleStep returns the bin width of the configured integration space.
func (c Config) AngleStep() float64 {
	if c.IntegrationSpace == SpaceQ {
		return c.QStep
	}
	return c.TthStep
}

// AnyDetector reports whether at least one dynamic detector is enabled.
func (c Config) AnyDetector() bool {
	return c.DarkPixelMask || c.BrightPixelMask || c.AvgMask
}
