package mask

import (
	"fmt"
	"sync"
	"time"

	"srxmask/internal/config"
	srximage "srxmask/internal/image"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Detectors selects which dynamic detectors run for a frame.
type Detectors struct {
	Dark   bool
	Bright bool
	Avg    bool

	// Reference is the mask the angular detector averages over.
	// Nil means the combiner's static mask.
	Reference *Mask
}

// DetectorsFromConfig returns the detectors enabled in cfg.
func DetectorsFromConfig(cfg *config.Config) Detectors {
	return Detectors{
		Dark:   cfg.DarkPixelMask,
		Bright: cfg.BrightPixelMask,
		Avg:    cfg.AvgMask,
	}
}

// Any reports whether at least one detector is selected.
func (d Detectors) Any() bool {
	return d.Dark || d.Bright || d.Avg
}

// Option configures a Combiner.
type Option func(*Combiner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Combiner) {
		c.log = l
	}
}

// WithEngine sets the integration engine needed by the angular detector.
func WithEngine(e IntegrationEngine) Option {
	return func(c *Combiner) {
		c.engine = e
	}
}

// WithCodec sets the codec used to decode .tif static masks.
func WithCodec(codec srximage.Codec) Option {
	return func(c *Combiner) {
		c.codec = codec
	}
}

// Combiner composes the static mask with the enabled dynamic detectors and
// persists the result. It is safe for concurrent use across frames.
type Combiner struct {
	cfg    config.Config
	log    *zap.Logger
	engine IntegrationEngine
	codec  srximage.Codec

	loader *StaticLoader
	edge   Mask
	dark   *DarkPixelDetector
	bright *BrightPixelDetector
	avg    *AngularOutlierMasker

	mu     sync.RWMutex
	static Mask
	// last dynamic result, kept only so Persist can run without a frame
	last Dynamic
}

// NewCombiner validates cfg, builds the detectors and loads the static mask.
func NewCombiner(cfg *config.Config, opts ...Option) (*Combiner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Combiner{cfg: *cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	rows, cols := cfg.YDimension, cfg.XDimension
	edge, err := EdgeMask(rows, cols, cfg.CropEdges)
	if err != nil {
		return nil, err
	}
	c.edge = edge

	params := ParamsFromConfig(cfg)
	if c.dark, err = NewDarkPixelDetector(params.Dark); err != nil {
		return nil, err
	}
	if c.bright, err = NewBrightPixelDetector(params.Bright); err != nil {
		return nil, err
	}
	if c.engine != nil {
		if c.avg, err = NewAngularOutlierMasker(c.engine, params.Avg); err != nil {
			return nil, err
		}
	} else if cfg.AvgMask {
		return nil, fmt.Errorf("%w: avgmask enabled without an integration engine", ErrInvalidConfig)
	}

	c.loader = NewStaticLoader(cfg, c.codec, c.log)
	if err := c.Reload(""); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the static mask from path, or from the configured maskfile
// when path is empty. The edge band is always included.
func (c *Combiner) Reload(path string) error {
	if path == "" {
		path = c.cfg.MaskFile
	}
	fileMask, err := c.loader.Load(path)
	if err != nil {
		return err
	}
	static, err := Union(fileMask, c.edge)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.static = static
	c.mu.Unlock()

	c.log.Info("static mask ready",
		zap.String("maskfile", path),
		zap.Int("masked", static.Count()),
		zap.Float64("fraction", static.Fraction()))
	return nil
}

// StaticMask returns a copy of the cached static mask.
func (c *Combiner) StaticMask() Mask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.static.Clone()
}

// EdgeMask returns a copy of the crop band mask.
func (c *Combiner) EdgeMask() Mask {
	return c.edge.Clone()
}

// DynamicMask ORs the outputs of the selected detectors for img.
// With no detector selected it returns the Disabled state, never an all-false mask.
func (c *Combiner) DynamicMask(img mat.Matrix, det Detectors) (Dynamic, error) {
	if err := checkImage(img, c.cfg.YDimension, c.cfg.XDimension); err != nil {
		return Dynamic{}, err
	}
	if !det.Any() {
		c.remember(DisabledDynamic())
		return DisabledDynamic(), nil
	}

	start := time.Now()
	var parts []Mask
	if det.Dark {
		parts = append(parts, c.dark.Detect(img))
	}
	if det.Bright {
		parts = append(parts, c.bright.Detect(img))
	}
	if det.Avg {
		if c.avg == nil {
			return Dynamic{}, fmt.Errorf("%w: avg detector requested without an integration engine", ErrInvalidConfig)
		}
		var ref Mask
		if det.Reference != nil {
			ref = *det.Reference
		} else {
			c.mu.RLock()
			ref = c.static
			c.mu.RUnlock()
		}
		m, err := c.avg.Mask(img, ref)
		if err != nil {
			return Dynamic{}, err
		}
		parts = append(parts, m)
	}

	union, err := Union(parts[0], parts[1:]...)
	if err != nil {
		return Dynamic{}, err
	}
	dyn := ComputedDynamic(union)
	c.remember(dyn)

	c.log.Debug("dynamic mask computed",
		zap.Bool("dark", det.Dark),
		zap.Bool("bright", det.Bright),
		zap.Bool("avg", det.Avg),
		zap.Int("masked", union.Count()),
		zap.Duration("elapsed", time.Since(start)))
	return dyn, nil
}

func (c *Combiner) remember(d Dynamic) {
	c.mu.Lock()
	c.last = d
	c.mu.Unlock()
}

// FinalMask returns the static mask OR'd with the configured dynamic detectors
// for img. A Disabled dynamic result leaves the static mask as is.
func (c *Combiner) FinalMask(img mat.Matrix) (Mask, error) {
	dyn, err := c.DynamicMask(img, DetectorsFromConfig(&c.cfg))
	if err != nil {
		return Mask{}, err
	}
	c.mu.RLock()
	static := c.static
	c.mu.RUnlock()
	return dyn.ApplyTo(static)
}

// Persist writes a mask to path as .npy and returns it. With an image the
// final mask for that image is written. With a nil image the static mask and
// the last computed dynamic state are written without running any detector.
func (c *Combiner) Persist(path string, img mat.Matrix) (Mask, error) {
	var (
		m   Mask
		err error
	)
	if img != nil {
		m, err = c.FinalMask(img)
	} else {
		c.mu.RLock()
		static, last := c.static, c.last
		c.mu.RUnlock()
		m, err = last.ApplyTo(static)
	}
	if err != nil {
		return Mask{}, err
	}

	if err := Save(path, m); err != nil {
		return Mask{}, err
	}
	c.log.Info("mask saved",
		zap.String("path", path),
		zap.Int("masked", m.Count()))
	return m, nil
}
