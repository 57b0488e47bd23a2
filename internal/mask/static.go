package mask

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"srxmask/internal/config"
	srximage "srxmask/internal/image"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// StaticLoader reads persisted defect masks (detector gaps, beam stop) that do
// not depend on any particular frame.
type StaticLoader struct {
	rows, cols     int
	flipHorizontal bool
	flipVertical   bool
	codec          srximage.Codec
	log            *zap.Logger
}

// NewStaticLoader creates a loader for cfg's detector shape and orientation.
// codec decodes .tif masks; a nil codec means the x/image TIFF decoder.
func NewStaticLoader(cfg *config.Config, codec srximage.Codec, log *zap.Logger) *StaticLoader {
	if codec == nil {
		codec = srximage.TIFFCodec{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StaticLoader{
		rows:           cfg.YDimension,
		cols:           cfg.XDimension,
		flipHorizontal: cfg.FlipHorizontal,
		flipVertical:   cfg.FlipVertical,
		codec:          codec,
		log:            log,
	}
}

// Load reads the mask at path. Values > 0 are masked.
//
// An empty path or a missing file yields an all-false mask: no file means
// nothing is statically excluded. A .npy mask is taken as already oriented;
// a .tif mask is a raw detector frame and gets the configured flips.
func (l *StaticLoader) Load(path string) (Mask, error) {
	if path == "" {
		return New(l.rows, l.cols), nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.log.Info("static mask file not found, nothing statically masked", zap.String("path", path))
			return New(l.rows, l.cols), nil
		}
		return Mask{}, fmt.Errorf("failed to stat mask file: %w", err)
	}

	var raw *mat.Dense
	var err error
	switch srximage.FormatOf(path) {
	case srximage.FormatNPY:
		raw, err = srximage.ReadNPY(path)
	case srximage.FormatTIFF:
		raw, err = l.codec.Decode(path)
		if err == nil && (l.flipHorizontal || l.flipVertical) {
			raw = srximage.Flip(raw, l.flipHorizontal, l.flipVertical)
		}
	default:
		return Mask{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		if errors.Is(err, srximage.ErrUnsupportedFormat) {
			return Mask{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return Mask{}, fmt.Errorf("failed to load mask %s: %w", path, err)
	}
	if err := checkImage(raw, l.rows, l.cols); err != nil {
		return Mask{}, fmt.Errorf("mask %s: %w", path, err)
	}

	m := FromDense(raw)
	l.log.Debug("static mask loaded",
		zap.String("path", path),
		zap.Int("masked", m.Count()))
	return m, nil
}

// Save writes m to path as a .npy array of 0/1 values.
func Save(path string, m Mask) error {
	if srximage.FormatOf(path) != srximage.FormatNPY {
		return fmt.Errorf("%w: masks are saved as .npy, got %s", ErrUnsupportedFormat, path)
	}
	return srximage.WriteNPY(path, m.Dense())
}
