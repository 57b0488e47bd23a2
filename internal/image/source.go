package image

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// SourceOptions configures a Source.
type SourceOptions struct {
	FlipHorizontal bool
	FlipVertical   bool
	Retries        int           // total load attempts, at least 1
	RetryInterval  time.Duration // pause between attempts
	Logger         *zap.Logger
}

// Source loads detector frames the way the integration pipeline expects them:
// decoded, oriented by the configured flips and with negatives clamped to zero.
type Source struct {
	codec Codec
	opts  SourceOptions
	log   *zap.Logger
}

// NewSource creates a Source decoding non-npy frames with codec.
func NewSource(codec Codec, opts SourceOptions) *Source {
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{codec: codec, opts: opts, log: log}
}

// Codec returns the codec used for raw frames.
func (s *Source) Codec() Codec {
	return s.codec
}

// DecodeRaw decodes path with no retries, flips or clamping.
func (s *Source) DecodeRaw(path string) (*mat.Dense, error) {
	switch FormatOf(path) {
	case FormatNPY:
		return ReadNPY(path)
	case FormatTIFF:
		return s.codec.Decode(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads path, retrying while the file is missing or incomplete (a detector
// may still be writing it). Fails with ErrNotFound if the file never appears.
func (s *Source) Load(ctx context.Context, path string) (*mat.Dense, error) {
	path = expandHome(path)
	if FormatOf(path) == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	var (
		img     *mat.Dense
		lastErr error
	)
	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		img, lastErr = s.DecodeRaw(path)
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, ErrUnsupportedFormat) {
			return nil, lastErr
		}
		if attempt == s.opts.Retries {
			break
		}
		s.log.Debug("image not ready, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.opts.RetryInterval):
		}
	}
	if lastErr != nil {
		if errors.Is(lastErr, ErrNotFound) {
			return nil, fmt.Errorf("%w after %d attempts: %s", ErrNotFound, s.opts.Retries, path)
		}
		return nil, lastErr
	}

	if s.opts.FlipHorizontal || s.opts.FlipVertical {
		img = Flip(img, s.opts.FlipHorizontal, s.opts.FlipVertical)
	}
	ClampNegative(img)
	return img, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// FileFilter selects frames from a directory.
type FileFilter struct {
	Filenames []string // if set, a file must also match one of these patterns
	Include   []string // a file must match at least one
	Exclude   []string // a file matching any is dropped
	FullPath  bool
}

// ListFiles returns the sorted names of regular files in dir accepted by filter.
func ListFiles(dir string, filter FileFilter) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ok, err := matchAny(filter.Include, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if ok, err = matchAny(filter.Exclude, name); err != nil {
			return nil, err
		} else if ok {
			continue
		}
		if len(filter.Filenames) > 0 {
			if ok, err = matchAny(filter.Filenames, name); err != nil {
				return nil, err
			} else if !ok {
				continue
			}
		}
		if filter.FullPath {
			abs, err := filepath.Abs(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			name = abs
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func matchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		ok, err := filepath.Match(p, name)
		if err != nil {
			return false, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
