package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to upper-cased option names, e.g. SRXMASK_MASKFILE.
const EnvPrefix = "SRXMASK_"

// LoadDotEnv loads variables from the given .env files (default ".env") into the
// process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if err != nil {
			continue
		}
		for k, v := range vars {
			if !strings.HasPrefix(k, EnvPrefix) {
				continue
			}
			if err := setenvIfUnset(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyEnv overrides options from SRXMASK_* variables. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	setters := map[string]func(string) error{
		"XDIMENSION":      intSetter(&c.XDimension),
		"YDIMENSION":      intSetter(&c.YDimension),
		"FLIPHORIZONTAL":  boolSetter(&c.FlipHorizontal),
		"FLIPVERTICAL":    boolSetter(&c.FlipVertical),
		"MASKFILE":        stringSetter(&c.MaskFile),
		"CROPEDGES":       cropSetter(&c.CropEdges),
		"DARKPIXELMASK":   boolSetter(&c.DarkPixelMask),
		"BRIGHTPIXELMASK": boolSetter(&c.BrightPixelMask),
		"AVGMASK":         boolSetter(&c.AvgMask),
		"DARKPIXELR":      floatSetter(&c.DarkPixelR),
		"BRIGHTPIXELSIZE": intSetter(&c.BrightPixelSize),
		"BRIGHTPIXELR":    floatSetter(&c.BrightPixelR),
		"AVGMASKHIGH":     floatSetter(&c.AvgMaskHigh),
		"AVGMASKLOW":      floatSetter(&c.AvgMaskLow),
		"IMAGECODEC":      stringSetter(&c.ImageCodec),
		"OPENDIRECTORY":   stringSetter(&c.OpenDirectory),
		"LOADRETRIES":     intSetter(&c.LoadRetries),
		"RETRYINTERVAL":   durationSetter(&c.RetryInterval),
	}
	for key, set := range setters {
		raw, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := set(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrInvalidConfig, EnvPrefix, key, err)
		}
	}
	return nil
}

func setenvIfUnset(key, value string) error {
	if _, ok := os.LookupEnv(key); ok {
		return nil
	}
	return os.Setenv(key, value)
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func stringSetter(dst *string) func(string) error {
	return func(s string) error {
		*dst = s
		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// cropSetter parses "l,r,t,b".
func cropSetter(dst *Crop) func(string) error {
	return func(s string) error {
		parts := strings.Split(s, ",")
		if len(parts) != 4 {
			return fmt.Errorf("want 4 comma separated values, got %d", len(parts))
		}
		var v [4]int
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return err
			}
			v[i] = n
		}
		*dst = Crop{Left: v[0], Right: v[1], Top: v[2], Bottom: v[3]}
		return nil
	}
}
