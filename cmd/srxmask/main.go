// Command srxmask builds pixel masks for area detector frames.
//
// Usage:
//
//	srxmask -config srxmask.yaml -out masks frame_0001.tif frame_0002.tif
//	srxmask -config srxmask.yaml -dir /data/run42 -jobs 8
//	srxmask -config srxmask.yaml -static-only -out masks
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"srxmask/internal/config"
	srximage "srxmask/internal/image"
	"srxmask/internal/integration"
	"srxmask/internal/logging"
	"srxmask/internal/mask"
	"srxmask/internal/version"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath  string
	envFile     string
	dir         string
	out         string
	jobs        int
	staticOnly  bool
	undersample float64
	seed        int64
	logFile     string
	dev         bool
	preview     bool
	images      []string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file (defaults are used if empty)")
	flag.StringVar(&opts.envFile, "env", ".env", "dotenv file with SRXMASK_* overrides")
	flag.StringVar(&opts.dir, "dir", "", "Directory of frames to mask (default: opendirectory from config)")
	flag.StringVar(&opts.out, "out", ".", "Output directory for .mask.npy files")
	flag.IntVar(&opts.jobs, "jobs", 4, "Frames processed in parallel")
	flag.BoolVar(&opts.staticOnly, "static-only", false, "Write only the static mask and exit")
	flag.Float64Var(&opts.undersample, "undersample", -1, "Keep this fraction of pixels at random (disabled if < 0)")
	flag.Int64Var(&opts.seed, "seed", 1, "Seed for -undersample")
	flag.StringVar(&opts.logFile, "log-file", "", "Also log JSON to this rotating file")
	flag.BoolVar(&opts.dev, "dev", false, "Human-readable debug logging")
	flag.BoolVar(&opts.preview, "preview", false, "Also write a .mask.png overlay per frame")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()
	opts.images = flag.Args()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logOpts := logging.DefaultOptions()
	logOpts.Development = opts.dev
	logOpts.FilePath = opts.logFile
	log, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.Error("srxmask failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func loadConfig(opts options) (config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, opts options, log *zap.Logger) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log.Info("starting",
		zap.String("version", version.Version),
		zap.Int("rows", cfg.YDimension),
		zap.Int("cols", cfg.XDimension),
		zap.String("maskfile", cfg.MaskFile))

	codec, err := srximage.NewCodec(cfg.ImageCodec)
	if err != nil {
		return err
	}
	combOpts := []mask.Option{mask.WithLogger(log), mask.WithCodec(codec)}
	if cfg.AvgMask {
		engine, err := integration.New(&cfg)
		if err != nil {
			return err
		}
		log.Debug("integration engine ready",
			zap.String("space", engine.Space()),
			zap.Int("bins", engine.Bins()))
		combOpts = append(combOpts, mask.WithEngine(engine))
	}
	comb, err := mask.NewCombiner(&cfg, combOpts...)
	if err != nil {
		return err
	}

	if opts.staticOnly {
		_, err := comb.Persist(filepath.Join(opts.out, "static.mask.npy"), nil)
		return err
	}

	paths, err := framePaths(opts, &cfg)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Warn("no frames to mask")
		return nil
	}

	src := srximage.NewSource(codec, srximage.SourceOptions{
		FlipHorizontal: cfg.FlipHorizontal,
		FlipVertical:   cfg.FlipVertical,
		Retries:        cfg.LoadRetries,
		RetryInterval:  cfg.RetryInterval,
		Logger:         log,
	})

	var sampler *mask.Undersampler
	if opts.undersample >= 0 {
		sampler = mask.NewUndersampler(opts.seed)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))
	for _, p := range paths {
		g.Go(func() error {
			return maskFrame(ctx, src, comb, sampler, opts, p, log)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("done", zap.Int("frames", len(paths)))
	return nil
}

func framePaths(opts options, cfg *config.Config) ([]string, error) {
	if len(opts.images) > 0 {
		return opts.images, nil
	}
	dir := opts.dir
	if dir == "" {
		dir = cfg.OpenDirectory
	}
	if dir == "" {
		return nil, fmt.Errorf("no frames given: pass paths, -dir or set opendirectory")
	}
	return srximage.ListFiles(dir, srximage.FileFilter{
		Filenames: cfg.Filenames,
		Include:   cfg.IncludePattern,
		Exclude:   cfg.ExcludePattern,
		FullPath:  true,
	})
}

func maskFrame(ctx context.Context, src *srximage.Source, comb *mask.Combiner, sampler *mask.Undersampler, opts options, path string, log *zap.Logger) error {
	img, err := src.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(opts.out, base+".mask.npy")

	var m mask.Mask
	if sampler == nil {
		if m, err = comb.Persist(out, img); err != nil {
			return err
		}
	} else {
		final, err := comb.FinalMask(img)
		if err != nil {
			return err
		}
		rows, cols := img.Dims()
		drop, err := sampler.Mask(rows, cols, opts.undersample)
		if err != nil {
			return err
		}
		if m, err = mask.Union(final, drop); err != nil {
			return err
		}
		if err := mask.Save(out, m); err != nil {
			return err
		}
		log.Info("mask saved",
			zap.String("path", out),
			zap.Int("masked", m.Count()),
			zap.Float64("keep", opts.undersample))
	}

	if opts.preview {
		png := filepath.Join(opts.out, base+".mask.png")
		if err := srximage.WritePreview(png, img, m.Data); err != nil {
			return err
		}
		log.Debug("preview written", zap.String("path", png))
	}
	return nil
}
