package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	srximage "srxmask/internal/image"
	"srxmask/internal/mask"

	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
)

const testConfig = `
xdimension: 16
ydimension: 16
xbeamcenter: 8
ybeamcenter: 8
cropedges: [1, 1, 1, 1]
darkpixelmask: true
brightpixelmask: true
avgmask: true
loadretries: 1
`

func writeFrame(t *testing.T, dir, name string, hotRow, hotCol int) string {
	t.Helper()
	img := mat.NewDense(16, 16, nil)
	img.Apply(func(_, _ int, _ float64) float64 { return 10 }, img)
	img.Set(hotRow, hotCol, 1000)
	path := filepath.Join(dir, name)
	if err := srximage.WriteNPY(path, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func testOptions(t *testing.T) options {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "srxmask.yaml")
	if err := os.WriteFile(cfgPath, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return options{
		configPath:  cfgPath,
		envFile:     filepath.Join(dir, "missing.env"),
		out:         filepath.Join(dir, "out"),
		jobs:        2,
		undersample: -1,
	}
}

func TestRun_Frames(t *testing.T) {
	opts := testOptions(t)
	frames := t.TempDir()
	opts.images = []string{
		writeFrame(t, frames, "a.npy", 5, 5),
		writeFrame(t, frames, "b.npy", 10, 9),
	}

	if err := run(context.Background(), opts, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	for _, tt := range []struct {
		name     string
		row, col int
	}{{"a", 5, 5}, {"b", 10, 9}} {
		m, err := srximage.ReadNPY(filepath.Join(opts.out, tt.name+".mask.npy"))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got := mask.FromDense(m)
		if !got.At(tt.row, tt.col) {
			t.Errorf("%s: hot pixel not masked", tt.name)
		}
		if !got.At(0, 0) {
			t.Errorf("%s: edge not masked", tt.name)
		}
	}
}

func TestRun_Preview(t *testing.T) {
	opts := testOptions(t)
	opts.preview = true
	opts.images = []string{writeFrame(t, t.TempDir(), "p.npy", 6, 6)}
	if err := run(context.Background(), opts, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(opts.out, "p.mask.png")); err != nil {
		t.Errorf("preview not written: %v", err)
	}
}

func TestRun_Directory(t *testing.T) {
	opts := testOptions(t)
	opts.dir = t.TempDir()
	writeFrame(t, opts.dir, "frame.npy", 4, 4)
	if err := os.WriteFile(filepath.Join(opts.dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(context.Background(), opts, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	entries, err := os.ReadDir(opts.out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "frame.mask.npy" {
		t.Errorf("outputs = %v, want only frame.mask.npy", entries)
	}
}

func TestRun_StaticOnly(t *testing.T) {
	opts := testOptions(t)
	opts.staticOnly = true
	if err := run(context.Background(), opts, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	m, err := srximage.ReadNPY(filepath.Join(opts.out, "static.mask.npy"))
	if err != nil {
		t.Fatal(err)
	}
	if got := mask.FromDense(m).Count(); got != 16*16-14*14 {
		t.Errorf("static Count() = %d, want %d", got, 16*16-14*14)
	}
}

func TestRun_Undersample(t *testing.T) {
	opts := testOptions(t)
	opts.undersample = 0
	opts.images = []string{writeFrame(t, t.TempDir(), "c.npy", 3, 3)}
	if err := run(context.Background(), opts, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	m, err := srximage.ReadNPY(filepath.Join(opts.out, "c.mask.npy"))
	if err != nil {
		t.Fatal(err)
	}
	if got := mask.FromDense(m).Fraction(); got != 1 {
		t.Errorf("keep=0 fraction = %v, want 1", got)
	}
}

func TestRun_MissingFrame(t *testing.T) {
	opts := testOptions(t)
	opts.images = []string{filepath.Join(t.TempDir(), "absent.npy")}
	if err := run(context.Background(), opts, zaptest.NewLogger(t)); err == nil {
		t.Error("run() with a missing frame succeeded")
	}
}

func TestFramePaths_NoSource(t *testing.T) {
	opts := testOptions(t)
	cfg, err := loadConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := framePaths(opts, &cfg); err == nil {
		t.Error("framePaths() without frames or directory succeeded")
	}
}
