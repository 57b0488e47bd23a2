package integration

import (
	"errors"
	"math"
	"sync"
	"testing"

	"srxmask/internal/config"
	"srxmask/internal/mask"

	"gonum.org/v1/gonum/mat"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.XDimension = 21
	cfg.YDimension = 21
	cfg.XBeamCenter = 10
	cfg.YBeamCenter = 10
	cfg.CropEdges = config.Crop{}
	cfg.Distance = 100
	cfg.XPixelSize = 1
	cfg.YPixelSize = 1
	cfg.TthStep = 1
	return cfg
}

func TestNew_AngleGeometry(t *testing.T) {
	cfg := testConfig()
	in, err := New(&cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	angles := in.AngleMatrix()
	if got := angles.At(10, 10); got != 0 {
		t.Errorf("beam centre angle = %v, want 0", got)
	}
	want := math.Atan2(10, 100) * 180 / math.Pi
	if got := angles.At(10, 20); math.Abs(got-want) > 1e-12 {
		t.Errorf("angle at (10,20) = %v, want %v", got, want)
	}
	if angles.At(0, 10) != angles.At(20, 10) || angles.At(10, 0) != angles.At(0, 10) {
		t.Error("angles are not symmetric around the beam centre")
	}
	if in.AngleStep() != 1 {
		t.Errorf("AngleStep() = %v", in.AngleStep())
	}
	corner := math.Atan2(math.Hypot(10, 10), 100) * 180 / math.Pi
	if in.Bins() != int(math.RoundToEven(corner))+1 {
		t.Errorf("Bins() = %d for max angle %v", in.Bins(), corner)
	}
}

func TestNew_QSpace(t *testing.T) {
	cfg := testConfig()
	cfg.IntegrationSpace = config.SpaceQ
	cfg.QStep = 0.5
	cfg.Wavelength = 0.5
	in, err := New(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	tth := math.Atan2(10, 100)
	want := 4 * math.Pi * math.Sin(tth/2) / 0.5
	if got := in.AngleMatrix().At(0, 10); math.Abs(got-want) > 1e-12 {
		t.Errorf("q at (0,10) = %v, want %v", got, want)
	}
	if in.AngleStep() != 0.5 || in.Space() != config.SpaceQ {
		t.Errorf("step/space = %v/%v", in.AngleStep(), in.Space())
	}
}

func TestIntensity_NotPrepared(t *testing.T) {
	cfg := testConfig()
	in, _ := New(&cfg)
	_, _, err := in.Intensity(mat.NewDense(21, 21, nil))
	if !errors.Is(err, ErrNotPrepared) {
		t.Errorf("Intensity() error = %v, want ErrNotPrepared", err)
	}
}

func TestIntensity_AveragesUnmaskedPixels(t *testing.T) {
	cfg := testConfig()
	in, err := New(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	img := mat.NewDense(21, 21, nil)
	img.Apply(func(_, _ int, _ float64) float64 { return 10 }, img)
	img.Set(10, 10, 1000) // only pixel in bin 0

	if err := in.GenIntegrationInds(mask.New(21, 21)); err != nil {
		t.Fatal(err)
	}
	bins, avg, err := in.Intensity(img)
	if err != nil {
		t.Fatalf("Intensity() error: %v", err)
	}
	if len(bins) != in.Bins() || len(avg) != in.Bins() {
		t.Fatalf("got %d bins / %d averages, want %d", len(bins), len(avg), in.Bins())
	}
	if avg[0] != 1000 {
		t.Errorf("avg[0] = %v, want 1000", avg[0])
	}
	if bins[3] != 3 {
		t.Errorf("bins[3] = %v, want 3", bins[3])
	}
	for b := 1; b < len(avg); b++ {
		if avg[b] != 0 && avg[b] != 10 {
			t.Errorf("avg[%d] = %v, want 10 or empty", b, avg[b])
		}
	}

	// masking the centre empties bin 0
	m := mask.New(21, 21)
	m.Set(10, 10, true)
	if err := in.GenIntegrationInds(m); err != nil {
		t.Fatal(err)
	}
	_, avg, err = in.Intensity(img)
	if err != nil {
		t.Fatal(err)
	}
	if avg[0] != 0 {
		t.Errorf("avg[0] with centre masked = %v, want 0", avg[0])
	}
}

func TestGenIntegrationInds_ShapeMismatch(t *testing.T) {
	cfg := testConfig()
	in, _ := New(&cfg)
	if err := in.GenIntegrationInds(mask.New(3, 3)); !errors.Is(err, mask.ErrShapeMismatch) {
		t.Errorf("GenIntegrationInds() error = %v, want ErrShapeMismatch", err)
	}
	if _, _, err := in.Intensity(mat.NewDense(3, 3, nil)); !errors.Is(err, mask.ErrShapeMismatch) {
		t.Errorf("Intensity() error = %v, want ErrShapeMismatch", err)
	}
}

func TestIntegrator_ConcurrentMasks(t *testing.T) {
	cfg := testConfig()
	in, err := New(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	img := mat.NewDense(21, 21, nil)
	img.Apply(func(r, c int, _ float64) float64 { return float64(r + c) }, img)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := mask.New(21, 21)
			m.Set(i, i, true)
			mu.Lock()
			defer mu.Unlock()
			if err := in.GenIntegrationInds(m); err != nil {
				t.Error(err)
				return
			}
			if _, _, err := in.Intensity(img); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
}

func TestMaskHash(t *testing.T) {
	a := mask.New(4, 4)
	b := mask.New(4, 4)
	if maskHash(a) != maskHash(b) {
		t.Error("equal masks hash differently")
	}
	b.Set(2, 3, true)
	if maskHash(a) == maskHash(b) {
		t.Error("different masks share a hash")
	}
}
