package mask

import (
	"errors"
	"sync"
	"testing"

	"srxmask/internal/config"

	"gonum.org/v1/gonum/mat"
)

// fakeEngine bins pixels by column: angle = column index, step 1.
// Intensity returns avg verbatim and records the last reference mask.
type fakeEngine struct {
	mu      sync.Mutex
	angles  *mat.Dense
	step    float64
	avg     []float64
	lastRef Mask
	calls   int
	err     error
}

func newColumnEngine(rows, cols int, avg []float64) *fakeEngine {
	angles := mat.NewDense(rows, cols, nil)
	angles.Apply(func(_, c int, _ float64) float64 { return float64(c) }, angles)
	return &fakeEngine{angles: angles, step: 1, avg: avg}
}

func (f *fakeEngine) GenIntegrationInds(m Mask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRef = m.Clone()
	f.calls++
	return f.err
}

func (f *fakeEngine) Intensity(img mat.Matrix) ([]float64, []float64, error) {
	bins := make([]float64, len(f.avg))
	for i := range bins {
		bins[i] = float64(i) * f.step
	}
	return bins, f.avg, nil
}

func (f *fakeEngine) AngleMatrix() *mat.Dense { return f.angles }
func (f *fakeEngine) AngleStep() float64      { return f.step }

func constantAvg(n int, v float64) []float64 {
	avg := make([]float64, n)
	for i := range avg {
		avg[i] = v
	}
	return avg
}

func TestAngularOutlierMasker_FlagsOutliers(t *testing.T) {
	img := uniformImage(8, 8, 10)
	img.Set(3, 3, 100) // > 10*2
	img.Set(4, 5, 1)   // < 10*0.5
	img.Set(2, 2, 19)  // within bounds
	img.Set(0, 0, 100) // in crop band, never flagged

	engine := newColumnEngine(8, 8, constantAvg(8, 10))
	a, err := NewAngularOutlierMasker(engine, AvgParams{High: 2, Low: 0.5, Crop: config.Crop{Left: 1, Right: 1, Top: 1, Bottom: 1}})
	if err != nil {
		t.Fatal(err)
	}
	ref := New(8, 8)
	ref.Set(7, 7, true)
	m, err := a.Mask(img, ref)
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if m.Count() != 2 || !m.At(3, 3) || !m.At(4, 5) {
		t.Errorf("flagged %d pixels, want (3,3) and (4,5)", m.Count())
	}
	if m.At(0, 0) {
		t.Error("crop band pixel flagged")
	}
	if !engine.lastRef.Equal(ref) {
		t.Error("engine did not receive the reference mask")
	}
}

func TestAngularOutlierMasker_PerBinAverage(t *testing.T) {
	// column c averages to c+1; a pixel equal to its own column average is fine,
	// the same value in a far column is an outlier
	avg := make([]float64, 6)
	for i := range avg {
		avg[i] = float64(i + 1)
	}
	img := mat.NewDense(4, 6, nil)
	img.Apply(func(_, c int, _ float64) float64 { return float64(c + 1) }, img)
	img.Set(1, 0, 6) // column 0 average 1

	a, _ := NewAngularOutlierMasker(newColumnEngine(4, 6, avg), AvgParams{High: 2, Low: 0.5})
	m, err := a.Mask(img, New(4, 6))
	if err != nil {
		t.Fatal(err)
	}
	if m.Count() != 1 || !m.At(1, 0) {
		t.Errorf("flagged %d pixels, want only (1,0)", m.Count())
	}
}

func TestAngularOutlierMasker_ClampsToLastBin(t *testing.T) {
	// only 3 bins for 6 columns: columns >= 2 use the last bin (average 50)
	img := uniformImage(2, 6, 50)
	img.Set(0, 0, 10)
	img.Set(1, 0, 10)
	img.Set(0, 1, 20)
	a, _ := NewAngularOutlierMasker(newColumnEngine(2, 6, []float64{10, 20, 50}), AvgParams{High: 1.5, Low: 0.5})
	m, err := a.Mask(img, New(2, 6))
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("flagged %d pixels, want 1", m.Count())
	}
	if !m.At(1, 1) {
		t.Error("(1,1) = 50 against bin average 20 should be flagged")
	}
}

func TestAngleBin(t *testing.T) {
	tests := []struct {
		angle, step float64
		last, want  int
	}{
		{0.4, 1, 10, 0},
		{0.5, 1, 10, 0}, // half to even
		{1.5, 1, 10, 2},
		{2.5, 1, 10, 2},
		{0.06, 0.02, 10, 3},
		{99, 1, 10, 10},
		{-3, 1, 10, 0},
	}
	for _, tt := range tests {
		if got := angleBin(tt.angle, tt.step, tt.last); got != tt.want {
			t.Errorf("angleBin(%v, %v, %d) = %d, want %d", tt.angle, tt.step, tt.last, got, tt.want)
		}
	}
}

func TestAngularOutlierMasker_Errors(t *testing.T) {
	if _, err := NewAngularOutlierMasker(nil, DefaultAvgParams()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil engine error = %v", err)
	}
	if _, err := NewAngularOutlierMasker(newColumnEngine(2, 2, []float64{1}), AvgParams{High: 0.1, Low: 1}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("inverted thresholds error = %v", err)
	}

	a, _ := NewAngularOutlierMasker(newColumnEngine(4, 4, []float64{1}), DefaultAvgParams())
	if _, err := a.Mask(uniformImage(4, 4, 1), New(3, 3)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("reference shape error = %v", err)
	}
	if _, err := a.Mask(uniformImage(5, 5, 1), New(5, 5)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("angle matrix shape error = %v", err)
	}

	failing := newColumnEngine(4, 4, []float64{1})
	failing.err = errors.New("geometry unavailable")
	a, _ = NewAngularOutlierMasker(failing, DefaultAvgParams())
	if _, err := a.Mask(uniformImage(4, 4, 1), New(4, 4)); err == nil {
		t.Error("engine failure not reported")
	}
}

func TestUndersample(t *testing.T) {
	u := NewUndersampler(42)

	all, err := u.Mask(100, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if all.Fraction() != 1 {
		t.Errorf("keep=0 fraction = %v, want 1", all.Fraction())
	}

	none, _ := u.Mask(100, 100, 1)
	if none.Fraction() != 0 {
		t.Errorf("keep=1 fraction = %v, want 0", none.Fraction())
	}

	part, _ := u.Mask(200, 200, 0.3)
	if f := part.Fraction(); f < 0.68 || f > 0.72 {
		t.Errorf("keep=0.3 fraction = %v, want about 0.7", f)
	}

	a, _ := NewUndersampler(7).Mask(50, 50, 0.5)
	b, _ := NewUndersampler(7).Mask(50, 50, 0.5)
	if !a.Equal(b) {
		t.Error("same seed produced different masks")
	}

	if _, err := u.Mask(2, 2, 1.5); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("keep=1.5 error = %v, want ErrInvalidConfig", err)
	}
}
