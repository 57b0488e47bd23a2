package mask

import (
	"fmt"
	"math/rand"
	"sync"
)

// Undersampler draws random masks that keep roughly a given share of pixels.
// It is safe for concurrent use.
type Undersampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUndersampler returns an Undersampler seeded for reproducible draws.
func NewUndersampler(seed int64) *Undersampler {
	return &Undersampler{rng: rand.New(rand.NewSource(seed))}
}

// Mask returns a rows x cols mask where each pixel is independently masked
// with probability 1-keep.
func (u *Undersampler) Mask(rows, cols int, keep float64) (Mask, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Undersample(rows, cols, keep, u.rng)
}

// Undersample masks a pixel when its uniform draw in [0, 1) is >= keep.
// keep = 1 masks nothing and keep = 0 masks everything.
func Undersample(rows, cols int, keep float64, rng *rand.Rand) (Mask, error) {
	if keep < 0 || keep > 1 {
		return Mask{}, fmt.Errorf("%w: undersample keep ratio %g outside [0, 1]", ErrInvalidConfig, keep)
	}
	m := New(rows, cols)
	for i := range m.Data {
		m.Data[i] = rng.Float64() >= keep
	}
	return m, nil
}
