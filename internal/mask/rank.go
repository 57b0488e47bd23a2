package mask

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// rankFilter replaces every pixel with the value of the given rank (0 = minimum)
// among the size x size window around it. Windows hanging over the edge are
// completed by mirroring (d c b a | a b c d). Even sizes put the extra row and
// column before the centre pixel.
func rankFilter(img *mat.Dense, size, rank int) *mat.Dense {
	rows, cols := img.Dims()
	out := mat.NewDense(rows, cols, nil)
	n := size * size
	if rank < 0 {
		rank += n
	}
	rank = clampInt(rank, 0, n-1)

	lo := size / 2
	buf := make([]float64, n)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			k := 0
			for dr := 0; dr < size; dr++ {
				rr := reflectIndex(r-lo+dr, rows)
				for dc := 0; dc < size; dc++ {
					buf[k] = img.At(rr, reflectIndex(c-lo+dc, cols))
					k++
				}
			}
			sort.Float64s(buf)
			out.Set(r, c, buf[rank])
		}
	}
	return out
}

// percentileRank converts a percentile of an n element window to a rank.
func percentileRank(percentile float64, n int) int {
	return clampInt(int(float64(n)*percentile/100.0), 0, n-1)
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
