package diff

import (
	"math"

	"github.com/MeKo-Tech/boardcmp/internal/mempool"
)

// truncate matches the conventional kernel extent of four standard deviations.
const truncate = 4.0

// GaussianKernel returns the normalized 1-D kernel for sigma with radius int(4*sigma + 0.5).
func GaussianKernel(sigma float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur returns f smoothed by an isotropic Gaussian. Borders are
// extended by mirroring about the edge (d c b a | a b c d). A non-positive
// sigma returns an unmodified copy.
func GaussianBlur(f *Field, sigma float64) *Field {
	if sigma <= 0 || f.Width == 0 || f.Height == 0 {
		return f.Clone()
	}
	k := GaussianKernel(sigma)
	r := len(k) / 2

	tmp := mempool.GetFloat64(f.Width * f.Height)
	defer mempool.PutFloat64(tmp)
	line := mempool.GetFloat64(max(f.Width, f.Height))
	defer mempool.PutFloat64(line)

	// Rows.
	for y := range f.Height {
		src := f.Data[y*f.Width : (y+1)*f.Width]
		for x := range f.Width {
			var acc float64
			for j, kv := range k {
				acc += kv * src[reflect(x+j-r, f.Width)]
			}
			line[x] = acc
		}
		copy(tmp[y*f.Width:], line[:f.Width])
	}

	// Columns.
	out := NewField(f.Width, f.Height)
	col := line[:f.Height]
	for x := range f.Width {
		for y := range f.Height {
			col[y] = tmp[y*f.Width+x]
		}
		for y := range f.Height {
			var acc float64
			for j, kv := range k {
				acc += kv * col[reflect(y+j-r, f.Height)]
			}
			out.Data[y*f.Width+x] = acc
		}
	}
	return out
}

// reflect maps i into [0, n) by mirroring with the edge sample repeated.
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}
