package diff

import (
	"sort"

	"github.com/MeKo-Tech/boardcmp/internal/mempool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a difference map.
type Stats struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Max          float64 `json:"max"`
	P99          float64 `json:"p99"`
	Anomalous    int     `json:"anomalous_pixels"`
	AnomalyRatio float64 `json:"anomaly_ratio"`
}

// ComputeStats summarizes m and mask.
func ComputeStats(m *Field, mask *Mask) Stats {
	s := Stats{Width: m.Width, Height: m.Height}
	if len(m.Data) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(m.Data, nil)
	if len(m.Data) == 1 {
		s.StdDev = 0
	}
	s.Max = floats.Max(m.Data)

	sorted := mempool.GetFloat64(len(m.Data))
	defer mempool.PutFloat64(sorted)
	copy(sorted, m.Data)
	sort.Float64s(sorted)
	s.P99 = stat.Quantile(0.99, stat.Empirical, sorted, nil)

	if mask != nil {
		s.Anomalous = mask.Count()
		s.AnomalyRatio = float64(s.Anomalous) / float64(len(mask.Bits))
	}
	return s
}
