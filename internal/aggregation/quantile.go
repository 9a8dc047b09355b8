package aggregation

import (
	"sort"
)

// Buckets is the number of color classes on the map.
const Buckets = 5

// QuantileScale classifies values into Buckets classes split at the
// 20/40/60/80% quantiles of its domain.
type QuantileScale struct {
	thresholds []float64
}

// NewQuantileScale builds a scale over values. The order of values does not matter.
// With fewer than two distinct values the scale puts everything in bucket 0.
func NewQuantileScale(values []int64) *QuantileScale {
	sorted := make([]float64, len(values))
	for i, v := range values {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)

	if distinct(sorted) < 2 {
		return &QuantileScale{}
	}

	thresholds := make([]float64, 0, Buckets-1)
	for i := 1; i < Buckets; i++ {
		thresholds = append(thresholds, quantileSorted(sorted, float64(i)/Buckets))
	}
	return &QuantileScale{thresholds: thresholds}
}

// Bucket returns the class of value, from 0 (lowest) to Buckets-1.
func (s *QuantileScale) Bucket(value int64) int {
	if len(s.thresholds) == 0 {
		return 0
	}
	v := float64(value)
	// first threshold strictly greater than v
	return sort.Search(len(s.thresholds), func(i int) bool {
		return s.thresholds[i] > v
	})
}

// Thresholds returns a copy of the class boundaries.
func (s *QuantileScale) Thresholds() []float64 {
	out := make([]float64, len(s.thresholds))
	copy(out, s.thresholds)
	return out
}

// ColorBucket classifies value against allValues.
func ColorBucket(value int64, allValues []int64) int {
	return NewQuantileScale(allValues).Bucket(value)
}

// quantileSorted interpolates linearly between the closest ranks.
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	i := int(h)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*(h-float64(i))
}

func distinct(sorted []float64) int {
	count := 0
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			count++
		}
	}
	return count
}
