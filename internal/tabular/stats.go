package tabular

import (
	"math"
	"sort"
)

// ColumnStats summarizes the numeric cells of one column. Mean, median
// and stdev carry the 2-decimal rounding of the display contract, so
// any downstream arithmetic operates on the rounded values.
type ColumnStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Stdev  float64 `json:"stdev"`
}

// ColumnStats computes summary statistics over the numeric cells of the
// named column. String cells are excluded, not errors. ok is false when
// the column is unknown or holds no numeric cells; callers treat that
// as nothing to display.
//
// Median is the element at index n/2 of the ascending sort, so for even
// n it is the upper of the two middle values, not their average. Stdev
// is the population form, divisor n. Both rules are part of the
// contract; the published reference values depend on them.
//
// Stats are recomputed on every call and never cached.
func (t Table) ColumnStats(name string) (ColumnStats, bool) {
	values := t.NumericColumn(name)
	n := len(values)
	if n == 0 {
		return ColumnStats{}, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sqDiff float64
	for _, v := range sorted {
		d := v - mean
		sqDiff += d * d
	}
	stdev := math.Sqrt(sqDiff / float64(n))

	return ColumnStats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   round2(mean),
		Median: round2(sorted[n/2]),
		Stdev:  round2(stdev),
	}, true
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
