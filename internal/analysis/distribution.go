// Package analysis computes the extended numeric column profile that
// backs summary and chart payloads: quartiles, percentile bands,
// IQR outlier fences, histogram buckets and pairwise correlation.
//
// The package is stateless. Inputs are plain float64 slices taken from
// a table column; callers decide how to surface the derived values.
package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
)

var (
	// ErrNoValues reports an empty input series.
	ErrNoValues = errors.New("analysis: no values")

	// ErrTooFewPoints reports a series too short for the requested
	// quantity (quartiles and correlation need at least two points).
	ErrTooFewPoints = errors.New("analysis: too few points")
)

// Profile is the distribution shape of one numeric column beyond the
// basic aggregates: quartiles, the 5th/95th percentile band and the
// 1.5×IQR outlier fences with the values falling outside them.
type Profile struct {
	Q1         float64   `json:"q1"`
	Q3         float64   `json:"q3"`
	IQR        float64   `json:"iqr"`
	P5         float64   `json:"p5"`
	P95        float64   `json:"p95"`
	LowerFence float64   `json:"lower_fence"`
	UpperFence float64   `json:"upper_fence"`
	Outliers   []float64 `json:"outliers"`
}

// ProfileColumn derives the distribution profile of a numeric series.
// The input is not mutated.
func ProfileColumn(values []float64) (Profile, error) {
	if len(values) == 0 {
		return Profile{}, ErrNoValues
	}
	if len(values) < 2 {
		return Profile{}, ErrTooFewPoints
	}

	data := stats.Float64Data(values)

	quartiles, err := stats.Quartile(data)
	if err != nil {
		return Profile{}, fmt.Errorf("quartiles: %w", err)
	}
	// Nearest-rank percentiles stay defined for short series, where the
	// interpolating variant refuses fractional indexes below one.
	p5, err := stats.PercentileNearestRank(data, 5)
	if err != nil {
		return Profile{}, fmt.Errorf("percentile 5: %w", err)
	}
	p95, err := stats.PercentileNearestRank(data, 95)
	if err != nil {
		return Profile{}, fmt.Errorf("percentile 95: %w", err)
	}

	iqr := quartiles.Q3 - quartiles.Q1
	lower := quartiles.Q1 - 1.5*iqr
	upper := quartiles.Q3 + 1.5*iqr

	var outliers []float64
	for _, v := range values {
		if v < lower || v > upper {
			outliers = append(outliers, v)
		}
	}
	sort.Float64s(outliers)

	return Profile{
		Q1:         quartiles.Q1,
		Q3:         quartiles.Q3,
		IQR:        iqr,
		P5:         p5,
		P95:        p95,
		LowerFence: lower,
		UpperFence: upper,
		Outliers:   outliers,
	}, nil
}

// Bucket is one equal-width histogram bin. Lower is inclusive; Upper
// is exclusive except for the last bucket, which includes the maximum.
type Bucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram distributes values across bins equal-width buckets spanning
// [min, max]. A constant series collapses to a single bucket holding
// every value.
func Histogram(values []float64, bins int) ([]Bucket, error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}
	if bins < 1 {
		return nil, fmt.Errorf("histogram: bins must be positive, got %d", bins)
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min == max {
		return []Bucket{{Lower: min, Upper: max, Count: len(values)}}, nil
	}

	width := (max - min) / float64(bins)
	buckets := make([]Bucket, bins)
	for i := range buckets {
		buckets[i].Lower = min + width*float64(i)
		buckets[i].Upper = min + width*float64(i+1)
	}
	// Pin the final edge so the maximum never escapes to a phantom bin.
	buckets[bins-1].Upper = max

	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		buckets[idx].Count++
	}
	return buckets, nil
}
