package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileColumn(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	p, err := ProfileColumn(values)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, p.Q1, 1e-9)
	assert.InDelta(t, 8.0, p.Q3, 1e-9)
	assert.InDelta(t, 5.0, p.IQR, 1e-9)
	assert.InDelta(t, 1.0, p.P5, 1e-9)
	assert.InDelta(t, 10.0, p.P95, 1e-9)
	assert.InDelta(t, -4.5, p.LowerFence, 1e-9)
	assert.InDelta(t, 15.5, p.UpperFence, 1e-9)
	assert.Empty(t, p.Outliers)
}

func TestProfileColumnDetectsOutliers(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 1000}

	p, err := ProfileColumn(values)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, p.Q1, 1e-9)
	assert.InDelta(t, 8.0, p.Q3, 1e-9)
	assert.InDelta(t, 15.5, p.UpperFence, 1e-9)
	require.Len(t, p.Outliers, 1)
	assert.Equal(t, 1000.0, p.Outliers[0])
}

func TestProfileColumnUnsortedInputUntouched(t *testing.T) {
	values := []float64{9, 1, 5, 3, 7, 2, 8, 4, 6, 10}

	p, err := ProfileColumn(values)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, p.Q1, 1e-9)
	assert.InDelta(t, 8.0, p.Q3, 1e-9)
	assert.Equal(t, []float64{9, 1, 5, 3, 7, 2, 8, 4, 6, 10}, values)
}

func TestProfileColumnErrors(t *testing.T) {
	_, err := ProfileColumn(nil)
	assert.ErrorIs(t, err, ErrNoValues)

	_, err = ProfileColumn([]float64{7.2})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestHistogram(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	buckets, err := Histogram(values, 5)
	require.NoError(t, err)
	require.Len(t, buckets, 5)

	for i, b := range buckets {
		assert.Equalf(t, 2, b.Count, "bucket %d count", i)
	}
	assert.InDelta(t, 0.0, buckets[0].Lower, 1e-9)
	assert.InDelta(t, 1.8, buckets[0].Upper, 1e-9)
	assert.InDelta(t, 7.2, buckets[4].Lower, 1e-9)

	// The final edge is pinned to the maximum, so the top value lands in
	// the last bucket instead of a phantom one past it.
	assert.Equal(t, 9.0, buckets[4].Upper)
}

func TestHistogramConstantSeries(t *testing.T) {
	buckets, err := Histogram([]float64{5, 5, 5}, 10)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, Bucket{Lower: 5, Upper: 5, Count: 3}, buckets[0])
}

func TestHistogramErrors(t *testing.T) {
	_, err := Histogram(nil, 10)
	assert.ErrorIs(t, err, ErrNoValues)

	_, err = Histogram([]float64{1, 2}, 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoValues)
}
