package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableFromValues(t *testing.T, values ...string) Table {
	t.Helper()
	return buildTable(t, "v\n"+strings.Join(values, "\n"))
}

func TestColumnStatsReferenceValues(t *testing.T) {
	table := tableFromValues(t, "1", "2", "3", "4")

	stats, ok := table.ColumnStats("v")
	require.True(t, ok)

	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 4.0, stats.Max)
	assert.Equal(t, 2.50, stats.Mean)
	// Median of an even-length column is the upper middle element.
	assert.Equal(t, 3.00, stats.Median)
	// Population standard deviation: sqrt(1.25) rounded to 1.12.
	assert.Equal(t, 1.12, stats.Stdev)
}

func TestColumnStatsAbsent(t *testing.T) {
	table := buildTable(t, "site,ph\nRiver,7.2\nLake,6.9")

	_, ok := table.ColumnStats("site")
	assert.False(t, ok, "all-string column has no stats")

	_, ok = table.ColumnStats("salinity")
	assert.False(t, ok, "unknown column has no stats")
}

func TestColumnStatsIgnoresStringCells(t *testing.T) {
	table := tableFromValues(t, "1", "x", "3", "")

	stats, ok := table.ColumnStats("v")
	require.True(t, ok)

	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 3.0, stats.Max)
	assert.Equal(t, 2.0, stats.Mean)
}

func TestColumnStats(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ColumnStats
	}{
		{
			name:   "single value",
			values: []string{"5"},
			want:   ColumnStats{Count: 1, Min: 5, Max: 5, Mean: 5, Median: 5, Stdev: 0},
		},
		{
			name:   "odd count takes true middle",
			values: []string{"3", "1", "2"},
			want:   ColumnStats{Count: 3, Min: 1, Max: 3, Mean: 2, Median: 2, Stdev: 0.82},
		},
		{
			name:   "even count takes upper middle not average",
			values: []string{"1", "2", "3", "10"},
			want:   ColumnStats{Count: 4, Min: 1, Max: 10, Mean: 4, Median: 3, Stdev: 3.54},
		},
		{
			name:   "two values",
			values: []string{"1", "2"},
			want:   ColumnStats{Count: 2, Min: 1, Max: 2, Mean: 1.5, Median: 2, Stdev: 0.5},
		},
		{
			name:   "unsorted input is sorted first",
			values: []string{"4", "1", "3", "2"},
			want:   ColumnStats{Count: 4, Min: 1, Max: 4, Mean: 2.5, Median: 3, Stdev: 1.12},
		},
		{
			name:   "negative values",
			values: []string{"-5", "-1"},
			want:   ColumnStats{Count: 2, Min: -5, Max: -1, Mean: -3, Median: -1, Stdev: 2},
		},
		{
			name:   "rounding to two decimals",
			values: []string{"0.1", "0.2", "0.3"},
			want:   ColumnStats{Count: 3, Min: 0.1, Max: 0.3, Mean: 0.2, Median: 0.2, Stdev: 0.08},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := tableFromValues(t, tt.values...)
			stats, ok := table.ColumnStats("v")
			require.True(t, ok)

			assert.Equal(t, tt.want.Count, stats.Count)
			assert.InDelta(t, tt.want.Min, stats.Min, 1e-9)
			assert.InDelta(t, tt.want.Max, stats.Max, 1e-9)
			assert.InDelta(t, tt.want.Mean, stats.Mean, 1e-9)
			assert.InDelta(t, tt.want.Median, stats.Median, 1e-9)
			assert.InDelta(t, tt.want.Stdev, stats.Stdev, 1e-9)
		})
	}
}

func TestColumnStatsRecomputedPerCall(t *testing.T) {
	table := tableFromValues(t, "1", "2", "3", "4")

	first, ok := table.ColumnStats("v")
	require.True(t, ok)
	second, ok := table.ColumnStats("v")
	require.True(t, ok)

	assert.Equal(t, first, second)
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.004, 1.0},
		{1.006, 1.01},
		{0.125, 0.13},   // exact binary half rounds away from zero
		{-0.125, -0.13}, // symmetric for negatives
		{0.375, 0.38},
		{3.0, 3.0},
		{0.0, 0.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, round2(tt.in), 1e-9, "round2(%v)", tt.in)
	}
}
