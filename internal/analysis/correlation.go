package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNoVariation reports a series whose variance is zero, for which
// correlation and regression are undefined.
var ErrNoVariation = errors.New("analysis: series has no variation")

// TrendLine is a least-squares fit y = Slope*x + Intercept.
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Pearson returns the Pearson correlation coefficient of two paired
// series.
func Pearson(x, y []float64) (float64, error) {
	if err := checkPairs(x, y); err != nil {
		return 0, err
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, ErrNoVariation
	}
	return r, nil
}

// Trend fits an ordinary least-squares line through the paired series.
func Trend(x, y []float64) (TrendLine, error) {
	if err := checkPairs(x, y); err != nil {
		return TrendLine{}, err
	}
	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(slope) || math.IsNaN(intercept) {
		return TrendLine{}, ErrNoVariation
	}
	return TrendLine{Slope: slope, Intercept: intercept}, nil
}

func checkPairs(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("analysis: paired series length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) < 2 {
		return ErrTooFewPoints
	}
	return nil
}
