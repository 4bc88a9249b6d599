package exporter

import "strconv"

// formatFloat renders a statistic with a fixed two decimal places so
// exported columns line up ("13.4" becomes "13.40").
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatInt renders a count in base 10.
func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
