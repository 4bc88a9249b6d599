package services

import "errors"

// Dataset service errors
var (
	// Dataset state errors
	ErrNoDataset = errors.New("no dataset loaded")

	// Column errors
	ErrColumnNotFound = errors.New("column not found")
	ErrNoNumericData  = errors.New("column has no numeric data")

	// Sample library errors
	ErrSampleNotFound = errors.New("sample not found")

	// Chart errors
	ErrInvalidChartType = errors.New("invalid chart type")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
