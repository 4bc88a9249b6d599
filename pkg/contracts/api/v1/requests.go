// Package api contains API contract definitions for the Water Quality
// Visualizer. Version v1 represents the current stable API version.
package api

// Dataset API Requests

// UploadRequest represents a JSON dataset upload. The same endpoint
// also accepts multipart files and raw text bodies, which bypass this
// type.
type UploadRequest struct {
	Name    string `json:"name" validate:"omitempty,max=255"`
	Content string `json:"content" validate:"required"`
}

// FilterRequest represents a request for rows whose column value falls
// inside an inclusive numeric range.
type FilterRequest struct {
	Column string  `json:"column" validate:"required"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max" validate:"gtefield=Min"`
}

// Chart API Requests

// ChartRequest represents a request for a chart-ready payload built
// from the current dataset.
type ChartRequest struct {
	Type string `json:"type" validate:"required,oneof=histogram scatter line box"`
	X    string `json:"x,omitempty"`
	Y    string `json:"y,omitempty"`
	Bins int    `json:"bins,omitempty" validate:"omitempty,min=1,max=100"`
}

// Client Log API Requests

// ClientLogRequest represents a single browser-side log entry forwarded
// to the server log.
type ClientLogRequest struct {
	Level     string                 `json:"level" validate:"required,oneof=debug info warn error"`
	Message   string                 `json:"message" validate:"required,max=4096"`
	Timestamp string                 `json:"timestamp,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}
