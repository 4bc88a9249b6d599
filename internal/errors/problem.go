package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// DatasetLoadDetails provides additional context for dataset errors
type DatasetLoadDetails struct {
	Format       string `json:"format,omitempty"`
	Rows         int    `json:"rows,omitempty"`
	Columns      int    `json:"columns,omitempty"`
	LineCount    int    `json:"line_count,omitempty"`
	BlankLines   int    `json:"blank_lines,omitempty"`
	SkippedLines int    `json:"skipped_lines,omitempty"`
}

// ProblemDetails is an RFC 7807 problem response. Extension members
// are flattened into the top-level JSON object when marshalled.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"-"`
}

// Render lets go-chi/render pick up the problem's status code.
func (p *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

// MarshalJSON emits the standard members and the extensions as one
// flat object, omitting detail and instance when empty.
func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	flat := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		flat["detail"] = p.Detail
	}
	if p.Instance != "" {
		flat["instance"] = p.Instance
	}
	for key, val := range p.Extensions {
		flat[key] = val
	}
	return json.Marshal(flat)
}

// NewProblemDetails builds a problem response with an empty extension set.
func NewProblemDetails(status int, ptype, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       ptype,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]any),
	}
}

// WithExtension records one extension member and returns the problem
// so calls can chain.
func (p *ProblemDetails) WithExtension(key string, value any) *ProblemDetails {
	p.Extensions[key] = value
	return p
}

// NewDatasetRejectedError creates an enhanced error for input that could not be parsed
func NewDatasetRejectedError(reason string, details *DatasetLoadDetails, traceID string) *ProblemDetails {
	prob := NewProblemDetails(
		http.StatusUnprocessableEntity,
		TypeDatasetUnparsable,
		"Dataset Could Not Be Parsed",
		reason,
		fmt.Sprintf("/api/dataset#%s", traceID),
	)

	prob.WithExtension("error_type", "unparsable_dataset").
		WithExtension("trace_id", traceID)

	if details != nil {
		if details.Format != "" {
			prob.WithExtension("format", details.Format)
		}
		if details.LineCount > 0 {
			prob.WithExtension("line_count", details.LineCount)
		}
		if details.BlankLines > 0 {
			prob.WithExtension("blank_lines", details.BlankLines)
		}
		if details.SkippedLines > 0 {
			prob.WithExtension("skipped_lines", details.SkippedLines)
		}
	}

	return prob
}

// NewDatasetNotLoadedError creates an error for requests that need a dataset before one was uploaded
func NewDatasetNotLoadedError(traceID string) *ProblemDetails {
	prob := NewProblemDetails(
		http.StatusNotFound,
		TypeDatasetNotLoaded,
		"No Dataset Loaded",
		"No dataset has been loaded yet. Upload a CSV or workbook file, or load one of the bundled samples.",
		fmt.Sprintf("/api/dataset#%s", traceID),
	)

	prob.WithExtension("error_type", "dataset_not_loaded").
		WithExtension("trace_id", traceID)

	return prob
}

// NewColumnNotFoundError creates an error for a column name the dataset does not contain
func NewColumnNotFoundError(column string, available []string, traceID string) *ProblemDetails {
	prob := NewProblemDetails(
		http.StatusNotFound,
		TypeColumnNotFound,
		"Column Not Found",
		fmt.Sprintf("The dataset has no column named %q.", column),
		fmt.Sprintf("/api/columns/%s#%s", column, traceID),
	)

	prob.WithExtension("error_type", "column_not_found").
		WithExtension("column", column).
		WithExtension("trace_id", traceID)

	if len(available) > 0 {
		prob.WithExtension("available_columns", available)
	}

	return prob
}

// NewNoNumericDataError creates an error for a column that holds no numeric cells
func NewNoNumericDataError(column string, traceID string) *ProblemDetails {
	prob := NewProblemDetails(
		http.StatusUnprocessableEntity,
		TypeNoNumericData,
		"No Numeric Data",
		fmt.Sprintf("Column %q contains no numeric values, so statistics cannot be computed.", column),
		fmt.Sprintf("/api/columns/%s#%s", column, traceID),
	)

	prob.WithExtension("error_type", "no_numeric_data").
		WithExtension("column", column).
		WithExtension("trace_id", traceID)

	return prob
}
