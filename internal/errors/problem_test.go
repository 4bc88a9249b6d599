package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProblemDetails(t *testing.T) {
	prob := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The dataset has no column named ph",
		"/api/columns/ph",
	)

	require.NotNil(t, prob)
	assert.Equal(t, http.StatusNotFound, prob.Status)
	assert.Equal(t, TypeNotFound, prob.Type)
	assert.Equal(t, "Not Found", prob.Title)
	assert.Equal(t, "The dataset has no column named ph", prob.Detail)
	assert.Equal(t, "/api/columns/ph", prob.Instance)
	assert.NotNil(t, prob.Extensions)
}

func TestProblemDetailsWithExtension(t *testing.T) {
	prob := NewProblemDetails(http.StatusBadRequest, TypeValidation, "Validation Failed", "", "").
		WithExtension("field", "bins").
		WithExtension("max", 100)

	assert.Equal(t, "bins", prob.Extensions["field"])
	assert.Equal(t, 100, prob.Extensions["max"])
}

func TestProblemDetailsMarshalJSON(t *testing.T) {
	cases := []struct {
		name       string
		prob       *ProblemDetails
		wantKeys   []string
		absentKeys []string
		wantValues map[string]any
	}{
		{
			name: "full problem with extensions",
			prob: NewProblemDetails(
				http.StatusUnprocessableEntity,
				TypeDatasetUnparsable,
				"Dataset Could Not Be Parsed",
				"input contains no header row",
				"/api/dataset#abc123",
			).WithExtension("trace_id", "abc123"),
			wantKeys: []string{"type", "title", "status", "detail", "instance", "trace_id"},
			wantValues: map[string]any{
				"type":     TypeDatasetUnparsable,
				"status":   float64(http.StatusUnprocessableEntity),
				"trace_id": "abc123",
			},
		},
		{
			name:       "empty detail and instance omitted",
			prob:       NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", "", ""),
			wantKeys:   []string{"type", "title", "status"},
			absentKeys: []string{"detail", "instance"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.prob)
			require.NoError(t, err)

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(raw, &decoded))

			for _, key := range tc.wantKeys {
				assert.Contains(t, decoded, key)
			}
			for _, key := range tc.absentKeys {
				assert.NotContains(t, decoded, key)
			}
			for key, want := range tc.wantValues {
				assert.Equal(t, want, decoded[key])
			}
		})
	}
}

func TestProblemDetailsRender(t *testing.T) {
	prob := NewProblemDetails(http.StatusConflict, TypeConflict, "Conflict", "", "")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)

	assert.NoError(t, prob.Render(w, r))
}

func TestNewDatasetRejectedError(t *testing.T) {
	details := &DatasetLoadDetails{
		Format:       "csv",
		LineCount:    12,
		BlankLines:   2,
		SkippedLines: 3,
	}

	prob := NewDatasetRejectedError("input contains no data rows", details, "trace-1")

	assert.Equal(t, http.StatusUnprocessableEntity, prob.Status)
	assert.Equal(t, TypeDatasetUnparsable, prob.Type)
	assert.Equal(t, "input contains no data rows", prob.Detail)
	assert.Equal(t, "/api/dataset#trace-1", prob.Instance)
	assert.Equal(t, "unparsable_dataset", prob.Extensions["error_type"])
	assert.Equal(t, "trace-1", prob.Extensions["trace_id"])
	assert.Equal(t, "csv", prob.Extensions["format"])
	assert.Equal(t, 12, prob.Extensions["line_count"])
	assert.Equal(t, 2, prob.Extensions["blank_lines"])
	assert.Equal(t, 3, prob.Extensions["skipped_lines"])
}

func TestNewDatasetRejectedErrorNilDetails(t *testing.T) {
	prob := NewDatasetRejectedError("empty input", nil, "trace-2")

	assert.Equal(t, http.StatusUnprocessableEntity, prob.Status)
	assert.NotContains(t, prob.Extensions, "format")
	assert.NotContains(t, prob.Extensions, "line_count")
}

func TestNewDatasetNotLoadedError(t *testing.T) {
	prob := NewDatasetNotLoadedError("trace-3")

	assert.Equal(t, http.StatusNotFound, prob.Status)
	assert.Equal(t, TypeDatasetNotLoaded, prob.Type)
	assert.Equal(t, "dataset_not_loaded", prob.Extensions["error_type"])
	assert.Equal(t, "trace-3", prob.Extensions["trace_id"])
}

func TestNewColumnNotFoundError(t *testing.T) {
	prob := NewColumnNotFoundError("turbidity", []string{"site", "ph", "temperature"}, "trace-4")

	assert.Equal(t, http.StatusNotFound, prob.Status)
	assert.Equal(t, TypeColumnNotFound, prob.Type)
	assert.Contains(t, prob.Detail, "turbidity")
	assert.Equal(t, "turbidity", prob.Extensions["column"])
	assert.Equal(t, []string{"site", "ph", "temperature"}, prob.Extensions["available_columns"])
}

func TestNewColumnNotFoundErrorNoAvailable(t *testing.T) {
	prob := NewColumnNotFoundError("ph", nil, "trace-5")

	assert.NotContains(t, prob.Extensions, "available_columns")
}

func TestNewNoNumericDataError(t *testing.T) {
	prob := NewNoNumericDataError("site", "trace-6")

	assert.Equal(t, http.StatusUnprocessableEntity, prob.Status)
	assert.Equal(t, TypeNoNumericData, prob.Type)
	assert.Contains(t, prob.Detail, "site")
	assert.Equal(t, "no_numeric_data", prob.Extensions["error_type"])
	assert.Equal(t, "site", prob.Extensions["column"])
}
