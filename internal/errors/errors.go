package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the wire shape for API failures. Handlers return these
// directly when the failure is an HTTP matter; service failures arrive
// as AppError and get translated.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (a *APIError) Error() string {
	return a.Message
}

// Render implements render.Renderer so chi/render picks up the status.
func (a *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, a.StatusCode)
	return nil
}

// ValidationError names one invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New builds an APIError.
func New(status int, code, message string) *APIError {
	return &APIError{
		StatusCode: status,
		ErrorCode:  code,
		Message:    message,
	}
}

// NewWithDetails builds an APIError carrying extra payload.
func NewWithDetails(status int, code, message string, details any) *APIError {
	e := New(status, code, message)
	e.Details = details
	return e
}

// withDetails copies a canonical error and attaches details, leaving
// the shared value untouched.
func withDetails(base *APIError, details any) *APIError {
	return NewWithDetails(base.StatusCode, base.ErrorCode, base.Message, details)
}

// Canonical errors, one per failure the API can report. Handlers reuse
// these instead of minting ad-hoc codes.
var (
	// Bad request family.
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request payload")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")

	// Lookup failures.
	ErrNotFound        = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrDatasetNotFound = New(http.StatusNotFound, "DATASET_NOT_FOUND", "No dataset has been loaded")
	ErrColumnNotFound  = New(http.StatusNotFound, "COLUMN_NOT_FOUND", "Column not found in dataset")
	ErrSampleNotFound  = New(http.StatusNotFound, "SAMPLE_NOT_FOUND", "Sample dataset not found")

	// Remaining client faults.
	ErrConflict          = New(http.StatusConflict, "CONFLICT", "Resource conflict")
	ErrPayloadTooLarge   = New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body exceeds the maximum allowed size")
	ErrUnsupportedMedia  = New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Unsupported content type")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests")

	// Server side.
	ErrInternalServer     = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrWebSocketUpgrade   = New(http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service is temporarily unavailable")
)

// InvalidRequestWithError reports a malformed request with the decode
// failure as detail.
func InvalidRequestWithError(cause error) *APIError {
	return withDetails(ErrInvalidRequest, cause.Error())
}

// ErrValidation reports a single-field validation failure.
func ErrValidation(field, msg string) *APIError {
	return withDetails(ErrValidationFailed, ValidationError{Field: field, Message: msg})
}

// ValidationErrors collects per-field failures for one request.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors bundles field failures into one APIError.
func NewValidationErrors(fields []ValidationError) *APIError {
	return withDetails(ErrValidationFailed, ValidationErrors{Errors: fields})
}
