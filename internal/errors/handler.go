package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
)

// Problem type URIs, per RFC 7807. Clients dispatch on these, so they
// are part of the API surface.
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeForbidden        = "/errors/forbidden"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypeConflict         = "/errors/conflict"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
)

// Dataset and chart specific problem types.
const (
	TypeDatasetNotLoaded  = "/errors/dataset/not-loaded"
	TypeDatasetUnparsable = "/errors/dataset/unparsable"
	TypeColumnNotFound    = "/errors/dataset/column-not-found"
	TypeNoNumericData     = "/errors/dataset/no-numeric-data"
	TypeSampleNotFound    = "/errors/samples/not-found"
	TypeChartInvalid      = "/errors/chart/invalid-type"
	TypeWebSocketUpgrade  = "/errors/websocket/upgrade-failed"
)

// problemTypeByCode maps APIError codes to problem type URIs. Codes
// not listed here fall back to TypeInternal.
var problemTypeByCode = map[string]string{
	"VALIDATION_FAILED":        TypeValidation,
	"INVALID_REQUEST":          TypeValidation,
	"INVALID_JSON":             TypeValidation,
	"MISSING_PARAMETER":        TypeValidation,
	"MISSING_CONTENT_TYPE":     TypeValidation,
	"NOT_FOUND":                TypeNotFound,
	"DATASET_NOT_FOUND":        TypeDatasetNotLoaded,
	"COLUMN_NOT_FOUND":         TypeColumnNotFound,
	"SAMPLE_NOT_FOUND":         TypeSampleNotFound,
	"UNPARSABLE_DATASET":       TypeDatasetUnparsable,
	"CONFLICT":                 TypeConflict,
	"PAYLOAD_TOO_LARGE":        TypePayloadTooLarge,
	"UNSUPPORTED_MEDIA_TYPE":   TypeUnsupportedMedia,
	"RATE_LIMIT_EXCEEDED":      TypeRateLimit,
	"SERVICE_UNAVAILABLE":      TypeServiceDown,
	"WEBSOCKET_UPGRADE_FAILED": TypeWebSocketUpgrade,
}

// ErrorHandler is the one place errors become HTTP responses. Every
// handler and the router's fallbacks go through it, which keeps the
// problem+json shape and the error logging uniform.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler builds a handler; includeStack adds stack traces to
// responses and belongs in development only.
func NewErrorHandler(log *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       log.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and writes it as an RFC 7807 response. A nil
// err writes nothing.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	ctx := r.Context()
	traceID := middleware.GetReqID(ctx)

	eh.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()), slog.String("method", r.Method),
		slog.String("path", r.URL.Path), slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", traceID),
	)

	problem := eh.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", traceID)

	// Server faults mark the active span as errored; client mistakes
	// (4xx) keep the span clean.
	if problem.Status >= http.StatusInternalServerError {
		infrastructure.RecordError(ctx, err)
	}

	if eh.includeStack {
		problem.WithExtension("stack", stackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem classifies err and builds the matching problem
// details. Typed errors (APIError, AppError) map precisely; everything
// else is matched on message as a fallback.
func (eh *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", r.URL.Path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return eh.problemFromAPIError(apiErr, r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return eh.problemFromAppError(appErr, r)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound,
			"Resource Not Found", msg, r.URL.Path)

	case strings.Contains(msg, "rate limit"):
		p := NewProblemDetails(http.StatusTooManyRequests, TypeRateLimit, "Rate Limit Exceeded",
			"Too many requests. Please try again later.", r.URL.Path)
		return p.WithExtension("retry_after", 60)

	case strings.Contains(msg, "conflict"):
		return NewProblemDetails(http.StatusConflict, TypeConflict,
			"Conflict", msg, r.URL.Path)

	case strings.Contains(msg, "payload too large"):
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge,
			"Payload Too Large",
			"The request body exceeds the maximum allowed size", r.URL.Path)

	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
			"Internal Server Error",
			"An unexpected error occurred while processing your request", r.URL.Path)
	}
}

func (eh *ErrorHandler) problemFromAPIError(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType, ok := problemTypeByCode[apiErr.ErrorCode]
	if !ok {
		problemType = TypeInternal
	}

	p := NewProblemDetails(apiErr.StatusCode, problemType,
		http.StatusText(apiErr.StatusCode), apiErr.Message, r.URL.Path)
	p.WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		p.WithExtension("details", apiErr.Details)
	}

	return p
}

func (eh *ErrorHandler) problemFromAppError(appErr *AppError, r *http.Request) *ProblemDetails {
	status, problemType := http.StatusInternalServerError, TypeInternal

	switch appErr.Type {
	case ErrTypeParsing:
		status, problemType = http.StatusUnprocessableEntity, TypeDatasetUnparsable
	case ErrTypeValidation:
		status, problemType = http.StatusBadRequest, TypeValidation
	case ErrTypeNotFound:
		status, problemType = http.StatusNotFound, TypeNotFound
	case ErrTypePermission:
		status, problemType = http.StatusForbidden, TypeForbidden
	case ErrTypeStorage, ErrTypeConfig:
		// Infrastructure faults stay 500s
	}

	p := NewProblemDetails(status, problemType,
		http.StatusText(status), appErr.Message, r.URL.Path)
	p.WithExtension("error_type", string(appErr.Type))

	if len(appErr.Context) > 0 {
		p.WithExtension("context", appErr.Context)
	}

	return p
}

// NotFound is the router's fallback for unmatched paths.
func (eh *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	p := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path)
	p.WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, p)
}

// MethodNotAllowed is the router's fallback for known paths hit with
// the wrong verb.
func (eh *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	p := NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path)
	p.WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, p)
}

func stackTrace() string {
	stack := make([]byte, 8192)
	return string(stack[:runtime.Stack(stack, false)])
}
