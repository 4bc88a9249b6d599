package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/k-laffite/water-quality-visualizer/internal/config"
	apierrors "github.com/k-laffite/water-quality-visualizer/internal/errors"
)

// ValidationMiddleware checks request bodies before any handler decodes
// them, and backs the tag-driven struct validation handlers use on
// their own payloads.
type ValidationMiddleware struct {
	validator   *validator.Validate
	logger      *slog.Logger
	errHandler  *apierrors.ErrorHandler
	maxBodySize int64
}

// NewValidationMiddleware builds the middleware with the dataset rules
// registered on top of the standard validator tags. maxBytes is the
// configured upload cap; values at or below zero fall back to the
// default. The body gate sits slightly above the cap so a full-size
// upload still fits once multipart framing is added.
func NewValidationMiddleware(logger *slog.Logger, eh *apierrors.ErrorHandler, maxBytes int64) *ValidationMiddleware {
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadBytes
	}

	v := validator.New()

	v.RegisterValidation("iso8601", validateISO8601)
	v.RegisterValidation("filename", validateFilename)
	v.RegisterValidation("samplefile", validateSampleFile)

	// Report fields under their json names, not the Go ones
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	vm := &ValidationMiddleware{
		validator:   v,
		logger:      logger.With(slog.String("component", "validation_middleware")),
		errHandler:  eh,
		maxBodySize: maxBytes + config.UploadEnvelopeSlack,
	}
	return vm
}

// ValidateRequest rejects oversized bodies and, for JSON requests,
// bodies that do not even parse. Anything it lets through is restored
// so handlers can read it again.
func (vm *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > vm.maxBodySize {
			vm.errHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body exceeds maximum allowed size",
				map[string]any{"limit": vm.maxBodySize, "received": r.ContentLength}))
			return
		}

		if r.Body == nil || r.ContentLength <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, vm.maxBodySize))
		if err != nil {
			ctx := r.Context()
			vm.logger.ErrorContext(ctx, "Request body read failed",
				slog.String("request_id", GetReqID(ctx)),
				slog.String("error", err.Error()))
			vm.errHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}

		// Hand the handler a fresh reader over the same bytes
		r.Body = io.NopCloser(bytes.NewReader(raw))

		// Only JSON gets a syntax check here; CSV and multipart
		// uploads are the upload handler's problem
		if len(raw) > 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") && !json.Valid(raw) {
			vm.errHandler.HandleError(w, r, apierrors.New(
				http.StatusBadRequest, "INVALID_JSON", "Request body contains invalid JSON"))
			return
		}

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// ValidateStruct runs tag validation on a decoded payload and converts
// any failures into the API's validation error shape.
func (vm *ValidationMiddleware) ValidateStruct(payload any) error {
	err := vm.validator.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	issues := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: fieldErrorMessage(fe),
		})
	}
	return apierrors.NewValidationErrors(issues)
}

// ContentTypeValidator gates write methods on an allowed Content-Type
// prefix list. Failures go through the shared error handler so the
// response shape matches every other API error.
func ContentTypeValidator(eh *apierrors.ErrorHandler, accepted ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodDelete:
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			if ct == "" {
				eh.HandleError(w, r, apierrors.New(
					http.StatusBadRequest, "MISSING_CONTENT_TYPE", "Content-Type header is required"))
				return
			}

			// Prefix match, so "text/csv; charset=utf-8" passes a
			// "text/csv" allowance
			ok := slices.ContainsFunc(accepted, func(want string) bool {
				return strings.HasPrefix(ct, want)
			})
			if !ok {
				eh.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Unsupported content type",
					map[string]any{"content_type": ct, "allowed": accepted}))
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// fieldErrorMessage turns a single field failure into a message a
// frontend can show as-is.
func fieldErrorMessage(err validator.FieldError) string {
	field, param := err.Field(), err.Param()

	switch err.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + param
	case "max":
		return field + " must be at most " + param
	case "len":
		return field + " must be exactly " + param + " characters"
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "uuid":
		return field + " must be a valid UUID"
	case "iso8601":
		return field + " must be a valid ISO8601 date"
	case "filename":
		return field + " must be a valid filename"
	case "samplefile":
		return field + " must be a .csv or .xlsx file name"
	case "gte":
		return field + " must be greater than or equal to " + param
	case "lte":
		return field + " must be less than or equal to " + param
	case "gt":
		return field + " must be greater than " + param
	case "lt":
		return field + " must be less than " + param
	case "gtefield":
		return field + " must be greater than or equal to " + strings.ToLower(param)
	default:
		return field + " failed " + err.Tag() + " validation"
	}
}

// validateISO8601 accepts plain dates (2006-01-02) and RFC 3339
// timestamps.
func validateISO8601(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// validateFilename rejects empty, oversized, and traversal-shaped
// names.
func validateFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	switch {
	case name == "", len(name) > 255:
		return false
	case strings.Contains(name, ".."), strings.ContainsAny(name, `/\`):
		return false
	}
	return true
}

// validateSampleFile additionally requires one of the dataset
// extensions.
func validateSampleFile(fl validator.FieldLevel) bool {
	if !validateFilename(fl) {
		return false
	}
	switch strings.ToLower(filepath.Ext(fl.Field().String())) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
