package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeStrings(t *testing.T) {
	wire := map[ErrorType]string{
		ErrTypeParsing:    "PARSING",
		ErrTypeStorage:    "STORAGE",
		ErrTypeValidation: "VALIDATION",
		ErrTypeNotFound:   "NOT_FOUND",
		ErrTypePermission: "PERMISSION",
		ErrTypeConfig:     "CONFIG",
	}

	for et, want := range wire {
		assert.Equal(t, want, string(et))
	}
}

func TestAppErrorMessageFormat(t *testing.T) {
	cases := []struct {
		name string
		in   *AppError
		want string
	}{
		{
			"with cause",
			&AppError{Type: ErrTypeParsing, Message: "failed to parse dataset", Cause: errors.New("unexpected EOF")},
			"[PARSING] failed to parse dataset: unexpected EOF",
		},
		{
			"without cause",
			&AppError{Type: ErrTypeValidation, Message: "column name is required"},
			"[VALIDATION] column name is required",
		},
		{
			"not found",
			&AppError{Type: ErrTypeNotFound, Message: "sample not found"},
			"[NOT_FOUND] sample not found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Error())
		})
	}
}

func TestAppErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	appErr := NewStorageError("failed to write export", cause)

	assert.Equal(t, cause, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, cause))
}

func TestAppErrorUnwrapNilCause(t *testing.T) {
	appErr := NewAppValidationError("bad input")
	assert.Nil(t, appErr.Unwrap())
}

func TestWithContextChaining(t *testing.T) {
	appErr := NewParsingError("row skipped", nil).
		WithContext("line", 42).
		WithContext("fields", 5)

	require.NotNil(t, appErr.Context)
	assert.Equal(t, 42, appErr.Context["line"])
	assert.Equal(t, 5, appErr.Context["fields"])
}

func TestWithContextAllocatesMap(t *testing.T) {
	appErr := &AppError{Type: ErrTypeConfig, Message: "bad config"}
	appErr.WithContext("key", "value")

	require.NotNil(t, appErr.Context)
	assert.Equal(t, "value", appErr.Context["key"])
}

func TestNewAppErrorFields(t *testing.T) {
	cause := fmt.Errorf("wrapped: %w", errors.New("root"))
	appErr := NewAppError(ErrTypeStorage, "storage failure", cause)

	assert.Equal(t, ErrTypeStorage, appErr.Type)
	assert.Equal(t, "storage failure", appErr.Message)
	assert.Equal(t, cause, appErr.Cause)
	assert.NotNil(t, appErr.Context)
}

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("underlying")

	cases := []struct {
		name string
		in   *AppError
		want ErrorType
	}{
		{"parsing", NewParsingError("parse failed", cause), ErrTypeParsing},
		{"storage", NewStorageError("write failed", cause), ErrTypeStorage},
		{"validation", NewAppValidationError("invalid"), ErrTypeValidation},
		{"not found", NewNotFoundError("dataset"), ErrTypeNotFound},
		{"permission", NewPermissionError("outside sample directory"), ErrTypePermission},
		{"config", NewConfigError("bad yaml", cause), ErrTypeConfig},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NotNil(t, tc.in)
			assert.Equal(t, tc.want, tc.in.Type)
			assert.NotEmpty(t, tc.in.Message)
		})
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	appErr := NewNotFoundError("column ph")
	assert.Equal(t, "column ph not found", appErr.Message)
}

func TestAppErrorErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("loading sample: %w", NewPermissionError("path escapes sample directory"))

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypePermission, appErr.Type)
}
