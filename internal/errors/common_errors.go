package errors

import "fmt"

// ErrorType classifies an AppError so the HTTP layer can map it to a
// status without inspecting messages.
type ErrorType string

const (
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypePermission ErrorType = "PERMISSION"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError is the error currency of the service layer. Handlers never
// build HTTP responses from it directly; the error handler translates
// by Type.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (ae *AppError) Error() string {
	if ae.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", ae.Type, ae.Message, ae.Cause)
	}
	return fmt.Sprintf("[%s] %s", ae.Type, ae.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (ae *AppError) Unwrap() error {
	return ae.Cause
}

// WithContext attaches a key/value pair for structured logging.
func (ae *AppError) WithContext(key string, value any) *AppError {
	if ae.Context == nil {
		ae.Context = map[string]any{}
	}
	ae.Context[key] = value
	return ae
}

// NewAppError builds an AppError of the given type.
func NewAppError(t ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:    t,
		Message: msg,
		Cause:   cause,
		Context: map[string]any{},
	}
}

// NewParsingError wraps a dataset parse failure.
func NewParsingError(msg string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, msg, cause)
}

// NewStorageError wraps a filesystem or store failure.
func NewStorageError(msg string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, msg, cause)
}

// NewAppValidationError reports invalid input at the service layer.
func NewAppValidationError(msg string) *AppError {
	return NewAppError(ErrTypeValidation, msg, nil)
}

// NewNotFoundError reports a missing resource by name.
func NewNotFoundError(name string) *AppError {
	return NewAppError(ErrTypeNotFound, name+" not found", nil)
}

// NewPermissionError reports an access violation, typically a path
// escaping its configured root.
func NewPermissionError(msg string) *AppError {
	return NewAppError(ErrTypePermission, msg, nil)
}

// NewConfigError reports unusable configuration.
func NewConfigError(msg string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, msg, cause)
}
