package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Flow error codes
const (
	ErrSchemaConfiguration ErrorCode = "SCHEMA_CONFIGURATION"
	ErrInputValidation     ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrBackendCallFailed   ErrorCode = "BACKEND_CALL_FAILED"
	ErrOutputValidation    ErrorCode = "OUTPUT_VALIDATION_FAILED"
	ErrFlowNotFound        ErrorCode = "FLOW_NOT_FOUND"
)

// Transport error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// FieldError identifies a single field-level constraint violation.
type FieldError struct {
	Path       string `json:"path"`
	Constraint string `json:"constraint,omitempty"`
	Message    string `json:"message"`
}

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode    `json:"code"`
	Message    string       `json:"message"`
	HTTPStatus int          `json:"http_status,omitempty"`
	Retryable  bool         `json:"retryable"`
	Provider   string       `json:"provider,omitempty"`
	Flow       string       `json:"flow,omitempty"`
	Fields     []FieldError `json:"fields,omitempty"`
	Cause      error        `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Flow != "" {
		prefix = fmt.Sprintf("[%s] %s:", e.Code, e.Flow)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the backend provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithFlow sets the flow name the error belongs to.
func (e *Error) WithFlow(name string) *Error {
	e.Flow = name
	return e
}

// WithFields attaches field-level violations.
func (e *Error) WithFields(fields ...FieldError) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
