package flow

import (
	"errors"
	"fmt"

	"github.com/BaSui01/genflow/schema"
	"github.com/BaSui01/genflow/types"
)

// Kind is the failure category of an invocation.
type Kind = types.ErrorCode

// KindOf returns the error code carried by err, or "" when err is not a flow error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if te, ok := types.AsError(err); ok {
		return te.Code
	}
	var se *schema.SchemaError
	if errors.As(err, &se) {
		return types.ErrSchemaConfiguration
	}
	return ""
}

// RawOutputError keeps the backend text that failed output validation.
type RawOutputError struct {
	Raw string
	Err error
}

func (e *RawOutputError) Error() string { return e.Err.Error() }

func (e *RawOutputError) Unwrap() error { return e.Err }

// RawOutput returns the backend text attached to an output validation failure.
func RawOutput(err error) (string, bool) {
	var re *RawOutputError
	if errors.As(err, &re) {
		return re.Raw, true
	}
	return "", false
}

// FieldErrors returns the field violations carried by err.
func FieldErrors(err error) []types.FieldError {
	if te, ok := types.AsError(err); ok && len(te.Fields) > 0 {
		return te.Fields
	}
	var ve *schema.ValidationErrors
	if errors.As(err, &ve) {
		return ve.Fields()
	}
	return nil
}

func configError(flow, format string, args ...any) *types.Error {
	return types.NewError(types.ErrSchemaConfiguration, fmt.Sprintf(format, args...)).WithFlow(flow)
}

func notFoundError(flow string) *types.Error {
	return types.NewError(types.ErrFlowNotFound, fmt.Sprintf("flow %q is not registered", flow)).WithFlow(flow)
}

func inputError(flow string, ve *schema.ValidationErrors) *types.Error {
	return types.NewError(types.ErrInputValidation, "input does not match the flow input schema").
		WithFlow(flow).
		WithFields(ve.Fields()...).
		WithCause(ve)
}

func backendError(flow, provider, msg string, cause error) *types.Error {
	e := types.NewError(types.ErrBackendCallFailed, msg).WithFlow(flow).WithProvider(provider)
	if cause != nil {
		e = e.WithCause(cause).WithRetryable(isRetryableCause(cause))
	}
	return e
}

func outputError(flow, raw, msg string, cause error) *types.Error {
	e := types.NewError(types.ErrOutputValidation, msg).WithFlow(flow)
	var ve *schema.ValidationErrors
	if errors.As(cause, &ve) {
		e = e.WithFields(ve.Fields()...)
	}
	return e.WithCause(&RawOutputError{Raw: raw, Err: cause})
}

// wrapSchemaError converts a schema self-check failure into a configuration error.
func wrapSchemaError(flow, what string, err error) *types.Error {
	return configError(flow, "invalid %s", what).WithCause(err)
}
