/*
Package dynastore – error types.

Every error produced by this package is either a StoreError (runtime
failures, including query-plan rejections) or an ArgError (bad arguments
or schema configuration).
*/
package dynastore

import (
	"errors"
	"fmt"
)

// ErrorCode is a well-known error category string.
type ErrorCode string

const (
	ErrArgument     ErrorCode = "ArgumentError"
	ErrValidation   ErrorCode = "ValidationError"
	ErrMissing      ErrorCode = "MissingError"
	ErrNotFound     ErrorCode = "NotFoundError"
	ErrInvalidRange ErrorCode = "InvalidRange"
	ErrMissingIndex ErrorCode = "MissingIndex"
	ErrStore        ErrorCode = "StoreFailure"
)

// StoreError is the general runtime error. It carries an optional Code and
// a free-form Context map for extra debugging data. Backend failures keep
// the backend error reachable through Cause / errors.Unwrap.
type StoreError struct {
	Message string
	Code    ErrorCode
	Context map[string]any
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error { return e.Cause }

// NewError constructs a StoreError.
func NewError(msg string, opts ...func(*StoreError)) *StoreError {
	err := &StoreError{Message: msg}
	for _, o := range opts {
		o(err)
	}
	return err
}

// WithCode sets the error code.
func WithCode(c ErrorCode) func(*StoreError) {
	return func(e *StoreError) { e.Code = c }
}

// WithContext attaches a context map.
func WithContext(ctx map[string]any) func(*StoreError) {
	return func(e *StoreError) { e.Context = ctx }
}

// WithCause wraps an underlying error.
func WithCause(cause error) func(*StoreError) {
	return func(e *StoreError) { e.Cause = cause }
}

// ArgError is for invalid argument / configuration errors.
type ArgError struct {
	Message string
	Code    ErrorCode
	Context map[string]any
}

func (e *ArgError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

// NewArgError constructs an ArgError.
func NewArgError(msg string, code ...ErrorCode) *ArgError {
	c := ErrArgument
	if len(code) > 0 {
		c = code[0]
	}
	return &ArgError{Message: msg, Code: c}
}

// CodeOf extracts the ErrorCode from any error produced by this package.
// Unknown errors report an empty code.
func CodeOf(err error) ErrorCode {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	var ae *ArgError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
