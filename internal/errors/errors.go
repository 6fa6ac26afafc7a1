// Package errors provides coded domain errors for the territory pipeline.
//
// Usage:
//
//	// In clients and resolvers - return typed errors
//	if resp.StatusCode == http.StatusTooManyRequests {
//	    return errors.Transient("rate limited by upstream")
//	}
//
//	// In the retry loop - branch on the class
//	if errors.IsTransient(err) {
//	    // back off and try again
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodePermanent:
//	        report.Unresolved(...)
//	    case errors.CodeConfiguration:
//	        return err
//	    }
//	}
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	// CodeTransient marks failures worth retrying: timeouts, throttling, 5xx.
	CodeTransient Code = "TRANSIENT"
	// CodeTransientExhausted marks a transient failure whose retry budget ran out.
	CodeTransientExhausted Code = "TRANSIENT_EXHAUSTED"
	// CodePermanent marks failures that will not change on retry.
	CodePermanent Code = "PERMANENT"
	// CodeConfiguration marks invalid input configuration: bad boundary, unknown grouping.
	CodeConfiguration Code = "CONFIGURATION"
	// CodeDegenerate marks numerically degenerate geometry input.
	CodeDegenerate Code = "DEGENERATE"
	CodeNotFound   Code = "NOT_FOUND"
	CodeValidation Code = "VALIDATION"
	CodeInternal   Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeConfiguration:
		return http.StatusBadRequest
	case CodeTransient, CodeTransientExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrTransient          = &Error{Code: CodeTransient, Message: "transient failure"}
	ErrTransientExhausted = &Error{Code: CodeTransientExhausted, Message: "retries exhausted"}
	ErrPermanent          = &Error{Code: CodePermanent, Message: "permanent failure"}
	ErrConfiguration      = &Error{Code: CodeConfiguration, Message: "invalid configuration"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// Transient creates a retryable error.
func Transient(msg string) *Error {
	return &Error{Code: CodeTransient, Message: msg}
}

// Permanent creates a non-retryable error.
func Permanent(msg string) *Error {
	return &Error{Code: CodePermanent, Message: msg}
}

// Permanentf creates a non-retryable error with formatted message.
func Permanentf(format string, args ...any) *Error {
	return &Error{Code: CodePermanent, Message: fmt.Sprintf(format, args...)}
}

// Configuration creates a configuration error.
func Configuration(msg string) *Error {
	return &Error{Code: CodeConfiguration, Message: msg}
}

// Configurationf creates a configuration error with formatted message.
func Configurationf(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Degeneratef creates a numerical degeneracy error with formatted message.
func Degeneratef(format string, args ...any) *Error {
	return &Error{Code: CodeDegenerate, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the outermost *Error in err's chain.
// Context cancellation maps to CodeTransient; anything else uncoded is CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTransient
	}
	return CodeInternal
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return CodeOf(err) == CodeTransient
}

// IsPermanent reports whether err is a permanent failure.
func IsPermanent(err error) bool {
	return CodeOf(err) == CodePermanent
}
