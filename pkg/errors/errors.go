package errors

import (
	"errors"
	"fmt"
)

// AppError is the structured error type used across the module. It carries a
// stable machine-readable Code, a human-readable Message, and an optional
// wrapped Cause.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New builds an AppError with the given code, message and optional cause.
func New(code string, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Wrap attaches a message to an existing error. If err is already an
// AppError its code is preserved; otherwise the error is classified as
// CodeInternal.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message, Cause: err}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code string) bool {
	var ae *AppError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == code
}

// CodeOf extracts the Code of an AppError, or CodeInternal if err is not one.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	if err == nil {
		return ""
	}
	return CodeInternal
}

// Generic, HTTP/gRPC-flavored codes shared by every adapter package.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInternal        = "INTERNAL"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeConflict        = "CONFLICT"
	CodeTimeout         = "TIMEOUT"
	CodeUnavailable     = "UNAVAILABLE"
)

// Shorthand constructors for the generic codes above.

func NotFound(message string, cause error) *AppError {
	return New(CodeNotFound, message, cause)
}

func Invalid(message string, cause error) *AppError {
	return New(CodeInvalidArgument, message, cause)
}

func Internal(message string, cause error) *AppError {
	return New(CodeInternal, message, cause)
}

func Unauthorized(message string, cause error) *AppError {
	return New(CodeUnauthorized, message, cause)
}

func Conflict(message string, cause error) *AppError {
	return New(CodeConflict, message, cause)
}

func Timeout(message string, cause error) *AppError {
	return New(CodeTimeout, message, cause)
}

func Unavailable(message string, cause error) *AppError {
	return New(CodeUnavailable, message, cause)
}

// HTTPStatus maps a Code to the HTTP status code an API adapter should
// return for it. Unknown codes map to 500.
func HTTPStatus(code string) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeInvalidArgument:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeConflict:
		return 409
	case CodeTimeout:
		return 504
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}
