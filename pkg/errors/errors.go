// Package errors provides structured error types for the geoviewer.
//
// Every failure raised by a public viewer operation carries a [Code] so that
// control widgets (the TUI, the HTTP API) can react to the category of the
// failure without string matching.
//
// # Error Codes
//
//   - NAME_CONFLICT: a graph name collides with a registered graph or habitat
//   - DUPLICATE_NAME: a layer name or render identity is already registered
//   - NOT_FOUND: a kind/name/subtype path does not exist
//   - PRECONDITION: the viewer is not in a state that allows the operation
//   - INVALID_*: input or configuration validation failures
//   - INTERNAL: unexpected collaborator failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotFound, "no layer %s/%s", kind, name)
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // Handle missing layer
//	}
//
//	// Wrap collaborator errors
//	err := errors.Wrap(errors.ErrCodeInternal, origErr, "compute metrics for %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Registry errors
	ErrCodeNameConflict  Code = "NAME_CONFLICT"
	ErrCodeDuplicateName Code = "DUPLICATE_NAME"
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodePrecondition  Code = "PRECONDITION"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidCRS    Code = "UNSUPPORTED_CRS"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
