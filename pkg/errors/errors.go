// Package errors provides structured error types for ssrpreload.
//
// Errors carry a machine-readable Code so callers can tell build-breaking
// failures apart from the recoverable ones that are only logged:
//
//   - CONFIGURATION: missing or malformed manifest, template or config (fatal at startup)
//   - RESOLUTION: a lazy-load target that does not resolve to a module (fatal to the build)
//   - GRAPH_GAP: a reported or imported id with no manifest entry (logged, skipped)
//   - SHAPE_MISMATCH: a lazy target whose default export is not a function (logged)
//   - RENDER: the rendering engine failed
//   - CANCELED: the client went away mid-stream
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfiguration, "manifest not found: %s", path)
//	if errors.Is(err, errors.ErrCodeConfiguration) {
//	    // abort startup
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeRender, cause, "render %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Fatal at startup or build time
	ErrCodeConfiguration Code = "CONFIGURATION"
	ErrCodeResolution    Code = "RESOLUTION"

	// Recoverable, logged
	ErrCodeGraphGap      Code = "GRAPH_GAP"
	ErrCodeShapeMismatch Code = "SHAPE_MISMATCH"

	// Request time
	ErrCodeRender   Code = "RENDER"
	ErrCodeCanceled Code = "CANCELED"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidTemplate Code = "INVALID_TEMPLATE"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
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

// IsFatal reports whether err breaks startup or the build.
// Only configuration and resolution failures are fatal; everything that
// happens while serving a request is recovered from.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeConfiguration, ErrCodeResolution:
		return true
	}
	return false
}
