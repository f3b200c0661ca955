// Package errors defines the stable error code system for cordage.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Series expansion and configuration error codes
	EInvalidSeriesSpec Code = "E_INVALID_SERIES_SPEC" // malformed series specification
	EBinding           Code = "E_BINDING"             // configuration could not be bound to its class
	ETemplate          Code = "E_TEMPLATE"            // format template references an unknown field
	EUnsupportedFormat Code = "E_UNSUPPORTED_FORMAT"  // config file extension not recognized

	// Lifecycle error codes
	EIllegalState Code = "E_ILLEGAL_STATE" // lifecycle method called in the wrong state
	EDirExists    Code = "E_DIR_EXISTS"    // exclusive output directory creation raced

	// Persistence and loading error codes
	EPersistFailed      Code = "E_PERSIST_FAILED"       // metadata or annotations could not be written
	EMetadataCorrupt    Code = "E_METADATA_CORRUPT"     // cordage.json is unreadable or invalid
	EExperimentNotFound Code = "E_EXPERIMENT_NOT_FOUND" // no cordage.json at the given path
)

// CordageError is the standard error type for cordage errors.
type CordageError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *CordageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CordageError) Unwrap() error {
	return e.Cause
}

// New creates a new CordageError with the given code and message.
func New(code Code, msg string) error {
	return &CordageError{Code: code, Msg: msg}
}

// Newf creates a new CordageError with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &CordageError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// NewWithDetails creates a new CordageError with code, message, and details.
// Details map is defensively copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &CordageError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new CordageError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &CordageError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new CordageError wrapping an underlying error with details.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &CordageError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a CordageError.
func GetCode(err error) Code {
	var ce *CordageError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// AsCordageError returns (*CordageError, true) if err is or wraps a CordageError.
func AsCordageError(err error) (*CordageError, bool) {
	var ce *CordageError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// copyDetails returns a defensive copy of the details map, or nil if empty/nil.
func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, 2 for E_USAGE, 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}
