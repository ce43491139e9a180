package errors

import (
	"fmt"
)

// EngineError is the structured error type for the vektor engine.
// It provides rich context for error handling, logging, and user presentation.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_402_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with EngineError.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new EngineError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new EngineError with a formatted message.
func Newf(code string, format string, args ...any) *EngineError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an EngineError from an existing error.
// The error's message becomes the EngineError message.
func Wrap(code string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidArgument creates a validation error for a bad caller-supplied value.
func InvalidArgument(message string) *EngineError {
	return New(ErrCodeInvalidArgument, message, nil)
}

// DimensionMismatch creates the canonical dimension error.
func DimensionMismatch(expected, got int) *EngineError {
	return Newf(ErrCodeDimensionMismatch, "dimension mismatch: expected %d, got %d", expected, got)
}

// NotFound creates an error for a missing ordinal or key.
func NotFound(what string, id uint64) *EngineError {
	return Newf(ErrCodeNotFound, "%s %d not found", what, id)
}

// AlreadyDeleted creates an error for a tombstoned row.
func AlreadyDeleted(ordinal uint64) *EngineError {
	return Newf(ErrCodeAlreadyDeleted, "row %d is deleted", ordinal)
}

// FormatError creates an on-disk format error (bad magic, version, or
// layout). CRC mismatches carry ErrCodeCorruptSnapshot or ErrCodeWALCorrupt
// instead.
func FormatError(message string) *EngineError {
	return New(ErrCodeFormat, message, nil)
}

// IOError wraps a disk read/write/open failure.
func IOError(message string, cause error) *EngineError {
	return New(ErrCodeIOFailed, message, cause)
}

// NotTrained creates an error for codebook-requiring operations before build.
func NotTrained(message string) *EngineError {
	return New(ErrCodeNotTrained, message, nil)
}

// Internal creates an internal error.
func Internal(message string, cause error) *EngineError {
	return New(ErrCodeInternal, message, cause)
}

// IsNotFound reports whether err carries the not-found code.
func IsNotFound(err error) bool {
	return GetCode(err) == ErrCodeNotFound
}

// IsAlreadyDeleted reports whether err carries the already-deleted code.
func IsAlreadyDeleted(err error) bool {
	return GetCode(err) == ErrCodeAlreadyDeleted
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ee, ok := err.(*EngineError); ok {
		return ee.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an EngineError.
// Returns empty string if not an EngineError.
func GetCode(err error) string {
	if ee, ok := err.(*EngineError); ok {
		return ee.Code
	}
	return ""
}

// GetCategory extracts the category from an EngineError.
// Returns empty string if not an EngineError.
func GetCategory(err error) Category {
	if ee, ok := err.(*EngineError); ok {
		return ee.Category
	}
	return ""
}
