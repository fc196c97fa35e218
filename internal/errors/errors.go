// Package errors provides structured error types for the fieldconv engine.
// All errors include a category, code, message, and retryable flag so the
// caller can map a failed conversion run to a process-level exit condition.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by conversion phase.
type ErrorCategory string

const (
	ErrCategoryAcquisition ErrorCategory = "ACQUISITION"
	ErrCategorySchema      ErrorCategory = "SCHEMA"
	ErrCategoryValidation  ErrorCategory = "VALIDATION"
	ErrCategoryWrite       ErrorCategory = "WRITE"
	ErrCategoryInternal    ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Acquisition codes
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeSchemaMismatch    = "SCHEMA_MISMATCH"

	// Schema resolution codes
	CodeExtensionUnresolved = "EXTENSION_UNRESOLVED"
	CodeInvalidFragment     = "INVALID_FRAGMENT"

	// Validation codes
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
	CodeConstraintViolation  = "CONSTRAINT_VIOLATION"
	CodeCoercionFailed       = "COERCION_FAILED"
	CodeInvalidSpec          = "INVALID_SPEC"

	// Write codes
	CodeWriteFailure = "WRITE_FAILURE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// ConversionError is the structured error type used throughout the engine.
type ConversionError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *ConversionError) Is(target error) bool {
	var t *ConversionError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new ConversionError.
func New(category ErrorCategory, code, message string) *ConversionError {
	return &ConversionError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new ConversionError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *ConversionError {
	return &ConversionError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *ConversionError) WithDetails(details map[string]interface{}) *ConversionError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a ConversionError.
func GetCategory(err error) ErrorCategory {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a ConversionError.
func GetCode(err error) string {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only transient
// network acquisition failures qualify; everything else aborts the run.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryAcquisition && code == CodeSourceUnavailable
}

// Convenience constructors for common errors.

func NewSourceError(message string, cause error) *ConversionError {
	return Wrap(ErrCategoryAcquisition, CodeSourceUnavailable, message, cause)
}

func NewSchemaMismatchError(message string) *ConversionError {
	return New(ErrCategoryAcquisition, CodeSchemaMismatch, message)
}

func NewExtensionError(extensionID string, cause error) *ConversionError {
	return Wrap(ErrCategorySchema, CodeExtensionUnresolved,
		fmt.Sprintf("extension schema %q could not be resolved", extensionID), cause)
}

func NewValidationError(code, message string) *ConversionError {
	return New(ErrCategoryValidation, code, message)
}

func NewWriteError(message string, cause error) *ConversionError {
	return Wrap(ErrCategoryWrite, CodeWriteFailure, message, cause)
}

func NewInternalError(message string, cause error) *ConversionError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
