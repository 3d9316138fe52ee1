// Package errors provides structured error types for the gaiacat pipeline.
// All errors include a category, code, message, and retryable flag so the
// build, compaction and archive stages report failures consistently.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryCrossmatch ErrorCategory = "CROSSMATCH"
	ErrCategorySource     ErrorCategory = "SOURCE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryCompaction ErrorCategory = "COMPACTION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Crossmatch codes
	CodeTableUnreadable = "TABLE_UNREADABLE"
	CodeTableMalformed  = "TABLE_MALFORMED"

	// Source codes
	CodeIndexOutOfRange = "INDEX_OUT_OF_RANGE"
	CodeFileUnreadable  = "FILE_UNREADABLE"
	CodeRowMalformed    = "ROW_MALFORMED"

	// Catalog codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeReadFailed  = "READ_FAILED"

	// Compaction codes
	CodeMergeFailed      = "MERGE_FAILED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeCleanupWithheld  = "CLEANUP_WITHHELD"

	// Storage codes
	CodeUploadFailed = "UPLOAD_FAILED"
	CodeLookupFailed = "LOOKUP_FAILED"
	CodeFileMissing  = "FILE_MISSING"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// GaiacatError is the structured error type used throughout the pipeline.
type GaiacatError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *GaiacatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *GaiacatError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *GaiacatError) Is(target error) bool {
	var t *GaiacatError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new GaiacatError.
func New(category ErrorCategory, code, message string) *GaiacatError {
	return &GaiacatError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new GaiacatError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *GaiacatError {
	return &GaiacatError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *GaiacatError) WithDetails(details map[string]interface{}) *GaiacatError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ge *GaiacatError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a GaiacatError.
func GetCategory(err error) ErrorCategory {
	var ge *GaiacatError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a GaiacatError.
func GetCode(err error) string {
	var ge *GaiacatError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// isRetryable reports whether a failure of this kind can succeed on a plain retry.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeLookupFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(message string, cause error) *GaiacatError {
	return Wrap(ErrCategoryConfig, CodeInvalidConfig, message, cause)
}

func NewCrossmatchError(code, message string, cause error) *GaiacatError {
	return Wrap(ErrCategoryCrossmatch, code, message, cause)
}

func NewSourceError(code, message string, cause error) *GaiacatError {
	return Wrap(ErrCategorySource, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *GaiacatError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewCompactionError(code, message string, cause error) *GaiacatError {
	return Wrap(ErrCategoryCompaction, code, message, cause)
}

func NewStorageError(code, message string, cause error) *GaiacatError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *GaiacatError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
