package errors

import (
	"errors"
	"fmt"
)

// SearchError is the structured error type used across labsearch.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_403_QUEUE_FULL").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches another SearchError by code, so errors.Is(err, ErrQueueFull)
// holds for any error carrying the queue-full code.
func (e *SearchError) Is(target error) bool {
	var t *SearchError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user-facing hint.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// New creates a SearchError. Category, severity and retryability are derived
// from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SearchError from an existing error, reusing its message.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O error.
func IOError(message string, cause error) *SearchError {
	return New(ErrCodeResourceIO, message, cause)
}

// NetworkError creates a retryable network error.
func NetworkError(message string, cause error) *SearchError {
	return New(ErrCodeRemoteUnavailable, message, cause)
}

// ValidationError creates a validation error.
func ValidationError(message string, cause error) *SearchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// Sentinels compared with errors.Is. Call sites wrap them with context.
var (
	ErrQueueFull          = New(ErrCodeQueueFull, "work queue is full", nil)
	ErrInvalidIdentifier  = New(ErrCodeInvalidIdentifier, "identifier must have the form <prefix>:<path>", nil)
	ErrNoResolver         = New(ErrCodeNoResolver, "no resolver registered for prefix", nil)
	ErrResourceNotFound   = New(ErrCodeResourceNotFound, "resource not found", nil)
	ErrIndexLocked        = New(ErrCodeIndexLocked, "index directory is locked by another process", nil)
	ErrServiceStopped     = New(ErrCodeServiceStopped, "search service is not running", nil)
	ErrShutdownTimeout    = New(ErrCodeShutdownTimeout, "worker did not stop within the grace period", nil)
	ErrEmptyQuery         = New(ErrCodeQueryEmpty, "query must not be empty", nil)
	ErrUnsupportedContent = New(ErrCodeUnsupportedContent, "content type cannot be extracted", nil)
	ErrUnknownCategory    = New(ErrCodeUnknownCategory, "unknown search category", nil)
)

// IsRetryable reports whether err is a SearchError marked retryable.
func IsRetryable(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal reports whether err has fatal severity.
func IsFatal(err error) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" when err is not a SearchError.
func GetCode(err error) string {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category, or "" when err is not a SearchError.
func GetCategory(err error) Category {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
