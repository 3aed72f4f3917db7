// Package errors provides structured error handling for labsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (resources, index storage)
//   - 3XX: Network errors (remote backends, HTTP resources)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"
	ErrCodeUnknownBackend   = "ERR_104_UNKNOWN_BACKEND"

	// IO errors (200-299)
	ErrCodeResourceNotFound   = "ERR_201_RESOURCE_NOT_FOUND"
	ErrCodeResourceIO         = "ERR_202_RESOURCE_IO"
	ErrCodeDiskFull           = "ERR_203_DISK_FULL"
	ErrCodeCorruptIndex       = "ERR_205_CORRUPT_INDEX"
	ErrCodeIndexLocked        = "ERR_206_INDEX_LOCKED"
	ErrCodeUnsupportedContent = "ERR_207_UNSUPPORTED_CONTENT"

	// Network errors (300-399)
	ErrCodeNetworkTimeout    = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeRemoteUnavailable = "ERR_302_REMOTE_UNAVAILABLE"
	ErrCodeRemoteRejected    = "ERR_303_REMOTE_REJECTED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidIdentifier = "ERR_402_INVALID_IDENTIFIER"
	ErrCodeQueueFull         = "ERR_403_QUEUE_FULL"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidPriority   = "ERR_405_INVALID_PRIORITY"
	ErrCodeInvalidPath       = "ERR_406_INVALID_PATH"
	ErrCodeNoResolver        = "ERR_407_NO_RESOLVER"
	ErrCodeUnknownCategory   = "ERR_408_UNKNOWN_CATEGORY"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeIndexFailed     = "ERR_502_INDEX_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeCommitFailed    = "ERR_504_COMMIT_FAILED"
	ErrCodeServiceStopped  = "ERR_505_SERVICE_STOPPED"
	ErrCodeShutdownTimeout = "ERR_506_SHUTDOWN_TIMEOUT"
)

// categoryFromCode extracts the category from the numeric part of a code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull:
		return SeverityFatal
	case ErrCodeQueueFull, ErrCodeUnsupportedContent:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether the failure is transient.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeRemoteUnavailable, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
