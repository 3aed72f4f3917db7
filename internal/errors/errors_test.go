package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeResourceNotFound, CategoryIO},
		{ErrCodeRemoteUnavailable, CategoryNetwork},
		{ErrCodeQueueFull, CategoryValidation},
		{ErrCodeCommitFailed, CategoryInternal},
		{"BAD", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestNew_RetryableAndSeverity(t *testing.T) {
	// Given: a transient remote failure and a corrupt index
	remote := New(ErrCodeRemoteUnavailable, "down", nil)
	corrupt := New(ErrCodeCorruptIndex, "bad segment", nil)

	// Then
	assert.True(t, remote.Retryable)
	assert.Equal(t, SeverityWarning, remote.Severity)
	assert.False(t, corrupt.Retryable)
	assert.Equal(t, SeverityFatal, corrupt.Severity)
	assert.True(t, IsFatal(corrupt))
}

func TestSearchError_ErrorFormat(t *testing.T) {
	err := New(ErrCodeQueueFull, "work queue is full", nil)
	assert.Equal(t, "[ERR_403_QUEUE_FULL] work queue is full", err.Error())
}

func TestSearchError_IsMatchesByCodeThroughWrapping(t *testing.T) {
	// Given: a sentinel wrapped with call-site context
	err := fmt.Errorf("enqueue dav:/a.txt: %w", ErrQueueFull)

	// Then: errors.Is sees through fmt wrapping
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.False(t, errors.Is(err, ErrNoResolver))
	assert.Equal(t, ErrCodeQueueFull, GetCode(err))
	assert.Equal(t, CategoryValidation, GetCategory(err))
}

func TestSearchError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := IOError("open index", cause)

	assert.ErrorIs(t, err, cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := ValidationError("bad priority", nil).
		WithDetail("priority", "urgent").
		WithSuggestion("use one of idle, background, bulk, crawl")

	require.NotNil(t, err.Details)
	assert.Equal(t, "urgent", err.Details["priority"])
	assert.Contains(t, err.Suggestion, "crawl")
}

func TestHelpers_ForeignErrors(t *testing.T) {
	plain := errors.New("plain")

	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetCategory(plain))
	assert.False(t, IsRetryable(nil))
}
