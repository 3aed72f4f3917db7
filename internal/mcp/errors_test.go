package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", fmt.Errorf("search: %w", context.Canceled), ErrCodeTimeout},
		{"tool not found", ErrToolNotFound, ErrCodeMethodNotFound},
		{"invalid params", ErrInvalidParams, ErrCodeInvalidParams},
		{"service stopped", serrors.ErrServiceStopped, ErrCodeServiceStopped},
		{"not found", fmt.Errorf("find: %w", serrors.ErrResourceNotFound), ErrCodeNotFound},
		{"empty query", serrors.ErrEmptyQuery, ErrCodeInvalidParams},
		{"network", serrors.NetworkError("remote down", nil), ErrCodeTimeout},
		{"config", serrors.ConfigError("bad", nil), ErrCodeInternalError},
		{"plain", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("query parameter is required")

	got := MapError(fmt.Errorf("wrapped: %w", orig))

	assert.Same(t, orig, got)
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := serrors.New(serrors.ErrCodeInvalidInput, "limit out of range", nil).
		WithSuggestion("use 1-100")

	got := MapError(err)

	assert.Equal(t, ErrCodeInvalidParams, got.Code)
	assert.Equal(t, "limit out of range use 1-100", got.Message)
}
