package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/labsearch/internal/store"
)

func TestFormatSearchResults_NoHits(t *testing.T) {
	assert.Equal(t, `No results found for "zebra"`, FormatSearchResults("zebra", &store.Result{}, 1))
	assert.Equal(t, `No results found for "zebra"`, FormatSearchResults("zebra", nil, 1))
}

func TestFormatSearchResults_SingleHitUsesIDWhenUntitled(t *testing.T) {
	res := &store.Result{Total: 1, Hits: []*store.Hit{{ID: "s3:/bucket/a.pdf", Score: 0.5}}}

	text := FormatSearchResults("a", res, 3)

	assert.Contains(t, text, "Showing 1 of 1 result (page 3)")
	assert.Contains(t, text, "### 1. s3:/bucket/a.pdf (score: 0.50)")
	assert.NotContains(t, text, "[open]")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, want int
	}{
		{-1, 10},
		{0, 10},
		{1, 1},
		{50, 50},
		{101, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.limit, 10, 1, 100), "limit %d", tt.limit)
	}
}

func TestToHitOutput_Nil(t *testing.T) {
	assert.Equal(t, HitOutput{}, ToHitOutput(nil))
}
