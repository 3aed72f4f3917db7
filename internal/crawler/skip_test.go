package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipRules_Skip(t *testing.T) {
	rules, err := NewSkipRules("*.tmp", "build-?")
	require.NoError(t, err)

	tests := []struct {
		name string
		skip bool
	}{
		{".git", true},
		{".svn", true},
		{"CVS", true},
		{"_darcs", true},
		{".hidden", true},
		{"scratch.tmp", true},
		{"build-1", true},
		{"build-10", false},
		{"assays", false},
		{"cvs", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.skip, rules.Skip(tt.name))
		})
	}
}

func TestSkipRules_SkipPath(t *testing.T) {
	rules, err := NewSkipRules()
	require.NoError(t, err)

	assert.True(t, rules.SkipPath("/lab/.git/objects"))
	assert.False(t, rules.SkipPath("/lab/runs/plate.csv"))
	assert.False(t, rules.SkipPath("/"))
}

func TestNewSkipRules_BadPattern(t *testing.T) {
	_, err := NewSkipRules("[")
	assert.Error(t, err)
}
