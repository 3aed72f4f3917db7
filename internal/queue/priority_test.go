package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func TestPriority_RankOrder(t *testing.T) {
	order := []Priority{
		PriorityIdle, PriorityBackground, PriorityBulk, PriorityCrawl,
		PriorityGroup, PriorityItem, PriorityDelete, PriorityCommit,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i], order[i-1], "%s should outrank %s", order[i], order[i-1])
	}
}

func TestPriority_OrDefault(t *testing.T) {
	assert.Equal(t, PriorityBulk, PriorityUnset.OrDefault())
	assert.Equal(t, PriorityCrawl, PriorityCrawl.OrDefault())
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("Crawl")
	require.NoError(t, err)
	assert.Equal(t, PriorityCrawl, p)

	p, err = ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityUnset, p)

	_, err = ParsePriority("urgent")
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidPriority, serrors.GetCode(err))
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "background", PriorityBackground.String())
	assert.Equal(t, "priority(42)", Priority(42).String())
	assert.False(t, Priority(42).Valid())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "add", KindAdd.String())
	assert.Equal(t, "delete", KindDelete.String())
	assert.Equal(t, "run", KindRun.String())
	assert.Equal(t, "commit", KindCommit.String())
}
