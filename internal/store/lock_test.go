package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func TestDirLock_ExclusiveWithinDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	// Given: a held lock
	first := NewDirLock(dir)
	require.NoError(t, first.TryLock())
	defer func() { _ = first.Unlock() }()
	assert.True(t, first.IsLocked())
	assert.Equal(t, filepath.Join(dir, ".lock"), first.Path())

	// When: a second lock on the same directory
	second := NewDirLock(dir)
	err := second.TryLock()

	// Then
	assert.ErrorIs(t, err, serrors.ErrIndexLocked)
	assert.False(t, second.IsLocked())
}

func TestDirLock_UnlockReleases(t *testing.T) {
	dir := t.TempDir()

	first := NewDirLock(dir)
	require.NoError(t, first.TryLock())
	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock(), "unlock is idempotent")

	second := NewDirLock(dir)
	require.NoError(t, second.TryLock())
	_ = second.Unlock()
}
