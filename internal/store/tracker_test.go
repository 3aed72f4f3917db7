package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker("", 16, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.NotEqual(t, Fingerprint("ab", ""), Fingerprint("a", "b"), "parts are separated")
}

func TestTracker_SetGetUnchanged(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Given
	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/a.txt", Container: "dav:/", Modified: mod, Fingerprint: 42}))

	// Then
	rec, ok, err := tr.Get(ctx, "dav:/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Modified.Equal(mod))
	assert.False(t, rec.IndexedAt.IsZero())

	assert.True(t, tr.Unchanged(ctx, "dav:/a.txt", 42))
	assert.False(t, tr.Unchanged(ctx, "dav:/a.txt", 43))
	assert.False(t, tr.Unchanged(ctx, "dav:/other.txt", 42))
}

func TestTracker_LargeFingerprintRoundTrips(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	fp := uint64(1<<63 + 5)

	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/a.txt", Fingerprint: fp}))
	tr.cache.Purge()

	rec, ok, err := tr.Get(ctx, "dav:/a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fp, rec.Fingerprint)
}

func TestTracker_IndexedSince(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/a.txt", Modified: mod}))

	assert.True(t, tr.IndexedSince(ctx, "dav:/a.txt", mod))
	assert.True(t, tr.IndexedSince(ctx, "dav:/a.txt", mod.Add(-time.Hour)))
	assert.False(t, tr.IndexedSince(ctx, "dav:/a.txt", mod.Add(time.Hour)))
	assert.False(t, tr.IndexedSince(ctx, "dav:/new.txt", mod))
}

func TestTracker_Forget(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/lab/a.txt", Container: "dav:/lab"}))
	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/lab/b.txt", Container: "dav:/lab"}))
	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/c.txt", Container: "dav:/"}))
	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/d.txt", Container: "dav:/"}))

	// When: forgetting one record, then a container
	require.NoError(t, tr.Forget(ctx, "dav:/d.txt"))
	require.NoError(t, tr.ForgetContainer(ctx, "dav:/lab"))

	// Then
	n, err := tr.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, _ := tr.Get(ctx, "dav:/lab/a.txt")
	assert.False(t, ok)

	// When: forgetting everything
	require.NoError(t, tr.ForgetAll(ctx))
	n, err = tr.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok, _ = tr.Get(ctx, "dav:/c.txt")
	assert.False(t, ok)
}

func TestTracker_PersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	ctx := context.Background()

	tr, err := NewTracker(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Set(ctx, Record{ID: "dav:/a.txt", Fingerprint: 9}))
	require.NoError(t, tr.Close())

	tr, err = NewTracker(path, 0, nil)
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()
	assert.True(t, tr.Unchanged(ctx, "dav:/a.txt", 9))
}
