package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveBackend_PersistsAcrossReopen(t *testing.T) {
	// Given: a committed document on disk
	path := filepath.Join(t.TempDir(), "index.bleve")
	b, err := NewBleveBackend(path, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, b.Index(ctx, doc("dav:/a.txt", "Alpha", "centrifuge protocol", "dav:/")))
	require.NoError(t, b.Commit(ctx))
	require.NoError(t, b.Close())

	// When: reopened
	b, err = NewBleveBackend(path, nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	// Then
	res, err := b.Search(ctx, Query{Text: "centrifuge"})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
}

func TestBleveBackend_StemsEnglish(t *testing.T) {
	b, err := NewBleveBackend("", nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	ctx := context.Background()

	require.NoError(t, b.Index(ctx, doc("dav:/a.txt", "A", "running assays", "dav:/")))
	require.NoError(t, b.Commit(ctx))

	res, err := b.Search(ctx, Query{Text: "assay"})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
}

func TestBleveBackend_RecoversCorruptIndex(t *testing.T) {
	// Given: an index directory with an empty meta file
	path := filepath.Join(t.TempDir(), "index.bleve")
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), nil, 0644))

	// When
	b, err := NewBleveBackend(path, nil)

	// Then: a fresh index is created
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	assert.Zero(t, b.Stats().DocumentCount)
}

func TestBleveBackend_DeleteContainerDropsPendingDocs(t *testing.T) {
	b, err := NewBleveBackend("", nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	ctx := context.Background()

	// Given: an uncommitted document in the container
	require.NoError(t, b.Index(ctx, doc("dav:/lab/a.txt", "A", "plasma", "dav:/lab")))

	// When
	require.NoError(t, b.DeleteContainer(ctx, "dav:/lab"))
	require.NoError(t, b.Commit(ctx))

	// Then
	assert.Zero(t, b.Stats().DocumentCount)
}

func TestValidateIndexIntegrity(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, validateIndexIntegrity(filepath.Join(dir, "missing")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_meta.json"), []byte("{bad"), 0644))
	assert.Error(t, validateIndexIntegrity(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_meta.json"), []byte(`{"storage":"scorch"}`), 0644))
	assert.NoError(t, validateIndexIntegrity(dir))
}
