package resource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "sub", "b.html"), []byte("<p>beta</p>"), 0o644))
	return root
}

func TestFileResolver_ResolveLeaf(t *testing.T) {
	// Given
	root := writeTree(t)
	r, err := NewFileResolver(root)
	require.NoError(t, err)
	ctx := context.Background()

	// When
	res, err := r.Resolve(ctx, "/docs/a.txt")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "dav:/docs/a.txt", res.DocumentID())
	assert.Equal(t, "a.txt", res.Name())
	assert.Equal(t, "dav:/docs", res.ContainerID())
	assert.Equal(t, "text/plain", res.ContentType())
	assert.Equal(t, "/_webdav/docs/a.txt", res.ExecuteHref())
	assert.True(t, res.Exists(ctx))
	assert.False(t, res.IsCollection())
	assert.False(t, res.LastModified().IsZero())

	rc, err := res.Open(ctx)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
}

func TestFileResolver_Children(t *testing.T) {
	root := writeTree(t)
	r, err := NewFileResolver(root)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "/docs")
	require.NoError(t, err)
	require.True(t, res.IsCollection())

	children, err := res.Children(ctx)
	require.NoError(t, err)

	var ids []string
	for _, c := range children {
		ids = append(ids, c.DocumentID())
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"dav:/docs/a.txt", "dav:/docs/sub"}, ids)
}

func TestFileResolver_CannotEscapeRoot(t *testing.T) {
	root := writeTree(t)
	r, err := NewFileResolver(root)
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), "/../../etc/passwd")

	require.NoError(t, err)
	assert.Equal(t, "dav:/etc/passwd", res.DocumentID())
	assert.False(t, res.Exists(context.Background()))
}

func TestFileResolver_MissingFile(t *testing.T) {
	root := writeTree(t)
	r, err := NewFileResolver(root, WithPrefix("files"), WithHrefBase("https://lab/_webdav/"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "/gone.txt")
	require.NoError(t, err)

	assert.False(t, res.Exists(ctx))
	assert.Equal(t, "files:/gone.txt", res.DocumentID())
	assert.Equal(t, "https://lab/_webdav/gone.txt", res.ExecuteHref())
	_, err = res.Open(ctx)
	assert.ErrorIs(t, err, serrors.ErrResourceNotFound)
}

func TestFileResolver_RelPath(t *testing.T) {
	root := writeTree(t)
	r, err := NewFileResolver(root)
	require.NoError(t, err)

	rel, ok := r.RelPath(filepath.Join(r.Root(), "docs", "a.txt"))
	assert.True(t, ok)
	assert.Equal(t, "/docs/a.txt", rel)

	_, ok = r.RelPath(filepath.Dir(r.Root()))
	assert.False(t, ok)
}

func TestNewFileResolver_RejectsFile(t *testing.T) {
	root := writeTree(t)
	_, err := NewFileResolver(filepath.Join(root, "docs", "a.txt"))
	assert.Error(t, err)
}
