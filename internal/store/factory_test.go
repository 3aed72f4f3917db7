package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		kind string
		want any
	}{
		{"", &BleveBackend{}},
		{KindBleve, &BleveBackend{}},
		{KindSQLite, &SQLiteBackend{}},
		{KindNoop, NoopBackend{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := NewBackend(Options{Kind: tt.kind, DataDir: filepath.Join(dir, tt.kind+"x")})
			require.NoError(t, err)
			defer func() { _ = b.Close() }()
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestNewBackend_Remote(t *testing.T) {
	b, err := NewBackend(Options{Kind: KindRemote, RemoteURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.IsType(t, &RemoteBackend{}, b)
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := NewBackend(Options{Kind: "lucene"})
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeUnknownBackend, serrors.GetCode(err))
}

func TestDetectBackend(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, DetectBackend(dir))

	b, err := NewBackend(Options{Kind: KindSQLite, DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	assert.Equal(t, KindSQLite, DetectBackend(dir))
}

func TestIndexPath(t *testing.T) {
	assert.Empty(t, IndexPath("", KindBleve))
	assert.Equal(t, filepath.Join("d", "index.db"), IndexPath("d", KindSQLite))
	assert.Equal(t, filepath.Join("d", "index.bleve"), IndexPath("d", KindBleve))
	assert.Equal(t, filepath.Join("d", "tracker.db"), TrackerPath("d"))
}
