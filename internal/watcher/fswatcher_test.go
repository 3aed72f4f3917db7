package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/labsearch/internal/crawler"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, root string, skip Skipper) *FSWatcher {
	t.Helper()
	opts := Options{DebounceWindow: 30 * time.Millisecond, Skip: skip, Logger: quietLogger()}
	w, err := New(root, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Stop()
	})

	require.Eventually(t, func() bool { return w.WatchedDirs() > 0 }, time.Second, 5*time.Millisecond)
	return w
}

// collect gathers events until want paths are seen or the deadline passes.
func collect(t *testing.T, w *FSWatcher, want ...string) map[string]FileEvent {
	t.Helper()
	seen := make(map[string]FileEvent)
	deadline := time.After(3 * time.Second)
	for {
		missing := false
		for _, p := range want {
			if _, ok := seen[p]; !ok {
				missing = true
			}
		}
		if !missing {
			return seen
		}
		select {
		case batch := <-w.Events():
			for _, ev := range batch {
				seen[ev.Path] = ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v, saw %v", want, seen)
		}
	}
}

func TestNew_RejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	_, err := New(f, DefaultOptions())
	assert.Error(t, err)
}

func TestFSWatcher_CreateFile(t *testing.T) {
	// Given: a watched root
	root := t.TempDir()
	w := startWatcher(t, root, nil)

	// When: a file is created
	require.NoError(t, os.WriteFile(filepath.Join(root, "plate.csv"), []byte("a,b"), 0o644))

	// Then: one CREATE arrives with a rooted slash path
	seen := collect(t, w, "/plate.csv")
	assert.Equal(t, OpCreate, seen["/plate.csv"].Operation)
	assert.False(t, seen["/plate.csv"].IsDir)
}

func TestFSWatcher_NewDirectoryIsWatched(t *testing.T) {
	// Given
	root := t.TempDir()
	w := startWatcher(t, root, nil)

	// When: a directory appears and a file is written inside it
	sub := filepath.Join(root, "runs")
	require.NoError(t, os.Mkdir(sub, 0o755))
	seen := collect(t, w, "/runs")
	assert.True(t, seen["/runs"].IsDir)

	require.Eventually(t, func() bool { return w.WatchedDirs() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "r1.txt"), []byte("x"), 0o644))

	// Then: events from the new directory arrive
	seen = collect(t, w, "/runs/r1.txt")
	assert.Equal(t, OpCreate, seen["/runs/r1.txt"].Operation)
}

func TestFSWatcher_DeleteDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "old"), 0o755))
	w := startWatcher(t, root, nil)
	require.Equal(t, 2, w.WatchedDirs())

	require.NoError(t, os.RemoveAll(filepath.Join(root, "old")))

	seen := collect(t, w, "/old")
	assert.Equal(t, OpDelete, seen["/old"].Operation)
	assert.True(t, seen["/old"].IsDir)
}

func TestFSWatcher_SkipRules(t *testing.T) {
	// Given: a skipped directory present at start
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	skip, err := crawler.NewSkipRules("node_modules")
	require.NoError(t, err)

	// When
	w := startWatcher(t, root, skip)

	// Then: only the root is watched and skipped paths produce nothing
	assert.Equal(t, 1, w.WatchedDirs())
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("x"), 0o644))
	seen := collect(t, w, "/keep.txt")
	assert.NotContains(t, seen, "/node_modules/x.js")
}

func TestFSWatcher_StopClosesChannels(t *testing.T) {
	w, err := New(t.TempDir(), Options{Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}
