package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"index_item_started","id":"dav:/a.txt"}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"index_committed","docs":3}
not json at all
{"time":"2026-03-01T10:00:02.000Z","level":"ERROR","msg":"resolve_failed","id":"dav:/b.pdf","error":"boom"}
`

func writeLog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestViewer_TailKeepsLastLines(t *testing.T) {
	// Given
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	// When: asking for the last two lines
	entries, err := v.Tail(path, 2)

	// Then: the raw line and the error survive, in file order
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Valid)
	assert.Equal(t, "resolve_failed", entries[1].Msg)
}

func TestViewer_LevelFilterKeepsRawLines(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 50)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "not json at all", entries[0].Raw)
	assert.Equal(t, "ERROR", entries[1].Level)
}

func TestViewer_PatternFilter(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`dav:/a\.txt`), NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 50)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index_item_started", entries[0].Msg)
}

func TestViewer_FormatSortsAttrs(t *testing.T) {
	// Given
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	e := ParseLine(`{"time":"2026-03-01T10:00:02Z","level":"ERROR","msg":"resolve_failed","id":"dav:/b.pdf","error":"boom"}`)

	// When
	line := v.Format(e)

	// Then
	assert.True(t, strings.HasSuffix(line, "ERROR resolve_failed error=boom id=dav:/b.pdf"), line)
}

func TestViewer_TailMissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})

	_, err := v.Tail(filepath.Join(t.TempDir(), "nope.log"), 10)

	require.Error(t, err)
}

func TestViewer_FollowSeesAppendedLines(t *testing.T) {
	// Given: a log with history, followed from its end
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan Entry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, func(e Entry) { got <- e }) }()

	// When: a line is appended once the follower is watching
	var e Entry
	require.Eventually(t, func() bool {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, _ = f.WriteString(`{"time":"2026-03-01T10:00:03Z","level":"INFO","msg":"crawl_finished"}` + "\n")
		_ = f.Close()
		select {
		case e = <-got:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 4*time.Second, 10*time.Millisecond)

	// Then: only new lines are delivered
	assert.Equal(t, "crawl_finished", e.Msg)
	cancel()
	require.NoError(t, <-done)
}
