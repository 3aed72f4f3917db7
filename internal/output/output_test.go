package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/labsearch/internal/async"
	"github.com/Aman-CERP/labsearch/internal/store"
)

func TestWriter_Success_PrintsWithCheckmark(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a success message
	w.Success("Index cleared")

	// Then: output contains checkmark and message
	output := buf.String()
	assert.Contains(t, output, "✅")
	assert.Contains(t, output, "Index cleared")
}

func TestWriter_Error_PrintsWithCross(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing an error message
	w.Errorf("Failed to connect to %s", "daemon")

	// Then: output contains error icon and message
	output := buf.String()
	assert.Contains(t, output, "❌")
	assert.Contains(t, output, "Failed to connect to daemon")
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("", "continued")

	assert.Equal(t, "   continued\n", buf.String())
}

func TestWriter_Code_PrintsCodeBlock(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a code block
	w.Code("index:\n  backend: bleve")

	// Then: every line is indented
	output := buf.String()
	assert.Contains(t, output, "  index:\n")
	assert.Contains(t, output, "    backend: bleve\n")
}

func TestWriter_Progress_PrintsProgressBar(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing progress at 50%
	w.Progress(50, 100, "Crawling")

	// Then: output contains progress indicator and message
	output := buf.String()
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "Crawling")
	assert.False(t, strings.HasSuffix(output, "\n"))
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(0, 0, "Processing")

	assert.Empty(t, buf.String())
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{name: "0 percent", current: 0, total: 100, width: 10, wantFull: 0},
		{name: "50 percent", current: 50, total: 100, width: 10, wantFull: 5},
		{name: "100 percent", current: 100, total: 100, width: 10, wantFull: 10},
		{name: "over total", current: 150, total: 100, width: 10, wantFull: 10},
		{name: "zero total", current: 3, total: 0, width: 8, wantFull: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)

			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestWriter_Hits_RendersEachHit(t *testing.T) {
	// Given: two hits, one untitled
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)
	res := &store.Result{
		Total: 12,
		Hits: []*store.Hit{
			{ID: "dav:/lab/plasma.txt", Title: "Plasma assay", URL: "/_webdav/lab/plasma.txt", Categories: []string{"file"}, Score: 1.25},
			{ID: "dav:/lab/notes.txt", Summary: "notes on plasma"},
		},
	}

	// When: rendering the second page
	w.Hits("plasma", res, 10)

	// Then: numbering continues from the offset
	output := buf.String()
	assert.Contains(t, output, `2 of 12 results for "plasma"`)
	assert.Contains(t, output, " 11. Plasma assay (1.25)")
	assert.Contains(t, output, " 12. dav:/lab/notes.txt")
	assert.Contains(t, output, "/_webdav/lab/plasma.txt")
	assert.Contains(t, output, "[file]")
	assert.Contains(t, output, "notes on plasma")
}

func TestWriter_Hits_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.Hits("zebra", nil, 0)

	assert.Contains(t, buf.String(), `No results for "zebra"`)
}

func TestWriter_Queue_SortsKinds(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.Queue(map[string]int{"item": 3, "crawl": 1}, 100)

	assert.Contains(t, buf.String(), "4/100 (crawl=1 item=3)")
}

func TestWriter_Tasks_SkipsDefault(t *testing.T) {
	// Given: the default task and one crawl task
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)
	tasks := []async.TaskSnapshot{
		{ID: "default", Description: "default", Default: true},
		{ID: "t1", Description: "crawl dav:/lab", Status: "running", Total: 4, Completed: 2, Failed: 1, ElapsedSeconds: 65},
	}

	// When
	w.Tasks(tasks)

	// Then
	output := buf.String()
	assert.NotContains(t, output, "default")
	assert.Contains(t, output, "crawl dav:/lab")
	assert.Contains(t, output, "2/4 running 1m5s")
	assert.Contains(t, output, "1 failed")
}

func TestNew_NonTerminalHasNoColor(t *testing.T) {
	// Given/When: a writer over a buffer
	w := New(&bytes.Buffer{})

	// Then: a buffer is never a terminal
	assert.False(t, w.UseColor())
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}
