// Package output provides consistent CLI output with optional colors.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/labsearch/internal/async"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   Styles
}

// New creates a Writer. Colors are used when out is a terminal and NO_COLOR
// is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTTY(out) && !DetectNoColor())
}

// NewWithColor creates a Writer with colors forced on or off.
func NewWithColor(out io.Writer, color bool) *Writer {
	styles := NoColorStyles()
	if color {
		styles = DefaultStyles()
	}
	return &Writer{out: out, useColor: color, styles: styles}
}

// UseColor reports whether styles are applied.
func (w *Writer) UseColor() bool {
	return w.useColor
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✅"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("⚠️ "), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("❌"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold section header.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// Field prints an aligned "label: value" line.
func (w *Writer) Field(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-16s", label+":")), value)
}

// Code prints a code block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Hits prints one page of search results.
func (w *Writer) Hits(query string, res *store.Result, offset int) {
	if res == nil || len(res.Hits) == 0 {
		w.Statusf("🔍", "No results for %q", query)
		return
	}

	w.Header(fmt.Sprintf("%d of %d results for %q", len(res.Hits), res.Total, query))
	for i, h := range res.Hits {
		title := h.Title
		if title == "" {
			title = h.ID
		}
		_, _ = fmt.Fprintf(w.out, "\n%s %s %s\n",
			w.styles.Dim.Render(fmt.Sprintf("%3d.", offset+i+1)),
			w.styles.Accent.Render(title),
			w.styles.Dim.Render(fmt.Sprintf("(%.2f)", h.Score)))
		_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Label.Render(h.ID))
		if h.URL != "" {
			_, _ = fmt.Fprintf(w.out, "     %s\n", h.URL)
		}
		if len(h.Categories) > 0 {
			_, _ = fmt.Fprintf(w.out, "     [%s]\n", strings.Join(h.Categories, ", "))
		}
		if h.Summary != "" {
			_, _ = fmt.Fprintf(w.out, "     %s\n", h.Summary)
		}
	}
}

// Queue prints queue depth by kind, sorted by kind.
func (w *Writer) Queue(counts map[string]int, capacity int) {
	kinds := make([]string, 0, len(counts))
	total := 0
	for k, n := range counts {
		kinds = append(kinds, k)
		total += n
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	value := fmt.Sprintf("%d/%d", total, capacity)
	if len(parts) > 0 {
		value += " (" + strings.Join(parts, " ") + ")"
	}
	w.Field("Queue", value)
}

// Tasks prints a progress line per non-default task.
func (w *Writer) Tasks(tasks []async.TaskSnapshot) {
	for _, t := range tasks {
		if t.Default {
			continue
		}
		bar := renderProgressBar(t.Completed, t.Total, 20)
		elapsed := (time.Duration(t.ElapsedSeconds) * time.Second).String()
		_, _ = fmt.Fprintf(w.out, "  %s [%s] %d/%d %s %s\n",
			w.styles.Accent.Render(t.Description), w.styles.Success.Render(bar),
			t.Completed, t.Total, t.Status, w.styles.Dim.Render(elapsed))
		if t.Failed > 0 {
			_, _ = fmt.Fprintf(w.out, "  %s\n", w.styles.Warning.Render(fmt.Sprintf("%d failed", t.Failed)))
		}
	}
}

// Panel prints content inside a rounded border when colors are on.
func (w *Writer) Panel(content string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Panel.Render(content))
}

// Progress prints a progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
