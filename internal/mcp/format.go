package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/labsearch/internal/search"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// FormatSearchResults renders hits as markdown.
func FormatSearchResults(query string, res *store.Result, page int) string {
	hits := filterValidHits(res)
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Showing %d of %d result", len(hits), res.Total))
	if res.Total != 1 {
		sb.WriteString("s")
	}
	if page > 1 {
		sb.WriteString(fmt.Sprintf(" (page %d)", page))
	}
	sb.WriteString("\n\n")

	for i, h := range hits {
		formatHit(&sb, i+1, h)
	}
	return sb.String()
}

// FormatIndexStatus renders service stats as markdown.
func FormatIndexStatus(st search.Stats) string {
	var sb strings.Builder
	sb.WriteString("## Index Status\n\n")
	state := st.State
	if st.Paused {
		state += " (paused)"
	}
	sb.WriteString(fmt.Sprintf("- State: %s\n", state))
	sb.WriteString(fmt.Sprintf("- Backend: %s, %d documents\n", st.Backend.Backend, st.Backend.DocumentCount))
	sb.WriteString(fmt.Sprintf("- Queue: %d of %d", st.QueueLen, st.QueueCapacity))
	if st.Busy {
		sb.WriteString(" (busy)")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("- Uncommitted writes: %d\n", st.SinceCommit))

	for _, t := range st.Tasks {
		if t.Default {
			continue
		}
		sb.WriteString(fmt.Sprintf("- Task %q: %s, %d/%d (%.0f%%)\n",
			t.Description, t.Status, t.Completed, t.Total, t.ProgressPct))
	}
	return sb.String()
}

func filterValidHits(res *store.Result) []*store.Hit {
	if res == nil {
		return nil
	}
	valid := make([]*store.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		if h != nil {
			valid = append(valid, h)
		}
	}
	return valid
}

func formatHit(sb *strings.Builder, num int, h *store.Hit) {
	title := h.Title
	if title == "" {
		title = h.ID
	}
	sb.WriteString(fmt.Sprintf("### %d. %s (score: %.2f)\n", num, title, h.Score))
	sb.WriteString(fmt.Sprintf("`%s`", h.ID))
	if h.URL != "" {
		sb.WriteString(fmt.Sprintf(" [open](%s)", h.URL))
	}
	sb.WriteString("\n")
	if len(h.Categories) > 0 {
		sb.WriteString(fmt.Sprintf("Categories: %s\n", strings.Join(h.Categories, ", ")))
	}
	if h.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(h.Summary)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToHitOutput converts a store hit to the tool output format.
func ToHitOutput(h *store.Hit) HitOutput {
	if h == nil {
		return HitOutput{}
	}
	return HitOutput{
		ID:         h.ID,
		Title:      h.Title,
		Summary:    h.Summary,
		URL:        h.URL,
		Container:  h.Container,
		Categories: h.Categories,
		Score:      h.Score,
	}
}

// ToIndexStatusOutput flattens service stats for the index_status tool.
func ToIndexStatusOutput(st search.Stats) *IndexStatusOutput {
	out := &IndexStatusOutput{
		State:         st.State,
		Paused:        st.Paused,
		Busy:          st.Busy,
		Backend:       st.Backend.Backend,
		DocumentCount: st.Backend.DocumentCount,
		Queue:         st.Queue,
		QueueLen:      st.QueueLen,
		SinceCommit:   st.SinceCommit,
		Tasks:         st.Tasks,
	}
	if !st.LastCommit.IsZero() {
		lc := st.LastCommit
		out.LastCommit = &lc
	}
	return out
}
