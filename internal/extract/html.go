package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor returns the visible text of a page and its <title>.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// skipped elements contribute no body text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

func (h *HTMLExtractor) Extract(ctx context.Context, r io.Reader) (*Content, error) {
	z := html.NewTokenizer(r)

	var body, title strings.Builder
	depth := 0
	inTitle := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("failed to parse html: %w", err)
			}
			return &Content{
				Body:  collapseSpace(body.String()),
				Title: collapseSpace(title.String()),
			}, nil

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "title" {
				inTitle = true
			} else if skipped[tag] {
				depth++
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "title" {
				inTitle = false
			} else if skipped[tag] && depth > 0 {
				depth--
			}

		case html.TextToken:
			text := string(z.Text())
			switch {
			case inTitle:
				title.WriteString(text)
			case depth == 0:
				body.WriteString(text)
				body.WriteByte(' ')
			}
		}
	}
}

func (h *HTMLExtractor) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml", ".html", ".htm", ".xhtml"}
}

// collapseSpace trims and folds whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
