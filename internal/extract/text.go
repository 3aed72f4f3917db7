package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// TextExtractor passes plain text through.
type TextExtractor struct{}

// NewTextExtractor creates a TextExtractor.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (t *TextExtractor) Extract(_ context.Context, r io.Reader) (*Content, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	return &Content{Body: strings.ToValidUTF8(string(data), "")}, nil
}

func (t *TextExtractor) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown", "text/csv", ".txt", ".md", ".csv", ".log"}
}
