package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

const docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// xmlTag matches the WordprocessingML markup left in GetContent output.
var xmlTag = regexp.MustCompile(`<[^>]+>`)

// DOCXExtractor extracts the body text of Word documents.
type DOCXExtractor struct{}

// NewDOCXExtractor creates a DOCXExtractor.
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// Extract spools the stream to a temp file because the docx reader needs
// random access.
func (d *DOCXExtractor) Extract(_ context.Context, r io.Reader) (*Content, error) {
	tmp, err := os.CreateTemp("", "labsearch-*.docx")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	doc, err := docx.ReadDocxFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read docx: %w", err)
	}
	defer func() { _ = doc.Close() }()

	raw := doc.Editable().GetContent()
	text := xmlTag.ReplaceAllString(strings.ReplaceAll(raw, "</w:p>", "</w:p>\n"), " ")
	return &Content{Body: collapseSpace(text)}, nil
}

func (d *DOCXExtractor) SupportedTypes() []string {
	return []string{docxType, ".docx"}
}
