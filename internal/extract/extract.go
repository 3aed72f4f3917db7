// Package extract turns raw resource content into plain text for indexing.
package extract

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// MaxContentBytes caps how much of a resource is read.
const MaxContentBytes = 16 << 20

// Content is the text extracted from one resource.
type Content struct {
	Body  string
	Title string
	// Metadata holds extractor-specific facts such as "pages".
	Metadata map[string]string
}

// Extractor reads a content stream and returns its text.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (*Content, error)
	// SupportedTypes lists content types and ".ext" extensions.
	SupportedTypes() []string
}

// Registry picks an extractor by content type, then by extension.
type Registry struct {
	extractors map[string]Extractor
	text       Extractor
}

// NewRegistry returns a registry with the text, HTML, PDF, DOCX and JSON
// extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.text = NewTextExtractor()
	r.Register(r.text)
	r.Register(NewHTMLExtractor())
	r.Register(NewPDFExtractor())
	r.Register(NewDOCXExtractor())
	r.Register(NewJSONExtractor())
	return r
}

// Register adds e under each of its supported types.
func (r *Registry) Register(e Extractor) {
	for _, t := range e.SupportedTypes() {
		r.extractors[strings.ToLower(t)] = e
	}
}

// For returns the extractor for a resource. Images are never extracted;
// textual types without a dedicated extractor fall back to plain text,
// except XML.
func (r *Registry) For(contentType, name string) (Extractor, bool) {
	ct := normalizeType(contentType)
	if strings.HasPrefix(ct, "image/") {
		return nil, false
	}
	if e, ok := r.extractors[ct]; ok {
		return e, true
	}
	if ext := strings.ToLower(path.Ext(name)); ext != "" {
		if e, ok := r.extractors[ext]; ok {
			return e, true
		}
	}
	if strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "xml") {
		return r.text, true
	}
	return nil, false
}

// Extract runs the matching extractor over at most MaxContentBytes of rc.
// It fails with ErrUnsupportedContent when no extractor applies.
func (r *Registry) Extract(ctx context.Context, contentType, name string, rc io.Reader) (*Content, error) {
	e, ok := r.For(contentType, name)
	if !ok {
		return nil, fmt.Errorf("%s (%s): %w", name, contentType, serrors.ErrUnsupportedContent)
	}
	return e.Extract(ctx, io.LimitReader(rc, MaxContentBytes))
}

func normalizeType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
