package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/extract"
	"github.com/Aman-CERP/labsearch/internal/resource"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// Reserved resource properties.
const (
	PropTitle      = "title"
	PropCategories = "categories"
)

// Preprocess turns a resource into an index document. Resources whose
// content type has no extractor fail with an error wrapping
// ErrUnsupportedContent.
func Preprocess(ctx context.Context, res resource.Resource, extractors *extract.Registry) (*store.Document, error) {
	id := res.DocumentID()
	if _, ok := extractors.For(res.ContentType(), res.Name()); !ok {
		return nil, fmt.Errorf("%s (%s): %w", id, res.ContentType(), serrors.ErrUnsupportedContent)
	}

	rc, err := res.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := extractors.Extract(ctx, res.ContentType(), res.Name(), rc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", id, err)
	}

	props := res.Properties()
	title := strings.TrimSpace(props[PropTitle])
	if title == "" {
		title = content.Title
	}
	if title == "" {
		title = res.Name()
	}

	doc := &store.Document{
		ID:         id,
		Title:      title,
		Body:       content.Body,
		Summary:    extract.Summarize(content.Body, title),
		URL:        res.ExecuteHref(),
		Container:  res.ContainerID(),
		Categories: strings.Fields(strings.ToLower(props[PropCategories])),
		Modified:   res.LastModified(),
	}

	for k, v := range props {
		if k == PropTitle || k == PropCategories || v == "" {
			continue
		}
		if doc.Properties == nil {
			doc.Properties = make(map[string]string)
		}
		doc.Properties[k] = strings.ToLower(v)
	}
	return doc, nil
}

// fingerprint hashes everything a document would send to the backend.
func fingerprint(doc *store.Document) uint64 {
	keys := make([]string, 0, len(doc.Properties))
	for k := range doc.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{doc.Title, doc.Body, doc.URL, doc.Container, strings.Join(doc.Categories, " ")}
	for _, k := range keys {
		parts = append(parts, k, doc.Properties[k])
	}
	return store.Fingerprint(parts...)
}
