// Package store provides the index backends (bleve, SQLite FTS5, remote and
// noop), the last-indexed tracker and the data directory lock.
package store

import (
	"context"
	"time"
)

// Backend kinds accepted by NewBackend.
const (
	KindBleve  = "bleve"
	KindSQLite = "sqlite"
	KindRemote = "remote"
	KindNoop   = "noop"
)

// Field names shared by every backend.
const (
	FieldID         = "uniqueId"
	FieldTitle      = "title"
	FieldBody       = "body"
	FieldSummary    = "summary"
	FieldURL        = "url"
	FieldContainer  = "container"
	FieldCategories = "categories"
	FieldProperties = "properties"
	FieldModified   = "modified"
)

// DefaultPageSize is used when a query sets no limit.
const DefaultPageSize = 20

// Document is the preprocessed form of a resource.
type Document struct {
	ID        string `json:"uniqueId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Summary   string `json:"summary"`
	URL       string `json:"url"`
	Container string `json:"container"`
	// Categories are lowercased keywords.
	Categories []string `json:"categories"`
	// Properties holds remaining resource properties, lowercased.
	Properties map[string]string `json:"properties,omitempty"`
	Modified   time.Time         `json:"modified"`
}

// Hit is one search result.
type Hit struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	URL        string   `json:"url"`
	Container  string   `json:"container"`
	Categories []string `json:"categories,omitempty"`
	Score      float64  `json:"score"`
}

// Query describes a search request.
type Query struct {
	Text string `json:"text"`
	// Category restricts or boosts hits carrying that category.
	Category string `json:"category,omitempty"`
	// LimitToCategory turns Category into a filter instead of a boost.
	LimitToCategory bool `json:"limit_to_category,omitempty"`
	Offset          int  `json:"offset,omitempty"`
	Limit           int  `json:"limit,omitempty"`
}

// PageSize returns Limit, or DefaultPageSize when unset.
func (q Query) PageSize() int {
	if q.Limit <= 0 {
		return DefaultPageSize
	}
	return q.Limit
}

// Result is a page of hits.
type Result struct {
	Hits  []*Hit `json:"hits"`
	Total uint64 `json:"total"`
}

// Stats describes a backend.
type Stats struct {
	Backend       string `json:"backend"`
	DocumentCount int    `json:"document_count"`
	// Pending counts writes not yet committed.
	Pending int `json:"pending"`
}

// Backend is an index the search service writes to. Writes become visible
// to Search and Find after Commit.
type Backend interface {
	// Index adds doc, replacing any document with the same ID.
	Index(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id string) error
	// DeleteContainer removes every document whose container is containerID.
	DeleteContainer(ctx context.Context, containerID string) error
	Commit(ctx context.Context) error
	// Clear drops the whole index, including pending writes.
	Clear(ctx context.Context) error

	Search(ctx context.Context, q Query) (*Result, error)
	// Find returns one committed document, or an error wrapping
	// ErrResourceNotFound.
	Find(ctx context.Context, id string) (*Hit, error)

	Stats() Stats
	Close() error
}
