package search

import (
	"strings"

	"github.com/Aman-CERP/labsearch/internal/store"
)

// SearchOptions narrows and pages a query.
type SearchOptions struct {
	// Category boosts documents tagged with it.
	Category string
	// LimitToCategory turns the category boost into a filter.
	LimitToCategory bool
	// Page is 1-based. Zero means the first page.
	Page  int
	Limit int
}

func (o SearchOptions) query(text string, pageSize int) store.Query {
	limit := o.Limit
	if limit <= 0 {
		limit = pageSize
	}
	page := o.Page
	if page < 1 {
		page = 1
	}
	return store.Query{
		Text:            strings.TrimSpace(text),
		Category:        strings.ToLower(strings.TrimSpace(o.Category)),
		LimitToCategory: o.LimitToCategory && o.Category != "",
		Offset:          (page - 1) * limit,
		Limit:           limit,
	}
}
