package mcp

import (
	"time"

	"github.com/Aman-CERP/labsearch/internal/async"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the search query to execute"`
	Category     string `json:"category,omitempty" jsonschema:"boost documents tagged with this category"`
	OnlyCategory bool   `json:"only_category,omitempty" jsonschema:"return only documents tagged with the category"`
	Page         int    `json:"page,omitempty" jsonschema:"1-based result page, default 1"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Total   uint64      `json:"total" jsonschema:"number of matching documents"`
	Results []HitOutput `json:"results" jsonschema:"list of search results"`
}

// HitOutput is one search result.
type HitOutput struct {
	ID         string   `json:"id" jsonschema:"document identifier, <prefix>:<path>"`
	Title      string   `json:"title" jsonschema:"document title"`
	Summary    string   `json:"summary,omitempty" jsonschema:"leading text of the document"`
	URL        string   `json:"url,omitempty" jsonschema:"link that opens the document"`
	Container  string   `json:"container,omitempty" jsonschema:"collection holding the document"`
	Categories []string `json:"categories,omitempty" jsonschema:"category keywords"`
	Score      float64  `json:"score" jsonschema:"relevance score"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	State         string               `json:"state"` // "running", "stopped" or "shutting_down"
	Paused        bool                 `json:"paused"`
	Busy          bool                 `json:"busy"`
	Backend       string               `json:"backend"`
	DocumentCount int                  `json:"document_count"`
	Queue         map[string]int       `json:"queue"`
	QueueLen      int                  `json:"queue_len"`
	SinceCommit   int                  `json:"since_commit"`
	LastCommit    *time.Time           `json:"last_commit,omitempty"`
	Tasks         []async.TaskSnapshot `json:"tasks"`
}
