package daemon

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/labsearch/internal/crawler"
	"github.com/Aman-CERP/labsearch/internal/search"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodSearch = "search"
	MethodAdd    = "add"
	MethodDelete = "delete"
	MethodCrawl  = "crawl"
	MethodClear  = "clear"
	MethodPause  = "pause"
	MethodResume = "resume"
	MethodPurge  = "purge"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Service error codes.
const (
	ErrCodeQueueFull      = -32001
	ErrCodeServiceStopped = -32002
	ErrCodeNotFound       = -32003
	ErrCodeFailed         = -32004
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements error so clients can return it directly.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is the search text (required).
	Query string `json:"query"`

	// Category boosts hits tagged with it.
	Category string `json:"category,omitempty"`

	// OnlyCategory turns the category boost into a filter.
	OnlyCategory bool `json:"only_category,omitempty"`

	// Page is 1-based.
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Validate checks that required fields are present.
func (p *SearchParams) Validate() error {
	p.Query = strings.TrimSpace(p.Query)
	if p.Query == "" {
		return fmt.Errorf("query is required")
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
	return nil
}

// Options converts the parameters for search.Service.Search.
func (p SearchParams) Options() search.SearchOptions {
	return search.SearchOptions{
		Category:        p.Category,
		LimitToCategory: p.OnlyCategory,
		Page:            p.Page,
		Limit:           p.Limit,
	}
}

// SearchResult is one page of hits.
type SearchResult struct {
	Hits  []*store.Hit `json:"hits"`
	Total uint64       `json:"total"`
	Page  int          `json:"page"`
}

// ResourceParams name one resource for add and delete.
type ResourceParams struct {
	// Identifier is "<prefix>:<path>" (required).
	Identifier string `json:"identifier"`

	// Priority is a queue priority name. Empty uses the method default.
	Priority string `json:"priority,omitempty"`
}

// Validate checks that required fields are present.
func (p *ResourceParams) Validate() error {
	p.Identifier = strings.TrimSpace(p.Identifier)
	if p.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	return nil
}

// CrawlParams start a crawl task.
type CrawlParams struct {
	// Identifier is the collection to crawl (required).
	Identifier string `json:"identifier"`

	// Description labels the task. Defaults to "crawl <identifier>".
	Description string `json:"description,omitempty"`
}

// Validate checks that required fields are present.
func (p *CrawlParams) Validate() error {
	p.Identifier = strings.TrimSpace(p.Identifier)
	if p.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if p.Description == "" {
		p.Description = "crawl " + p.Identifier
	}
	return nil
}

// CrawlResult names the task running the crawl.
type CrawlResult struct {
	TaskID string `json:"task_id"`
}

// StatusResult describes the serving process and its search service.
type StatusResult struct {
	PID     int           `json:"pid"`
	Uptime  string        `json:"uptime"`
	Service search.Stats  `json:"service"`
	Crawler crawler.Stats `json:"crawler"`
}

// PurgeResult counts abandoned queue items.
type PurgeResult struct {
	Purged int `json:"purged"`
}

// AckResult acknowledges a method with nothing else to report.
type AckResult struct {
	OK bool `json:"ok"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool      `json:"pong"`
	Time time.Time `json:"time"`
}
