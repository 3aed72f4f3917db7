package daemon

import (
	"context"

	"github.com/Aman-CERP/labsearch/internal/crawler"
	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/search"
)

// Handler executes control requests.
type Handler interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	Status() StatusResult
	Add(ctx context.Context, params ResourceParams) error
	Delete(ctx context.Context, params ResourceParams) error
	Crawl(ctx context.Context, params CrawlParams) (*CrawlResult, error)
	Clear(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Purge(ctx context.Context) (int, error)
}

// ServiceHandler serves control requests from a running search service.
type ServiceHandler struct {
	svc      *search.Service
	crawler  *crawler.Crawler
	resolver crawler.Resolver
}

// NewServiceHandler creates a handler. crawls resolve identifiers through
// resolver.
func NewServiceHandler(svc *search.Service, c *crawler.Crawler, resolver crawler.Resolver) *ServiceHandler {
	return &ServiceHandler{svc: svc, crawler: c, resolver: resolver}
}

// Search runs a query against committed documents.
func (h *ServiceHandler) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	res, err := h.svc.Search(ctx, params.Query, params.Options())
	if err != nil {
		return nil, err
	}
	return &SearchResult{Hits: res.Hits, Total: res.Total, Page: params.Page}, nil
}

// Status reports service and crawler counters.
func (h *ServiceHandler) Status() StatusResult {
	st := StatusResult{Service: h.svc.Stats()}
	if h.crawler != nil {
		st.Crawler = h.crawler.Stats()
	}
	return st
}

// Add queues one resource for indexing, by default at item priority.
func (h *ServiceHandler) Add(_ context.Context, params ResourceParams) error {
	pri, err := priorityOr(params.Priority, queue.PriorityItem)
	if err != nil {
		return err
	}
	return h.svc.AddResource(params.Identifier, pri)
}

// Delete queues removal of one resource, by default at delete priority.
func (h *ServiceHandler) Delete(_ context.Context, params ResourceParams) error {
	pri, err := priorityOr(params.Priority, queue.PriorityDelete)
	if err != nil {
		return err
	}
	return h.svc.DeleteResource(params.Identifier, pri)
}

// Crawl starts a tracked task that walks the collection.
func (h *ServiceHandler) Crawl(_ context.Context, params CrawlParams) (*CrawlResult, error) {
	task := h.svc.CreateTask(params.Description)
	if err := task.AddRunnable(h.crawler.Start(task, h.resolver, params.Identifier), queue.PriorityCrawl); err != nil {
		task.Cancel()
		return nil, err
	}
	task.SetReady()
	return &CrawlResult{TaskID: task.ID()}, nil
}

// Clear drops the whole index.
func (h *ServiceHandler) Clear(ctx context.Context) error {
	return h.svc.ClearIndex(ctx)
}

// Pause holds the worker after committing.
func (h *ServiceHandler) Pause(ctx context.Context) error {
	return h.svc.Pause(ctx)
}

// Resume releases a paused worker.
func (h *ServiceHandler) Resume(_ context.Context) error {
	h.svc.Resume()
	return nil
}

// Purge abandons every queued item.
func (h *ServiceHandler) Purge(_ context.Context) (int, error) {
	return h.svc.PurgeQueues(), nil
}

func priorityOr(name string, def queue.Priority) (queue.Priority, error) {
	pri, err := queue.ParsePriority(name)
	if err != nil {
		return 0, err
	}
	if pri == queue.PriorityUnset {
		return def, nil
	}
	return pri, nil
}
