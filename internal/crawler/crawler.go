// Package crawler walks resource collections through the work queue. A
// crawl job lists one collection, queues its leaves for indexing and queues
// a further crawl job for each sub-collection, so recursion never grows the
// call stack and other work interleaves by priority.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/resource"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// Enqueuer accepts crawl output. *search.Service and *search.IndexTask
// implement it.
type Enqueuer interface {
	AddRunnable(fn queue.RunFunc, pri queue.Priority) error
	AddResourceWith(identifier string, res resource.Resource, pri queue.Priority) error
}

// Resolver turns identifiers into resources.
type Resolver interface {
	ResolveResource(ctx context.Context, identifier string) (resource.Resource, error)
}

// Stats counts crawl activity since the crawler was created.
type Stats struct {
	Collections int64 `json:"collections"`
	Queued      int64 `json:"queued"`
	Unchanged   int64 `json:"unchanged"`
	Skipped     int64 `json:"skipped"`
}

// Crawler produces crawl jobs.
type Crawler struct {
	skip    *SkipRules
	tracker *store.Tracker
	logger  *slog.Logger

	collections atomic.Int64
	queued      atomic.Int64
	unchanged   atomic.Int64
	skipped     atomic.Int64
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithSkipRules replaces the default skip rules.
func WithSkipRules(s *SkipRules) Option {
	return func(c *Crawler) {
		if s != nil {
			c.skip = s
		}
	}
}

// WithTracker makes crawls incremental: leaves not modified since they were
// last indexed are not queued.
func WithTracker(t *store.Tracker) Option {
	return func(c *Crawler) {
		c.tracker = t
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Crawler.
func New(opts ...Option) *Crawler {
	skip, _ := NewSkipRules()
	c := &Crawler{skip: skip, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start returns a job that crawls rootID when run on the worker.
func (c *Crawler) Start(enq Enqueuer, resolver Resolver, rootID string) queue.RunFunc {
	return func(ctx context.Context) error {
		return c.crawl(ctx, enq, resolver, rootID)
	}
}

func (c *Crawler) crawl(ctx context.Context, enq Enqueuer, resolver Resolver, rootID string) error {
	res, err := resolver.ResolveResource(ctx, rootID)
	if err != nil {
		c.logger.Debug("crawl_resolve_failed", slog.String("id", rootID), slog.String("error", err.Error()))
		return nil
	}

	if !res.IsCollection() {
		return c.queueLeaf(ctx, enq, res)
	}

	children, err := res.Children(ctx)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", rootID, err)
	}
	c.collections.Add(1)

	var leaves, subs int
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if child.IsCollection() {
			if c.skip.Skip(child.Name()) {
				c.skipped.Add(1)
				continue
			}
			if err := enq.AddRunnable(c.Start(enq, resolver, child.DocumentID()), queue.PriorityCrawl); err != nil {
				return fmt.Errorf("queue crawl of %s: %w", child.DocumentID(), err)
			}
			subs++
			continue
		}
		if err := c.queueLeaf(ctx, enq, child); err != nil {
			return err
		}
		leaves++
	}

	c.logger.Debug("crawl_collection",
		slog.String("id", rootID),
		slog.Int("leaves", leaves),
		slog.Int("collections", subs))
	return nil
}

func (c *Crawler) queueLeaf(ctx context.Context, enq Enqueuer, res resource.Resource) error {
	id := res.DocumentID()
	if c.tracker != nil {
		if mod := res.LastModified(); !mod.IsZero() && c.tracker.IndexedSince(ctx, id, mod) {
			c.unchanged.Add(1)
			return nil
		}
	}
	if err := enq.AddResourceWith(id, res, queue.PriorityBackground); err != nil {
		return fmt.Errorf("queue %s: %w", id, err)
	}
	c.queued.Add(1)
	return nil
}

// Stats returns the crawl counters.
func (c *Crawler) Stats() Stats {
	return Stats{
		Collections: c.collections.Load(),
		Queued:      c.queued.Load(),
		Unchanged:   c.unchanged.Load(),
		Skipped:     c.skipped.Load(),
	}
}

// SkipRules returns the rules in use.
func (c *Crawler) SkipRules() *SkipRules {
	return c.skip
}
