package watcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Aman-CERP/labsearch/internal/crawler"
	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/resource"
)

// Service is the part of the search service the bridge drives.
type Service interface {
	crawler.Enqueuer
	AddResource(identifier string, pri queue.Priority) error
	DeleteResource(identifier string, pri queue.Priority) error
	DeleteContainer(containerID string) error
}

// Bridge turns file events into index work.
type Bridge struct {
	svc      Service
	crawler  *crawler.Crawler
	resolver crawler.Resolver
	prefix   string
	logger   *slog.Logger
}

// NewBridge creates a Bridge that names resources with prefix, normally
// resource.PrefixDav.
func NewBridge(svc Service, c *crawler.Crawler, resolver crawler.Resolver, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = resource.PrefixDav
	}
	return &Bridge{svc: svc, crawler: c, resolver: resolver, prefix: prefix, logger: logger}
}

// Handle queues work for one batch and returns how many events were
// accepted.
func (b *Bridge) Handle(batch []FileEvent) (int, error) {
	accepted := 0
	for _, ev := range batch {
		err := b.apply(ev)
		if errors.Is(err, serrors.ErrServiceStopped) {
			return accepted, err
		}
		if err != nil {
			b.logger.Warn("watch_event_dropped",
				slog.String("path", ev.Path),
				slog.String("op", ev.Operation.String()),
				slog.String("error", err.Error()))
			continue
		}
		accepted++
	}
	return accepted, nil
}

func (b *Bridge) apply(ev FileEvent) error {
	id := resource.Identifier(b.prefix, ev.Path)

	switch ev.Operation {
	case OpCreate, OpModify:
		if ev.IsDir {
			if ev.Operation == OpModify {
				return nil
			}
			return b.svc.AddRunnable(b.crawler.Start(b.svc, b.resolver, id), queue.PriorityCrawl)
		}
		return b.svc.AddResource(id, queue.PriorityItem)
	case OpDelete:
		if ev.IsDir {
			if err := b.svc.DeleteContainer(id); err != nil {
				return err
			}
		}
		return b.svc.DeleteResource(id, queue.PriorityDelete)
	default:
		return nil
	}
}

// Run handles batches until events is closed or ctx is done.
func (b *Bridge) Run(ctx context.Context, events <-chan []FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			n, err := b.Handle(batch)
			if err != nil {
				return err
			}
			b.logger.Debug("watch_batch_queued",
				slog.Int("events", len(batch)),
				slog.Int("accepted", n))
		}
	}
}
