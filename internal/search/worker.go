package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// run is the worker loop. It is the only goroutine that takes items.
func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.finalCommit()

	for {
		if s.shutdown.Load() || ctx.Err() != nil {
			return
		}
		if !s.waitWhilePaused(ctx) {
			return
		}

		it, err := s.queue.Take(ctx, s.cfg.CommitIdle)
		if err != nil {
			return
		}
		if s.shutdown.Load() {
			if it != nil {
				it.Complete(false)
			}
			return
		}
		if it == nil {
			s.commitIfIdle(ctx)
			continue
		}
		if s.isPaused() {
			// Taken while Pause ran; keep it for after Resume.
			if err := s.queue.Push(it); err != nil {
				it.Complete(false)
			}
			continue
		}

		s.process(ctx, it)
		s.observer.QueueDepth(s.queue.Counts())
	}
}

// waitWhilePaused blocks while the service is paused. It returns false if
// ctx ends first.
func (s *Service) waitWhilePaused(ctx context.Context) bool {
	for {
		s.mu.Lock()
		paused, ch := s.paused, s.resumeCh
		s.mu.Unlock()

		if !paused {
			return true
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Service) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// process executes one item and applies the commit policy afterwards.
func (s *Service) process(ctx context.Context, it *queue.Item) {
	start := time.Now()

	itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
	err := s.execute(itemCtx, it)
	cancel()

	ok := err == nil
	if !ok {
		s.logger.Warn("item_failed",
			slog.String("kind", it.Kind.String()),
			slog.String("id", it.ID),
			slog.String("priority", it.Priority.String()),
			slog.String("error", err.Error()))
	}
	it.Complete(ok)
	s.observer.ItemProcessed(it.Kind.String(), ok, time.Since(start))

	if s.pendingWrites() >= s.cfg.CommitThreshold {
		if err := s.commit(ctx, "threshold"); err != nil && ctx.Err() == nil {
			s.logger.Warn("commit_failed", slog.String("error", err.Error()))
		}
	}

	// A finished run item usually queued more work; once none remain, make
	// sure its writes get committed.
	if it.Kind == queue.KindRun && s.queue.Count(queue.KindRun) == 0 {
		if err := s.queue.Push(queue.NewCommit()); err != nil {
			s.logger.Debug("commit_item_dropped", slog.String("error", err.Error()))
		}
	}
}

// execute dispatches one item. A panic is reported as a failure.
func (s *Service) execute(ctx context.Context, it *queue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("item_panicked",
				slog.String("kind", it.Kind.String()),
				slog.String("id", it.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = serrors.InternalError(fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	switch it.Kind {
	case queue.KindAdd:
		return s.indexItem(ctx, it)
	case queue.KindDelete:
		return s.deleteItem(ctx, it.ID)
	case queue.KindRun:
		if it.Run == nil {
			return nil
		}
		return it.Run(ctx)
	case queue.KindCommit:
		s.commitIfIdle(ctx)
		return nil
	default:
		return serrors.InternalError(fmt.Sprintf("unknown item kind %d", it.Kind), nil)
	}
}

// indexItem resolves, preprocesses and indexes one resource. Resources that
// are gone or cannot be indexed are skipped and count as success.
func (s *Service) indexItem(ctx context.Context, it *queue.Item) error {
	res := it.Resource
	if res == nil {
		var err error
		res, err = s.resolver.ResolveResource(ctx, it.ID)
		if err != nil {
			s.logger.Debug("resolve_failed", slog.String("id", it.ID), slog.String("error", err.Error()))
			return nil
		}
	}
	if !res.Exists(ctx) {
		s.logger.Debug("resource_missing", slog.String("id", it.ID))
		return nil
	}
	if res.IsCollection() {
		return nil
	}

	doc, err := Preprocess(ctx, res, s.extractors)
	if errors.Is(err, serrors.ErrUnsupportedContent) {
		s.logger.Debug("unsupported_content",
			slog.String("id", it.ID),
			slog.String("content_type", res.ContentType()))
		return nil
	}
	if err != nil {
		return err
	}

	var fp uint64
	if s.tracker != nil {
		fp = fingerprint(doc)
		if s.tracker.Unchanged(ctx, doc.ID, fp) {
			s.logger.Debug("document_unchanged", slog.String("id", doc.ID))
			return nil
		}
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if err := s.backend.Index(ctx, doc); err != nil {
		return serrors.New(serrors.ErrCodeIndexFailed, "index "+doc.ID, err)
	}
	s.noteWrite()

	if s.tracker != nil {
		s.mu.Lock()
		s.unsaved = append(s.unsaved, store.Record{
			ID:          doc.ID,
			Container:   doc.Container,
			Modified:    doc.Modified,
			Fingerprint: fp,
			IndexedAt:   time.Now(),
		})
		s.mu.Unlock()
	}
	return nil
}

func (s *Service) deleteItem(ctx context.Context, id string) error {
	s.commitMu.Lock()
	err := s.backend.Delete(ctx, id)
	if err == nil {
		s.dropUnsaved(func(rec store.Record) bool { return rec.ID == id })
		s.noteWrite()
	}
	s.commitMu.Unlock()
	if err != nil {
		return serrors.New(serrors.ErrCodeIndexFailed, "delete "+id, err)
	}

	if s.tracker != nil {
		if err := s.tracker.Forget(ctx, id); err != nil {
			s.logger.Warn("tracker_forget_failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Service) noteWrite() {
	s.mu.Lock()
	s.sinceCommit++
	s.lastWrite = time.Now()
	s.mu.Unlock()
}

func (s *Service) pendingWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinceCommit
}

// commitIfIdle commits when writes are pending, none arrived within the
// idle period and no run items are queued.
func (s *Service) commitIfIdle(ctx context.Context) {
	s.mu.Lock()
	due := s.sinceCommit > 0 && time.Since(s.lastWrite) >= s.cfg.CommitIdle
	s.mu.Unlock()

	if !due || s.queue.Count(queue.KindRun) > 0 {
		return
	}
	if err := s.commit(ctx, "idle"); err != nil && ctx.Err() == nil {
		s.logger.Warn("commit_failed", slog.String("error", err.Error()))
	}
}

func (s *Service) commit(ctx context.Context, reason string) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return s.commitLocked(ctx, reason)
}

// commitLocked commits with commitMu held. Backends drop their pending
// writes when a commit fails, so the writes are forgotten either way and
// tracker records are only saved on success.
func (s *Service) commitLocked(ctx context.Context, reason string) error {
	start := time.Now()

	s.mu.Lock()
	pending := s.sinceCommit
	records := s.unsaved
	s.sinceCommit = 0
	s.unsaved = nil
	s.mu.Unlock()

	err := s.backend.Commit(ctx)
	s.observer.Committed(err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("commit_dropped_writes",
			slog.String("reason", reason),
			slog.Int("documents", pending),
			slog.String("error", err.Error()))
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	s.lastCommit = time.Now()
	s.mu.Unlock()

	s.saveRecords(records)

	s.logger.Debug("index_committed",
		slog.String("reason", reason),
		slog.Int("documents", pending),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// saveRecords writes tracker records for committed documents. It does not
// use the commit context, which may already be cancelled at shutdown.
func (s *Service) saveRecords(records []store.Record) {
	if s.tracker == nil || len(records) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ItemTimeout)
	defer cancel()
	for _, rec := range records {
		if err := s.tracker.Set(ctx, rec); err != nil {
			s.logger.Warn("tracker_set_failed", slog.String("id", rec.ID), slog.String("error", err.Error()))
		}
	}
}

// dropUnsaved discards uncommitted records matching fn. Callers hold
// commitMu.
func (s *Service) dropUnsaved(fn func(store.Record) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.unsaved[:0]
	for _, rec := range s.unsaved {
		if !fn(rec) {
			kept = append(kept, rec)
		}
	}
	s.unsaved = kept
}

// finalCommit flushes pending writes on worker exit.
func (s *Service) finalCommit() {
	if s.pendingWrites() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()

	if err := s.commit(ctx, "shutdown"); err != nil {
		s.logger.Warn("shutdown_commit_failed", slog.String("error", err.Error()))
	}
}
