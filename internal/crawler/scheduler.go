package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/queue"
)

// SchedulerConfig paces recurring crawls.
type SchedulerConfig struct {
	// Interval between crawls of the same root. Zero crawls each root once.
	Interval time.Duration
	// RateLimit is crawl jobs queued per second. Zero means unlimited.
	RateLimit float64
	Burst     int
	// BusyPoll is how long to wait before asking again whether the service
	// is busy.
	BusyPoll time.Duration
}

// DefaultSchedulerConfig returns production defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:  time.Hour,
		RateLimit: 1,
		Burst:     5,
		BusyPoll:  time.Second,
	}
}

// Scheduler queues crawl jobs for a set of roots, each with its own next
// crawl time. It holds back while the service reports busy.
type Scheduler struct {
	crawler  *Crawler
	enq      Enqueuer
	resolver Resolver
	busy     func() bool
	cfg      SchedulerConfig
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu    sync.Mutex
	roots map[string]time.Time
	wake  chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBusyFunc sets the back-pressure check, usually Service.IsBusy.
func WithBusyFunc(fn func() bool) SchedulerOption {
	return func(s *Scheduler) {
		s.busy = fn
	}
}

// WithSchedulerLogger sets the logger. Defaults to slog.Default().
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler creates a Scheduler. Call Run to start it.
func NewScheduler(c *Crawler, enq Enqueuer, resolver Resolver, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.BusyPoll <= 0 {
		cfg.BusyPoll = def.BusyPoll
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	s := &Scheduler{
		crawler:  c,
		enq:      enq,
		resolver: resolver,
		busy:     func() bool { return false },
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		logger:   slog.Default(),
		roots:    make(map[string]time.Time),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPathToCrawl schedules identifier for a crawl at next. A zero next
// means now. Scheduling an existing root moves its next crawl time.
func (s *Scheduler) AddPathToCrawl(identifier string, next time.Time) {
	if next.IsZero() {
		next = time.Now()
	}
	s.mu.Lock()
	s.roots[identifier] = next
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Remove stops scheduling identifier.
func (s *Scheduler) Remove(identifier string) {
	s.mu.Lock()
	delete(s.roots, identifier)
	s.mu.Unlock()
}

// Root is one scheduled crawl root.
type Root struct {
	ID   string    `json:"id"`
	Next time.Time `json:"next"`
}

// Roots lists scheduled roots ordered by next crawl time.
func (s *Scheduler) Roots() []Root {
	s.mu.Lock()
	out := make([]Root, 0, len(s.roots))
	for id, next := range s.roots {
		out = append(out, Root{ID: id, Next: next})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Next.Equal(out[j].Next) {
			return out[i].ID < out[j].ID
		}
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

// nextDue returns the earliest root due at now, or how long until one is.
// With no roots the wait is zero.
func (s *Scheduler) nextDue(now time.Time) (string, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best     string
		bestTime time.Time
	)
	for id, next := range s.roots {
		if best == "" || next.Before(bestTime) || (next.Equal(bestTime) && id < best) {
			best, bestTime = id, next
		}
	}
	if best == "" {
		return "", 0
	}
	if bestTime.After(now) {
		return "", bestTime.Sub(now)
	}
	return best, 0
}

func (s *Scheduler) reschedule(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Interval <= 0 {
		delete(s.roots, id)
		return
	}
	s.roots[id] = now.Add(s.cfg.Interval)
}

// Run queues due crawls until ctx is done. It returns nil on cancellation
// and ErrServiceStopped when the service stops accepting work.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("crawl_scheduler_started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Float64("rate_limit", s.cfg.RateLimit))

	for {
		id, wait := s.nextDue(time.Now())
		if id == "" {
			if !s.sleep(ctx, wait) {
				return nil
			}
			continue
		}

		if s.busy() {
			if !s.sleep(ctx, s.cfg.BusyPoll) {
				return nil
			}
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		err := s.enq.AddRunnable(s.crawler.Start(s.enq, s.resolver, id), queue.PriorityCrawl)
		switch {
		case errors.Is(err, serrors.ErrServiceStopped):
			return err
		case err != nil:
			s.logger.Warn("crawl_schedule_failed", slog.String("id", id), slog.String("error", err.Error()))
			s.AddPathToCrawl(id, time.Now().Add(s.cfg.BusyPoll))
			continue
		}

		s.logger.Debug("crawl_scheduled", slog.String("id", id))
		s.reschedule(id, time.Now())
	}
}

// sleep waits for d, a new root or ctx. A zero d waits for a new root only.
// It returns false once ctx is done.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.wake:
		return true
	case <-timeout:
		return true
	}
}
