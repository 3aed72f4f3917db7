// Package search runs the indexing service: a single worker that drains the
// priority queue, dispatches work to an index backend and commits according
// to a write-count and idle-time policy.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Aman-CERP/labsearch/internal/async"
	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/extract"
	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/resource"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// Resolver turns identifiers into resources. *resource.Registry implements it.
type Resolver interface {
	ResolveResource(ctx context.Context, identifier string) (resource.Resource, error)
}

// Config tunes the worker and the commit policy.
type Config struct {
	QueueCapacity int
	// CommitThreshold forces a commit once this many writes are pending.
	CommitThreshold int
	// CommitIdle is both the take timeout and the quiet period required
	// after the last write before an idle commit.
	CommitIdle    time.Duration
	ItemTimeout   time.Duration
	ShutdownGrace time.Duration
	// BusyThreshold is the weighted queue depth above which IsBusy is true.
	BusyThreshold int
	PageSize      int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:   queue.DefaultCapacity,
		CommitThreshold: 10000,
		CommitIdle:      2 * time.Second,
		ItemTimeout:     30 * time.Second,
		ShutdownGrace:   2 * time.Second,
		BusyThreshold:   1000,
		PageSize:        store.DefaultPageSize,
	}
}

// runWeight is how much a queued run item counts towards IsBusy.
const runWeight = 10

type serviceState int

const (
	stateStopped serviceState = iota
	stateRunning
	stateShuttingDown
)

func (s serviceState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateShuttingDown:
		return "shutting_down"
	default:
		return "stopped"
	}
}

// Service owns the work queue and its single worker goroutine.
type Service struct {
	cfg        Config
	backend    store.Backend
	resolver   Resolver
	queue      *queue.Queue
	extractors *extract.Registry
	tracker    *store.Tracker
	actions    *resource.ActionResolver
	categories *Categories
	observer   Observer
	logger     *slog.Logger

	shutdown atomic.Bool

	// commitMu orders backend writes against commits, so the records
	// taken by a commit are exactly those whose writes it flushes.
	commitMu sync.Mutex

	mu          sync.Mutex
	state       serviceState
	cancel      context.CancelFunc
	done        chan struct{}
	paused      bool
	resumeCh    chan struct{}
	sinceCommit int
	lastWrite   time.Time
	lastCommit  time.Time
	// unsaved holds tracker records of writes not yet committed.
	unsaved     []store.Record
	defaultTask *IndexTask
	tasks       map[string]*IndexTask
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracker enables last-indexed bookkeeping. Unchanged documents are not
// re-sent to the backend.
func WithTracker(t *store.Tracker) Option {
	return func(s *Service) {
		s.tracker = t
	}
}

// WithObserver receives worker, commit and search events.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithExtractors replaces the default extractor registry.
func WithExtractors(r *extract.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.extractors = r
		}
	}
}

// WithActionResolver enables AddActionURL.
func WithActionResolver(a *resource.ActionResolver) Option {
	return func(s *Service) {
		s.actions = a
	}
}

// WithCategories replaces the built-in category registry.
func WithCategories(c *Categories) Option {
	return func(s *Service) {
		if c != nil {
			s.categories = c
		}
	}
}

// NewService creates a stopped service. Items may be queued before Start.
func NewService(backend store.Backend, resolver Resolver, cfg Config, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, serrors.InternalError("search service requires a backend", nil)
	}
	if resolver == nil {
		return nil, serrors.InternalError("search service requires a resolver", nil)
	}

	def := DefaultConfig()
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.CommitThreshold <= 0 {
		cfg.CommitThreshold = def.CommitThreshold
	}
	if cfg.CommitIdle <= 0 {
		cfg.CommitIdle = def.CommitIdle
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = def.ItemTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = def.ShutdownGrace
	}
	if cfg.BusyThreshold <= 0 {
		cfg.BusyThreshold = def.BusyThreshold
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}

	s := &Service{
		cfg:        cfg,
		backend:    backend,
		resolver:   resolver,
		queue:      queue.New(cfg.QueueCapacity),
		extractors: extract.NewRegistry(),
		observer:   nopObserver{},
		logger:     slog.Default(),
		resumeCh:   make(chan struct{}),
		tasks:      make(map[string]*IndexTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.categories == nil {
		// the built-in names are valid
		s.categories, _ = NewCategories()
	}
	s.defaultTask = &IndexTask{Task: async.NewDefaultTask(), svc: s}
	return s, nil
}

// Start spawns the worker. It fails if the service is already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStopped {
		return serrors.InternalError(fmt.Sprintf("search service is %s", s.state), nil)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.shutdown.Store(false)
	s.state = stateRunning

	go s.run(workerCtx, s.done)

	s.logger.Info("search_service_started",
		slog.Int("queue_capacity", s.cfg.QueueCapacity),
		slog.Int("commit_threshold", s.cfg.CommitThreshold))
	return nil
}

// Stop cancels the worker and waits up to the shutdown grace period for it
// to exit. Queued items are abandoned. It returns an error wrapping
// ErrShutdownTimeout when the worker does not exit in time.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = stateShuttingDown
	s.shutdown.Store(true)
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	// The state settles once the worker exits, even if Stop gave up on it.
	stopped := make(chan struct{})
	go func() {
		<-done
		s.mu.Lock()
		s.state = stateStopped
		s.mu.Unlock()
		close(stopped)
	}()

	timer := time.NewTimer(s.cfg.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-stopped:
	case <-timer.C:
		s.logger.Warn("search_service_stop_timeout", slog.Duration("grace", s.cfg.ShutdownGrace))
		return fmt.Errorf("after %s: %w", s.cfg.ShutdownGrace, serrors.ErrShutdownTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("search_service_stopped", slog.Int("abandoned_items", s.queue.Len()))
	return nil
}

// Close stops the service and closes the backend and tracker.
func (s *Service) Close() error {
	var result *multierror.Error

	ctx, cancel := context.WithTimeout(context.Background(), 2*s.cfg.ShutdownGrace)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.backend.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close backend: %w", err))
	}
	if s.tracker != nil {
		if err := s.tracker.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close tracker: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// Done is closed when the current worker exits. It is nil before Start.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// enqueue queues it on behalf of task. The task counts the item before it
// can be taken.
func (s *Service) enqueue(it *queue.Item, task *IndexTask) error {
	if s.shutdown.Load() {
		return serrors.ErrServiceStopped
	}
	if task == nil {
		task = s.defaultTask
	}
	task.AddItem()
	it.Task = task.Task

	if err := s.queue.Push(it); err != nil {
		task.CompleteItem(false)
		s.observer.Rejected(it.Kind.String())
		return err
	}
	return nil
}

// AddRunnable queues fn to run on the worker goroutine.
func (s *Service) AddRunnable(fn queue.RunFunc, pri queue.Priority) error {
	return s.defaultTask.AddRunnable(fn, pri)
}

// AddResource queues identifier for indexing. It is resolved on dequeue.
func (s *Service) AddResource(identifier string, pri queue.Priority) error {
	return s.defaultTask.AddResource(identifier, pri)
}

// AddResourceWith queues an already resolved resource.
func (s *Service) AddResourceWith(identifier string, res resource.Resource, pri queue.Priority) error {
	return s.defaultTask.AddResourceWith(identifier, res, pri)
}

// AddActionURL queues the action resource behind an absolute URL.
func (s *Service) AddActionURL(rawURL string, pri queue.Priority) error {
	if s.actions == nil {
		return fmt.Errorf("%s: %w", resource.PrefixAction, serrors.ErrNoResolver)
	}
	id, ok := s.actions.IdentifierFor(rawURL)
	if !ok {
		return fmt.Errorf("%q is not below the action base url: %w", rawURL, serrors.ErrInvalidIdentifier)
	}
	return s.AddResource(id, pri)
}

// DeleteResource queues removal of identifier from the index.
func (s *Service) DeleteResource(identifier string, pri queue.Priority) error {
	return s.defaultTask.DeleteResource(identifier, pri)
}

// DeleteContainer queues removal of every document in containerID.
func (s *Service) DeleteContainer(containerID string) error {
	return s.AddRunnable(func(ctx context.Context) error {
		s.commitMu.Lock()
		err := s.backend.DeleteContainer(ctx, containerID)
		if err == nil {
			s.dropUnsaved(func(rec store.Record) bool { return rec.Container == containerID })
			s.noteWrite()
		}
		s.commitMu.Unlock()
		if err != nil {
			return err
		}
		if s.tracker != nil {
			if err := s.tracker.ForgetContainer(ctx, containerID); err != nil {
				s.logger.Warn("tracker_forget_failed",
					slog.String("container", containerID),
					slog.String("error", err.Error()))
			}
		}
		return nil
	}, queue.PriorityBackground)
}

// ClearIndex drops the whole index and commits, on the caller's goroutine.
func (s *Service) ClearIndex(ctx context.Context) error {
	s.commitMu.Lock()
	err := s.backend.Clear(ctx)
	if err == nil {
		s.dropUnsaved(func(store.Record) bool { return true })
		err = s.commitLocked(ctx, "clear")
	} else {
		err = fmt.Errorf("clear index: %w", err)
	}
	s.commitMu.Unlock()
	if err != nil {
		return err
	}
	if s.tracker != nil {
		if err := s.tracker.ForgetAll(ctx); err != nil {
			return fmt.Errorf("clear tracker: %w", err)
		}
	}
	s.logger.Info("index_cleared")
	return nil
}

// Commit makes pending writes visible now.
func (s *Service) Commit(ctx context.Context) error {
	return s.commit(ctx, "explicit")
}

// Pause stops the worker from taking further items and commits pending
// writes. An item already executing finishes.
func (s *Service) Pause(ctx context.Context) error {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()

	s.logger.Info("search_service_paused")
	return s.commit(ctx, "pause")
}

// Resume lets a paused worker continue.
func (s *Service) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false
	close(s.resumeCh)
	s.resumeCh = make(chan struct{})
	s.logger.Info("search_service_resumed")
}

// IsRunning reports whether the worker is started and not paused.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning && !s.paused
}

// IsBusy reports whether producers should hold back: the service is not
// running, or the queue is deep. Run items weigh ten times as much as adds
// and deletes.
func (s *Service) IsBusy() bool {
	if !s.IsRunning() {
		return true
	}
	load := s.queue.Count(queue.KindAdd) + s.queue.Count(queue.KindDelete) + runWeight*s.queue.Count(queue.KindRun)
	return load > s.cfg.BusyThreshold
}

// PurgeQueues drops every queued item and cancels all tasks except the
// default one. It returns the number of items dropped.
func (s *Service) PurgeQueues() int {
	items := s.queue.Drain()
	for _, it := range items {
		it.Complete(false)
	}

	s.mu.Lock()
	tasks := make([]*IndexTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}

	s.logger.Info("queues_purged",
		slog.Int("items", len(items)),
		slog.Int("tasks_cancelled", len(tasks)))
	return len(items)
}

// CreateTask starts a task. Items queued through it are counted; call
// SetReady once everything has been queued.
func (s *Service) CreateTask(description string) *IndexTask {
	t := &IndexTask{Task: async.NewTask(description), svc: s}

	s.mu.Lock()
	s.tasks[t.ID()] = t
	s.mu.Unlock()

	t.OnDone(func(done *async.Task) {
		s.mu.Lock()
		delete(s.tasks, done.ID())
		s.mu.Unlock()
		s.logger.Info("task_done",
			slog.String("task", done.ID()),
			slog.String("description", done.Description()),
			slog.String("status", done.Snapshot().Status))
	})
	return t
}

// DefaultTask returns the task that items queued without one belong to.
func (s *Service) DefaultTask() *IndexTask {
	return s.defaultTask
}

// Task returns a pending task by ID.
func (s *Service) Task(id string) (*IndexTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns the default task and every task not yet done.
func (s *Service) Tasks() []async.TaskSnapshot {
	s.mu.Lock()
	tasks := make([]*IndexTask, 0, len(s.tasks)+1)
	tasks = append(tasks, s.defaultTask)
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	out := make([]async.TaskSnapshot, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Snapshot())
	}
	rest := out[1:]
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].ElapsedSeconds > rest[j].ElapsedSeconds
	})
	return out
}

// Search queries committed documents. A category that is not registered
// fails with ErrUnknownCategory.
func (s *Service) Search(ctx context.Context, text string, opts SearchOptions) (*store.Result, error) {
	if err := s.categories.Check(opts.Category); err != nil {
		return nil, err
	}
	start := time.Now()
	q := opts.query(text, s.cfg.PageSize)

	res, err := s.backend.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	s.observer.Searched(len(res.Hits), time.Since(start))
	return res, nil
}

// AddCategory registers a search category.
func (s *Service) AddCategory(c Category) error {
	return s.categories.Add(c)
}

// Categories lists the registered search categories.
func (s *Service) Categories() []Category {
	return s.categories.List()
}

// Find returns one committed document.
func (s *Service) Find(ctx context.Context, id string) (*store.Hit, error) {
	return s.backend.Find(ctx, id)
}

// Stats is a point-in-time view of the service.
type Stats struct {
	State         string               `json:"state"`
	Running       bool                 `json:"running"`
	Paused        bool                 `json:"paused"`
	Busy          bool                 `json:"busy"`
	Queue         map[string]int       `json:"queue"`
	QueueLen      int                  `json:"queue_len"`
	QueueCapacity int                  `json:"queue_capacity"`
	SinceCommit   int                  `json:"since_commit"`
	LastCommit    time.Time            `json:"last_commit,omitempty"`
	Backend       store.Stats          `json:"backend"`
	Tasks         []async.TaskSnapshot `json:"tasks"`
}

// Stats reports queue depth, tasks, state and backend counts.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		State:       s.state.String(),
		Running:     s.state == stateRunning && !s.paused,
		Paused:      s.paused,
		SinceCommit: s.sinceCommit,
		LastCommit:  s.lastCommit,
	}
	s.mu.Unlock()

	st.Busy = s.IsBusy()
	st.Queue = s.queue.Counts()
	st.QueueLen = s.queue.Len()
	st.QueueCapacity = s.queue.Capacity()
	st.Backend = s.backend.Stats()
	st.Tasks = s.Tasks()
	return st
}
