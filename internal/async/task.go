// Package async tracks groups of queued work items as tasks.
package async

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the externally visible state of a task.
type TaskStatus string

const (
	// StatusIndexing means items are still outstanding or more may be added.
	StatusIndexing TaskStatus = "indexing"
	// StatusDone means the task is ready and every item has completed.
	StatusDone TaskStatus = "done"
	// StatusCancelled means the task was cancelled before finishing.
	StatusCancelled TaskStatus = "cancelled"
)

// TaskSnapshot is an immutable copy of a task's progress.
type TaskSnapshot struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	Status         string  `json:"status"`
	Default        bool    `json:"default,omitempty"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
}

// Task counts the items queued on its behalf. It becomes done once it is
// ready and nothing is outstanding. The default task never becomes done.
type Task struct {
	id          string
	description string
	isDefault   bool
	startTime   time.Time

	mu        sync.RWMutex
	total     int
	completed int
	failed    int
	ready     bool
	status    TaskStatus
	doneCh    chan struct{}
	onDone    []func(*Task)
}

// NewTask creates a task with a fresh UUID.
func NewTask(description string) *Task {
	return &Task{
		id:          uuid.NewString(),
		description: description,
		startTime:   time.Now(),
		status:      StatusIndexing,
		doneCh:      make(chan struct{}),
	}
}

// NewDefaultTask creates the catch-all task for items queued without one.
func NewDefaultTask() *Task {
	t := NewTask("default")
	t.isDefault = true
	return t
}

// ID returns the task UUID.
func (t *Task) ID() string { return t.id }

// Description returns the human-readable description.
func (t *Task) Description() string { return t.description }

// IsDefault reports whether t is the default task.
func (t *Task) IsDefault() bool { return t.isDefault }

// OnDone registers fn to run once when the task finishes or is cancelled.
func (t *Task) OnDone(fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDone = append(t.onDone, fn)
}

// AddItem records one more outstanding item.
func (t *Task) AddItem() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
}

// CompleteItem records the outcome of one item.
func (t *Task) CompleteItem(success bool) {
	t.mu.Lock()
	t.completed++
	if !success {
		t.failed++
	}
	fns := t.checkDoneLocked()
	t.mu.Unlock()
	runCallbacks(t, fns)
}

// SetReady declares that no further items will be added.
func (t *Task) SetReady() {
	t.mu.Lock()
	t.ready = true
	fns := t.checkDoneLocked()
	t.mu.Unlock()
	runCallbacks(t, fns)
}

// Cancel finishes the task without waiting for outstanding items.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.status != StatusIndexing {
		t.mu.Unlock()
		return
	}
	t.status = StatusCancelled
	close(t.doneCh)
	fns := t.onDone
	t.onDone = nil
	t.mu.Unlock()
	runCallbacks(t, fns)
}

// checkDoneLocked must be called with mu held. It returns the callbacks to
// run after unlocking.
func (t *Task) checkDoneLocked() []func(*Task) {
	if t.isDefault || !t.ready || t.status != StatusIndexing || t.completed < t.total {
		return nil
	}
	t.status = StatusDone
	close(t.doneCh)
	fns := t.onDone
	t.onDone = nil
	return fns
}

func runCallbacks(t *Task, fns []func(*Task)) {
	for _, fn := range fns {
		fn(t)
	}
}

// Done is closed when the task finishes or is cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.doneCh
}

// IsDone reports whether the task has finished or been cancelled.
func (t *Task) IsDone() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status != StatusIndexing
}

// Wait blocks until the task is done or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns an immutable copy of the current progress.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var progressPct float64
	if t.total > 0 {
		progressPct = float64(t.completed) / float64(t.total) * 100.0
	}

	return TaskSnapshot{
		ID:             t.id,
		Description:    t.description,
		Status:         string(t.status),
		Default:        t.isDefault,
		Total:          t.total,
		Completed:      t.completed,
		Failed:         t.failed,
		ProgressPct:    progressPct,
		ElapsedSeconds: int(time.Since(t.startTime).Seconds()),
	}
}
