package queue

import (
	"context"
	"time"

	"github.com/Aman-CERP/labsearch/internal/resource"
)

// Kind tags what a work item asks the worker to do.
type Kind int

const (
	// KindAdd indexes a resource.
	KindAdd Kind = iota
	// KindDelete removes a document from the index.
	KindDelete
	// KindRun invokes a callback on the worker goroutine.
	KindRun
	// KindCommit asks the worker to run its commit policy.
	KindCommit
)

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindDelete:
		return "delete"
	case KindRun:
		return "run"
	case KindCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// RunFunc is work executed on the worker goroutine. ctx carries the per-item
// deadline and is cancelled on shutdown.
type RunFunc func(ctx context.Context) error

// Completer is told once whether an item succeeded.
type Completer interface {
	CompleteItem(success bool)
}

// Item is one unit of work. Exactly one of ID or Run is meaningful,
// depending on Kind.
type Item struct {
	Kind     Kind
	Priority Priority

	// ID is the resource identifier for add and delete items.
	ID string
	// Resource is an optional pre-resolved resource for add items.
	Resource resource.Resource
	// Run is the callback for run items.
	Run RunFunc

	// Task is notified when the item finishes. May be nil.
	Task Completer

	Enqueued time.Time

	index int
}

// Complete reports the outcome to the item's task, if any.
func (it *Item) Complete(success bool) {
	if it.Task != nil {
		it.Task.CompleteItem(success)
	}
}

// NewAdd returns an add item. res may be nil.
func NewAdd(id string, res resource.Resource, pri Priority) *Item {
	return &Item{Kind: KindAdd, ID: id, Resource: res, Priority: pri.OrDefault()}
}

// NewDelete returns a delete item.
func NewDelete(id string, pri Priority) *Item {
	return &Item{Kind: KindDelete, ID: id, Priority: pri.OrDefault()}
}

// NewRun returns a run item.
func NewRun(fn RunFunc, pri Priority) *Item {
	return &Item{Kind: KindRun, Run: fn, Priority: pri.OrDefault()}
}

// NewCommit returns a commit marker at commit priority.
func NewCommit() *Item {
	return &Item{Kind: KindCommit, Priority: PriorityCommit}
}
