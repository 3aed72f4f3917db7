package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// DefaultCapacity bounds a queue created with a non-positive capacity.
const DefaultCapacity = 100000

// itemHeap implements heap.Interface, highest priority on top.
type itemHeap []*Item

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return h[i].Priority > h[j].Priority }
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*Item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a bounded priority queue safe for concurrent producers. Items of
// equal priority come out in no particular order.
type Queue struct {
	capacity int

	mu     sync.Mutex
	heap   itemHeap
	counts map[Kind]int
	wakeCh chan struct{}
}

// New creates a queue holding at most capacity items.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity: capacity,
		heap:     make(itemHeap, 0),
		counts:   make(map[Kind]int),
		wakeCh:   make(chan struct{}, 1),
	}
}

// Push adds it without blocking. A full queue rejects the item with an
// error matching serrors.ErrQueueFull.
func (q *Queue) Push(it *Item) error {
	if it == nil {
		return serrors.ValidationError("nil work item", nil)
	}
	it.Priority = it.Priority.OrDefault()
	if !it.Priority.Valid() {
		return serrors.New(serrors.ErrCodeInvalidPriority, fmt.Sprintf("invalid priority %d", it.Priority), nil)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) >= q.capacity {
		return fmt.Errorf("%s item at %s: %w", it.Kind, it.Priority, serrors.ErrQueueFull)
	}
	if it.Enqueued.IsZero() {
		it.Enqueued = time.Now()
	}
	heap.Push(&q.heap, it)
	q.counts[it.Kind]++
	q.signal()
	return nil
}

// TryTake pops the highest priority item, or returns nil when empty.
func (q *Queue) TryTake() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil
	}
	it := heap.Pop(&q.heap).(*Item)
	q.counts[it.Kind]--
	if len(q.heap) > 0 {
		q.signal()
	}
	return it
}

// Take blocks until an item is available or ctx is done. With idle > 0 it
// returns (nil, nil) once idle elapses without an item.
func (q *Queue) Take(ctx context.Context, idle time.Duration) (*Item, error) {
	var timeout <-chan time.Time
	if idle > 0 {
		timer := time.NewTimer(idle)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		if it := q.TryTake(); it != nil {
			return it, nil
		}
		select {
		case <-q.wakeCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, nil
		}
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Count returns the number of queued items of kind k.
func (q *Queue) Count(k Kind) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[k]
}

// Counts returns queued items per kind name.
func (q *Queue) Counts() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[string]int, len(q.counts))
	for k, n := range q.counts {
		if n > 0 {
			out[k.String()] = n
		}
	}
	return out
}

// Capacity returns the bound given to New.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Drain removes and returns every queued item.
func (q *Queue) Drain() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]*Item, len(q.heap))
	copy(items, q.heap)
	for _, it := range items {
		it.index = -1
	}
	q.heap = q.heap[:0]
	q.counts = make(map[Kind]int)
	return items
}

// signal wakes a blocked Take. Must be called with mu held.
func (q *Queue) signal() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}
