package search

import (
	"github.com/Aman-CERP/labsearch/internal/async"
	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/resource"
)

// IndexTask groups queued items so a caller can follow their progress.
// Each item is counted before it is queued and completed once the worker
// finishes it, whatever the outcome.
type IndexTask struct {
	*async.Task
	svc *Service
}

// AddResource queues identifier for indexing under this task.
func (t *IndexTask) AddResource(identifier string, pri queue.Priority) error {
	return t.AddResourceWith(identifier, nil, pri)
}

// AddResourceWith queues an add item under the canonical form of
// identifier. res may be nil, in which case the identifier is resolved when
// the item is taken.
func (t *IndexTask) AddResourceWith(identifier string, res resource.Resource, pri queue.Priority) error {
	identifier, err := resource.CanonicalIdentifier(identifier)
	if err != nil {
		return err
	}
	return t.svc.enqueue(queue.NewAdd(identifier, res, pri), t)
}

// AddRunnable queues fn under this task.
func (t *IndexTask) AddRunnable(fn queue.RunFunc, pri queue.Priority) error {
	return t.svc.enqueue(queue.NewRun(fn, pri), t)
}

// DeleteResource queues removal of identifier under this task. The
// identifier is canonicalized the same way AddResourceWith does it.
func (t *IndexTask) DeleteResource(identifier string, pri queue.Priority) error {
	identifier, err := resource.CanonicalIdentifier(identifier)
	if err != nil {
		return err
	}
	return t.svc.enqueue(queue.NewDelete(identifier, pri), t)
}
