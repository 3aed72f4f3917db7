package store

import (
	"context"
	"fmt"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// NoopBackend accepts every write and finds nothing. It is used when search
// is disabled.
type NoopBackend struct{}

var _ Backend = NoopBackend{}

func (NoopBackend) Index(context.Context, *Document) error { return nil }
func (NoopBackend) Delete(context.Context, string) error { return nil }
func (NoopBackend) DeleteContainer(context.Context, string) error { return nil }
func (NoopBackend) Commit(context.Context) error { return nil }
func (NoopBackend) Clear(context.Context) error { return nil }
func (NoopBackend) Stats() Stats { return Stats{Backend: KindNoop} }
func (NoopBackend) Close() error { return nil }

func (NoopBackend) Search(context.Context, Query) (*Result, error) {
	return &Result{Hits: []*Hit{}}, nil
}

func (NoopBackend) Find(_ context.Context, id string) (*Hit, error) {
	return nil, fmt.Errorf("document %s: %w", id, serrors.ErrResourceNotFound)
}
