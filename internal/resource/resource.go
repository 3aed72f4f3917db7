// Package resource turns prefixed identifiers such as "dav:/reports/q1.pdf"
// into indexable resources through a registry of per-prefix resolvers.
package resource

import (
	"context"
	"io"
	"time"
)

// Resource is a handle to indexable content: a file, a collection or a
// virtual endpoint.
type Resource interface {
	// DocumentID is the full "<prefix>:<path>" identifier.
	DocumentID() string
	// Name is the display name, usually the last path segment.
	Name() string
	// ContainerID groups documents for bulk deletion.
	ContainerID() string
	ContentType() string

	Exists(ctx context.Context) bool
	IsCollection() bool
	// Children lists the members of a collection. Leaves return nil.
	Children(ctx context.Context) ([]Resource, error)
	// Open returns the content. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)

	LastModified() time.Time
	// Properties carries "title", "categories" and free-form metadata.
	Properties() map[string]string
	// ExecuteHref is the URL search hits link to.
	ExecuteHref() string
}

// Resolver resolves the path part of an identifier for one prefix.
type Resolver interface {
	Resolve(ctx context.Context, path string) (Resource, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, path string) (Resource, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, path string) (Resource, error) {
	return f(ctx, path)
}
