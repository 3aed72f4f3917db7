package resource

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// Registry maps identifier prefixes to resolvers. It is read-mostly and safe
// for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:    slog.Default(),
		resolvers: make(map[string]Resolver),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddResourceResolver registers resolver under prefix. Registering a prefix
// twice replaces the earlier resolver.
func (r *Registry) AddResourceResolver(prefix string, resolver Resolver) {
	r.mu.Lock()
	_, replaced := r.resolvers[prefix]
	r.resolvers[prefix] = resolver
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("resolver_replaced", slog.String("prefix", prefix))
	}
}

// Resolver returns the resolver registered for prefix.
func (r *Registry) Resolver(prefix string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[prefix]
	return res, ok
}

// Prefixes returns the registered prefixes, sorted.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.resolvers))
	for p := range r.resolvers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ResolveResource splits identifier on its first ':' and hands the rest to
// the prefix's resolver. It fails with ErrInvalidIdentifier when there is no
// ':' and with ErrNoResolver when the prefix is unknown.
func (r *Registry) ResolveResource(ctx context.Context, identifier string) (Resource, error) {
	prefix, path, ok := SplitIdentifier(identifier)
	if !ok {
		return nil, fmt.Errorf("resolve %q: %w", identifier, serrors.ErrInvalidIdentifier)
	}

	resolver, found := r.Resolver(prefix)
	if !found {
		return nil, fmt.Errorf("resolve %q: %w", identifier, serrors.ErrNoResolver)
	}
	return resolver.Resolve(ctx, path)
}

// SplitIdentifier splits "<prefix>:<path>" on the first ':'.
func SplitIdentifier(identifier string) (prefix, path string, ok bool) {
	i := strings.IndexByte(identifier, ':')
	if i < 0 {
		return "", "", false
	}
	return identifier[:i], identifier[i+1:], true
}

// Identifier joins prefix and path.
func Identifier(prefix, path string) string {
	return prefix + ":" + path
}

// CanonicalIdentifier returns identifier in the form documents are indexed
// under: the path is rooted at "/" and cleaned of "." and ".." elements, a
// trailing "/" is kept, and an action query string is left untouched. It
// fails with ErrInvalidIdentifier when the prefix or path is missing.
func CanonicalIdentifier(identifier string) (string, error) {
	prefix, p, ok := SplitIdentifier(identifier)
	if !ok || prefix == "" || p == "" {
		return "", fmt.Errorf("%q: %w", identifier, serrors.ErrInvalidIdentifier)
	}

	query := ""
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p, query = p[:i], p[i:]
	}
	clean := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return Identifier(prefix, clean+query), nil
}
