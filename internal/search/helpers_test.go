package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/resource"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// memResource is an in-memory leaf or collection.
type memResource struct {
	id          string
	contentType string
	body        string
	props       map[string]string
	missing     bool
	collection  bool
	modified    time.Time
	panicOnOpen bool
}

func (m *memResource) DocumentID() string { return m.id }

func (m *memResource) Name() string {
	_, p, _ := resource.SplitIdentifier(m.id)
	return p[strings.LastIndex(p, "/")+1:]
}

func (m *memResource) ContainerID() string {
	prefix, p, _ := resource.SplitIdentifier(m.id)
	if i := strings.LastIndex(p, "/"); i > 0 {
		return resource.Identifier(prefix, p[:i])
	}
	return resource.Identifier(prefix, "/")
}

func (m *memResource) ContentType() string {
	if m.contentType == "" {
		return "text/plain"
	}
	return m.contentType
}

func (m *memResource) Exists(context.Context) bool { return !m.missing }
func (m *memResource) IsCollection() bool          { return m.collection }

func (m *memResource) Children(context.Context) ([]resource.Resource, error) { return nil, nil }

func (m *memResource) Open(context.Context) (io.ReadCloser, error) {
	if m.panicOnOpen {
		panic("open exploded")
	}
	return io.NopCloser(strings.NewReader(m.body)), nil
}

func (m *memResource) LastModified() time.Time { return m.modified }

func (m *memResource) Properties() map[string]string {
	if m.props == nil {
		return map[string]string{}
	}
	return m.props
}

func (m *memResource) ExecuteHref() string { return "/files" + strings.TrimPrefix(m.id, "dav:") }

// memResolver serves memResources by identifier.
type memResolver struct {
	mu        sync.Mutex
	resources map[string]*memResource
}

func newMemResolver(rs ...*memResource) *memResolver {
	r := &memResolver{resources: make(map[string]*memResource)}
	for _, res := range rs {
		r.resources[res.id] = res
	}
	return r
}

func (r *memResolver) ResolveResource(_ context.Context, id string) (resource.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, serrors.ErrResourceNotFound)
	}
	return res, nil
}

// recordingBackend records every call and keeps committed documents.
type recordingBackend struct {
	mu          sync.Mutex
	indexed     []string
	deleted     []string
	containers  []string
	commits     int
	clears      int
	failIndex   map[string]bool
	indexDelay  time.Duration
	failCommits int // the next n commits fail and drop pending writes
	pending     map[string]*store.Document
	committed   map[string]*store.Document
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		failIndex: make(map[string]bool),
		pending:   make(map[string]*store.Document),
		committed: make(map[string]*store.Document),
	}
}

func (b *recordingBackend) Index(ctx context.Context, doc *store.Document) error {
	if b.indexDelay > 0 {
		select {
		case <-time.After(b.indexDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexed = append(b.indexed, doc.ID)
	if b.failIndex[doc.ID] {
		return fmt.Errorf("index %s refused", doc.ID)
	}
	b.pending[doc.ID] = doc
	return nil
}

func (b *recordingBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	delete(b.pending, id)
	delete(b.committed, id)
	return nil
}

func (b *recordingBackend) DeleteContainer(_ context.Context, container string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.containers = append(b.containers, container)
	return nil
}

func (b *recordingBackend) Commit(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commits++
	if b.failCommits > 0 {
		b.failCommits--
		b.pending = make(map[string]*store.Document)
		return fmt.Errorf("commit refused")
	}
	for id, d := range b.pending {
		b.committed[id] = d
	}
	b.pending = make(map[string]*store.Document)
	return nil
}

func (b *recordingBackend) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
	b.pending = make(map[string]*store.Document)
	b.committed = make(map[string]*store.Document)
	return nil
}

func (b *recordingBackend) Search(_ context.Context, q store.Query) (*store.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := &store.Result{}
	for _, d := range b.committed {
		if strings.Contains(strings.ToLower(d.Body), strings.ToLower(q.Text)) {
			res.Hits = append(res.Hits, &store.Hit{ID: d.ID, Title: d.Title})
		}
	}
	res.Total = uint64(len(res.Hits))
	return res, nil
}

func (b *recordingBackend) Find(_ context.Context, id string) (*store.Hit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.committed[id]
	if !ok {
		return nil, serrors.ErrResourceNotFound
	}
	return &store.Hit{ID: d.ID, Title: d.Title}, nil
}

func (b *recordingBackend) Stats() store.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return store.Stats{Backend: "recording", DocumentCount: len(b.committed), Pending: len(b.pending)}
}

func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) indexedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.indexed...)
}

func (b *recordingBackend) commitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commits
}

func testConfig() Config {
	return Config{
		QueueCapacity:   100,
		CommitThreshold: 1000,
		CommitIdle:      20 * time.Millisecond,
		ItemTimeout:     time.Second,
		ShutdownGrace:   500 * time.Millisecond,
		BusyThreshold:   50,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, b store.Backend, r Resolver, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	svc, err := NewService(b, r, testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Stop(context.Background())
	})
	return svc
}

// recordingObserver counts events.
type recordingObserver struct {
	mu        sync.Mutex
	processed map[string]int
	failed    map[string]int
	rejected  int
	commits   int
	searches  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{processed: make(map[string]int), failed: make(map[string]int)}
}

func (o *recordingObserver) ItemProcessed(kind string, ok bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed[kind]++
	if !ok {
		o.failed[kind]++
	}
}

func (o *recordingObserver) Rejected(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected++
}

func (o *recordingObserver) Committed(bool, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commits++
}

func (o *recordingObserver) QueueDepth(map[string]int) {}

func (o *recordingObserver) Searched(int, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.searches++
}
