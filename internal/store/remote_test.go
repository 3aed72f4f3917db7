package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// fakeIndexService records batches and answers searches.
type fakeIndexService struct {
	mu      sync.Mutex
	batches []remoteBatch
	commits int
	clears  int
}

func (f *fakeIndexService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/documents/batch", func(w http.ResponseWriter, r *http.Request) {
		var b remoteBatch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.batches = append(f.batches, b)
		f.mu.Unlock()
	})
	mux.HandleFunc("POST /v1/commit", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.commits++
		f.mu.Unlock()
	})
	mux.HandleFunc("POST /v1/clear", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.clears++
		f.mu.Unlock()
	})
	mux.HandleFunc("POST /v1/search", func(w http.ResponseWriter, r *http.Request) {
		var q Query
		_ = json.NewDecoder(r.Body).Decode(&q)
		_ = json.NewEncoder(w).Encode(Result{
			Hits:  []*Hit{{ID: "dav:/a.txt", Title: q.Text}},
			Total: 1,
		})
	})
	mux.HandleFunc("GET /v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /v1/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Stats{DocumentCount: 7})
	})
	return mux
}

func newTestRemote(t *testing.T, h http.Handler, retries int) *RemoteBackend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	r, err := NewRemoteBackend(RemoteConfig{
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return r
}

func TestRemoteBackend_CommitFlushesBufferedWrites(t *testing.T) {
	// Given
	svc := &fakeIndexService{}
	r := newTestRemote(t, svc.handler(), 0)
	ctx := context.Background()

	require.NoError(t, r.Index(ctx, doc("dav:/a.txt", "A", "plasma", "dav:/")))
	require.NoError(t, r.Delete(ctx, "dav:/old.txt"))
	require.NoError(t, r.DeleteContainer(ctx, "dav:/tmp"))
	assert.Equal(t, 3, r.Stats().Pending)

	// When
	require.NoError(t, r.Commit(ctx))

	// Then: one batch in order, then a commit
	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.batches, 1)
	ops := svc.batches[0].Operations
	require.Len(t, ops, 3)
	assert.Equal(t, "index", ops[0].Op)
	assert.Equal(t, "dav:/a.txt", ops[0].Document.ID)
	assert.Equal(t, "delete", ops[1].Op)
	assert.Equal(t, "delete_container", ops[2].Op)
	assert.Equal(t, "dav:/tmp", ops[2].Container)
	assert.Equal(t, 1, svc.commits)
}

func TestRemoteBackend_SearchAndStats(t *testing.T) {
	r := newTestRemote(t, (&fakeIndexService{}).handler(), 0)

	res, err := r.Search(context.Background(), Query{Text: "plasma"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "plasma", res.Hits[0].Title)

	assert.Equal(t, 7, r.Stats().DocumentCount)
}

func TestRemoteBackend_FindNotFound(t *testing.T) {
	r := newTestRemote(t, (&fakeIndexService{}).handler(), 0)

	_, err := r.Find(context.Background(), "dav:/missing.txt")

	assert.ErrorIs(t, err, serrors.ErrResourceNotFound)
}

func TestRemoteBackend_RetriesServerErrors(t *testing.T) {
	// Given: a service that fails twice before succeeding
	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
	})
	r := newTestRemote(t, h, 3)

	// When
	err := r.Clear(context.Background())

	// Then
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteBackend_DoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	r := newTestRemote(t, h, 3)

	err := r.Clear(context.Background())

	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeRemoteRejected, serrors.GetCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteBackend_OpensCircuit(t *testing.T) {
	// Given: a service that always fails
	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})
	r := newTestRemote(t, h, 0)
	ctx := context.Background()

	// When: enough failures to trip the breaker
	for i := 0; i < 5; i++ {
		_ = r.Clear(ctx)
	}
	err := r.Clear(ctx)

	// Then: the sixth call fails fast
	assert.ErrorIs(t, err, serrors.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestNewRemoteBackend_InvalidURL(t *testing.T) {
	_, err := NewRemoteBackend(RemoteConfig{BaseURL: "not a url"})
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeConfigInvalid, serrors.GetCode(err))
}
