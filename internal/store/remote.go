package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/pkg/version"
)

// RemoteConfig configures RemoteBackend.
type RemoteConfig struct {
	// BaseURL is the root of the indexing service, e.g. http://search:8080.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// RetryDelay is the first backoff wait. Zero keeps the default.
	RetryDelay time.Duration
	Logger     *slog.Logger
	// Client overrides the HTTP client. Tests use it.
	Client *http.Client
}

// RemoteBackend sends documents to an external indexing service over
// HTTP/JSON. Writes are buffered and flushed on Commit.
type RemoteBackend struct {
	base    string
	client  *http.Client
	timeout time.Duration
	retry   serrors.RetryConfig
	breaker *serrors.CircuitBreaker
	logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	pending []remoteOp
}

var _ Backend = (*RemoteBackend)(nil)

type remoteOp struct {
	Op        string    `json:"op"`
	ID        string    `json:"id,omitempty"`
	Container string    `json:"container,omitempty"`
	Document  *Document `json:"document,omitempty"`
}

type remoteBatch struct {
	Operations []remoteOp `json:"operations"`
}

// NewRemoteBackend validates cfg and returns a backend. No request is made
// until the first write is committed or a query runs.
func NewRemoteBackend(cfg RemoteConfig) (*RemoteBackend, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, serrors.ConfigError(fmt.Sprintf("invalid remote URL %q", cfg.BaseURL), err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		// No client-level Timeout; each request carries a context deadline.
		client = &http.Client{}
	}

	retry := serrors.DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}

	return &RemoteBackend{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		timeout: cfg.Timeout,
		retry:   retry,
		breaker: serrors.NewCircuitBreaker("remote-index"),
		logger:  cfg.Logger,
	}, nil
}

func (r *RemoteBackend) buffer(op remoteOp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return serrors.ErrServiceStopped
	}
	r.pending = append(r.pending, op)
	return nil
}

// Index buffers doc until Commit.
func (r *RemoteBackend) Index(_ context.Context, doc *Document) error {
	return r.buffer(remoteOp{Op: "index", ID: doc.ID, Document: doc})
}

// Delete buffers removal of id.
func (r *RemoteBackend) Delete(_ context.Context, id string) error {
	return r.buffer(remoteOp{Op: "delete", ID: id})
}

// DeleteContainer buffers removal of a container.
func (r *RemoteBackend) DeleteContainer(_ context.Context, containerID string) error {
	return r.buffer(remoteOp{Op: "delete_container", Container: containerID})
}

// Commit sends buffered operations and asks the service to commit. The
// buffer is dropped whether or not the flush succeeds.
func (r *RemoteBackend) Commit(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return serrors.ErrServiceStopped
	}
	ops := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(ops) > 0 {
		if err := r.call(ctx, http.MethodPost, "/v1/documents/batch", remoteBatch{Operations: ops}, nil); err != nil {
			r.logger.Error("remote_flush_failed",
				slog.Int("operations", len(ops)),
				slog.String("error", err.Error()))
			return serrors.New(serrors.ErrCodeCommitFailed, "remote flush failed", err)
		}
	}
	if err := r.call(ctx, http.MethodPost, "/v1/commit", nil, nil); err != nil {
		return serrors.New(serrors.ErrCodeCommitFailed, "remote commit failed", err)
	}
	return nil
}

// Clear drops buffered writes and the remote index.
func (r *RemoteBackend) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
	return r.call(ctx, http.MethodPost, "/v1/clear", nil, nil)
}

// Search forwards q to the service.
func (r *RemoteBackend) Search(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, serrors.ErrEmptyQuery
	}
	var res Result
	if err := r.call(ctx, http.MethodPost, "/v1/search", q, &res); err != nil {
		return nil, err
	}
	if res.Hits == nil {
		res.Hits = []*Hit{}
	}
	return &res, nil
}

// Find fetches one document.
func (r *RemoteBackend) Find(ctx context.Context, id string) (*Hit, error) {
	var h Hit
	if err := r.call(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(id), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Stats asks the service for its document count. Failures report zero.
func (r *RemoteBackend) Stats() Stats {
	r.mu.Lock()
	pending := len(r.pending)
	r.mu.Unlock()

	st := Stats{Backend: KindRemote, Pending: pending}
	var remote Stats
	if err := r.call(context.Background(), http.MethodGet, "/v1/stats", nil, &remote); err != nil {
		r.logger.Debug("remote_stats_failed", slog.String("error", err.Error()))
		return st
	}
	st.DocumentCount = remote.DocumentCount
	return st
}

// Close discards buffered writes.
func (r *RemoteBackend) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.pending = nil
	return nil
}

// call performs one JSON request with retries behind the circuit breaker.
func (r *RemoteBackend) call(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return serrors.InternalError("failed to encode request", err)
		}
	}

	return serrors.Retry(ctx, r.retry, func() error {
		err := r.breaker.Call(func() error {
			return r.do(ctx, method, path, payload, out)
		})
		if errors.Is(err, serrors.ErrCircuitOpen) {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		return err
	})
}

func (r *RemoteBackend) do(ctx context.Context, method, path string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, body)
	if err != nil {
		return serrors.InternalError("failed to build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return serrors.New(serrors.ErrCodeNetworkTimeout, fmt.Sprintf("%s %s timed out", method, path), err)
		}
		return serrors.NetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return fmt.Errorf("%s: %w", path, serrors.ErrResourceNotFound)
	case resp.StatusCode >= 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return serrors.NetworkError(fmt.Sprintf("remote returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return serrors.New(serrors.ErrCodeRemoteRejected,
			fmt.Sprintf("remote rejected request with %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return serrors.New(serrors.ErrCodeRemoteRejected, "failed to decode response", err)
	}
	return nil
}
