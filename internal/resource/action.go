package resource

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/pkg/version"
)

// PrefixAction is the prefix for HTTP endpoint resources.
const PrefixAction = "action"

// ActionResolver resolves paths below an HTTP base URL. Existence and
// content type come from a HEAD request; content from a GET.
type ActionResolver struct {
	base   *url.URL
	client *http.Client
}

// NewActionResolver creates a resolver for baseURL. A nil client gets a
// 10 second timeout.
func NewActionResolver(baseURL string, client *http.Client) (*ActionResolver, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, serrors.ConfigError(fmt.Sprintf("invalid action base url %q", baseURL), err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ActionResolver{base: u, client: client}, nil
}

// IdentifierFor maps an absolute URL below the base to its identifier.
func (r *ActionResolver) IdentifierFor(rawURL string) (string, bool) {
	base := r.base.String()
	if !strings.HasPrefix(rawURL, base) {
		return "", false
	}
	rest := strings.TrimPrefix(rawURL, base)
	if rest == "" {
		rest = "/"
	}
	if !strings.HasPrefix(rest, "/") {
		return "", false
	}
	return Identifier(PrefixAction, rest), true
}

// Resolve issues a HEAD request for p.
func (r *ActionResolver) Resolve(ctx context.Context, p string) (Resource, error) {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	target := r.base.String() + p

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return nil, serrors.ValidationError(fmt.Sprintf("action path %q", p), err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, serrors.NetworkError(fmt.Sprintf("HEAD %s", target), err)
	}
	_ = resp.Body.Close()

	res := &actionResource{
		resolver: r,
		path:     p,
		href:     target,
		status:   resp.StatusCode,
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			res.contentType = mt
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			res.modified = t
		}
	}
	return res, nil
}

type actionResource struct {
	resolver    *ActionResolver
	path        string
	href        string
	status      int
	contentType string
	modified    time.Time
}

func (a *actionResource) DocumentID() string {
	return Identifier(PrefixAction, a.path)
}

func (a *actionResource) Name() string {
	u, err := url.Parse(a.path)
	if err != nil || u.Path == "" || u.Path == "/" {
		return a.path
	}
	return path.Base(u.Path)
}

func (a *actionResource) ContainerID() string {
	u, err := url.Parse(a.path)
	if err != nil {
		return Identifier(PrefixAction, "/")
	}
	return Identifier(PrefixAction, path.Dir(path.Clean("/"+u.Path)))
}

func (a *actionResource) ContentType() string {
	if a.contentType == "" {
		return "text/html"
	}
	return a.contentType
}

func (a *actionResource) Exists(_ context.Context) bool {
	return a.status > 0 && a.status < http.StatusBadRequest
}

func (a *actionResource) IsCollection() bool { return false }

func (a *actionResource) Children(_ context.Context) ([]Resource, error) { return nil, nil }

func (a *actionResource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.href, nil)
	if err != nil {
		return nil, serrors.ValidationError(fmt.Sprintf("action url %q", a.href), err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := a.resolver.client.Do(req)
	if err != nil {
		return nil, serrors.NetworkError(fmt.Sprintf("GET %s", a.href), err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", a.href, serrors.ErrResourceNotFound)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return nil, serrors.New(serrors.ErrCodeRemoteRejected,
			fmt.Sprintf("GET %s: status %d", a.href, resp.StatusCode), nil)
	}
	return resp.Body, nil
}

func (a *actionResource) LastModified() time.Time { return a.modified }

func (a *actionResource) Properties() map[string]string { return map[string]string{} }

func (a *actionResource) ExecuteHref() string { return a.href }
