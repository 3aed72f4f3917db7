package resource

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// PrefixDav is the conventional prefix for file-system resources.
const PrefixDav = "dav"

// FileResolver serves a directory tree. Paths are slash-separated, rooted
// at "/" and cannot escape the root.
type FileResolver struct {
	root     string
	prefix   string
	hrefBase string
}

// FileOption configures a FileResolver.
type FileOption func(*FileResolver)

// WithPrefix sets the identifier prefix (default "dav").
func WithPrefix(prefix string) FileOption {
	return func(r *FileResolver) { r.prefix = prefix }
}

// WithHrefBase sets the URL prefix used for ExecuteHref (default "/_webdav").
func WithHrefBase(base string) FileOption {
	return func(r *FileResolver) { r.hrefBase = strings.TrimRight(base, "/") }
}

// NewFileResolver serves root.
func NewFileResolver(root string, opts ...FileOption) (*FileResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, serrors.IOError("resolve dav root", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, serrors.IOError(fmt.Sprintf("dav root %s", abs), err)
	}
	if !info.IsDir() {
		return nil, serrors.New(serrors.ErrCodeInvalidPath, fmt.Sprintf("dav root %s is not a directory", abs), nil)
	}

	r := &FileResolver{root: abs, prefix: PrefixDav, hrefBase: "/_webdav"}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the absolute root directory.
func (r *FileResolver) Root() string {
	return r.root
}

// Prefix returns the identifier prefix.
func (r *FileResolver) Prefix() string {
	return r.prefix
}

// Resolve returns the resource at p. A missing file still resolves; its
// Exists reports false.
func (r *FileResolver) Resolve(_ context.Context, p string) (Resource, error) {
	rel := path.Clean("/" + p)
	res := &fileResource{resolver: r, rel: rel, abs: r.abs(rel)}
	if info, err := os.Stat(res.abs); err == nil {
		res.info = info
	}
	return res, nil
}

// RelPath maps an absolute file path under the root to its resource path.
func (r *FileResolver) RelPath(abs string) (string, bool) {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path.Clean("/" + filepath.ToSlash(rel)), true
}

func (r *FileResolver) abs(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

type fileResource struct {
	resolver *FileResolver
	rel      string
	abs      string
	info     fs.FileInfo
}

func (f *fileResource) DocumentID() string {
	return Identifier(f.resolver.prefix, f.rel)
}

func (f *fileResource) Name() string {
	if f.rel == "/" {
		return filepath.Base(f.resolver.root)
	}
	return path.Base(f.rel)
}

// ContainerID is the identifier of the parent directory.
func (f *fileResource) ContainerID() string {
	return Identifier(f.resolver.prefix, path.Dir(f.rel))
}

func (f *fileResource) ContentType() string {
	if f.IsCollection() {
		return "text/directory"
	}
	return DetectContentType(f.rel)
}

func (f *fileResource) Exists(_ context.Context) bool {
	_, err := os.Stat(f.abs)
	return err == nil
}

func (f *fileResource) IsCollection() bool {
	return f.info != nil && f.info.IsDir()
}

func (f *fileResource) Children(_ context.Context) ([]Resource, error) {
	if !f.IsCollection() {
		return nil, nil
	}
	entries, err := os.ReadDir(f.abs)
	if err != nil {
		return nil, serrors.IOError(fmt.Sprintf("list %s", f.DocumentID()), err)
	}

	children := make([]Resource, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		rel := path.Join(f.rel, e.Name())
		children = append(children, &fileResource{
			resolver: f.resolver,
			rel:      rel,
			abs:      f.resolver.abs(rel),
			info:     info,
		})
	}
	return children, nil
}

func (f *fileResource) Open(_ context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.abs)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("open %s: %w", f.DocumentID(), serrors.ErrResourceNotFound)
	}
	if err != nil {
		return nil, serrors.IOError(fmt.Sprintf("open %s", f.DocumentID()), err)
	}
	return file, nil
}

func (f *fileResource) LastModified() time.Time {
	if f.info == nil {
		return time.Time{}
	}
	return f.info.ModTime()
}

func (f *fileResource) Properties() map[string]string {
	return map[string]string{}
}

func (f *fileResource) ExecuteHref() string {
	u := url.URL{Path: f.resolver.hrefBase + f.rel}
	return u.EscapedPath()
}
