package resource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// PrefixS3 is the prefix for objects in an S3-compatible bucket.
const PrefixS3 = "s3"

// ObjectMeta describes one object or common prefix.
type ObjectMeta struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	Metadata     map[string]string
}

// ObjectAPI is the slice of an object store the S3 resolver needs.
type ObjectAPI interface {
	Stat(ctx context.Context, key string) (ObjectMeta, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns the direct children of prefix. Sub-prefixes end in "/".
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)
}

// S3Config configures the MinIO client.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// S3Resolver resolves paths to objects. Paths ending in "/" (and "/"
// itself) are collections.
type S3Resolver struct {
	api  ObjectAPI
	href string
}

// NewS3Resolver connects to the bucket described by cfg.
func NewS3Resolver(cfg S3Config) (*S3Resolver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, serrors.ConfigError(fmt.Sprintf("s3 endpoint %q", cfg.Endpoint), err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	href := (&url.URL{Scheme: scheme, Host: cfg.Endpoint, Path: "/" + cfg.Bucket}).String()
	return NewS3ResolverWithAPI(&minioObjects{client: client, bucket: cfg.Bucket}, href), nil
}

// NewS3ResolverWithAPI builds a resolver over any ObjectAPI. hrefBase is
// prepended to object paths in ExecuteHref.
func NewS3ResolverWithAPI(api ObjectAPI, hrefBase string) *S3Resolver {
	return &S3Resolver{api: api, href: strings.TrimRight(hrefBase, "/")}
}

// Resolve stats the object at p. Collections are not stat'ed.
func (r *S3Resolver) Resolve(ctx context.Context, p string) (Resource, error) {
	p = "/" + strings.TrimLeft(p, "/")
	if strings.HasSuffix(p, "/") {
		return &s3Resource{resolver: r, path: p, exists: true}, nil
	}

	meta, err := r.api.Stat(ctx, strings.TrimPrefix(p, "/"))
	if err != nil {
		if isNoSuchKey(err) {
			return &s3Resource{resolver: r, path: p}, nil
		}
		return nil, serrors.NetworkError(fmt.Sprintf("stat s3:%s", p), err)
	}
	return &s3Resource{resolver: r, path: p, meta: meta, exists: true}, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

type s3Resource struct {
	resolver *S3Resolver
	path     string
	meta     ObjectMeta
	exists   bool
}

func (s *s3Resource) key() string {
	return strings.TrimPrefix(s.path, "/")
}

func (s *s3Resource) DocumentID() string { return Identifier(PrefixS3, s.path) }

func (s *s3Resource) Name() string {
	trimmed := strings.TrimSuffix(s.path, "/")
	if trimmed == "" {
		return "/"
	}
	return path.Base(trimmed)
}

func (s *s3Resource) ContainerID() string {
	return Identifier(PrefixS3, path.Dir(strings.TrimSuffix(s.path, "/")))
}

func (s *s3Resource) ContentType() string {
	if s.IsCollection() {
		return "text/directory"
	}
	if s.meta.ContentType != "" && s.meta.ContentType != "application/octet-stream" && s.meta.ContentType != "binary/octet-stream" {
		return s.meta.ContentType
	}
	return DetectContentType(s.path)
}

func (s *s3Resource) Exists(ctx context.Context) bool {
	if s.IsCollection() {
		return true
	}
	_, err := s.resolver.api.Stat(ctx, s.key())
	return err == nil
}

func (s *s3Resource) IsCollection() bool { return strings.HasSuffix(s.path, "/") }

func (s *s3Resource) Children(ctx context.Context) ([]Resource, error) {
	if !s.IsCollection() {
		return nil, nil
	}
	objects, err := s.resolver.api.List(ctx, s.key())
	if err != nil {
		return nil, serrors.NetworkError(fmt.Sprintf("list %s", s.DocumentID()), err)
	}

	children := make([]Resource, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == s.key() {
			continue
		}
		children = append(children, &s3Resource{
			resolver: s.resolver,
			path:     "/" + obj.Key,
			meta:     obj,
			exists:   true,
		})
	}
	return children, nil
}

func (s *s3Resource) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.resolver.api.Get(ctx, s.key())
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("get %s: %w", s.DocumentID(), serrors.ErrResourceNotFound)
		}
		return nil, serrors.NetworkError(fmt.Sprintf("get %s", s.DocumentID()), err)
	}
	return rc, nil
}

func (s *s3Resource) LastModified() time.Time { return s.meta.LastModified }

// Properties exposes user metadata (x-amz-meta-title, x-amz-meta-categories)
// with lowercased keys.
func (s *s3Resource) Properties() map[string]string {
	props := make(map[string]string, len(s.meta.Metadata))
	for k, v := range s.meta.Metadata {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		props[k] = v
	}
	return props
}

func (s *s3Resource) ExecuteHref() string { return s.resolver.href + s.path }

// minioObjects implements ObjectAPI over a MinIO client.
type minioObjects struct {
	client *minio.Client
	bucket string
}

func (m *minioObjects) Stat(ctx context.Context, key string) (ObjectMeta, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectMeta{}, err
	}
	return toMeta(info), nil
}

func (m *minioObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before reading.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

func (m *minioObjects) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	var out []ObjectMeta
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, toMeta(obj))
	}
	return out, nil
}

func toMeta(info minio.ObjectInfo) ObjectMeta {
	meta := make(map[string]string, len(info.UserMetadata))
	for k, v := range info.UserMetadata {
		meta[k] = v
	}
	return ObjectMeta{
		Key:          info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		Metadata:     meta,
	}
}
