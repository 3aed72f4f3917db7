package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Aman-CERP/labsearch/internal/config"
	"github.com/Aman-CERP/labsearch/internal/crawler"
	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/extract"
	"github.com/Aman-CERP/labsearch/internal/metrics"
	"github.com/Aman-CERP/labsearch/internal/resource"
	"github.com/Aman-CERP/labsearch/internal/search"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// stack is a search service wired to its resolvers, backend and tracker.
// It owns the data directory lock until close.
type stack struct {
	cfg      *config.Config
	logger   *slog.Logger
	lock     *store.DirLock
	registry *resource.Registry
	dav      *resource.FileResolver
	svc      *search.Service
	crawler  *crawler.Crawler
	gatherer prometheus.Gatherer
}

// openStack builds the service described by cfg. The service is not
// started.
func openStack(cfg *config.Config, logger *slog.Logger) (s *stack, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Index.DataDir, 0o755); err != nil {
		return nil, serrors.IOError("create data directory", err)
	}

	lock := store.NewDirLock(cfg.Index.DataDir)
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, serrors.ErrIndexLocked) {
			return nil, serrors.New(serrors.ErrCodeIndexLocked, err.Error(), err).
				WithSuggestion("another labsearch process owns this index; use its control socket or stop it first")
		}
		return nil, err
	}

	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		_ = lock.Unlock()
	}()

	registry, dav, actions, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	backend, err := store.NewBackend(store.Options{
		Kind:          cfg.Index.Backend,
		DataDir:       cfg.Index.DataDir,
		SQLiteCacheMB: cfg.Index.SQLiteCacheMB,
		RemoteURL:     cfg.Remote.URL,
		RemoteTimeout: config.Duration(cfg.Remote.Timeout, 10*time.Second),
		MaxRetries:    cfg.Remote.MaxRetries,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	closers = append(closers, backend.Close)

	tracker, err := store.NewTracker(store.TrackerPath(cfg.Index.DataDir), cfg.Index.TrackerCacheSize, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, tracker.Close)

	skip, err := crawler.NewSkipRules(cfg.Crawler.SkipPatterns...)
	if err != nil {
		return nil, serrors.ConfigError("crawler.skip_patterns", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer := metrics.New(reg)

	categories, err := search.CategoriesFromNames(cfg.Index.Categories...)
	if err != nil {
		return nil, serrors.ConfigError("index.categories", err)
	}

	opts := []search.Option{
		search.WithLogger(logger),
		search.WithCategories(categories),
		search.WithTracker(tracker),
		search.WithObserver(observer),
		search.WithExtractors(extract.NewRegistry()),
	}
	if actions != nil {
		opts = append(opts, search.WithActionResolver(actions))
	}

	svc, err := search.NewService(backend, registry, search.Config{
		QueueCapacity:   cfg.Index.QueueCapacity,
		CommitThreshold: cfg.Index.CommitThreshold,
		CommitIdle:      config.Duration(cfg.Index.CommitIdle, 0),
		ItemTimeout:     config.Duration(cfg.Index.ItemTimeout, 0),
		ShutdownGrace:   config.Duration(cfg.Index.ShutdownGrace, 0),
		PageSize:        cfg.Index.PageSize,
	}, opts...)
	if err != nil {
		return nil, err
	}

	c := crawler.New(
		crawler.WithSkipRules(skip),
		crawler.WithTracker(tracker),
		crawler.WithLogger(logger),
	)

	logger.Info("stack_opened",
		slog.String("backend", cfg.Index.Backend),
		slog.String("data_dir", cfg.Index.DataDir),
		slog.Any("prefixes", registry.Prefixes()))

	return &stack{
		cfg:      cfg,
		logger:   logger,
		lock:     lock,
		registry: registry,
		dav:      dav,
		svc:      svc,
		crawler:  c,
		gatherer: reg,
	}, nil
}

// buildRegistry registers a resolver for every configured source.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*resource.Registry, *resource.FileResolver, *resource.ActionResolver, error) {
	registry := resource.NewRegistry(resource.WithLogger(logger))

	var dav *resource.FileResolver
	if cfg.Sources.DavRoot != "" {
		r, err := resource.NewFileResolver(cfg.Sources.DavRoot)
		if err != nil {
			return nil, nil, nil, err
		}
		registry.AddResourceResolver(resource.PrefixDav, r)
		dav = r
	}

	var actions *resource.ActionResolver
	if cfg.Sources.ActionBaseURL != "" {
		client := &http.Client{Timeout: config.Duration(cfg.Sources.ActionTimeout, 10*time.Second)}
		r, err := resource.NewActionResolver(cfg.Sources.ActionBaseURL, client)
		if err != nil {
			return nil, nil, nil, err
		}
		registry.AddResourceResolver(resource.PrefixAction, r)
		actions = r
	}

	if s3 := cfg.Sources.S3; s3.Endpoint != "" {
		r, err := resource.NewS3Resolver(resource.S3Config{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Region:    s3.Region,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		registry.AddResourceResolver(resource.PrefixS3, r)
	}

	if len(registry.Prefixes()) == 0 {
		return nil, nil, nil, serrors.ConfigError("no sources configured", nil).
			WithSuggestion("set sources.dav_root in .labsearch.yaml")
	}
	return registry, dav, actions, nil
}

// close stops the service, closes the backend and tracker, and releases
// the data directory.
func (s *stack) close() error {
	var result *multierror.Error
	if err := s.svc.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.lock.Unlock(); err != nil {
		result = multierror.Append(result, err)
	}
	if result != nil {
		return fmt.Errorf("close: %w", result.ErrorOrNil())
	}
	return nil
}
