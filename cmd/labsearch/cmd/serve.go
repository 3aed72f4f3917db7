package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/labsearch/internal/config"
	"github.com/Aman-CERP/labsearch/internal/crawler"
	"github.com/Aman-CERP/labsearch/internal/daemon"
	"github.com/Aman-CERP/labsearch/internal/logging"
	"github.com/Aman-CERP/labsearch/internal/mcp"
	"github.com/Aman-CERP/labsearch/internal/metrics"
	"github.com/Aman-CERP/labsearch/internal/resource"
	"github.com/Aman-CERP/labsearch/internal/watcher"
)

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	mcp         bool
	noCrawl     bool
	metricsAddr string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexer, crawl scheduler and control socket",
		Long: `Run the search service in the foreground.

The server owns the index: it takes the data directory lock, starts the
indexing worker, crawls the configured roots on schedule, watches the dav
root when enabled and answers CLI requests on the control socket.

With --mcp it also speaks the Model Context Protocol on stdin/stdout. All
logs then go to ~/.labsearch/logs/server.log only.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.mcp, "mcp", false, "Serve MCP over stdio")
	cmd.Flags().BoolVar(&opts.noCrawl, "no-crawl", false, "Do not schedule crawls of the configured roots")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address (overrides server.metrics_addr)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}

	logger, cleanup, err := serveLogger(cfg, opts.mcp)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dcfg := daemon.FromConfig(cfg)
	if err := dcfg.EnsureDir(); err != nil {
		return err
	}
	pid := daemon.NewPIDFile(dcfg.PIDPath)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pid.Remove() }()

	st, err := openStack(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	if err := st.svc.Start(ctx); err != nil {
		return err
	}

	handler := daemon.NewServiceHandler(st.svc, st.crawler, st.registry)
	control, err := daemon.NewServer(dcfg.SocketPath, handler, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(control.ListenAndServe(gctx))
	})

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Server.MetricsAddr, st, logger)
		})
	}

	if !opts.noCrawl {
		roots := crawlRoots(cfg)
		if len(roots) > 0 {
			sched := crawler.NewScheduler(st.crawler, st.svc, st.registry, crawler.SchedulerConfig{
				Interval:  config.Duration(cfg.Crawler.Interval, time.Hour),
				RateLimit: cfg.Crawler.RateLimit,
				Burst:     cfg.Crawler.Burst,
			}, crawler.WithBusyFunc(st.svc.IsBusy), crawler.WithSchedulerLogger(logger))
			for _, root := range roots {
				sched.AddPathToCrawl(root, time.Time{})
			}
			g.Go(func() error {
				return sched.Run(gctx)
			})
		}
	}

	if cfg.Watch.Enabled && st.dav != nil {
		if err := startWatcher(gctx, g, cfg, st, logger); err != nil {
			return err
		}
	}

	if opts.mcp {
		srv, err := mcp.NewServer(st.svc, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := srv.Serve(gctx, "stdio"); err != nil {
				return err
			}
			// The client closed stdin.
			stop()
			return nil
		})
	}

	logger.Info("labsearch_serving",
		slog.String("socket", dcfg.SocketPath),
		slog.String("metrics", cfg.Server.MetricsAddr),
		slog.Bool("mcp", opts.mcp),
		slog.Bool("watch", cfg.Watch.Enabled && st.dav != nil))

	err = g.Wait()
	logger.Info("labsearch_stopping")
	return err
}

// serveLogger logs to file and stderr, or to file only when stdio carries
// MCP.
func serveLogger(cfg *config.Config, stdio bool) (*slog.Logger, func(), error) {
	if stdio {
		cleanup, err := logging.SetupStdioSafe(cfg.Server.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		return slog.Default(), cleanup, nil
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// crawlRoots returns the configured roots, or the whole dav tree when none
// are configured.
func crawlRoots(cfg *config.Config) []string {
	if len(cfg.Crawler.Roots) > 0 {
		return cfg.Crawler.Roots
	}
	if cfg.Sources.DavRoot != "" {
		return []string{resource.Identifier(resource.PrefixDav, "/")}
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, st *stack, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(st.gatherer))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !st.svc.IsRunning() {
			http.Error(w, "stopped", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics_listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// startWatcher feeds filesystem changes under the dav root to the service.
func startWatcher(ctx context.Context, g *errgroup.Group, cfg *config.Config, st *stack, logger *slog.Logger) error {
	w, err := watcher.New(st.dav.Root(), watcher.Options{
		DebounceWindow: config.Duration(cfg.Watch.Debounce, 200*time.Millisecond),
		Skip:           st.crawler.SkipRules(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	bridge := watcher.NewBridge(st.svc, st.crawler, st.registry, resource.PrefixDav, logger)

	g.Go(func() error {
		return w.Start(ctx)
	})
	g.Go(func() error {
		return bridge.Run(ctx, w.Events())
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				logger.Warn("watcher_error", slog.String("error", err.Error()))
			}
		}
	})
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
