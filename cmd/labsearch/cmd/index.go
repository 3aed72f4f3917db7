package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/labsearch/internal/async"
	"github.com/Aman-CERP/labsearch/internal/config"
	"github.com/Aman-CERP/labsearch/internal/daemon"
	"github.com/Aman-CERP/labsearch/internal/logging"
	"github.com/Aman-CERP/labsearch/internal/output"
	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/search"
)

// progressInterval is how often index refreshes its progress line.
const progressInterval = 250 * time.Millisecond

// indexOptions holds CLI flags for index.
type indexOptions struct {
	clear   bool
	noWait  bool
	timeout time.Duration
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [identifier...]",
		Short: "Crawl collections and index their documents",
		Long: `Crawl one or more collections and index every document below them.

Identifiers have the form <prefix>:<path>, for example dav:/projects/assay.
Without arguments the configured crawler roots are crawled, or the whole
dav root when none are configured.

When 'labsearch serve' is running the crawl is queued on the server.
Otherwise the index is opened directly and the command waits for the crawl
and a final commit.

Examples:
  labsearch index
  labsearch index dav:/projects/assay
  labsearch index --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.clear, "clear", false, "Clear the index before crawling")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "Return once the crawl is queued on the server")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Give up after this long (0 waits forever)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, ids []string, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = crawlRoots(cfg)
	}
	if len(ids) == 0 {
		return fmt.Errorf("nothing to index: pass an identifier or set crawler.roots")
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	if client := controlClient(cfg); client.IsRunning() {
		slog.Info("index_using_server", slog.Any("ids", ids))
		return indexRemote(ctx, out, client, ids, opts)
	}
	slog.Info("index_using_local", slog.Any("ids", ids))
	return indexLocal(ctx, out, cfg, ids, opts)
}

// indexRemote queues crawls on the server and optionally follows them.
func indexRemote(ctx context.Context, out *output.Writer, client *daemon.Client, ids []string, opts indexOptions) error {
	if opts.clear {
		if err := client.Clear(ctx); err != nil {
			return err
		}
		out.Success("Index cleared")
	}

	pending := make(map[string]string, len(ids))
	for _, id := range ids {
		taskID, err := client.Crawl(ctx, id, "")
		if err != nil {
			return fmt.Errorf("crawl %s: %w", id, err)
		}
		pending[taskID] = id
		out.Statusf("📂", "Queued crawl of %s (task %s)", id, taskID)
	}
	if opts.noWait {
		return nil
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			out.Newline()
			return ctx.Err()
		case <-ticker.C:
		}

		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		live := make(map[string]async.TaskSnapshot, len(st.Service.Tasks))
		for _, t := range st.Service.Tasks {
			live[t.ID] = t
		}

		var done, total int
		for taskID := range pending {
			t, ok := live[taskID]
			if !ok {
				// Finished tasks leave the task list.
				delete(pending, taskID)
				continue
			}
			done += t.Completed
			total += t.Total
		}
		out.Progress(done, total, fmt.Sprintf("%d crawl(s) running", len(pending)))
	}

	out.Newline()
	out.Success("Crawl finished")
	return nil
}

// indexLocal opens the index, crawls and commits.
func indexLocal(ctx context.Context, out *output.Writer, cfg *config.Config, ids []string, opts indexOptions) error {
	st, err := openStack(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	if err := st.svc.Start(ctx); err != nil {
		return err
	}

	if opts.clear {
		if err := st.svc.ClearIndex(ctx); err != nil {
			return err
		}
		out.Success("Index cleared")
	}

	started := time.Now()
	tasks := make([]*search.IndexTask, 0, len(ids))
	for _, id := range ids {
		task := st.svc.CreateTask("crawl " + id)
		if err := task.AddRunnable(st.crawler.Start(task, st.registry, id), queue.PriorityCrawl); err != nil {
			task.Cancel()
			return fmt.Errorf("crawl %s: %w", id, err)
		}
		task.SetReady()
		tasks = append(tasks, task)
		out.Statusf("📂", "Crawling %s", id)
	}

	if err := waitTasks(ctx, out, tasks); err != nil {
		return err
	}
	if err := st.svc.Commit(ctx); err != nil {
		return err
	}

	var failed int
	for _, t := range tasks {
		failed += t.Snapshot().Failed
	}
	cs := st.crawler.Stats()
	stats := st.svc.Stats()

	out.Newline()
	out.Successf("Indexed %d documents in %s", stats.Backend.DocumentCount, time.Since(started).Round(time.Millisecond))
	out.Field("Collections", cs.Collections)
	out.Field("Queued", cs.Queued)
	out.Field("Unchanged", cs.Unchanged)
	out.Field("Skipped", cs.Skipped)
	if failed > 0 {
		out.Warningf("%d item(s) failed; run with --debug and see %s", failed, logging.DefaultLogPath())
	}
	return nil
}

// waitTasks blocks until every task is done, drawing a progress bar.
func waitTasks(ctx context.Context, out *output.Writer, tasks []*search.IndexTask) error {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		var done, total, open int
		for _, t := range tasks {
			snap := t.Snapshot()
			done += snap.Completed
			total += snap.Total
			if !t.IsDone() {
				open++
			}
		}
		if open == 0 {
			out.Progress(total, total, "done")
			return nil
		}
		out.Progress(done, total, fmt.Sprintf("%d/%d items", done, total))

		select {
		case <-ctx.Done():
			out.Newline()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
