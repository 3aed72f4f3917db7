package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/labsearch/internal/config"
	"github.com/Aman-CERP/labsearch/internal/output"
	"github.com/Aman-CERP/labsearch/internal/queue"
	"github.com/Aman-CERP/labsearch/internal/search"
)

func newAddCmd() *cobra.Command {
	var priority string

	cmd := &cobra.Command{
		Use:   "add <identifier>...",
		Short: "Queue resources for indexing",
		Long: `Queue one or more resources for indexing.

Priorities, highest first: commit, delete, item, group, crawl, bulk,
background, idle. The default is item.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourceOp(cmd.Context(), cmd, args, priority, false)
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "Queue priority (default item)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var priority string

	cmd := &cobra.Command{
		Use:     "delete <identifier>...",
		Aliases: []string{"rm"},
		Short:   "Queue resources for removal from the index",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResourceOp(cmd.Context(), cmd, args, priority, true)
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "", "Queue priority (default delete)")
	return cmd
}

// runResourceOp sends adds or deletes to the server, or applies them to
// the local index and commits.
func runResourceOp(ctx context.Context, cmd *cobra.Command, ids []string, priority string, del bool) error {
	out := output.New(cmd.OutOrStdout())

	def := queue.PriorityItem
	verb := "Queued"
	if del {
		def = queue.PriorityDelete
		verb = "Queued removal of"
	}
	pri, err := queue.ParsePriority(priority)
	if err != nil {
		return err
	}
	if pri == queue.PriorityUnset {
		pri = def
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if client := controlClient(cfg); client.IsRunning() {
		for _, id := range ids {
			if del {
				err = client.Delete(ctx, id, pri.String())
			} else {
				err = client.Add(ctx, id, pri.String())
			}
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			out.Successf("%s %s", verb, id)
		}
		return nil
	}

	return withLocalTask(ctx, cfg, "cli", func(task *search.IndexTask) error {
		for _, id := range ids {
			if del {
				err = task.DeleteResource(id, pri)
			} else {
				err = task.AddResource(id, pri)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
		}
		return nil
	}, func(failed int) {
		out.Successf("Applied %d change(s) to the local index", len(ids)-failed)
		if failed > 0 {
			out.Warningf("%d change(s) failed", failed)
		}
	})
}

// withLocalTask opens the index, queues work through one task, waits for
// it and commits. report receives the number of failed items.
func withLocalTask(ctx context.Context, cfg *config.Config, desc string, queueFn func(*search.IndexTask) error, report func(failed int)) error {
	st, err := openStack(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	if err := st.svc.Start(ctx); err != nil {
		return err
	}

	task := st.svc.CreateTask(desc)
	if err := queueFn(task); err != nil {
		task.Cancel()
		return err
	}
	task.SetReady()

	if err := task.Wait(ctx); err != nil {
		return err
	}
	if err := st.svc.Commit(ctx); err != nil {
		return err
	}
	report(task.Snapshot().Failed)
	return nil
}

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every document from the index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			if !yes {
				return fmt.Errorf("refusing to clear the index without --yes")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if client := controlClient(cfg); client.IsRunning() {
				if err := client.Clear(cmd.Context()); err != nil {
					return err
				}
				out.Success("Index cleared")
				return nil
			}

			st, err := openStack(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = st.close() }()
			if err := st.svc.ClearIndex(cmd.Context()); err != nil {
				return err
			}
			out.Success("Index cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the index")
	return cmd
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Hold the server's indexing worker",
		Long:  `Hold the indexing worker after the current item and commit pending writes. Queued work is kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(cmd, func(ctx context.Context, out *output.Writer, c controlAPI) error {
				if err := c.Pause(ctx); err != nil {
					return err
				}
				out.Success("Indexing paused")
				return nil
			})
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Release a paused indexing worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(cmd, func(ctx context.Context, out *output.Writer, c controlAPI) error {
				if err := c.Resume(ctx); err != nil {
					return err
				}
				out.Success("Indexing resumed")
				return nil
			})
		},
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Drop all queued work and cancel running tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(cmd, func(ctx context.Context, out *output.Writer, c controlAPI) error {
				n, err := c.Purge(ctx)
				if err != nil {
					return err
				}
				out.Successf("Purged %d queued item(s)", n)
				return nil
			})
		},
	}
}

// controlAPI is the part of the control client used by server-only
// commands.
type controlAPI interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Purge(ctx context.Context) (int, error)
}

func withServer(cmd *cobra.Command, fn func(context.Context, *output.Writer, controlAPI) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := requireServer(cfg)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), output.New(cmd.OutOrStdout()), client)
}
