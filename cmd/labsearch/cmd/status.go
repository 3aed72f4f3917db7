package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/labsearch/internal/config"
	"github.com/Aman-CERP/labsearch/internal/daemon"
	"github.com/Aman-CERP/labsearch/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show indexer, queue and task status",
		Long: `Show the state of the indexing worker, queue depth by kind, backend
document counts, crawler counters and running tasks.

Without a running server the index is opened read-only for document counts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := fetchStatus(cmd, cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			writeStatus(cmd.OutOrStdout(), cfg, st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// fetchStatus asks the server, or opens the index when none is running.
func fetchStatus(cmd *cobra.Command, cfg *config.Config) (*daemon.StatusResult, error) {
	if client := controlClient(cfg); client.IsRunning() {
		return client.Status(cmd.Context())
	}

	s, err := openStack(cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.close() }()
	return &daemon.StatusResult{Service: s.svc.Stats(), Crawler: s.crawler.Stats()}, nil
}

func writeStatus(w io.Writer, cfg *config.Config, st *daemon.StatusResult) {
	out := output.New(w)
	svc := st.Service

	out.Header("labsearch " + cfg.Index.DataDir)
	if st.PID > 0 {
		out.Field("Server", fmt.Sprintf("pid %d, up %s", st.PID, st.Uptime))
	} else {
		out.Field("Server", "not running")
	}

	state := svc.State
	if svc.Paused {
		state += " (paused)"
	}
	if svc.Busy {
		state += " (busy)"
	}
	out.Field("Worker", state)
	out.Field("Backend", fmt.Sprintf("%s, %d documents, %d pending", svc.Backend.Backend, svc.Backend.DocumentCount, svc.Backend.Pending))
	out.Queue(svc.Queue, svc.QueueCapacity)
	out.Field("Since commit", svc.SinceCommit)
	if !svc.LastCommit.IsZero() {
		out.Field("Last commit", svc.LastCommit.Local().Format(time.DateTime))
	}
	out.Field("Crawled", fmt.Sprintf("%d collections, %d queued, %d unchanged, %d skipped",
		st.Crawler.Collections, st.Crawler.Queued, st.Crawler.Unchanged, st.Crawler.Skipped))

	if len(svc.Tasks) > 0 {
		out.Newline()
		out.Tasks(svc.Tasks)
	}
}
