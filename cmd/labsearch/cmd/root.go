// Package cmd provides the CLI commands for labsearch.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/labsearch/internal/config"
	"github.com/Aman-CERP/labsearch/internal/daemon"
	"github.com/Aman-CERP/labsearch/internal/logging"
	"github.com/Aman-CERP/labsearch/internal/profiling"
	"github.com/Aman-CERP/labsearch/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	projectDir     string
	debugMode      bool
	profileDir     string
	loggingCleanup func()
	profile        *profiling.Session
)

// NewRootCmd creates the root command for the labsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labsearch",
		Short: "Full-text indexing and search for laboratory resources",
		Long: `labsearch keeps a full-text index of files, web actions and object
storage up to date and answers queries against it.

'labsearch serve' runs the indexing worker, the crawl scheduler and the
control socket. The other commands talk to a running server through the
socket, or open the index directly when no server is running.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("labsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory holding .labsearch.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.labsearch/logs/")
	cmd.PersistentFlags().StringVar(&profileDir, "profile", "", "Write CPU, heap and trace profiles to this directory")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := startLogging(cmd, args); err != nil {
			return err
		}
		return startProfiling()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		err := stopProfiling()
		if lerr := stopLogging(cmd, args); err == nil {
			err = lerr
		}
		return err
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newPauseCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newPurgeCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables file logging when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("Debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

func startProfiling() error {
	if profileDir == "" {
		return nil
	}
	s, err := profiling.Start(profileDir, profiling.All)
	if err != nil {
		return err
	}
	profile = s
	return nil
}

func stopProfiling() error {
	if profile == nil {
		return nil
	}
	err := profile.Stop()
	slog.Debug("profiles_written", slog.String("dir", profile.Dir()))
	profile = nil
	return err
}

// Execute runs the root command. Profiles are flushed even when the command
// fails, since PersistentPostRunE only runs on success.
func Execute() error {
	err := NewRootCmd().Execute()
	if perr := stopProfiling(); err == nil {
		err = perr
	}
	return err
}

// loadConfig loads the configuration of the project containing --dir.
func loadConfig() (*config.Config, error) {
	root, err := config.FindProjectRoot(projectDir)
	if err != nil {
		return nil, err
	}
	return config.Load(root)
}

// controlClient returns a client for the server owning cfg's data directory.
func controlClient(cfg *config.Config) *daemon.Client {
	return daemon.NewClient(daemon.FromConfig(cfg))
}

// requireServer returns a client, or an error telling the user to start the
// server.
func requireServer(cfg *config.Config) (*daemon.Client, error) {
	client := controlClient(cfg)
	if !client.IsRunning() {
		return nil, fmt.Errorf("labsearch is not serving %s; run 'labsearch serve' first", cfg.Index.DataDir)
	}
	return client, nil
}
