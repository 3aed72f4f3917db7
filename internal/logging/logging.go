package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects where server logs go.
type Config struct {
	Level string // debug, info, warn or error

	// FilePath is the JSON log file the viewer reads. Empty means stderr
	// only.
	FilePath  string
	MaxSizeMB int
	MaxFiles  int

	WriteToStderr bool
}

// DefaultConfig is what 'labsearch serve' uses: info level, server.log
// under the log dir rotated at 10 MB with 5 old files, copied to stderr.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level, for --debug.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup returns a JSON slog.Logger writing where cfg says. Call cleanup
// before exit so the last lines reach the file.
func Setup(cfg Config) (logger *slog.Logger, cleanup func(), err error) {
	var writers []io.Writer
	cleanup = func() {}

	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, w)
		cleanup = func() {
			_ = w.Sync()
			_ = w.Close()
		}
	}
	if cfg.WriteToStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: LevelFromString(cfg.Level),
	})
	return slog.New(handler), cleanup, nil
}

// SetupStdioSafe installs a file-only default logger. 'labsearch serve
// --mcp' needs it: stdout carries MCP frames there and the client may
// treat stderr output as a failure.
func SetupStdioSafe(level string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	slog.Info("stdio_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}

// LevelFromString maps a config or viewer level name to a slog.Level.
// Unknown names mean info.
func LevelFromString(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
