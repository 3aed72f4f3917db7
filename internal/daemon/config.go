// Package daemon is the control socket of a serving labsearch process. CLI
// commands use it to search, queue work and steer the worker without opening
// the locked index themselves.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/labsearch/internal/config"
)

// DefaultTimeout bounds client dials and exchanges.
const DefaultTimeout = 10 * time.Second

// Config locates the control socket and PID file.
type Config struct {
	SocketPath string
	PIDPath    string

	// Timeout is the maximum duration for one client request.
	Timeout time.Duration
}

// FromConfig derives the control paths from a loaded configuration.
func FromConfig(cfg *config.Config) Config {
	return Config{
		SocketPath: cfg.SocketPath(),
		PIDPath:    cfg.PIDPath(),
		Timeout:    DefaultTimeout,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// EnsureDir creates the socket and PID directories.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if pidDir := filepath.Dir(c.PIDPath); pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
