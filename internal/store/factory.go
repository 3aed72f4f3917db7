package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// Options selects and configures a backend.
type Options struct {
	// Kind is bleve (default), sqlite, remote or noop.
	Kind string
	// DataDir holds on-disk indexes. Empty gives in-memory indexes.
	DataDir string

	SQLiteCacheMB int

	RemoteURL     string
	RemoteTimeout time.Duration
	MaxRetries    int

	Logger *slog.Logger
}

// NewBackend creates the backend named by opts.Kind.
//
// kind options:
//   - "bleve" (default): <data_dir>/index.bleve
//   - "sqlite": <data_dir>/index.db, FTS5 in WAL mode
//   - "remote": an external indexing service at RemoteURL
//   - "noop": accepts writes, finds nothing
func NewBackend(opts Options) (Backend, error) {
	switch opts.Kind {
	case KindBleve, "":
		return NewBleveBackend(IndexPath(opts.DataDir, KindBleve), opts.Logger)
	case KindSQLite:
		return NewSQLiteBackend(IndexPath(opts.DataDir, KindSQLite), opts.SQLiteCacheMB, opts.Logger)
	case KindRemote:
		return NewRemoteBackend(RemoteConfig{
			BaseURL:    opts.RemoteURL,
			Timeout:    opts.RemoteTimeout,
			MaxRetries: opts.MaxRetries,
			Logger:     opts.Logger,
		})
	case KindNoop:
		return NoopBackend{}, nil
	default:
		return nil, serrors.New(serrors.ErrCodeUnknownBackend,
			fmt.Sprintf("unknown backend: %s (valid options: bleve, sqlite, remote, noop)", opts.Kind), nil)
	}
}

// IndexPath returns where a local backend keeps its index, or "" for an
// in-memory index.
func IndexPath(dataDir, kind string) string {
	if dataDir == "" {
		return ""
	}
	switch kind {
	case KindSQLite:
		return filepath.Join(dataDir, "index.db")
	default:
		return filepath.Join(dataDir, "index.bleve")
	}
}

// DetectBackend reports which local backend already has an index in
// dataDir, or "" when there is none.
func DetectBackend(dataDir string) string {
	if fileExists(IndexPath(dataDir, KindSQLite)) {
		return KindSQLite
	}
	if dirExists(IndexPath(dataDir, KindBleve)) {
		return KindBleve
	}
	return ""
}

// TrackerPath returns the last-indexed database location.
func TrackerPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "tracker.db")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
