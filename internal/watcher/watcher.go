package watcher

import (
	"log/slog"
	"time"
)

// Operation is a file system change.
type Operation int

const (
	// OpCreate is a new file or directory.
	OpCreate Operation = iota
	// OpModify is a write to an existing file.
	OpModify
	// OpDelete is a removal. Renames are reported as a delete of the old
	// name and a create of the new one.
	OpDelete
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change below the watched root.
type FileEvent struct {
	// Path is slash-separated and rooted at the watched directory, for
	// example "/lab/plate.csv", matching dav resource paths.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Skipper filters paths out of watching. *crawler.SkipRules implements it.
type Skipper interface {
	SkipPath(p string) bool
}

// Options configures an FSWatcher.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before its
	// coalesced event is emitted. Default: 200ms
	DebounceWindow time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 100
	EventBufferSize int

	// Skip excludes paths. Nil watches everything except hidden entries.
	Skip Skipper

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		EventBufferSize: 100,
	}
}

// WithDefaults fills zero values from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = d.EventBufferSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
