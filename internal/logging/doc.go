// Package logging configures slog for labsearch. Logs are JSON lines written
// to a size-rotated file under ~/.labsearch/logs/ and optionally teed to
// stderr.
package logging
