package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// DefaultTrackerCacheSize is the number of records kept in memory.
const DefaultTrackerCacheSize = 4096

// Record is what the tracker remembers about an indexed document.
type Record struct {
	ID          string
	Container   string
	Modified    time.Time
	Fingerprint uint64
	IndexedAt   time.Time
}

// Tracker remembers when each document was last indexed and a fingerprint
// of what was sent. Records live in SQLite behind an LRU cache.
type Tracker struct {
	db    *sql.DB
	cache *lru.Cache[string, Record]
}

// Fingerprint hashes the parts of a document that matter for reindexing.
func Fingerprint(parts ...string) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// NewTracker opens the tracker database at path. An empty path keeps
// records in memory.
func NewTracker(path string, cacheSize int, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultTrackerCacheSize
	}

	db, err := openSQLite(path, 8, logger)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS last_indexed (
		doc_id      TEXT PRIMARY KEY,
		container   TEXT NOT NULL DEFAULT '',
		modified    INTEGER NOT NULL DEFAULT 0,
		fingerprint INTEGER NOT NULL DEFAULT 0,
		indexed_at  INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_last_indexed_container ON last_indexed(container);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, serrors.IOError("failed to initialize tracker schema", err)
	}

	cache, _ := lru.New[string, Record](cacheSize)
	return &Tracker{db: db, cache: cache}, nil
}

// Get returns the record for id.
func (t *Tracker) Get(ctx context.Context, id string) (Record, bool, error) {
	if rec, ok := t.cache.Get(id); ok {
		return rec, true, nil
	}

	var (
		rec                   Record
		modified, fp, indexed int64
	)
	err := t.db.QueryRowContext(ctx,
		`SELECT doc_id, container, modified, fingerprint, indexed_at FROM last_indexed WHERE doc_id = ?`, id).
		Scan(&rec.ID, &rec.Container, &modified, &fp, &indexed)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, serrors.IOError("failed to read tracker record", err)
	}

	rec.Modified = time.UnixMilli(modified)
	rec.Fingerprint = uint64(fp)
	rec.IndexedAt = time.UnixMilli(indexed)
	t.cache.Add(id, rec)
	return rec, true, nil
}

// Unchanged reports whether id was last indexed with fingerprint fp.
func (t *Tracker) Unchanged(ctx context.Context, id string, fp uint64) bool {
	rec, ok, err := t.Get(ctx, id)
	return err == nil && ok && rec.Fingerprint == fp
}

// IndexedSince reports whether id was indexed and its recorded modification
// time is not before modified.
func (t *Tracker) IndexedSince(ctx context.Context, id string, modified time.Time) bool {
	rec, ok, err := t.Get(ctx, id)
	if err != nil || !ok || modified.IsZero() {
		return false
	}
	// records keep millisecond precision
	return !modified.Truncate(time.Millisecond).After(rec.Modified)
}

// Set stores rec, stamping IndexedAt when unset.
func (t *Tracker) Set(ctx context.Context, rec Record) error {
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = time.Now()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO last_indexed(doc_id, container, modified, fingerprint, indexed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Container, rec.Modified.UnixMilli(), int64(rec.Fingerprint), rec.IndexedAt.UnixMilli())
	if err != nil {
		return serrors.IOError("failed to write tracker record", err)
	}
	t.cache.Add(rec.ID, rec)
	return nil
}

// Forget drops the record for id.
func (t *Tracker) Forget(ctx context.Context, id string) error {
	t.cache.Remove(id)
	if _, err := t.db.ExecContext(ctx, `DELETE FROM last_indexed WHERE doc_id = ?`, id); err != nil {
		return serrors.IOError("failed to delete tracker record", err)
	}
	return nil
}

// ForgetContainer drops every record in container.
func (t *Tracker) ForgetContainer(ctx context.Context, container string) error {
	for _, id := range t.cache.Keys() {
		if rec, ok := t.cache.Peek(id); ok && rec.Container == container {
			t.cache.Remove(id)
		}
	}
	if _, err := t.db.ExecContext(ctx, `DELETE FROM last_indexed WHERE container = ?`, container); err != nil {
		return serrors.IOError("failed to delete tracker records", err)
	}
	return nil
}

// ForgetAll drops every record.
func (t *Tracker) ForgetAll(ctx context.Context) error {
	t.cache.Purge()
	if _, err := t.db.ExecContext(ctx, `DELETE FROM last_indexed`); err != nil {
		return serrors.IOError("failed to clear tracker", err)
	}
	return nil
}

// Count returns the number of records.
func (t *Tracker) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM last_indexed`).Scan(&n); err != nil {
		return 0, serrors.IOError("failed to count tracker records", err)
	}
	return n, nil
}

// Close closes the database.
func (t *Tracker) Close() error {
	return t.db.Close()
}
