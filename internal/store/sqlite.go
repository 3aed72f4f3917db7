package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// SQLiteBackend stores documents in an FTS5 table. Writes are buffered and
// applied in a single transaction on Commit.
type SQLiteBackend struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	closed    bool
	stopWords map[string]struct{}
	logger    *slog.Logger

	pending []sqliteOp
}

var _ Backend = (*SQLiteBackend)(nil)

type sqliteOpKind int

const (
	opIndex sqliteOpKind = iota
	opDelete
	opDeleteContainer
)

type sqliteOp struct {
	kind sqliteOpKind
	doc  *Document
	// key is the document ID or the container ID.
	key string
}

// validateSQLiteIntegrity checks an existing database before it is opened.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// openSQLite opens path in WAL mode with a single connection. An empty path
// opens an in-memory database.
func openSQLite(path string, cacheMB int, logger *slog.Logger) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, serrors.IOError("failed to create database directory", err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			logger.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, serrors.New(serrors.ErrCodeCorruptIndex,
					fmt.Sprintf("database corrupted at %s and cannot be removed", path), err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, serrors.IOError("failed to open database", err)
	}

	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if cacheMB <= 0 {
		cacheMB = 64
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, serrors.IOError("failed to set pragma", err)
		}
	}
	return db, nil
}

// NewSQLiteBackend opens or creates the FTS5 index at path. An empty path
// gives an in-memory index.
func NewSQLiteBackend(path string, cacheMB int, logger *slog.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openSQLite(path, cacheMB, logger)
	if err != nil {
		return nil, err
	}

	s := &SQLiteBackend{
		db:        db,
		path:      path,
		stopWords: BuildStopWordMap(DefaultStopWords),
		logger:    logger,
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, serrors.IOError("failed to initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- doc_id is stored but not searchable. Column order matters for bm25().
	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		doc_id UNINDEXED,
		title,
		body,
		properties,
		tokenize='porter unicode61'
	);

	CREATE TABLE IF NOT EXISTS documents (
		doc_id     TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		summary    TEXT NOT NULL DEFAULT '',
		url        TEXT NOT NULL DEFAULT '',
		container  TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '',
		modified   INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_documents_container ON documents(container);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) enqueue(op sqliteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return serrors.ErrServiceStopped
	}
	s.pending = append(s.pending, op)
	return nil
}

// Index buffers doc until the next Commit.
func (s *SQLiteBackend) Index(_ context.Context, doc *Document) error {
	return s.enqueue(sqliteOp{kind: opIndex, doc: doc, key: doc.ID})
}

// Delete buffers removal of id.
func (s *SQLiteBackend) Delete(_ context.Context, id string) error {
	return s.enqueue(sqliteOp{kind: opDelete, key: id})
}

// DeleteContainer buffers removal of a container's documents.
func (s *SQLiteBackend) DeleteContainer(_ context.Context, containerID string) error {
	return s.enqueue(sqliteOp{kind: opDeleteContainer, key: containerID})
}

// Commit applies buffered writes in one transaction. A failed transaction is
// rolled back and the buffer dropped.
func (s *SQLiteBackend) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return serrors.ErrServiceStopped
	}
	if len(s.pending) == 0 {
		return nil
	}

	ops := s.pending
	s.pending = nil
	start := time.Now()

	if err := s.apply(ctx, ops); err != nil {
		s.logger.Error("sqlite_commit_failed",
			slog.Int("operations", len(ops)),
			slog.String("error", err.Error()))
		return serrors.New(serrors.ErrCodeCommitFailed, "sqlite commit failed", err)
	}

	s.logger.Debug("sqlite_commit",
		slog.Int("operations", len(ops)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (s *SQLiteBackend) apply(ctx context.Context, ops []sqliteOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first.
	delFTS, err := tx.PrepareContext(ctx, `DELETE FROM documents_fts WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer delFTS.Close()

	delDoc, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer delDoc.Close()

	insFTS, err := tx.PrepareContext(ctx,
		`INSERT INTO documents_fts(doc_id, title, body, properties) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insFTS.Close()

	insDoc, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents(doc_id, title, summary, url, container, categories, modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer insDoc.Close()

	for _, op := range ops {
		switch op.kind {
		case opIndex:
			d := op.doc
			if _, err := delFTS.ExecContext(ctx, d.ID); err != nil {
				return fmt.Errorf("failed to replace document %s: %w", d.ID, err)
			}
			if _, err := insFTS.ExecContext(ctx, d.ID, d.Title, d.Body, joinProperties(d.Properties)); err != nil {
				return fmt.Errorf("failed to index document %s: %w", d.ID, err)
			}
			if _, err := insDoc.ExecContext(ctx, d.ID, d.Title, d.Summary, d.URL, d.Container,
				encodeCategories(d.Categories), d.Modified.Unix()); err != nil {
				return fmt.Errorf("failed to store document %s: %w", d.ID, err)
			}

		case opDelete:
			if _, err := delFTS.ExecContext(ctx, op.key); err != nil {
				return fmt.Errorf("failed to delete document %s: %w", op.key, err)
			}
			if _, err := delDoc.ExecContext(ctx, op.key); err != nil {
				return fmt.Errorf("failed to delete document %s: %w", op.key, err)
			}

		case opDeleteContainer:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents_fts WHERE doc_id IN (SELECT doc_id FROM documents WHERE container = ?)`,
				op.key); err != nil {
				return fmt.Errorf("failed to delete container %s: %w", op.key, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE container = ?`, op.key); err != nil {
				return fmt.Errorf("failed to delete container %s: %w", op.key, err)
			}
		}
	}

	return tx.Commit()
}

// Clear drops every document and pending write.
func (s *SQLiteBackend) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return serrors.ErrServiceStopped
	}
	s.pending = nil

	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents_fts; DELETE FROM documents;`); err != nil {
		return serrors.IOError("failed to clear index", err)
	}
	return nil
}

// matchExpression turns free text into an FTS5 OR query of quoted terms.
// It returns "" when nothing searchable is left.
func (s *SQLiteBackend) matchExpression(text string) string {
	tokens := dedupe(FilterStopWords(Tokenize(text, 1), s.stopWords))
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// Search ranks committed documents with bm25, weighting title hits twice
// as much as body hits.
func (s *SQLiteBackend) Search(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, serrors.ErrEmptyQuery
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, serrors.ErrServiceStopped
	}

	match := s.matchExpression(q.Text)
	if match == "" {
		return &Result{Hits: []*Hit{}}, nil
	}

	category := strings.ToLower(q.Category)
	catPattern := "% " + category + " %"

	where := `documents_fts MATCH ?`
	args := []any{match}
	if category != "" && q.LimitToCategory {
		where += ` AND d.categories LIKE ?`
		args = append(args, catPattern)
	}

	var total uint64
	countSQL := `SELECT COUNT(*) FROM documents_fts JOIN documents d USING (doc_id) WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, serrors.New(serrors.ErrCodeSearchFailed, "search failed", err)
	}

	// bm25() is negative, lower is better.
	boost := `1.0`
	if category != "" && !q.LimitToCategory {
		boost = `CASE WHEN d.categories LIKE ? THEN 3.0 ELSE 1.0 END`
	}
	searchSQL := `
		SELECT d.doc_id, d.title, d.summary, d.url, d.container, d.categories,
		       -bm25(documents_fts, 0, 2.0, 1.0) * ` + boost + ` AS score
		FROM documents_fts JOIN documents d USING (doc_id)
		WHERE ` + where + `
		ORDER BY score DESC
		LIMIT ? OFFSET ?`

	searchArgs := make([]any, 0, len(args)+3)
	if category != "" && !q.LimitToCategory {
		searchArgs = append(searchArgs, catPattern)
	}
	searchArgs = append(searchArgs, args...)
	searchArgs = append(searchArgs, q.PageSize(), max(q.Offset, 0))

	rows, err := s.db.QueryContext(ctx, searchSQL, searchArgs...)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeSearchFailed, "search failed", err)
	}
	defer rows.Close()

	res := &Result{Hits: []*Hit{}, Total: total}
	for rows.Next() {
		h, err := scanHit(rows)
		if err != nil {
			return nil, serrors.New(serrors.ErrCodeSearchFailed, "failed to scan result", err)
		}
		res.Hits = append(res.Hits, h)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHit(r rowScanner) (*Hit, error) {
	var h Hit
	var href, categories string
	if err := r.Scan(&h.ID, &h.Title, &h.Summary, &href, &h.Container, &categories, &h.Score); err != nil {
		return nil, err
	}
	h.URL = WithDocID(href, h.ID)
	h.Categories = decodeCategories(categories)
	return &h, nil
}

// Find returns one committed document.
func (s *SQLiteBackend) Find(ctx context.Context, id string) (*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, serrors.ErrServiceStopped
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT doc_id, title, summary, url, container, categories, 0.0 FROM documents WHERE doc_id = ?`, id)
	h, err := scanHit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, serrors.ErrResourceNotFound)
	}
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeSearchFailed, "find failed", err)
	}
	return h, nil
}

// Stats returns the committed document count and buffered writes.
func (s *SQLiteBackend) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Backend: KindSQLite}
	if s.closed {
		return st
	}
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&st.DocumentCount)
	st.Pending = len(s.pending)
	return st
}

// Close checkpoints the WAL and closes the database. Buffered writes are
// discarded.
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// encodeCategories pads with spaces so LIKE '% cat %' matches whole words.
func encodeCategories(cats []string) string {
	if len(cats) == 0 {
		return ""
	}
	return " " + strings.Join(cats, " ") + " "
}

func decodeCategories(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}
