package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// EnglishAnalyzerName is the analyzer used for title, body and properties.
const EnglishAnalyzerName = "labsearch_en"

// Boosts applied at query time.
const (
	titleBoost    = 2.0
	categoryBoost = 3.0
)

// containerPageSize bounds each lookup while deleting a container.
const containerPageSize = 1000

// BleveBackend is the default in-process index. Writes collect in a pending
// batch that Commit executes.
type BleveBackend struct {
	mu      sync.RWMutex
	index   bleve.Index
	mapping *mapping.IndexMappingImpl
	path    string
	closed  bool
	logger  *slog.Logger

	batch *bleve.Batch
	// pending maps queued document IDs to their container.
	pending map[string]string
}

var _ Backend = (*BleveBackend)(nil)

// bleveDocument is what bleve indexes. Field names come from the json tags.
type bleveDocument struct {
	ID         string     `json:"uniqueId"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Summary    string     `json:"summary"`
	URL        string     `json:"url"`
	Container  string     `json:"container"`
	Categories []string   `json:"categories"`
	Properties string     `json:"properties"`
	Modified   *time.Time `json:"modified,omitempty"`
}

// validateIndexIntegrity checks index_meta.json before bleve opens the
// directory. A missing directory is fine.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError reports errors from bleve.Open that a rebuild fixes.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveBackend opens or creates the index at path. An empty path gives
// an in-memory index. A corrupted index directory is removed and recreated;
// the caller is expected to recrawl.
func NewBleveBackend(path string, logger *slog.Logger) (*BleveBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	im, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	b := &BleveBackend{
		mapping: im,
		path:    path,
		logger:  logger,
	}
	idx, err := b.open()
	if err != nil {
		return nil, err
	}
	b.index = idx
	b.resetBatch()
	return b, nil
}

func (b *BleveBackend) open() (bleve.Index, error) {
	if b.path == "" {
		return bleve.NewMemOnly(b.mapping)
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return nil, serrors.IOError("failed to create index directory", err)
	}

	if validErr := validateIndexIntegrity(b.path); validErr != nil {
		b.logger.Warn("bleve_index_corrupted",
			slog.String("path", b.path),
			slog.String("error", validErr.Error()))
		if err := os.RemoveAll(b.path); err != nil {
			return nil, serrors.New(serrors.ErrCodeCorruptIndex,
				fmt.Sprintf("index corrupted at %s and cannot be removed", b.path), err)
		}
	}

	idx, err := bleve.Open(b.path)
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		idx, err = bleve.New(b.path, b.mapping)
	case err != nil && isCorruptionError(err):
		b.logger.Warn("bleve_index_open_failed",
			slog.String("path", b.path),
			slog.String("error", err.Error()))
		if rmErr := os.RemoveAll(b.path); rmErr != nil {
			return nil, serrors.New(serrors.ErrCodeCorruptIndex, "index corrupted and cannot be cleared", rmErr)
		}
		idx, err = bleve.New(b.path, b.mapping)
	}
	if err != nil {
		return nil, serrors.IOError(fmt.Sprintf("failed to open index at %s", b.path), err)
	}
	return idx, nil
}

// createIndexMapping maps the document fields. Title, body and properties
// use an English analyzer with snowball stemming; container and categories
// are exact keywords; summary and url are stored only.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomAnalyzer(EnglishAnalyzerName, map[string]any{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			en.PossessiveName,
			lowercase.Name,
			en.StopName,
			en.SnowballStemmerName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	im.DefaultAnalyzer = EnglishAnalyzerName

	text := func(store bool) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = EnglishAnalyzerName
		f.Store = store
		f.IncludeInAll = false
		return f
	}
	storedOnly := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Index = false
		f.Store = true
		f.IncludeInAll = false
		return f
	}
	keyword := func() *mapping.FieldMapping {
		f := bleve.NewKeywordFieldMapping()
		f.Store = true
		f.IncludeInAll = false
		return f
	}

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(FieldID, keyword())
	doc.AddFieldMappingsAt(FieldTitle, text(true))
	doc.AddFieldMappingsAt(FieldBody, text(false))
	doc.AddFieldMappingsAt(FieldProperties, text(false))
	doc.AddFieldMappingsAt(FieldSummary, storedOnly())
	doc.AddFieldMappingsAt(FieldURL, storedOnly())
	doc.AddFieldMappingsAt(FieldContainer, keyword())
	doc.AddFieldMappingsAt(FieldCategories, keyword())
	doc.AddFieldMappingsAt(FieldModified, bleve.NewDateTimeFieldMapping())
	im.DefaultMapping = doc

	return im, nil
}

func (b *BleveBackend) resetBatch() {
	b.batch = b.index.NewBatch()
	b.pending = make(map[string]string)
}

// Index queues doc in the pending batch.
func (b *BleveBackend) Index(_ context.Context, doc *Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return serrors.ErrServiceStopped
	}

	bd := bleveDocument{
		ID:         doc.ID,
		Title:      doc.Title,
		Body:       doc.Body,
		Summary:    doc.Summary,
		URL:        doc.URL,
		Container:  doc.Container,
		Categories: doc.Categories,
		Properties: joinProperties(doc.Properties),
	}
	if !doc.Modified.IsZero() {
		modified := doc.Modified
		bd.Modified = &modified
	}
	if err := b.batch.Index(doc.ID, bd); err != nil {
		return serrors.New(serrors.ErrCodeIndexFailed, fmt.Sprintf("failed to index document %s", doc.ID), err)
	}
	b.pending[doc.ID] = doc.Container
	return nil
}

// Delete queues removal of id.
func (b *BleveBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return serrors.ErrServiceStopped
	}
	b.batch.Delete(id)
	delete(b.pending, id)
	return nil
}

// DeleteContainer queues removal of every committed and pending document in
// containerID.
func (b *BleveBackend) DeleteContainer(ctx context.Context, containerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return serrors.ErrServiceStopped
	}

	for id, c := range b.pending {
		if c == containerID {
			b.batch.Delete(id)
			delete(b.pending, id)
		}
	}

	tq := bleve.NewTermQuery(containerID)
	tq.SetField(FieldContainer)
	for from := 0; ; from += containerPageSize {
		req := bleve.NewSearchRequestOptions(tq, containerPageSize, from, false)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return serrors.New(serrors.ErrCodeIndexFailed, "failed to list container documents", err)
		}
		for _, hit := range res.Hits {
			b.batch.Delete(hit.ID)
		}
		if len(res.Hits) < containerPageSize {
			return nil
		}
	}
}

// Commit executes the pending batch. On failure the batch is dropped and
// the on-disk index reopened.
func (b *BleveBackend) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return serrors.ErrServiceStopped
	}
	if b.batch.Size() == 0 {
		return nil
	}

	start := time.Now()
	size := b.batch.Size()
	batch := b.batch
	b.resetBatch()

	if err := b.index.Batch(batch); err != nil {
		b.logger.Error("bleve_commit_failed",
			slog.Int("operations", size),
			slog.String("error", err.Error()))
		if rerr := b.reopenLocked(); rerr != nil {
			b.logger.Error("bleve_reopen_failed", slog.String("error", rerr.Error()))
		}
		return serrors.New(serrors.ErrCodeCommitFailed, "bleve commit failed", err)
	}

	b.logger.Debug("bleve_commit",
		slog.Int("operations", size),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// reopenLocked closes and reopens the index. In-memory indexes are left
// as they are.
func (b *BleveBackend) reopenLocked() error {
	if b.path == "" {
		return nil
	}
	_ = b.index.Close()
	idx, err := b.open()
	if err != nil {
		return err
	}
	b.index = idx
	b.resetBatch()
	return nil
}

// Clear drops every document and any pending writes.
func (b *BleveBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return serrors.ErrServiceStopped
	}

	if err := b.index.Close(); err != nil {
		b.logger.Warn("bleve_close_failed", slog.String("error", err.Error()))
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return serrors.IOError("failed to remove index", err)
		}
	}
	idx, err := b.open()
	if err != nil {
		return err
	}
	b.index = idx
	b.resetBatch()
	return nil
}

// Search runs q against committed documents.
func (b *BleveBackend) Search(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, serrors.ErrEmptyQuery
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, serrors.ErrServiceStopped
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.PageSize(), max(q.Offset, 0), false)
	req.Fields = []string{FieldTitle, FieldSummary, FieldURL, FieldContainer, FieldCategories}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeSearchFailed, "search failed", err)
	}

	out := &Result{Hits: make([]*Hit, 0, len(res.Hits)), Total: res.Total}
	for _, m := range res.Hits {
		out.Hits = append(out.Hits, hitFromMatch(m))
	}
	return out, nil
}

// buildQuery matches the text against body, properties and a boosted
// title. A category either filters or boosts.
func buildQuery(q Query) query.Query {
	body := bleve.NewMatchQuery(q.Text)
	body.SetField(FieldBody)
	props := bleve.NewMatchQuery(q.Text)
	props.SetField(FieldProperties)
	title := bleve.NewMatchQuery(q.Text)
	title.SetField(FieldTitle)
	title.SetBoost(titleBoost)

	text := bleve.NewDisjunctionQuery(body, title, props)
	if q.Category == "" {
		return text
	}

	cat := bleve.NewTermQuery(strings.ToLower(q.Category))
	cat.SetField(FieldCategories)

	bq := bleve.NewBooleanQuery()
	bq.AddMust(text)
	if q.LimitToCategory {
		bq.AddMust(cat)
	} else {
		cat.SetBoost(categoryBoost)
		bq.AddShould(cat)
	}
	return bq
}

// Find returns one committed document by ID.
func (b *BleveBackend) Find(ctx context.Context, id string) (*Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, serrors.ErrServiceStopped
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{FieldTitle, FieldSummary, FieldURL, FieldContainer, FieldCategories}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeSearchFailed, "find failed", err)
	}
	if len(res.Hits) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, serrors.ErrResourceNotFound)
	}
	return hitFromMatch(res.Hits[0]), nil
}

// Stats returns the committed document count and pending operations.
func (b *BleveBackend) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{Backend: KindBleve}
	if b.closed {
		return st
	}
	count, _ := b.index.DocCount()
	st.DocumentCount = int(count)
	st.Pending = b.batch.Size()
	return st
}

// Close closes the index. Pending writes are discarded; commit first.
func (b *BleveBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func hitFromMatch(m *search.DocumentMatch) *Hit {
	h := &Hit{ID: m.ID, Score: m.Score}
	h.Title, _ = m.Fields[FieldTitle].(string)
	h.Summary, _ = m.Fields[FieldSummary].(string)
	h.Container, _ = m.Fields[FieldContainer].(string)
	href, _ := m.Fields[FieldURL].(string)
	h.URL = WithDocID(href, m.ID)

	switch v := m.Fields[FieldCategories].(type) {
	case string:
		h.Categories = []string{v}
	case []any:
		for _, c := range v {
			if s, ok := c.(string); ok {
				h.Categories = append(h.Categories, s)
			}
		}
	}
	return h
}

// joinProperties flattens properties into one searchable string, in key
// order.
func joinProperties(props map[string]string) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(props[k])
		sb.WriteByte(' ')
	}
	return strings.TrimSpace(sb.String())
}
