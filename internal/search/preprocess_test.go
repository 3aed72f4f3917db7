package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
	"github.com/Aman-CERP/labsearch/internal/extract"
)

func TestPreprocess_TitleFallbacks(t *testing.T) {
	reg := extract.NewRegistry()
	html := "<html><head><title>Assay Results</title></head><body><p>Plate 7</p></body></html>"

	tests := []struct {
		name  string
		res   *memResource
		title string
	}{
		{
			name:  "property wins",
			res:   &memResource{id: "dav:/r.html", contentType: "text/html", body: html, props: map[string]string{"title": "Run 12"}},
			title: "Run 12",
		},
		{
			name:  "content title",
			res:   &memResource{id: "dav:/r.html", contentType: "text/html", body: html},
			title: "Assay Results",
		},
		{
			name:  "resource name",
			res:   &memResource{id: "dav:/notes/plate.txt", body: "Plate 7"},
			title: "plate.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Preprocess(context.Background(), tt.res, reg)
			require.NoError(t, err)
			assert.Equal(t, tt.title, doc.Title)
		})
	}
}

func TestPreprocess_Fields(t *testing.T) {
	// Given: a text resource with categories and free-form properties
	modified := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &memResource{
		id:       "dav:/lab/plasma.txt",
		body:     "Plasma Sample\nfrom the north site",
		modified: modified,
		props: map[string]string{
			"title":      "Plasma Sample",
			"categories": "Assay  Specimen",
			"Site":       "NORTH",
			"empty":      "",
		},
	}

	// When
	doc, err := Preprocess(context.Background(), res, extract.NewRegistry())

	// Then
	require.NoError(t, err)
	assert.Equal(t, "dav:/lab/plasma.txt", doc.ID)
	assert.Equal(t, "Plasma Sample", doc.Title)
	assert.Equal(t, "from the north site", doc.Summary)
	assert.Equal(t, "dav:/lab", doc.Container)
	assert.Equal(t, "/files/lab/plasma.txt", doc.URL)
	assert.Equal(t, []string{"assay", "specimen"}, doc.Categories)
	assert.Equal(t, map[string]string{"Site": "north"}, doc.Properties)
	assert.Equal(t, modified, doc.Modified)
}

func TestPreprocess_LongSummaryIsCut(t *testing.T) {
	body := strings.Repeat("word ", 200)
	res := &memResource{id: "dav:/long.txt", body: body}

	doc, err := Preprocess(context.Background(), res, extract.NewRegistry())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.Summary, "..."))
	assert.Less(t, len(doc.Summary), len(body))
}

func TestPreprocess_UnsupportedContent(t *testing.T) {
	res := &memResource{id: "dav:/scan.png", contentType: "image/png", body: "\x89PNG"}

	_, err := Preprocess(context.Background(), res, extract.NewRegistry())

	assert.ErrorIs(t, err, serrors.ErrUnsupportedContent)
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	reg := extract.NewRegistry()
	a, err := Preprocess(context.Background(), &memResource{id: "dav:/a.txt", body: "alpha", props: map[string]string{"k": "v"}}, reg)
	require.NoError(t, err)
	same, err := Preprocess(context.Background(), &memResource{id: "dav:/a.txt", body: "alpha", props: map[string]string{"k": "v"}}, reg)
	require.NoError(t, err)
	changed, err := Preprocess(context.Background(), &memResource{id: "dav:/a.txt", body: "alpha", props: map[string]string{"k": "w"}}, reg)
	require.NoError(t, err)

	assert.Equal(t, fingerprint(a), fingerprint(same))
	assert.NotEqual(t, fingerprint(a), fingerprint(changed))
}
