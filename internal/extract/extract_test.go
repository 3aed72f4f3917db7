package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func TestRegistry_For(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name        string
		contentType string
		file        string
		want        any
	}{
		{"html by type", "text/html; charset=utf-8", "page", &HTMLExtractor{}},
		{"pdf by type", "application/pdf", "x", &PDFExtractor{}},
		{"docx by extension", "application/octet-stream", "memo.docx", &DOCXExtractor{}},
		{"json by type", "application/json", "data", &JSONExtractor{}},
		{"markdown", "text/markdown", "README.md", &TextExtractor{}},
		{"other text falls back", "text/x-sql", "q.sql", &TextExtractor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := reg.For(tt.contentType, tt.file)
			require.True(t, ok)
			assert.IsType(t, tt.want, e)
		})
	}
}

func TestRegistry_ForSkipsImagesAndXML(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.For("image/png", "logo.png")
	assert.False(t, ok)

	_, ok = reg.For("text/xml", "feed.xml")
	assert.False(t, ok)

	_, ok = reg.For("application/zip", "bundle.zip")
	assert.False(t, ok)
}

func TestRegistry_ExtractUnsupported(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Extract(context.Background(), "image/jpeg", "a.jpg", strings.NewReader("..."))

	assert.ErrorIs(t, err, serrors.ErrUnsupportedContent)
}

func TestHTMLExtractor_BodyAndTitle(t *testing.T) {
	// Given: a page with a title, a script and body text
	page := `<html><head><title> Assay  Results </title>
<script>var x = "hidden";</script><style>p{}</style></head>
<body><h1>Plate 7</h1><p>Signal was   strong.</p></body></html>`

	// When
	c, err := NewHTMLExtractor().Extract(context.Background(), strings.NewReader(page))

	// Then
	require.NoError(t, err)
	assert.Equal(t, "Assay Results", c.Title)
	assert.Equal(t, "Plate 7 Signal was strong.", c.Body)
	assert.NotContains(t, c.Body, "hidden")
}

func TestTextExtractor(t *testing.T) {
	c, err := NewTextExtractor().Extract(context.Background(), strings.NewReader("plain\xffnotes"))

	require.NoError(t, err)
	assert.Equal(t, "plainnotes", c.Body)
	assert.Empty(t, c.Title)
}

func TestJSONExtractor(t *testing.T) {
	doc := `{"title":"Sample 12","tags":["blood","plasma"],"count":3,"notes":{"lab":"north"}}`

	c, err := NewJSONExtractor().Extract(context.Background(), strings.NewReader(doc))

	require.NoError(t, err)
	assert.Equal(t, "Sample 12", c.Title)
	assert.Equal(t, "north blood plasma Sample 12", c.Body)
}

func TestJSONExtractor_Invalid(t *testing.T) {
	_, err := NewJSONExtractor().Extract(context.Background(), strings.NewReader("{nope"))
	assert.Error(t, err)
}

func TestPDFExtractor_RejectsNonPDF(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), strings.NewReader("hello"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a PDF")
}

func TestDOCXExtractor_RejectsGarbage(t *testing.T) {
	_, err := NewDOCXExtractor().Extract(context.Background(), strings.NewReader("not a zip"))
	assert.Error(t, err)
}
