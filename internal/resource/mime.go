package resource

import (
	"path"
	"strings"
)

// contentTypes maps file extensions to the content types the extractors
// understand.
var contentTypes = map[string]string{
	// Text
	".txt":  "text/plain",
	".log":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".rst":  "text/x-rst",
	".sql":  "text/x-sql",
	".yaml": "text/x-yaml",
	".yml":  "text/x-yaml",

	// Markup
	".html":  "text/html",
	".htm":   "text/html",
	".xhtml": "text/html",
	".xml":   "text/xml",

	// Documents
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".json": "application/json",

	// Images
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	// Binary
	".zip": "application/zip",
	".gz":  "application/gzip",
}

// DetectContentType returns the content type for a file name, or
// "application/octet-stream" when the extension is unknown.
func DetectContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
