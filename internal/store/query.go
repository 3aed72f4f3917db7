package store

import (
	"net/url"
	"strings"
)

// queryMeta are the characters EscapeTerm protects.
const queryMeta = `+-&|!(){}[]^"~*?:\`

// EscapeTerm backslash-escapes query syntax characters so term is matched
// literally.
func EscapeTerm(term string) string {
	var sb strings.Builder
	sb.Grow(len(term))
	for _, r := range term {
		if strings.ContainsRune(queryMeta, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// WithDocID appends the "_docid" parameter search hits link with.
func WithDocID(href, id string) string {
	if href == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return href + sep + "_docid=" + url.QueryEscape(id)
}
