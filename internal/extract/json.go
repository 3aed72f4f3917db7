package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// JSONExtractor indexes the string values of a JSON document. A top-level
// "title" string becomes the title.
type JSONExtractor struct{}

// NewJSONExtractor creates a JSONExtractor.
func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

func (j *JSONExtractor) Extract(_ context.Context, r io.Reader) (*Content, error) {
	var data any
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	var sb strings.Builder
	collectStrings(data, &sb)

	content := &Content{Body: strings.TrimSpace(sb.String())}
	if obj, ok := data.(map[string]any); ok {
		if title, ok := obj["title"].(string); ok {
			content.Title = title
		}
	}
	return content, nil
}

func (j *JSONExtractor) SupportedTypes() []string {
	return []string{"application/json", ".json"}
}

// collectStrings walks v in key order so output is deterministic.
func collectStrings(v any, sb *strings.Builder) {
	switch val := v.(type) {
	case string:
		sb.WriteString(val)
		sb.WriteByte(' ')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectStrings(val[k], sb)
		}
	case []any:
		for _, item := range val {
			collectStrings(item, sb)
		}
	}
}
