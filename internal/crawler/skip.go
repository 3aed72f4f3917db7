package crawler

import (
	"fmt"
	"path"
	"strings"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// DefaultSkipNames are version control directories that are never crawled.
var DefaultSkipNames = []string{".git", ".svn", ".hg", ".bzr", "CVS", "_darcs"}

// SkipRules decides which collections a crawl descends into. Rules match the
// collection name only, never the full path.
type SkipRules struct {
	names    map[string]struct{}
	patterns []string
}

// NewSkipRules returns the default rules extended by glob patterns in
// path.Match syntax.
func NewSkipRules(patterns ...string) (*SkipRules, error) {
	s := &SkipRules{names: make(map[string]struct{}, len(DefaultSkipNames))}
	for _, n := range DefaultSkipNames {
		s.names[n] = struct{}{}
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, serrors.ConfigError(fmt.Sprintf("invalid skip pattern %q", p), err)
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

// Skip reports whether a collection called name is left out. Hidden
// collections are always skipped.
func (s *SkipRules) Skip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if _, ok := s.names[name]; ok {
		return true
	}
	for _, p := range s.patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// SkipPath reports whether any segment of a slash-separated path is skipped.
func (s *SkipRules) SkipPath(p string) bool {
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" && s.Skip(seg) {
			return true
		}
	}
	return false
}
