// Package queue holds the work items drained by the indexing worker and the
// bounded priority queue they wait in.
package queue

import (
	"fmt"
	"strings"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// Priority orders work items. Higher values are dequeued first.
type Priority int

const (
	// PriorityUnset is the zero value. Enqueue treats it as PriorityBulk.
	PriorityUnset Priority = iota
	PriorityIdle
	PriorityBackground
	PriorityBulk
	PriorityCrawl
	PriorityGroup
	PriorityItem
	PriorityDelete
	PriorityCommit
)

var priorityNames = map[Priority]string{
	PriorityUnset:      "unset",
	PriorityIdle:       "idle",
	PriorityBackground: "background",
	PriorityBulk:       "bulk",
	PriorityCrawl:      "crawl",
	PriorityGroup:      "group",
	PriorityItem:       "item",
	PriorityDelete:     "delete",
	PriorityCommit:     "commit",
}

// String returns the lowercase priority name.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// OrDefault maps PriorityUnset to PriorityBulk.
func (p Priority) OrDefault() Priority {
	if p == PriorityUnset {
		return PriorityBulk
	}
	return p
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p >= PriorityUnset && p <= PriorityCommit
}

// ParsePriority parses a priority name. The empty string yields
// PriorityUnset.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityUnset, nil
	}
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	return PriorityUnset, serrors.New(serrors.ErrCodeInvalidPriority,
		fmt.Sprintf("unknown priority %q", s), nil).
		WithSuggestion("use idle, background, bulk, crawl, group, item, delete or commit")
}
