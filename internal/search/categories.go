package search

import (
	"fmt"
	"strings"
	"sync"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

// Category is a kind of document a search can be boosted or narrowed to.
// Documents carry category names in their "categories" property.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Built-in categories, registered by every Categories.
var (
	CategoryFile       = Category{Name: "file", Description: "Files"}
	CategoryNavigation = Category{Name: "navigation", Description: "Folders and pages"}
)

// Categories is the set of known search categories, listed in the order
// they were added. It is safe for concurrent use.
type Categories struct {
	mu   sync.RWMutex
	list []Category
}

// NewCategories returns the built-in categories plus extra.
func NewCategories(extra ...Category) (*Categories, error) {
	c := &Categories{}
	for _, cat := range append([]Category{CategoryFile, CategoryNavigation}, extra...) {
		if err := c.Add(cat); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CategoriesFromNames is NewCategories for bare names, as they appear in
// configuration.
func CategoriesFromNames(names ...string) (*Categories, error) {
	extra := make([]Category, 0, len(names))
	for _, n := range names {
		extra = append(extra, Category{Name: n})
	}
	return NewCategories(extra...)
}

// Add registers cat. Names are matched case-insensitively and must be a
// single word. Adding a known name again only updates its description.
func (c *Categories) Add(cat Category) error {
	cat.Name = normalizeCategory(cat.Name)
	if cat.Name == "" || strings.ContainsAny(cat.Name, " \t\n") {
		return serrors.ValidationError(fmt.Sprintf("category name %q", cat.Name), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.list {
		if c.list[i].Name == cat.Name {
			if cat.Description != "" {
				c.list[i].Description = cat.Description
			}
			return nil
		}
	}
	c.list = append(c.list, cat)
	return nil
}

// List returns a copy of the registered categories.
func (c *Categories) List() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Category(nil), c.list...)
}

// Names returns the registered names in registration order.
func (c *Categories) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.list))
	for _, cat := range c.list {
		out = append(out, cat.Name)
	}
	return out
}

// Has reports whether name is registered.
func (c *Categories) Has(name string) bool {
	name = normalizeCategory(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.list {
		if cat.Name == name {
			return true
		}
	}
	return false
}

// Check returns nil for an empty or registered name, and an error wrapping
// ErrUnknownCategory that lists the known names otherwise.
func (c *Categories) Check(name string) error {
	if normalizeCategory(name) == "" || c.Has(name) {
		return nil
	}
	return fmt.Errorf("%q (known: %s): %w", name, strings.Join(c.Names(), ", "), serrors.ErrUnknownCategory)
}

func normalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
