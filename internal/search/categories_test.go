package search

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func TestCategories_BuiltInsAndExtras(t *testing.T) {
	// Given
	cats, err := CategoriesFromNames("Protocol", " assay ", "protocol")

	// Then: built-ins come first, names are lowercased and deduplicated
	require.NoError(t, err)
	assert.Equal(t, []string{"file", "navigation", "protocol", "assay"}, cats.Names())
	assert.True(t, cats.Has("ASSAY"))
	assert.False(t, cats.Has("gels"))
}

func TestCategories_AddUpdatesDescription(t *testing.T) {
	cats, err := NewCategories()
	require.NoError(t, err)

	require.NoError(t, cats.Add(Category{Name: "wiki"}))
	require.NoError(t, cats.Add(Category{Name: "Wiki", Description: "Wiki pages"}))

	list := cats.List()
	require.Len(t, list, 3)
	assert.Equal(t, Category{Name: "wiki", Description: "Wiki pages"}, list[2])

	// the returned slice is a copy
	list[0].Name = "changed"
	assert.Equal(t, "file", cats.List()[0].Name)
}

func TestCategories_RejectsBadNames(t *testing.T) {
	_, err := CategoriesFromNames("sample prep")
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidInput, serrors.GetCode(err))

	cats, err := NewCategories()
	require.NoError(t, err)
	assert.Error(t, cats.Add(Category{Name: "  "}))
}

func TestCategories_Check(t *testing.T) {
	cats, err := CategoriesFromNames("protocol")
	require.NoError(t, err)

	assert.NoError(t, cats.Check(""))
	assert.NoError(t, cats.Check("Protocol"))

	err = cats.Check("gels")
	assert.ErrorIs(t, err, serrors.ErrUnknownCategory)
	assert.Contains(t, err.Error(), "file, navigation, protocol")
}

func TestCategories_ConcurrentAddAndList(t *testing.T) {
	cats, err := NewCategories()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = cats.Add(Category{Name: "assay"})
		}()
		go func() {
			defer wg.Done()
			_ = cats.List()
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"file", "navigation", "assay"}, cats.Names())
}
