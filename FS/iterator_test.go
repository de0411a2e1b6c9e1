package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testItems() ([]Item, map[uint64][]int) {
	root := &DirRef{Id: 100}
	dir := &DirRef{Id: 10}
	items := []Item{
		{Id: 1, Name: "a.txt", Parent: root},
		{Id: 10, Name: "docs", IsDir: true, Parent: root},
		{Id: 11, Name: "b.txt", Parent: dir},
		{Id: 50, Name: "lost.txt", Parent: &DirRef{Id: 999}}, // unreachable parent
	}
	children := map[uint64][]int{
		100: {0, 1},
		10:  {2},
	}
	return items, children
}

func collectNames(it *Iterator) []string {
	var names []string
	for {
		item, ok := it.Next()
		if !ok {
			return names
		}
		names = append(names, item.Name)
	}
}

func TestTreeIteratorWalksDepthFirstThenResiduals(t *testing.T) {
	items, children := testItems()
	it := newTreeIterator(items, children, 100)

	var walked []Item
	for {
		item, ok := it.Next()
		if !ok {
			break
		}
		walked = append(walked, item)
	}

	assert.Equal(t, []string{"a.txt", "docs", "b.txt", "lost.txt"},
		[]string{walked[0].Name, walked[1].Name, walked[2].Name, walked[3].Name})

	// residual entries surface as orphans with no parent
	assert.True(t, walked[3].Orphan)
	assert.Nil(t, walked[3].Parent)
	assert.False(t, walked[0].Orphan)
}

func TestTreeIteratorSkipsSelfReferencingRoot(t *testing.T) {
	rootRef := &DirRef{Id: 5}
	items := []Item{
		{Id: 5, Name: ".", IsDir: true, Parent: rootRef},
		{Id: 7, Name: "a.txt", Parent: rootRef},
	}
	children := map[uint64][]int{5: {0, 1}}

	names := collectNames(newTreeIterator(items, children, 5))
	assert.Equal(t, []string{"a.txt"}, names)
}

func TestTreeIteratorRestartable(t *testing.T) {
	items, children := testItems()
	first := collectNames(newTreeIterator(items, children, 100))
	second := collectNames(newTreeIterator(items, children, 100))
	assert.Equal(t, first, second)
}

func TestConcat(t *testing.T) {
	makers := []func() *Iterator{
		func() *Iterator { return newSliceIterator([]Item{{Name: "x"}, {Name: "y"}}) },
		func() *Iterator { return newSliceIterator(nil) },
		func() *Iterator { return newSliceIterator([]Item{{Name: "z"}}) },
	}
	assert.Equal(t, []string{"x", "y", "z"}, collectNames(Concat(makers...)))
	assert.Empty(t, collectNames(Concat()))
}

func TestItemPaths(t *testing.T) {
	item := Item{Name: "report.pdf", Path: "/docs"}
	assert.Equal(t, "/docs/report.pdf", item.FullPath())
	assert.True(t, item.HasFilenameExtension("pdf"))
	assert.True(t, item.HasFilenameExtension(".PDF"))
	assert.False(t, item.HasFilenameExtension("txt"))
	assert.True(t, item.HasPath("/docs"))
}

func TestFilters(t *testing.T) {
	items := []Item{
		{Name: "a.txt"},
		{Name: "b.jpg", Deleted: true},
		{Name: "docs", IsDir: true},
		{Name: "lost.txt", Orphan: true},
	}
	assert.Len(t, FilterByExtension(items, "txt"), 2)
	assert.Len(t, FilterByNames(items, []string{"B.JPG"}), 1)
	assert.Len(t, FilterOrphans(items), 1)
	assert.Len(t, FilterDeleted(items, true), 1)
	assert.Len(t, FilterOutFolders(items), 3)
}
