package filters

import (
	metadata "github.com/aarsakian/DiskImage/FS"
)

type Filter interface {
	Execute(items []metadata.Item) []metadata.Item
}

// FilterManager applies its registered filters in registration order.
type FilterManager struct {
	filters []Filter
}

func (fm *FilterManager) Register(filter Filter) {
	fm.filters = append(fm.filters, filter)
}

func (fm FilterManager) ApplyFilters(items []metadata.Item) []metadata.Item {
	for _, filter := range fm.filters {
		items = filter.Execute(items)
	}
	return items
}

type NameFilter struct {
	Filenames []string
}

func (nameFilter NameFilter) Execute(items []metadata.Item) []metadata.Item {
	return metadata.FilterByNames(items, nameFilter.Filenames)
}

type PathFilter struct {
	NamePath string
}

func (pathFilter PathFilter) Execute(items []metadata.Item) []metadata.Item {
	return metadata.FilterByPath(items, pathFilter.NamePath)
}

type ExtensionsFilter struct {
	Extensions []string
}

func (extensionsFilter ExtensionsFilter) Execute(items []metadata.Item) []metadata.Item {
	return metadata.FilterByExtensions(items, extensionsFilter.Extensions)
}

type OrphansFilter struct {
	Include bool
}

func (orphansFilter OrphansFilter) Execute(items []metadata.Item) []metadata.Item {
	if orphansFilter.Include {
		return metadata.FilterOrphans(items)
	}
	return items
}

type DeletedFilter struct {
	Include bool
}

func (deletedFilter DeletedFilter) Execute(items []metadata.Item) []metadata.Item {
	if deletedFilter.Include {
		return metadata.FilterDeleted(items, deletedFilter.Include)
	}
	return items
}

type FoldersFilter struct {
	Include bool
}

func (foldersFilter FoldersFilter) Execute(items []metadata.Item) []metadata.Item {
	if !foldersFilter.Include {
		return metadata.FilterOutFolders(items)
	}
	return items
}
