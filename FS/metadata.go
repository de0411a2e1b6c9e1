package metadata

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/aarsakian/DiskImage/utils"
)

// ErrCorruptEntry reports one unparsable metadata record, traversal
// always continues past it.
var ErrCorruptEntry = errors.New("corrupt filesystem entry")

// DirRef identifies a directory within one filesystem: the MFT entry
// number on NTFS, the first cluster on FAT32.
type DirRef struct {
	Id uint64
}

// Item is one file, directory or orphan entry surfaced by a FileSystem.
// Items are immutable once produced and can be regenerated identically.
type Item struct {
	Id      uint64
	Name    string
	Path    string // directory part, "/" rooted
	IsDir   bool
	Deleted bool
	Orphan  bool // present in the master metadata but unreachable from root
	Size    int64

	Created  time.Time // zero when the filesystem does not record it
	Modified time.Time
	Accessed time.Time

	Parent *DirRef // nil for orphans
}

func (item Item) FullPath() string {
	return path.Join(item.Path, item.Name)
}

func (item Item) HasFilenameExtension(extension string) bool {
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return strings.EqualFold(path.Ext(item.Name), extension)
}

func (item Item) HasPath(namePath string) bool {
	return strings.HasPrefix(item.FullPath(), namePath)
}

// FileSystem is the traversal contract every supported filesystem
// variant implements. Iterators returned by the List methods are
// independent and restartable, a fresh call walks from the start.
type FileSystem interface {
	GetType() string
	GetBlockSize() int
	GetOffset() int64 // byte offset of the volume within the image
	GetInfo() string

	Root() DirRef
	ListDirectory(DirRef) *Iterator
	ResolveParent(Item) (DirRef, bool)
	AllItems() *Iterator

	ReadFileContent(Item) ([]byte, error)
}

func FilterByExtensions(items []Item, extensions []string) []Item {
	var filtered []Item
	for _, extension := range extensions {
		filtered = append(filtered, FilterByExtension(items, extension)...)
	}
	return filtered
}

func FilterByExtension(items []Item, extension string) []Item {
	return utils.Filter(items, func(item Item) bool {
		return item.HasFilenameExtension(extension)
	})
}

func FilterByNames(items []Item, filenames []string) []Item {
	return utils.Filter(items, func(item Item) bool {
		for _, filename := range filenames {
			if strings.EqualFold(item.Name, filename) {
				return true
			}
		}
		return false
	})
}

func FilterByPath(items []Item, filespath string) []Item {
	return utils.Filter(items, func(item Item) bool {
		return item.HasPath(filespath)
	})
}

func FilterOrphans(items []Item) []Item {
	return utils.Filter(items, func(item Item) bool {
		return item.Orphan
	})
}

func FilterDeleted(items []Item, includeDeleted bool) []Item {
	return utils.Filter(items, func(item Item) bool {
		if includeDeleted {
			return item.Deleted
		}
		return !item.Deleted
	})
}

// extensions that usually carry a nested disk image
var imageExtensions = []string{"dd", "img", "raw", "e01", "001"}

// FindDiskImages picks the items that look like disk images themselves,
// candidates for recursive opening.
func FindDiskImages(items []Item) []Item {
	return utils.Filter(items, func(item Item) bool {
		if item.IsDir {
			return false
		}
		for _, extension := range imageExtensions {
			if item.HasFilenameExtension(extension) {
				return true
			}
		}
		return false
	})
}

func FilterOutFolders(items []Item) []Item {
	return utils.Filter(items, func(item Item) bool {
		return !item.IsDir
	})
}
