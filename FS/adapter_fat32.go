package metadata

import (
	"fmt"

	"github.com/aarsakian/DiskImage/FS/FAT32"
	"github.com/aarsakian/DiskImage/readers"
)

// FAT32FileSystem adapts a parsed FAT32 volume. Directory references are
// first clusters; FAT carries no master table beyond the tree itself so
// the residual orphan pass is naturally empty and deleted entries stay
// attached to their directory.
type FAT32FileSystem struct {
	fs      *FAT32.FAT32
	hD      readers.DiskReader
	offsetB int64

	items    []Item
	children map[uint64][]int
	byEntry  map[uint64]FAT32.Entry
}

func NewFAT32FileSystem(fs *FAT32.FAT32, hD readers.DiskReader, offsetB int64) *FAT32FileSystem {
	adapter := &FAT32FileSystem{fs: fs, hD: hD, offsetB: offsetB}
	adapter.buildItems()
	return adapter
}

func (adapter *FAT32FileSystem) buildItems() {
	adapter.children = map[uint64][]int{}
	adapter.byEntry = map[uint64]FAT32.Entry{}

	rootCluster := uint64(adapter.fs.BS.RootCluster)
	dirPaths := map[uint64]string{rootCluster: "/"}

	// entries arrive in traversal order: a directory is always parsed
	// before its children so its path is known here
	for _, entry := range adapter.fs.Entries {
		parentPath, ok := dirPaths[uint64(entry.ParentCluster)]
		if !ok {
			parentPath = "/"
		}

		// the directory handle is the first cluster, a deleted file may
		// have lost it; fall back to the id which never collides with a
		// cluster handle thanks to the high bit
		handle := uint64(entry.FirstCluster)
		if handle < 2 {
			handle = entry.Id | 1<<63
		}

		item := Item{
			Id:       handle,
			Name:     entry.Name,
			Path:     parentPath,
			IsDir:    entry.IsDir(),
			Deleted:  entry.Deleted,
			Size:     int64(entry.Size),
			Created:  entry.Created,
			Modified: entry.Modified,
			Accessed: entry.Accessed,
			Parent:   &DirRef{Id: uint64(entry.ParentCluster)},
		}
		if item.IsDir {
			dirPaths[item.Id] = joinPath(item.Path, item.Name)
		}

		adapter.byEntry[item.Id] = entry
		adapter.children[uint64(entry.ParentCluster)] = append(
			adapter.children[uint64(entry.ParentCluster)], len(adapter.items))
		adapter.items = append(adapter.items, item)
	}
}

func (adapter *FAT32FileSystem) GetType() string { return "FAT32" }

func (adapter *FAT32FileSystem) GetBlockSize() int {
	return int(adapter.fs.BS.ClusterSizeB())
}

func (adapter *FAT32FileSystem) GetOffset() int64 { return adapter.offsetB }

func (adapter *FAT32FileSystem) GetInfo() string {
	return fmt.Sprintf("%s at offset %d (%d items)", adapter.fs.GetInfo(),
		adapter.offsetB, len(adapter.items))
}

func (adapter *FAT32FileSystem) Root() DirRef {
	return DirRef{Id: uint64(adapter.fs.BS.RootCluster)}
}

func (adapter *FAT32FileSystem) ListDirectory(ref DirRef) *Iterator {
	indices := adapter.children[ref.Id]
	items := make([]Item, 0, len(indices))
	for _, idx := range indices {
		items = append(items, adapter.items[idx])
	}
	return newSliceIterator(items)
}

func (adapter *FAT32FileSystem) ResolveParent(item Item) (DirRef, bool) {
	if item.Parent == nil {
		return DirRef{}, false
	}
	if item.Parent.Id != uint64(adapter.fs.BS.RootCluster) {
		if _, ok := adapter.byEntry[item.Parent.Id]; !ok {
			return DirRef{}, false
		}
	}
	return *item.Parent, true
}

func (adapter *FAT32FileSystem) AllItems() *Iterator {
	return newTreeIterator(adapter.items, adapter.children, uint64(adapter.fs.BS.RootCluster))
}

func (adapter *FAT32FileSystem) ReadFileContent(item Item) ([]byte, error) {
	entry, ok := adapter.byEntry[item.Id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown item %d", ErrCorruptEntry, item.Id)
	}
	return adapter.fs.ReadFileContent(entry, adapter.hD, adapter.offsetB)
}
