package metadata

import (
	"fmt"

	"github.com/aarsakian/DiskImage/FS/NTFS"
	"github.com/aarsakian/DiskImage/FS/NTFS/MFT"
	"github.com/aarsakian/DiskImage/readers"
)

// NTFSFileSystem adapts a parsed NTFS volume to the FileSystem contract.
// Items come from the master file table: one Item per base record that
// carries a FileName attribute, in record order.
type NTFSFileSystem struct {
	fs      *NTFS.NTFS
	hD      readers.DiskReader
	offsetB int64

	items     []Item
	children  map[uint64][]int
	byID      map[uint64]int // item id -> index in items
	recordIdx map[uint64]int // item id -> index in MFT records
}

func NewNTFSFileSystem(fs *NTFS.NTFS, hD readers.DiskReader, offsetB int64) *NTFSFileSystem {
	adapter := &NTFSFileSystem{fs: fs, hD: hD, offsetB: offsetB}
	adapter.buildItems()
	return adapter
}

func (adapter *NTFSFileSystem) buildItems() {
	adapter.children = map[uint64][]int{}
	adapter.byID = map[uint64]int{}
	adapter.recordIdx = map[uint64]int{}

	records := adapter.fs.MFT.Records
	paths := map[uint64]string{MFT.RootEntry: "/"}

	// resolvePath walks the parent chain iteratively, collecting unknown
	// ancestors and unwinding once a memoised directory (or the chain end)
	// is reached. A chain that loops back on itself reports failure, the
	// record is then surfaced as an orphan.
	resolvePath := func(record *MFT.Record) (string, bool) {
		var chain []*MFT.Record
		seen := map[uint64]bool{uint64(record.Entry): true}
		container := "/"
		for parent := record.Parent; parent != nil; parent = parent.Parent {
			parentID := uint64(parent.Entry)
			if p, ok := paths[parentID]; ok {
				container = p
				break
			}
			if seen[parentID] {
				return "", false
			}
			seen[parentID] = true
			chain = append(chain, parent)
		}
		for idx := len(chain) - 1; idx >= 0; idx-- {
			parent := chain[idx]
			if parent.GetFname() != "" {
				container = joinPath(container, parent.GetFname())
			}
			paths[uint64(parent.Entry)] = container
		}
		return container, true
	}

	for idx := range records {
		record := &records[idx]
		if !record.IsBaseRecord() || record.GetFname() == "" {
			continue
		}
		created, modified, accessed := record.GetTimestamps()

		item := Item{
			Id:       uint64(record.Entry),
			Name:     record.GetFname(),
			IsDir:    record.IsFolder(),
			Deleted:  record.IsDeleted(),
			Size:     record.GetLogicalFileSize(),
			Created:  created,
			Modified: modified,
			Accessed: accessed,
		}
		if p, ok := resolvePath(record); record.Parent != nil && ok {
			item.Parent = &DirRef{Id: uint64(record.Parent.Entry)}
			item.Path = p
		} else {
			item.Orphan = true
			item.Path = "/"
		}
		if _, known := paths[item.Id]; item.IsDir && !known {
			// the root is pre seeded as "/", its own "." name never joins
			paths[item.Id] = joinPath(item.Path, item.Name)
		}

		adapter.byID[item.Id] = len(adapter.items)
		adapter.recordIdx[item.Id] = idx
		if item.Parent != nil {
			adapter.children[item.Parent.Id] = append(adapter.children[item.Parent.Id], len(adapter.items))
		}
		adapter.items = append(adapter.items, item)
	}
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func (adapter *NTFSFileSystem) GetType() string { return "NTFS" }

func (adapter *NTFSFileSystem) GetBlockSize() int {
	return int(adapter.fs.ClusterSizeB())
}

func (adapter *NTFSFileSystem) GetOffset() int64 { return adapter.offsetB }

func (adapter *NTFSFileSystem) GetInfo() string {
	return fmt.Sprintf("%s at offset %d (%d items)", adapter.fs.GetInfo(),
		adapter.offsetB, len(adapter.items))
}

func (adapter *NTFSFileSystem) Root() DirRef {
	return DirRef{Id: MFT.RootEntry}
}

func (adapter *NTFSFileSystem) ListDirectory(ref DirRef) *Iterator {
	indices := adapter.children[ref.Id]
	items := make([]Item, 0, len(indices))
	for _, idx := range indices {
		if adapter.items[idx].Id == ref.Id {
			continue // the root references itself
		}
		items = append(items, adapter.items[idx])
	}
	return newSliceIterator(items)
}

func (adapter *NTFSFileSystem) ResolveParent(item Item) (DirRef, bool) {
	if item.Parent == nil {
		return DirRef{}, false
	}
	if _, ok := adapter.byID[item.Parent.Id]; !ok {
		return DirRef{}, false
	}
	return *item.Parent, true
}

func (adapter *NTFSFileSystem) AllItems() *Iterator {
	return newTreeIterator(adapter.items, adapter.children, MFT.RootEntry)
}

func (adapter *NTFSFileSystem) ReadFileContent(item Item) ([]byte, error) {
	idx, ok := adapter.recordIdx[item.Id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown item %d", ErrCorruptEntry, item.Id)
	}
	return adapter.fs.ReadRecordContent(&adapter.fs.MFT.Records[idx], adapter.hD, adapter.offsetB)
}
