package FAT32

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/readers"
	"github.com/aarsakian/DiskImage/utils"
)

var ErrCorruptChain = errors.New("corrupt FAT cluster chain")

const (
	endOfChain  = 0x0ffffff8
	badCluster  = 0x0ffffff7
	entryMask   = 0x0fffffff
	deletedByte = 0xe5
)

// attribute flags of a directory entry
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

type FAT32 struct {
	BS *BootSector

	fat     []uint32
	Entries []Entry

	CorruptCount int
}

type BootSector struct {
	JumpInstruction [3]byte //0-3
	OEMName         [8]byte //3-11
	BytesPerSector  uint16  //11-13
	SectorsPerClus  uint8   //13
	ReservedSectors uint16  //14-16
	NumFATs         uint8   //16
	RootEntryCount  uint16  //17-19 zero on FAT32
	TotalSectors16  uint16  //19-21
	Media           uint8   //21
	FATSize16       uint16  //22-24 zero on FAT32
	SectorsPerTrack uint16  //24-26
	NumHeads        uint16  //26-28
	HiddenSectors   uint32  //28-32
	TotalSectors32  uint32  //32-36
	FATSize32       uint32  //36-40 sectors per FAT
	ExtFlags        uint16  //40-42
	FSVersion       uint16  //42-44
	RootCluster     uint32  //44-48
	FSInfoSector    uint16  //48-50
	BackupBootSec   uint16  //50-52
	Reserved        [12]byte
	DriveNumber     uint8 //64
	Reserved1       uint8
	BootSignature   uint8    //66
	VolumeID        uint32   //67-71
	VolumeLabel     [11]byte //71-82
	FileSystemType  [8]byte  //82-90 "FAT32   "
}

// Entry is one parsed directory entry, long names already folded in.
type Entry struct {
	Id            uint64
	Name          string
	ShortName     string
	Attr          uint8
	Deleted       bool
	Size          uint32
	FirstCluster  uint32
	ParentCluster uint32

	Created  time.Time
	Modified time.Time
	Accessed time.Time
}

func (entry Entry) IsDir() bool {
	return entry.Attr&AttrDirectory != 0
}

func (bs *BootSector) Parse(data []byte) {
	utils.Unmarshal(data, bs)
}

func (bs BootSector) GetSignature() string {
	return string(bs.FileSystemType[:])
}

func (bs BootSector) ClusterSizeB() int64 {
	return int64(bs.SectorsPerClus) * int64(bs.BytesPerSector)
}

func (bs BootSector) fatOffsetB() int64 {
	return int64(bs.ReservedSectors) * int64(bs.BytesPerSector)
}

func (bs BootSector) dataOffsetB() int64 {
	return bs.fatOffsetB() + int64(bs.NumFATs)*int64(bs.FATSize32)*int64(bs.BytesPerSector)
}

func (bs BootSector) clusterOffsetB(cluster uint32) int64 {
	return bs.dataOffsetB() + int64(cluster-2)*bs.ClusterSizeB()
}

func (fs *FAT32) AddVolume(data []byte) {
	fs.BS = new(BootSector)
	fs.BS.Parse(data)
}

func (fs FAT32) HasValidSignature() bool {
	return fs.BS.GetSignature() == "FAT32   " && fs.BS.BytesPerSector > 0 &&
		fs.BS.SectorsPerClus > 0 && fs.BS.FATSize32 > 0
}

func (fs FAT32) GetSignature() string {
	return fs.BS.GetSignature()
}

func (fs FAT32) GetInfo() string {
	return fmt.Sprintf("FAT32 label %q cluster size %d root cluster %d",
		string(fs.BS.VolumeLabel[:]), fs.BS.ClusterSizeB(), fs.BS.RootCluster)
}

// Process loads the allocation table and walks every directory reachable
// from the root cluster with an explicit stack.
func (fs *FAT32) Process(hD readers.DiskReader, partitionOffsetB int64) error {
	fatData, err := hD.ReadFile(partitionOffsetB+fs.BS.fatOffsetB(),
		int(fs.BS.FATSize32)*int(fs.BS.BytesPerSector))
	if err != nil {
		return err
	}
	fs.fat = make([]uint32, len(fatData)/4)
	for idx := range fs.fat {
		fs.fat[idx] = binary.LittleEndian.Uint32(fatData[4*idx:]) & entryMask
	}

	type dirTask struct{ cluster uint32 }
	stack := []dirTask{{fs.BS.RootCluster}}
	visited := map[uint32]bool{}
	nextID := uint64(1)

	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[task.cluster] {
			continue
		}
		visited[task.cluster] = true

		data, err := fs.readChain(hD, partitionOffsetB, task.cluster)
		if err != nil {
			fs.CorruptCount++
			logger.DILogger.Warning(fmt.Sprintf("directory cluster %d: %v", task.cluster, err))
			continue
		}

		entries := fs.parseDirectory(data, task.cluster, &nextID)
		fs.Entries = append(fs.Entries, entries...)

		// descend depth first keeping on disk order
		for idx := len(entries) - 1; idx >= 0; idx-- {
			entry := entries[idx]
			if entry.IsDir() && !entry.Deleted && entry.FirstCluster >= 2 &&
				int(entry.FirstCluster) < len(fs.fat) {
				stack = append(stack, dirTask{entry.FirstCluster})
			}
		}
	}
	return nil
}

func (fs *FAT32) readChain(hD readers.DiskReader, partitionOffsetB int64, start uint32) ([]byte, error) {
	clusters, err := fs.ClusterChain(start)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, int64(len(clusters))*fs.BS.ClusterSizeB())
	for _, cluster := range clusters {
		chunk, err := hD.ReadFile(partitionOffsetB+fs.BS.clusterOffsetB(cluster),
			int(fs.BS.ClusterSizeB()))
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}
	return data, nil
}

func (fs *FAT32) ClusterChain(start uint32) ([]uint32, error) {
	var clusters []uint32
	seen := map[uint32]bool{}
	for cluster := start & entryMask; cluster < endOfChain; {
		if cluster < 2 || int(cluster) >= len(fs.fat) || cluster == badCluster {
			return nil, fmt.Errorf("%w: cluster %d", ErrCorruptChain, cluster)
		}
		if seen[cluster] {
			return nil, fmt.Errorf("%w: loop at cluster %d", ErrCorruptChain, cluster)
		}
		seen[cluster] = true
		clusters = append(clusters, cluster)
		next := fs.fat[cluster]
		if next == 0 {
			return nil, fmt.Errorf("%w: free cluster %d in chain", ErrCorruptChain, cluster)
		}
		cluster = next
	}
	return clusters, nil
}
