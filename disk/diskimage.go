package disk

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	metadata "github.com/aarsakian/DiskImage/FS"
	gptLib "github.com/aarsakian/DiskImage/disk/partition/GPT"
	mbrLib "github.com/aarsakian/DiskImage/disk/partition/MBR"
	"github.com/aarsakian/DiskImage/disk/volume"
	"github.com/aarsakian/DiskImage/ewf"
	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/readers"
)

var (
	ErrContainerOpen      = errors.New("could not open the image container")
	ErrInvalidVolumeTable = errors.New("invalid volume table")
	ErrNoVolumesFound     = errors.New("no volumes found in the image")
)

const sectorSize = 512

// chained extended boot records beyond this count indicate a loop
const maxEBRChain = 128

// DiskImage is the entry point of the library: it owns the container
// reader, the discovered volume table and the filesystems behind it.
type DiskImage struct {
	Handler readers.DiskReader

	MBR *mbrLib.MBR
	GPT *gptLib.GPT

	Volumes     []volume.Volume
	FileSystems []metadata.FileSystem
}

// FromFile opens a disk image. The .e01 extension selects the evidence
// container directly, any other file is sniffed for the EVF signature
// before falling back to raw. Segmented sets (.001, .e01) are completed
// from their siblings on disk.
func FromFile(imagefile string) (*DiskImage, error) {
	mode := "raw"
	if strings.EqualFold(path.Ext(imagefile), ".e01") || isEvidenceContainer(imagefile) {
		mode = "ewf"
	}
	hD, err := readers.GetHandler(imagefile, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerOpen, err)
	}
	return FromReader(hD)
}

func isEvidenceContainer(imagefile string) bool {
	fd, err := os.Open(imagefile)
	if err != nil {
		return false
	}
	defer fd.Close()
	signature := make([]byte, ewf.FileHeaderLength)
	n, _ := fd.Read(signature)
	return ewf.Probe(signature[:n])
}

// FromFiles opens an image from an explicit ordered segment list.
func FromFiles(imagefiles []string) (*DiskImage, error) {
	if len(imagefiles) == 0 {
		return nil, fmt.Errorf("%w: no files given", ErrContainerOpen)
	}
	var hD readers.DiskReader
	if strings.EqualFold(path.Ext(imagefiles[0]), ".e01") || isEvidenceContainer(imagefiles[0]) {
		hD = &readers.EWFReader{Segments: imagefiles}
	} else {
		hD = &readers.SegmentedReader{Segments: imagefiles}
	}
	if err := hD.CreateHandler(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerOpen, err)
	}
	return FromReader(hD)
}

// FromReader builds a DiskImage over an already opened reader and runs
// volume and filesystem discovery.
func FromReader(hD readers.DiskReader) (*DiskImage, error) {
	img := &DiskImage{Handler: hD}
	if err := img.DiscoverVolumes(); err != nil {
		return nil, err
	}
	if err := img.DiscoverFileSystems(); err != nil {
		return nil, err
	}
	return img, nil
}

// FromBytes serves a nested image held in memory, typically the content
// of an image file found inside another image.
func FromBytes(data []byte) (*DiskImage, error) {
	return FromReader(&readers.BufferReader{Data: data})
}

// DiscoverVolumes locates the candidate filesystem regions: a bare
// filesystem at sector zero, an MBR partition table with extended
// partitions, or a GPT behind a protective MBR. An unreadable or
// inconsistent table is an error, an absent one degrades to a single
// whole image volume.
func (img *DiskImage) DiscoverVolumes() error {
	diskSize := img.Handler.GetDiskSize()

	data, err := img.Handler.ReadFile(0, sectorSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVolumeTable, err)
	}

	if voltype := probeBootSector(data); voltype != "" {
		logger.DILogger.Info(fmt.Sprintf("%s volume at first sector, no partition table", voltype))
		mbr := new(mbrLib.MBR)
		mbr.PopulatePseudoMBR(voltype, uint32(diskSize/sectorSize))
		img.MBR = mbr
		img.Volumes = []volume.Volume{{
			Index: 0, StartOffsetB: 0, LengthB: diskSize, TypeHint: voltype}}
		return nil
	}

	mbr := new(mbrLib.MBR)
	if err := mbr.Parse(data); err != nil {
		logger.DILogger.Warning(fmt.Sprintf("no partition table: %v", err))
		img.Volumes = []volume.Volume{{
			Index: 0, StartOffsetB: 0, LengthB: diskSize, TypeHint: "unpartitioned"}}
		return nil
	}
	img.MBR = mbr

	if mbr.IsProtective() {
		if err := img.populateGPT(); err != nil {
			return err
		}
		for _, partition := range img.GPT.Partitions {
			img.appendVolume(int64(partition.GetOffset())*sectorSize,
				int64(partition.GetSizeSectors())*sectorSize, partition.GetName())
		}
	} else {
		if err := img.discoverExtendedPartitions(); err != nil {
			return err
		}
		for _, partition := range mbr.Partitions {
			if partition.IsExtended() || partition.Size == 0 {
				continue // container or empty slot, not a volume
			}
			img.appendVolume(int64(partition.GetOffset())*sectorSize,
				int64(partition.Size)*sectorSize, partition.GetPartitionType())
		}
		for _, extPartition := range mbr.ExtendedPartitions {
			if extPartition.Partition.Size == 0 {
				continue
			}
			img.appendVolume(int64(extPartition.GetOffset())*sectorSize,
				int64(extPartition.Partition.Size)*sectorSize,
				extPartition.Partition.GetPartitionType())
		}
	}

	if len(img.Volumes) == 0 {
		return ErrNoVolumesFound
	}
	return img.validateVolumeTable(diskSize)
}

func probeBootSector(data []byte) string {
	if len(data) < 90 {
		return ""
	}
	if string(data[3:7]) == "NTFS" {
		return "NTFS"
	}
	if string(data[82:90]) == "FAT32   " {
		return "FAT32"
	}
	return ""
}

func (img *DiskImage) appendVolume(startB int64, lengthB int64, hint string) {
	img.Volumes = append(img.Volumes, volume.Volume{
		Index:        len(img.Volumes),
		StartOffsetB: startB,
		LengthB:      lengthB,
		TypeHint:     hint,
	})
}

func (img *DiskImage) populateGPT() error {
	data, err := img.Handler.ReadFile(sectorSize, sectorSize) // header at LBA 1
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVolumeTable, err)
	}
	gpt := new(gptLib.GPT)
	if err := gpt.ParseHeader(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVolumeTable, err)
	}
	data, err = img.Handler.ReadFile(int64(gpt.Header.PartitionsStartLBA)*sectorSize,
		int(gpt.GetPartitionArraySize()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVolumeTable, err)
	}
	gpt.ParsePartitions(data)
	img.GPT = gpt
	return nil
}

// discoverExtendedPartitions walks the chain of extended boot records.
// The first EBR sits at the extended container offset, links inside it
// are relative to the container start.
func (img *DiskImage) discoverExtendedPartitions() error {
	containerOffset, err := img.MBR.GetExtendedPartitionOffset()
	if err != nil {
		return nil // no extended partition
	}

	tableOffset := containerOffset
	for hops := 0; hops < maxEBRChain; hops++ {
		data, err := img.Handler.ReadFile(int64(tableOffset)*sectorSize, sectorSize)
		if err != nil {
			return fmt.Errorf("%w: extended table at sector %d: %v",
				ErrInvalidVolumeTable, tableOffset, err)
		}
		img.MBR.DiscoverExtendedPartitions(data, tableOffset)

		next := int64(-1)
		for _, partition := range mbrLib.LocatePartitions(data[446:510]) {
			if partition.IsExtended() {
				next = int64(containerOffset) + int64(partition.StartLBA)
				break
			}
		}
		if next < 0 {
			return nil
		}
		if next <= int64(tableOffset) {
			return fmt.Errorf("%w: extended table loop at sector %d",
				ErrInvalidVolumeTable, next)
		}
		tableOffset = int(next)
	}
	return fmt.Errorf("%w: extended table chain too long", ErrInvalidVolumeTable)
}

// validateVolumeTable rejects tables whose entries run past the image or
// overlap each other.
func (img DiskImage) validateVolumeTable(diskSize int64) error {
	for idx, vol := range img.Volumes {
		if vol.StartOffsetB < 0 || vol.LengthB < 0 || vol.EndOffsetB() > diskSize {
			return fmt.Errorf("%w: %s exceeds image size %d",
				ErrInvalidVolumeTable, vol.GetInfo(), diskSize)
		}
		for _, other := range img.Volumes[:idx] {
			if vol.Overlaps(other) {
				return fmt.Errorf("%w: %s overlaps %s",
					ErrInvalidVolumeTable, vol.GetInfo(), other.GetInfo())
			}
		}
	}
	return nil
}

// DiscoverFileSystems probes each volume's boot sector and parses the
// recognized ones. Volumes with no recognized filesystem are skipped,
// a parse failure inside a recognized one is reported.
func (img *DiskImage) DiscoverFileSystems() error {
	for _, vol := range img.Volumes {
		fs, err := metadata.Detect(img.Handler, vol.StartOffsetB, vol.LengthB)
		if err != nil {
			return fmt.Errorf("volume %d: %w", vol.Index, err)
		}
		if fs == nil {
			logger.DILogger.Info(fmt.Sprintf("volume %d has no supported filesystem", vol.Index))
			continue
		}
		img.FileSystems = append(img.FileSystems, fs)
	}
	return nil
}

// GetItems walks every discovered filesystem lazily in volume order.
// Each call returns a fresh independent iterator.
func (img DiskImage) GetItems() *metadata.Iterator {
	makers := make([]func() *metadata.Iterator, len(img.FileSystems))
	for idx, fs := range img.FileSystems {
		fs := fs
		makers[idx] = fs.AllItems
	}
	return metadata.Concat(makers...)
}

// Find returns the items whose name matches the pattern, a case
// insensitive substring by default or a regular expression.
func (img DiskImage) Find(pattern string, useRegex bool) ([]metadata.Item, error) {
	var matches func(string) bool
	if useRegex {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, err
		}
		matches = re.MatchString
	} else {
		needle := strings.ToLower(pattern)
		matches = func(name string) bool {
			return strings.Contains(strings.ToLower(name), needle)
		}
	}

	var found []metadata.Item
	it := img.GetItems()
	for {
		item, ok := it.Next()
		if !ok {
			return found, nil
		}
		if matches(item.Name) {
			found = append(found, item)
		}
	}
}

// GetItemsRecursive collects every item and descends into disk image
// files found inside the filesystems, appending their items in turn.
// Nested images that fail to open are skipped with a warning.
func (img DiskImage) GetItemsRecursive() []metadata.Item {
	var all []metadata.Item
	for fsIndex, fs := range img.FileSystems {
		items := fs.AllItems().Collect()
		all = append(all, items...)
		for _, candidate := range metadata.FindDiskImages(items) {
			nested, err := img.OpenNestedImage(fsIndex, candidate)
			if err != nil {
				logger.DILogger.Warning(fmt.Sprintf("nested image %s: %v",
					candidate.FullPath(), err))
				continue
			}
			all = append(all, nested.GetItemsRecursive()...)
			nested.Close()
		}
	}
	return all
}

// OpenNestedImage reads an image file found inside a filesystem and
// opens it as a DiskImage of its own.
func (img DiskImage) OpenNestedImage(fsIndex int, item metadata.Item) (*DiskImage, error) {
	if fsIndex < 0 || fsIndex >= len(img.FileSystems) {
		return nil, fmt.Errorf("%w: no filesystem %d", ErrContainerOpen, fsIndex)
	}
	data, err := img.FileSystems[fsIndex].ReadFileContent(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerOpen, err)
	}
	return FromBytes(data)
}

func (img DiskImage) ListVolumes() []string {
	infos := make([]string, 0, len(img.Volumes))
	for _, vol := range img.Volumes {
		infos = append(infos, vol.GetInfo())
	}
	return infos
}

func (img DiskImage) Close() {
	img.Handler.CloseHandler()
}
