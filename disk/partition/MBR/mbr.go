package MBR

import (
	"errors"
	"fmt"

	"github.com/aarsakian/DiskImage/utils"
)

var ErrNotValid = errors.New("mbr not valid")

var PartitionTypes = map[uint8]string{
	0x01: "FAT12",
	0x04: "FAT16 <32M",
	0x06: "FAT16",
	0x07: "HPFS/NTFS/exFAT",
	0x0b: "W95 FAT32",
	0x0c: "W95 FAT32 (LBA)",
	0x0e: "W95 FAT16 (LBA)",
	0x0f: "Extended",
	0x17: "Hidden HPFS/NTFS",
	0x27: "Hidden NTFS Win",
	0x83: "Linux",
	0xee: "GPT protective"}

type MBR struct {
	BootCode           [446]byte //0-445
	Partitions         []Partition
	ExtendedPartitions []ExtendedPartition
	Signature          []byte //510-511
}

type Partition struct {
	Flag     uint8
	StartCHS [3]byte
	Type     uint8
	EndCHS   [3]byte
	StartLBA uint32
	Size     uint32 //sectors
}

// ExtendedPartition is a logical partition found inside an extended
// container, its LBA is relative to the extended table it came from.
type ExtendedPartition struct {
	Partition   *Partition
	TableOffset int // sector of the extended boot record
}

func (partition Partition) GetOffset() uint64 {
	return uint64(partition.StartLBA)
}

func (partition Partition) GetPartitionType() string {
	if name, ok := PartitionTypes[partition.Type]; ok {
		return name
	}
	return fmt.Sprintf("type 0x%02x", partition.Type)
}

func (partition Partition) IsExtended() bool {
	return partition.Type == 0x0f || partition.Type == 0x05
}

func (partition Partition) GetInfo() string {
	return fmt.Sprintf("%s at %d size %d sectors", partition.GetPartitionType(),
		partition.GetOffset(), partition.Size)
}

func (extPartition ExtendedPartition) GetOffset() uint64 {
	return uint64(extPartition.Partition.StartLBA) + uint64(extPartition.TableOffset)
}

func (extPartition ExtendedPartition) GetInfo() string {
	return fmt.Sprintf("\textended partition %s at %d size %d sectors",
		extPartition.Partition.GetPartitionType(), extPartition.GetOffset(),
		extPartition.Partition.Size)
}

func (mbr MBR) IsProtective() bool {
	return len(mbr.Partitions) > 0 && mbr.Partitions[0].Type == 0xEE
}

func (mbr MBR) HasValidSignature() bool {
	return utils.Hexify(mbr.Signature) == "55aa"
}

func (mbr MBR) GetPartition(partitionNum int) Partition {
	return mbr.Partitions[partitionNum]
}

func (mbr *MBR) Parse(buffer []byte) error {
	if len(buffer) < 512 {
		return fmt.Errorf("%w: short sector", ErrNotValid)
	}
	utils.Unmarshal(buffer, mbr)
	mbr.Signature = buffer[510:512]
	if !mbr.HasValidSignature() {
		return fmt.Errorf("%w: signature %s", ErrNotValid, utils.Hexify(mbr.Signature))
	}
	mbr.Partitions = LocatePartitions(buffer[446:510])
	return nil
}

func LocatePartitions(data []byte) []Partition {
	pos := 0
	var partitions []Partition
	for pos+16 <= len(data) {
		partition := new(Partition)
		utils.Unmarshal(data[pos:pos+16], partition)
		if partition.Type == 0x00 {
			break
		}
		partitions = append(partitions, *partition)
		pos += 16
	}
	return partitions
}

func (mbr MBR) GetExtendedPartitionOffset() (int, error) {
	for _, partition := range mbr.Partitions {
		if partition.IsExtended() {
			return int(partition.GetOffset()), nil
		}
	}
	return -1, errors.New("extended partition not found")
}

// DiscoverExtendedPartitions parses one extended boot record, entries
// are anchored at the extended table sector.
func (mbr *MBR) DiscoverExtendedPartitions(buffer []byte, offset int) {
	if len(buffer) < 512 || utils.Hexify(buffer[510:512]) != "55aa" {
		return
	}
	partitions := LocatePartitions(buffer[446:510])
	for idx := range partitions {
		if partitions[idx].IsExtended() {
			continue // link to the next EBR, not a volume
		}
		mbr.ExtendedPartitions = append(mbr.ExtendedPartitions,
			ExtendedPartition{Partition: &partitions[idx], TableOffset: offset})
	}
}

// PopulatePseudoMBR fabricates a single partition table for media that
// starts directly with a filesystem boot sector.
func (mbr *MBR) PopulatePseudoMBR(voltype string, totalSectors uint32) {
	partition := new(Partition)
	partition.Size = totalSectors
	switch voltype {
	case "NTFS":
		partition.Type = 0x07
	case "FAT32":
		partition.Type = 0x0c
	}
	mbr.Partitions = []Partition{*partition}
	mbr.Signature = []byte{0x55, 0xaa}
}
