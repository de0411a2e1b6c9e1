package GPT

import (
	"errors"
	"fmt"

	"github.com/aarsakian/DiskImage/utils"
	"github.com/google/uuid"
)

var ErrNotValid = errors.New("gpt header not valid")

const partitionEntrySize = 128

type GPT struct {
	Header     *Header
	Partitions []Partition
}

type Header struct {
	Signature          [8]byte //0-8 "EFI PART"
	Revision           uint32  //8-12
	HeaderSize         uint32  //12-16
	HeaderCRC          uint32  //16-20
	Reserved           uint32  //20-24
	CurrentLBA         uint64  //24-32
	BackupLBA          uint64  //32-40
	FirstUsableLBA     uint64  //40-48
	LastUsableLBA      uint64  //48-56
	DiskGUID           [16]byte
	PartitionsStartLBA uint64 //72-80
	NofPartitions      uint32 //80-84
	PartitionSize      uint32 //84-88
	PartitionArrayCRC  uint32 //88-92
}

type Partition struct {
	TypeGUID  [16]byte //0-16 zero when the slot is unused
	GUID      [16]byte //16-32
	StartLBA  uint64   //32-40
	EndLBA    uint64   //40-48 inclusive
	Flags     uint64   //48-56
	NameUTF16 [72]byte //56-128
}

func (partition Partition) GetOffset() uint64 {
	return partition.StartLBA
}

func (partition Partition) GetSizeSectors() uint64 {
	if partition.EndLBA < partition.StartLBA {
		return 0
	}
	return partition.EndLBA - partition.StartLBA + 1
}

func (partition Partition) IsUnused() bool {
	for _, b := range partition.TypeGUID {
		if b != 0 {
			return false
		}
	}
	return true
}

func (partition Partition) GetName() string {
	return utils.DecodeUTF16(partition.NameUTF16[:])
}

func (partition Partition) GetTypeGUID() string {
	id, err := uuid.FromBytes(partition.TypeGUID[:])
	if err != nil {
		return ""
	}
	return id.String()
}

func (partition Partition) GetInfo() string {
	return fmt.Sprintf("%s at %d size %d sectors", partition.GetName(),
		partition.GetOffset(), partition.GetSizeSectors())
}

func (gpt *GPT) ParseHeader(data []byte) error {
	header := new(Header)
	utils.Unmarshal(data, header)
	if string(header.Signature[:]) != "EFI PART" {
		return fmt.Errorf("%w: signature %q", ErrNotValid, header.Signature)
	}
	if header.PartitionSize != partitionEntrySize || header.NofPartitions == 0 {
		return fmt.Errorf("%w: %d entries of %d bytes", ErrNotValid,
			header.NofPartitions, header.PartitionSize)
	}
	gpt.Header = header
	return nil
}

func (gpt GPT) GetPartitionArraySize() uint32 {
	return gpt.Header.NofPartitions * gpt.Header.PartitionSize
}

func (gpt *GPT) ParsePartitions(data []byte) {
	for pos := 0; pos+partitionEntrySize <= len(data); pos += partitionEntrySize {
		partition := new(Partition)
		utils.Unmarshal(data[pos:pos+partitionEntrySize], partition)
		if partition.IsUnused() {
			continue
		}
		gpt.Partitions = append(gpt.Partitions, *partition)
	}
}
