package NTFS

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/aarsakian/DiskImage/FS/NTFS/MFT"
	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/readers"
	"github.com/aarsakian/DiskImage/utils"
)

var ErrNoMFT = errors.New("could not locate the $MFT table")

// cap on the MFT area pulled per read while filling the table buffer
const mftReadChunkCl = 1024

type NTFS struct {
	VBR *VBR
	MFT *MFT.MFTTable
}

type VBR struct { //Volume Boot Record
	JumpInstruction   [3]byte //0-3
	Signature         [4]byte //4 bytes NTFS 3-7
	NotUsed1          [4]byte
	BytesPerSector    uint16   //11-13
	SectorsPerCluster uint8    //13
	NotUsed2          [26]byte //14-40
	TotalSectors      uint64   //40-48
	MFTOffset         uint64   //48-56 in clusters
	MFTMirrOffset     uint64   //56-64 in clusters
}

func (vbr *VBR) Parse(data []byte) {
	utils.Unmarshal(data, vbr)
}

func (vbr VBR) GetSignature() string {
	return string(vbr.Signature[:])
}

func (ntfs *NTFS) AddVolume(data []byte) {
	ntfs.VBR = new(VBR)
	ntfs.VBR.Parse(data)
}

func (ntfs NTFS) HasValidSignature() bool {
	return ntfs.VBR.GetSignature() == "NTFS" && ntfs.VBR.BytesPerSector > 0 &&
		ntfs.VBR.SectorsPerCluster > 0
}

func (ntfs NTFS) GetSignature() string {
	return ntfs.VBR.GetSignature()
}

func (ntfs NTFS) GetSectorsPerCluster() int {
	return int(ntfs.VBR.SectorsPerCluster)
}

func (ntfs NTFS) GetBytesPerSector() uint64 {
	return uint64(ntfs.VBR.BytesPerSector)
}

func (ntfs NTFS) ClusterSizeB() int64 {
	return int64(ntfs.VBR.SectorsPerCluster) * int64(ntfs.VBR.BytesPerSector)
}

func (ntfs NTFS) GetInfo() string {
	return fmt.Sprintf("%s size %d cluster size %d", ntfs.GetSignature(),
		ntfs.VBR.TotalSectors*uint64(ntfs.VBR.BytesPerSector), ntfs.ClusterSizeB())
}

// Process parses the $MFT: the first record describes the extent of the
// table itself, its DATA runlist is then collected and every record parsed.
func (ntfs *NTFS) Process(hD readers.DiskReader, partitionOffsetB int64) error {
	physicalOffset := partitionOffsetB + int64(ntfs.VBR.MFTOffset)*ntfs.ClusterSizeB()

	msg := fmt.Sprintf("Reading first record entry to determine the size of $MFT Table at offset %d", physicalOffset)
	logger.DILogger.Info(msg)

	data, err := hD.ReadFile(physicalOffset, MFT.RecordSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoMFT, err)
	}

	ntfs.MFT = new(MFT.MFTTable)
	ntfs.MFT.ProcessRecords(data)
	if len(ntfs.MFT.Records) == 0 {
		return ErrNoMFT
	}
	ntfs.MFT.DetermineClusterOffsetLength()

	MFTAreaBuf, err := ntfs.CollectMFTArea(hD, partitionOffsetB)
	if err != nil {
		return err
	}
	ntfs.MFT = new(MFT.MFTTable)
	ntfs.MFT.ProcessRecords(MFTAreaBuf)
	ntfs.MFT.FindParentRecords()

	logger.DILogger.Info(fmt.Sprintf("parsed %d MFT records (%d corrupt skipped)",
		len(ntfs.MFT.Records), ntfs.MFT.CorruptCount))
	return nil
}

func (ntfs NTFS) CollectMFTArea(hD readers.DiskReader, partitionOffsetB int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(ntfs.MFT.Size * int(ntfs.ClusterSizeB()))

	runlist := ntfs.MFT.Records[0].GetRunList("DATA") // first record $MFT
	if runlist == nil {
		return nil, ErrNoMFT
	}
	clusterOffset := int64(0)

	for runlist != nil {
		clusterOffset += runlist.Offset

		remaining := int64(runlist.Length)
		readCl := int64(0)
		for remaining > 0 {
			clusters := remaining
			if clusters > mftReadChunkCl {
				clusters = mftReadChunkCl
			}
			data, err := hD.ReadFile(partitionOffsetB+(clusterOffset+readCl)*ntfs.ClusterSizeB(),
				int(clusters*ntfs.ClusterSizeB()))
			if err != nil {
				return nil, err
			}
			buf.Write(data)
			readCl += clusters
			remaining -= clusters
		}
		runlist = runlist.Next
	}
	return buf.Bytes(), nil
}

// ReadRecordContent pulls the DATA content of a record, resident content
// directly from the record, non resident through its runlist.
func (ntfs NTFS) ReadRecordContent(record *MFT.Record, hD readers.DiskReader,
	partitionOffsetB int64) ([]byte, error) {

	attr := record.FindAttribute("DATA")
	if attr == nil {
		return nil, nil
	}
	header := attr.GetHeader()
	if header.ATRrecordResident != nil {
		return attr.(*MFT.DATA).Content, nil
	}
	if header.ATRrecordNoNResident == nil {
		return nil, nil
	}

	var buf bytes.Buffer
	runlist := header.ATRrecordNoNResident.RunList
	clusterOffset := int64(0)
	for runlist != nil {
		clusterOffset += runlist.Offset
		data, err := hD.ReadFile(partitionOffsetB+clusterOffset*ntfs.ClusterSizeB(),
			int(int64(runlist.Length)*ntfs.ClusterSizeB()))
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		runlist = runlist.Next
	}

	content := buf.Bytes()
	actual := int(header.ATRrecordNoNResident.ActualLength)
	if actual < len(content) {
		content = content[:actual]
	}
	return content, nil
}
