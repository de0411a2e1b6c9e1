package metadata

import (
	"fmt"

	"github.com/aarsakian/DiskImage/FS/FAT32"
	"github.com/aarsakian/DiskImage/FS/NTFS"
	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/readers"
)

// Detect probes the boot sector at startOffsetB and returns the parsed
// filesystem behind it. A readable sector with no recognized signature
// is not an error, it returns nil so the caller can skip the volume.
func Detect(hD readers.DiskReader, startOffsetB int64, lengthB int64) (FileSystem, error) {
	data, err := hD.ReadFile(startOffsetB, 512)
	if err != nil {
		return nil, err
	}
	if len(data) < 512 {
		return nil, nil
	}

	ntfs := new(NTFS.NTFS)
	ntfs.AddVolume(data)
	if ntfs.HasValidSignature() {
		logger.DILogger.Info(fmt.Sprintf("NTFS volume at offset %d", startOffsetB))
		if err := ntfs.Process(hD, startOffsetB); err != nil {
			return nil, err
		}
		return NewNTFSFileSystem(ntfs, hD, startOffsetB), nil
	}

	fat := new(FAT32.FAT32)
	fat.AddVolume(data)
	if fat.HasValidSignature() {
		logger.DILogger.Info(fmt.Sprintf("FAT32 volume at offset %d", startOffsetB))
		if err := fat.Process(hD, startOffsetB); err != nil {
			return nil, err
		}
		return NewFAT32FileSystem(fat, hD, startOffsetB), nil
	}

	logger.DILogger.Debug(fmt.Sprintf("no filesystem signature at offset %d", startOffsetB))
	return nil, nil
}
