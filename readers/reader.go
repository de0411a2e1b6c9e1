package readers

import (
	"errors"
	"fmt"
)

var (
	ErrSegmentMissing = errors.New("image segment file is missing")
	ErrSegmentOrder   = errors.New("image segment files are out of order")
	ErrOutOfRange     = errors.New("read beyond the end of the image")
)

// DiskReader abstracts the physical byte source of an image: a raw
// (possibly segmented) file set, an EWF evidence container or a physical
// drive. Offsets are logical offsets into the reassembled image.
type DiskReader interface {
	CreateHandler() error
	CloseHandler()
	ReadFile(int64, int) ([]byte, error)
	GetDiskSize() int64
}

func GetHandler(pathToDisk string, mode string) (DiskReader, error) {
	var dr DiskReader
	switch mode {
	case "physicalDrive":
		dr = getPhysicalDriveReader(pathToDisk)
	case "ewf":
		dr = &EWFReader{PathToEvidenceFiles: pathToDisk}
	case "raw":
		dr = &SegmentedReader{FirstSegment: pathToDisk}
	default:
		return nil, fmt.Errorf("unknown reader mode %q", mode)
	}
	err := dr.CreateHandler()
	if err != nil {
		return nil, err
	}
	return dr, nil
}
