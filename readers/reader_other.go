//go:build !windows

package readers

import "fmt"

type unsupportedDriveReader struct {
	path string
}

func getPhysicalDriveReader(pathToDisk string) DiskReader {
	return &unsupportedDriveReader{path: pathToDisk}
}

func (imgreader *unsupportedDriveReader) CreateHandler() error {
	return fmt.Errorf("physical drive %s: direct drive access is only supported on windows", imgreader.path)
}

func (imgreader *unsupportedDriveReader) CloseHandler() {}

func (imgreader *unsupportedDriveReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	return nil, ErrOutOfRange
}

func (imgreader *unsupportedDriveReader) GetDiskSize() int64 { return -1 }
