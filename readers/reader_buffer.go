package readers

import "fmt"

// BufferReader serves an in memory image, used when a disk image is found
// as a file inside another image's filesystem.
type BufferReader struct {
	Data []byte
}

func (imgreader *BufferReader) CreateHandler() error { return nil }

func (imgreader *BufferReader) CloseHandler() {
	imgreader.Data = nil
}

func (imgreader *BufferReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	if physicalOffset < 0 || physicalOffset+int64(length) > int64(len(imgreader.Data)) {
		return nil, fmt.Errorf("%w: offset %d length %d total %d",
			ErrOutOfRange, physicalOffset, length, len(imgreader.Data))
	}
	data := make([]byte, length)
	copy(data, imgreader.Data[physicalOffset:])
	return data, nil
}

func (imgreader *BufferReader) GetDiskSize() int64 {
	return int64(len(imgreader.Data))
}
