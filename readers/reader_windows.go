//go:build windows

package readers

import (
	"fmt"
	"unsafe"

	"github.com/aarsakian/DiskImage/logger"
	"golang.org/x/sys/windows"
)

type WindowsReader struct {
	aFile  string
	handle windows.Handle
	size   int64
}

func getPhysicalDriveReader(pathToDisk string) DiskReader {
	return &WindowsReader{aFile: pathToDisk}
}

func (imgreader *WindowsReader) CreateHandler() error {
	pathPtr, err := windows.UTF16PtrFromString(imgreader.aFile)
	if err != nil {
		return err
	}
	handle, err := windows.CreateFile(pathPtr, windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", imgreader.aFile, err)
	}
	imgreader.handle = handle

	var lengthInfo struct {
		Length int64
	}
	var returned uint32
	const ioctlDiskGetLengthInfo = 0x0007405c
	err = windows.DeviceIoControl(handle, ioctlDiskGetLengthInfo, nil, 0,
		(*byte)(unsafe.Pointer(&lengthInfo)), 8, &returned, nil)
	if err != nil {
		logger.DILogger.Warning(fmt.Sprintf("drive length ioctl failed: %v", err))
	}
	imgreader.size = lengthInfo.Length
	return nil
}

func (imgreader *WindowsReader) CloseHandler() {
	windows.CloseHandle(imgreader.handle)
}

func (imgreader *WindowsReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	data := make([]byte, length)
	var overlapped windows.Overlapped
	overlapped.Offset = uint32(physicalOffset)
	overlapped.OffsetHigh = uint32(physicalOffset >> 32)
	var read uint32
	err := windows.ReadFile(imgreader.handle, data, &read, &overlapped)
	if err != nil {
		return nil, err
	}
	return data[:read], nil
}

func (imgreader *WindowsReader) GetDiskSize() int64 {
	return imgreader.size
}
