package readers

import (
	ewfLib "github.com/aarsakian/DiskImage/ewf"
)

type EWFReader struct {
	PathToEvidenceFiles string
	Segments            []string // explicit list, bypasses discovery
	fd                  *ewfLib.EWFImage
}

func (imgreader *EWFReader) CreateHandler() error {
	filenames := imgreader.Segments
	var err error
	if len(filenames) == 0 {
		filenames, err = ewfLib.FindEvidenceFiles(imgreader.PathToEvidenceFiles)
		if err != nil {
			return err
		}
	}

	ewfImage := new(ewfLib.EWFImage)
	err = ewfImage.ParseEvidence(filenames)
	if err != nil {
		return err
	}
	imgreader.fd = ewfImage
	return nil
}

func (imgreader *EWFReader) CloseHandler() {
	if imgreader.fd != nil {
		imgreader.fd.Close()
	}
}

func (imgreader *EWFReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	return imgreader.fd.RetrieveData(physicalOffset, int64(length))
}

func (imgreader *EWFReader) GetDiskSize() int64 {
	return imgreader.fd.GetMediaSize()
}
