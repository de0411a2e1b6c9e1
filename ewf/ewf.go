package ewf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"os"
	"strings"

	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/utils"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"
)

var (
	ErrCorruptHeader      = errors.New("corrupt evidence file header")
	ErrUnsupportedVersion = errors.New("unsupported evidence format version")
	ErrChunkIntegrity     = errors.New("chunk integrity digest mismatch")
	ErrSegmentMissing     = errors.New("evidence segment file is missing")
	ErrSegmentOrder       = errors.New("evidence segment files are out of order")
	ErrOutOfRange         = errors.New("read beyond the acquired media")
)

const chunkCacheSize = 64 // decompressed chunks kept around

// EWFImage reassembles the acquired media from one or more EWF segment
// files. Chunks are located at parse time and decompressed on demand,
// never the whole image at once.
type EWFImage struct {
	Segments []string

	Volume     *VolumeSection
	HeaderInfo map[string]string
	MD5        []byte
	SHA1       []byte

	fds    []*os.File
	chunks []chunk
	cache  *lru.Cache[int, []byte]
}

// Probe reports whether data starts a segment of an EWF container.
func Probe(data []byte) bool {
	return len(data) >= len(EVFSignature) &&
		bytes.Equal(data[:len(EVFSignature)], EVFSignature[:])
}

// ParseEvidence walks the section chain of every segment file in order,
// locating all chunks and the media geometry.
func (ewfImage *EWFImage) ParseEvidence(filenames []string) error {
	ewfImage.HeaderInfo = map[string]string{}
	cache, err := lru.New[int, []byte](chunkCacheSize)
	if err != nil {
		return err
	}
	ewfImage.cache = cache

	for idx, filename := range filenames {
		fd, err := os.Open(filename)
		if err != nil {
			ewfImage.Close()
			return fmt.Errorf("%w: %s", ErrSegmentMissing, filename)
		}
		ewfImage.fds = append(ewfImage.fds, fd)

		err = ewfImage.parseSegment(fd, idx)
		if err != nil {
			ewfImage.Close()
			return fmt.Errorf("segment %s: %w", filename, err)
		}
	}
	ewfImage.Segments = filenames

	if ewfImage.Volume == nil || ewfImage.Volume.ChunkCount == 0 {
		ewfImage.Close()
		return fmt.Errorf("%w: no volume section found", ErrCorruptHeader)
	}
	if len(ewfImage.chunks) < int(ewfImage.Volume.ChunkCount) {
		logger.DILogger.Warning(fmt.Sprintf("expected %d chunks found %d",
			ewfImage.Volume.ChunkCount, len(ewfImage.chunks)))
	}
	return nil
}

func (ewfImage *EWFImage) parseSegment(fd *os.File, idx int) error {
	buf := make([]byte, FileHeaderLength)
	_, err := fd.ReadAt(buf, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}

	var fileHeader FileHeader
	utils.Unmarshal(buf, &fileHeader)
	if !bytes.Equal(fileHeader.Signature[:], EVFSignature[:]) {
		return ErrCorruptHeader
	}
	if fileHeader.FieldsStart != 1 || fileHeader.FieldsEnd != 0 {
		return ErrUnsupportedVersion
	}
	if int(fileHeader.SegmentNumber) != idx+1 {
		return fmt.Errorf("%w: segment number %d at position %d",
			ErrSegmentOrder, fileHeader.SegmentNumber, idx+1)
	}

	offset := int64(FileHeaderLength)
	var sectorsEnd int64 // end of the last seen sectors section

	for {
		section, err := ewfImage.parseSectionDescriptor(fd, offset)
		if err != nil {
			return err
		}
		sectionType := strings.TrimRight(string(section.Type[:]), "\x00")
		logger.DILogger.Debug(fmt.Sprintf("section %q at %d size %d", sectionType, offset, section.Size))

		switch sectionType {
		case "header", "header2":
			ewfImage.parseHeaderSection(fd, offset, section, sectionType == "header2")
		case "volume", "disk", "data":
			err = ewfImage.parseVolumeSection(fd, offset, section)
			if err != nil {
				return err
			}
		case "sectors":
			sectorsEnd = offset + int64(section.Size)
		case "table":
			err = ewfImage.parseTableSection(fd, offset, section, idx, sectorsEnd)
			if err != nil {
				return err
			}
		case "table2":
			// mirror of the preceding table, parsed structures already hold
			// the primary entries
		case "hash":
			var hash HashSection
			body, err := ewfImage.readSectionBody(fd, offset, section)
			if err == nil {
				utils.Unmarshal(body, &hash)
				ewfImage.MD5 = hash.MD5[:]
			}
		case "digest":
			var digest DigestSection
			body, err := ewfImage.readSectionBody(fd, offset, section)
			if err == nil {
				utils.Unmarshal(body, &digest)
				ewfImage.MD5 = digest.MD5[:]
				ewfImage.SHA1 = digest.SHA1[:]
			}
		case "next", "done":
			return nil
		}

		if int64(section.NextOffset) <= offset {
			return nil
		}
		offset = int64(section.NextOffset)
	}
}

func (ewfImage *EWFImage) parseSectionDescriptor(fd *os.File, offset int64) (*Section, error) {
	buf := make([]byte, SectionDescriptorLength)
	_, err := fd.ReadAt(buf, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: section descriptor at %d: %v", ErrCorruptHeader, offset, err)
	}
	var section Section
	utils.Unmarshal(buf, &section)

	stored := binary.LittleEndian.Uint32(buf[SectionDescriptorLength-4:])
	if adler32.Checksum(buf[:SectionDescriptorLength-4]) != stored {
		logger.DILogger.Warning(fmt.Sprintf("section descriptor checksum mismatch at %d", offset))
	}
	return &section, nil
}

func (ewfImage *EWFImage) readSectionBody(fd *os.File, offset int64, section *Section) ([]byte, error) {
	if section.Size < SectionDescriptorLength {
		return nil, fmt.Errorf("%w: section size %d", ErrCorruptHeader, section.Size)
	}
	body := make([]byte, section.Size-SectionDescriptorLength)
	_, err := fd.ReadAt(body, offset+SectionDescriptorLength)
	if err != nil {
		return nil, fmt.Errorf("%w: section body at %d: %v", ErrCorruptHeader, offset, err)
	}
	return body, nil
}

// header sections hold tab separated acquiry information, zlib compressed,
// header2 in UTF-16
func (ewfImage *EWFImage) parseHeaderSection(fd *os.File, offset int64, section *Section, utf16 bool) {
	body, err := ewfImage.readSectionBody(fd, offset, section)
	if err != nil {
		logger.DILogger.Warning(err.Error())
		return
	}
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		logger.DILogger.Warning(fmt.Sprintf("header section at %d: %v", offset, err))
		return
	}
	defer zr.Close()
	decompressed, err := io.ReadAll(zr)
	if err != nil {
		logger.DILogger.Warning(fmt.Sprintf("header section at %d: %v", offset, err))
		return
	}

	text := string(decompressed)
	if utf16 {
		text = utils.DecodeUTF16(decompressed)
	}
	ewfImage.parseHeaderText(text)
}

// the header text carries a line of field identifiers followed by a line
// of values ("c\tn\te\t..." then the case number, evidence number, ...)
func (ewfImage *EWFImage) parseHeaderText(text string) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for idx := 0; idx+1 < len(lines); idx++ {
		keys := strings.Split(lines[idx], "\t")
		values := strings.Split(lines[idx+1], "\t")
		if len(keys) < 2 || len(keys) != len(values) {
			continue
		}
		for kidx, key := range keys {
			if key == "" || key == values[kidx] {
				continue
			}
			ewfImage.HeaderInfo[key] = values[kidx]
		}
	}
}

func (ewfImage *EWFImage) parseVolumeSection(fd *os.File, offset int64, section *Section) error {
	body, err := ewfImage.readSectionBody(fd, offset, section)
	if err != nil {
		return err
	}
	var vol VolumeSection
	utils.Unmarshal(body, &vol)
	if vol.ChunkCount == 0 || vol.BytesPerSector == 0 || vol.SectorsPerChunk == 0 {
		return fmt.Errorf("%w: zero chunk geometry", ErrCorruptHeader)
	}
	if ewfImage.Volume == nil {
		ewfImage.Volume = &vol
	}
	return nil
}

func (ewfImage *EWFImage) parseTableSection(fd *os.File, offset int64, section *Section,
	segment int, sectorsEnd int64) error {

	body, err := ewfImage.readSectionBody(fd, offset, section)
	if err != nil {
		return err
	}
	var tableHeader TableHeader
	utils.Unmarshal(body, &tableHeader)

	if int(tableHeader.EntryCount)*4 > len(body)-TableHeaderLength {
		return fmt.Errorf("%w: table entry count %d exceeds section", ErrCorruptHeader, tableHeader.EntryCount)
	}

	entries := make([]uint32, tableHeader.EntryCount)
	for idx := range entries {
		entries[idx] = binary.LittleEndian.Uint32(body[TableHeaderLength+4*idx:])
	}

	for idx, entry := range entries {
		chunkOffset := int64(entry & 0x7fffffff)
		end := sectorsEnd
		if idx+1 < len(entries) {
			end = int64(entries[idx+1] & 0x7fffffff)
		}
		if end <= chunkOffset {
			return fmt.Errorf("%w: table entry %d not ascending", ErrCorruptHeader, idx)
		}
		ewfImage.chunks = append(ewfImage.chunks, chunk{
			segment:    segment,
			fileOffset: chunkOffset,
			storedLen:  end - chunkOffset,
			compressed: entry&0x80000000 != 0,
		})
	}
	return nil
}

// ChunkSize is the logical (decompressed) size of every chunk but the last.
func (ewfImage *EWFImage) ChunkSize() int64 {
	return int64(ewfImage.Volume.SectorsPerChunk) * int64(ewfImage.Volume.BytesPerSector)
}

func (ewfImage *EWFImage) GetMediaSize() int64 {
	return int64(ewfImage.Volume.SectorCount) * int64(ewfImage.Volume.BytesPerSector)
}

func (ewfImage *EWFImage) NofChunks() int {
	return len(ewfImage.chunks)
}

// RetrieveData reads length bytes of acquired media at the logical offset,
// decompressing and verifying each touched chunk.
func (ewfImage *EWFImage) RetrieveData(offset int64, length int64) ([]byte, error) {
	if offset < 0 || offset+length > ewfImage.GetMediaSize() {
		return nil, fmt.Errorf("%w: offset %d length %d media %d",
			ErrOutOfRange, offset, length, ewfImage.GetMediaSize())
	}

	chunkSize := ewfImage.ChunkSize()
	data := make([]byte, 0, length)
	for remaining := length; remaining > 0; {
		idx := int(offset / chunkSize)
		within := offset % chunkSize

		chunkData, err := ewfImage.retrieveChunk(idx)
		if err != nil {
			return nil, err
		}
		take := int64(len(chunkData)) - within
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			return nil, fmt.Errorf("%w: chunk %d shorter than expected", ErrChunkIntegrity, idx)
		}
		data = append(data, chunkData[within:within+take]...)
		offset += take
		remaining -= take
	}
	return data, nil
}

func (ewfImage *EWFImage) retrieveChunk(idx int) ([]byte, error) {
	if cached, ok := ewfImage.cache.Get(idx); ok {
		return cached, nil
	}
	if idx >= len(ewfImage.chunks) {
		return nil, fmt.Errorf("%w: chunk %d of %d", ErrOutOfRange, idx, len(ewfImage.chunks))
	}
	ch := ewfImage.chunks[idx]

	stored := make([]byte, ch.storedLen)
	_, err := ewfImage.fds[ch.segment].ReadAt(stored, ch.fileOffset)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", idx, err)
	}

	var data []byte
	if ch.compressed {
		zr, err := zlib.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrChunkIntegrity, idx, err)
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		if err != nil { // includes the zlib Adler-32 trailer check
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrChunkIntegrity, idx, err)
		}
	} else {
		// raw chunk bytes followed by a little endian Adler-32
		if ch.storedLen < 4 {
			return nil, fmt.Errorf("%w: chunk %d truncated", ErrChunkIntegrity, idx)
		}
		data = stored[:ch.storedLen-4]
		checksum := binary.LittleEndian.Uint32(stored[ch.storedLen-4:])
		if adler32.Checksum(data) != checksum {
			return nil, fmt.Errorf("%w: chunk %d", ErrChunkIntegrity, idx)
		}
	}

	ewfImage.cache.Add(idx, data)
	return data, nil
}

func (ewfImage *EWFImage) GetInfo() string {
	vol := ewfImage.Volume
	setID, _ := uuid.FromBytes(vol.SetIdentifier[:])
	return fmt.Sprintf("EWF %s media %d bytes chunks %d x %d set %s acquired MD5 %x",
		MediaTypes[vol.MediaType], ewfImage.GetMediaSize(), len(ewfImage.chunks),
		ewfImage.ChunkSize(), setID, ewfImage.MD5)
}

func (ewfImage *EWFImage) Close() {
	for _, fd := range ewfImage.fds {
		fd.Close()
	}
	ewfImage.fds = nil
	if ewfImage.cache != nil {
		ewfImage.cache.Purge()
	}
}
