package ewf

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSectorsPerChunk = 2
	testBytesPerSector  = 512
	testChunkSize       = testSectorsPerChunk * testBytesPerSector
)

func descriptor(sectionType string, nextOffset uint64, size uint64) []byte {
	buf := make([]byte, SectionDescriptorLength)
	copy(buf, sectionType)
	binary.LittleEndian.PutUint64(buf[16:], nextOffset)
	binary.LittleEndian.PutUint64(buf[24:], size)
	binary.LittleEndian.PutUint32(buf[SectionDescriptorLength-4:],
		adler32.Checksum(buf[:SectionDescriptorLength-4]))
	return buf
}

func storeChunk(t *testing.T, data []byte, compressed bool) []byte {
	t.Helper()
	if compressed {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}
	stored := make([]byte, len(data)+4)
	copy(stored, data)
	binary.LittleEndian.PutUint32(stored[len(data):], adler32.Checksum(data))
	return stored
}

func volumeBody(chunkCount uint32, sectorCount uint64) []byte {
	body := make([]byte, 1052)
	body[0] = FixedStorageMediaDevice
	binary.LittleEndian.PutUint32(body[4:], chunkCount)
	binary.LittleEndian.PutUint32(body[8:], testSectorsPerChunk)
	binary.LittleEndian.PutUint32(body[12:], testBytesPerSector)
	binary.LittleEndian.PutUint64(body[16:], sectorCount)
	copy(body[64:80], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	return body
}

// buildSegment lays out one synthetic segment file: file header, an
// optional volume section, a sectors section with the stored chunks, the
// table locating them and a terminating done/next section.
func buildSegment(t *testing.T, segmentNumber uint16, chunks [][]byte,
	compressed map[int]bool, includeVolume bool, totalChunks uint32,
	totalSectors uint64, last bool) []byte {

	t.Helper()
	var buf bytes.Buffer

	header := make([]byte, FileHeaderLength)
	copy(header, EVFSignature[:])
	header[8] = 1 // fields start
	binary.LittleEndian.PutUint16(header[9:], segmentNumber)
	buf.Write(header)

	offset := uint64(FileHeaderLength)

	if includeVolume {
		body := volumeBody(totalChunks, totalSectors)
		size := uint64(SectionDescriptorLength + len(body))
		buf.Write(descriptor("volume", offset+size, size))
		buf.Write(body)
		offset += size
	}

	var stored [][]byte
	storedTotal := 0
	for idx, data := range chunks {
		s := storeChunk(t, data, compressed[idx])
		stored = append(stored, s)
		storedTotal += len(s)
	}

	sectorsSize := uint64(SectionDescriptorLength + storedTotal)
	buf.Write(descriptor("sectors", offset+sectorsSize, sectorsSize))
	payloadStart := offset + SectionDescriptorLength
	var entries []uint32
	for idx, s := range stored {
		entry := uint32(payloadStart)
		if compressed[idx] {
			entry |= 0x80000000
		}
		entries = append(entries, entry)
		buf.Write(s)
		payloadStart += uint64(len(s))
	}
	offset += sectorsSize

	tableBody := make([]byte, TableHeaderLength+4*len(entries)+4)
	binary.LittleEndian.PutUint32(tableBody, uint32(len(entries)))
	for idx, entry := range entries {
		binary.LittleEndian.PutUint32(tableBody[TableHeaderLength+4*idx:], entry)
	}
	tableSize := uint64(SectionDescriptorLength + len(tableBody))
	buf.Write(descriptor("table", offset+tableSize, tableSize))
	buf.Write(tableBody)
	offset += tableSize

	final := "next"
	if last {
		final = "done"
	}
	buf.Write(descriptor(final, offset, SectionDescriptorLength))
	return buf.Bytes()
}

func chunkPattern(n int) [][]byte {
	var chunks [][]byte
	b := byte(0)
	for i := 0; i < n; i++ {
		data := make([]byte, testChunkSize)
		for j := range data {
			data[j] = b
			b += 3
		}
		chunks = append(chunks, data)
	}
	return chunks
}

func writeEvidence(t *testing.T, segments ...[]byte) []string {
	t.Helper()
	dir := t.TempDir()
	var filenames []string
	suffix := []string{"E01", "E02", "E03"}
	for idx, segment := range segments {
		name := filepath.Join(dir, "evidence."+suffix[idx])
		require.NoError(t, os.WriteFile(name, segment, 0644))
		filenames = append(filenames, name)
	}
	return filenames
}

func TestParseEvidenceSingleSegment(t *testing.T) {
	chunks := chunkPattern(4)
	segment := buildSegment(t, 1, chunks, nil, true, 4, 8, true)
	filenames := writeEvidence(t, segment)

	var image EWFImage
	require.NoError(t, image.ParseEvidence(filenames))
	defer image.Close()

	assert.Equal(t, int64(4*testChunkSize), image.GetMediaSize())
	assert.Equal(t, 4, image.NofChunks())

	var want []byte
	for _, chunk := range chunks {
		want = append(want, chunk...)
	}
	got, err := image.RetrieveData(0, image.GetMediaSize())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, got))

	// read spanning a chunk boundary
	got, err = image.RetrieveData(testChunkSize-10, 20)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want[testChunkSize-10:testChunkSize+10], got))

	_, err = image.RetrieveData(image.GetMediaSize()-5, 10)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestParseEvidenceCompressedChunks(t *testing.T) {
	chunks := chunkPattern(3)
	compressed := map[int]bool{1: true}
	segment := buildSegment(t, 1, chunks, compressed, true, 3, 6, true)
	filenames := writeEvidence(t, segment)

	var image EWFImage
	require.NoError(t, image.ParseEvidence(filenames))
	defer image.Close()

	got, err := image.RetrieveData(testChunkSize, testChunkSize)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(chunks[1], got))
}

func TestParseEvidenceMultiSegment(t *testing.T) {
	chunks := chunkPattern(4)
	segment1 := buildSegment(t, 1, chunks[:2], nil, true, 4, 8, false)
	segment2 := buildSegment(t, 2, chunks[2:], nil, false, 4, 8, true)
	filenames := writeEvidence(t, segment1, segment2)

	var image EWFImage
	require.NoError(t, image.ParseEvidence(filenames))
	defer image.Close()

	var want []byte
	for _, chunk := range chunks {
		want = append(want, chunk...)
	}
	got, err := image.RetrieveData(0, image.GetMediaSize())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, got))
}

func TestTamperedChunkFailsIntegrity(t *testing.T) {
	chunks := chunkPattern(2)
	segment := buildSegment(t, 1, chunks, nil, true, 2, 4, true)

	// flip one payload byte of the second chunk
	needle := chunks[1][:8]
	pos := bytes.LastIndex(segment, needle)
	require.NotEqual(t, -1, pos)
	segment[pos] ^= 0xff

	filenames := writeEvidence(t, segment)
	var image EWFImage
	require.NoError(t, image.ParseEvidence(filenames))
	defer image.Close()

	_, err := image.RetrieveData(0, testChunkSize) // first chunk intact
	require.NoError(t, err)
	_, err = image.RetrieveData(testChunkSize, testChunkSize)
	assert.ErrorIs(t, err, ErrChunkIntegrity)
}

func TestCorruptSignature(t *testing.T) {
	segment := buildSegment(t, 1, chunkPattern(1), nil, true, 1, 2, true)
	segment[0] = 'X'
	filenames := writeEvidence(t, segment)

	var image EWFImage
	assert.ErrorIs(t, image.ParseEvidence(filenames), ErrCorruptHeader)
}

func TestSegmentNumberOutOfOrder(t *testing.T) {
	chunks := chunkPattern(2)
	segment1 := buildSegment(t, 1, chunks[:1], nil, true, 2, 4, false)
	segment2 := buildSegment(t, 1, chunks[1:], nil, false, 2, 4, true) // wrong number
	filenames := writeEvidence(t, segment1, segment2)

	var image EWFImage
	assert.ErrorIs(t, image.ParseEvidence(filenames), ErrSegmentOrder)
}

func TestProbe(t *testing.T) {
	segment := buildSegment(t, 1, chunkPattern(1), nil, true, 1, 2, true)
	assert.True(t, Probe(segment))
	assert.False(t, Probe([]byte("not an evidence file")))
}

func TestFindEvidenceFiles(t *testing.T) {
	segment1 := buildSegment(t, 1, chunkPattern(1), nil, true, 2, 4, false)
	segment2 := buildSegment(t, 2, chunkPattern(1), nil, false, 2, 4, true)
	filenames := writeEvidence(t, segment1, segment2)

	found, err := FindEvidenceFiles(filenames[0])
	require.NoError(t, err)
	assert.Equal(t, filenames, found)
}
