package disk

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/aarsakian/DiskImage/ewf"
	"github.com/aarsakian/DiskImage/readers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal FAT32 volume: boot sector, one FAT, root directory with a file,
// a subdirectory and a file inside it
func fat32Volume() []byte {
	const bps = 512
	image := make([]byte, 16*bps)

	bs := image[:bps]
	binary.LittleEndian.PutUint16(bs[11:], bps)
	bs[13] = 1
	binary.LittleEndian.PutUint16(bs[14:], 1)
	bs[16] = 1
	binary.LittleEndian.PutUint32(bs[32:], 16)
	binary.LittleEndian.PutUint32(bs[36:], 1)
	binary.LittleEndian.PutUint32(bs[44:], 2)
	copy(bs[82:90], "FAT32   ")
	bs[510], bs[511] = 0x55, 0xaa

	fat := image[bps:]
	binary.LittleEndian.PutUint32(fat[0:], 0x0ffffff8)
	binary.LittleEndian.PutUint32(fat[4:], 0x0fffffff)
	for cluster := 2; cluster <= 5; cluster++ {
		binary.LittleEndian.PutUint32(fat[4*cluster:], 0x0fffffff)
	}

	dirEntry := func(buf []byte, name string, attr byte, cluster uint32, size uint32) {
		for i := 0; i < 11; i++ {
			buf[i] = ' '
		}
		copy(buf, name)
		buf[11] = attr
		binary.LittleEndian.PutUint16(buf[26:], uint16(cluster))
		binary.LittleEndian.PutUint32(buf[28:], size)
	}

	clusterAt := func(cluster int) []byte {
		return image[(2+cluster-2)*bps:]
	}
	root := clusterAt(2)
	dirEntry(root[0:], "A       TXT", 0x20, 4, 5)
	dirEntry(root[32:], "B          ", 0x10, 3, 0)
	sub := clusterAt(3)
	dirEntry(sub[0:], "C       TXT", 0x20, 5, 3)
	copy(clusterAt(4), "hello")
	copy(clusterAt(5), "abc")
	return image
}

func writeImage(t *testing.T, image []byte) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(name, image, 0644))
	return name
}

func TestUnpartitionedImage(t *testing.T) {
	img, err := FromFile(writeImage(t, fat32Volume()))
	require.NoError(t, err)
	defer img.Close()

	require.Len(t, img.Volumes, 1)
	assert.Equal(t, "FAT32", img.Volumes[0].TypeHint)
	assert.Equal(t, int64(0), img.Volumes[0].StartOffsetB)
	require.Len(t, img.FileSystems, 1)

	items := img.GetItems().Collect()
	names := make([]string, len(items))
	for idx, item := range items {
		names[idx] = item.Name
	}
	assert.Equal(t, []string{"A.TXT", "B", "C.TXT"}, names)

	// iteration restarts cleanly
	assert.Equal(t, items, img.GetItems().Collect())
}

func TestPartitionedImage(t *testing.T) {
	const partStart = 4 // sectors
	vol := fat32Volume()
	image := make([]byte, partStart*sectorSize+len(vol))
	copy(image[partStart*sectorSize:], vol)

	mbrSector := image[:sectorSize]
	mbrSector[510], mbrSector[511] = 0x55, 0xaa
	entry := mbrSector[446:]
	entry[4] = 0x0c // W95 FAT32 (LBA)
	binary.LittleEndian.PutUint32(entry[8:], partStart)
	binary.LittleEndian.PutUint32(entry[12:], uint32(len(vol)/sectorSize))

	img, err := FromFile(writeImage(t, image))
	require.NoError(t, err)
	defer img.Close()

	require.Len(t, img.Volumes, 1)
	assert.Equal(t, int64(partStart*sectorSize), img.Volumes[0].StartOffsetB)
	require.Len(t, img.FileSystems, 1)
	assert.Equal(t, int64(partStart*sectorSize), img.FileSystems[0].GetOffset())

	found, err := img.Find("c.txt", false)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "C.TXT", found[0].Name)

	content, err := img.FileSystems[0].ReadFileContent(found[0])
	require.NoError(t, err)
	assert.Equal(t, "abc", string(content))
}

func TestOverlappingPartitionsRejected(t *testing.T) {
	image := make([]byte, 64*sectorSize)
	mbrSector := image[:sectorSize]
	mbrSector[510], mbrSector[511] = 0x55, 0xaa
	for slot, start := range []uint32{8, 12} { // 8+16 overlaps 12
		entry := mbrSector[446+16*slot:]
		entry[4] = 0x0c
		binary.LittleEndian.PutUint32(entry[8:], start)
		binary.LittleEndian.PutUint32(entry[12:], 16)
	}

	_, err := FromFile(writeImage(t, image))
	assert.ErrorIs(t, err, ErrInvalidVolumeTable)
}

func TestPartitionBeyondImageRejected(t *testing.T) {
	image := make([]byte, 32*sectorSize)
	mbrSector := image[:sectorSize]
	mbrSector[510], mbrSector[511] = 0x55, 0xaa
	entry := mbrSector[446:]
	entry[4] = 0x0c
	binary.LittleEndian.PutUint32(entry[8:], 16)
	binary.LittleEndian.PutUint32(entry[12:], 64) // runs past the image

	_, err := FromFile(writeImage(t, image))
	assert.ErrorIs(t, err, ErrInvalidVolumeTable)
}

func TestGPTImage(t *testing.T) {
	const partStart = 8 // sectors
	vol := fat32Volume()
	image := make([]byte, partStart*sectorSize+len(vol))
	copy(image[partStart*sectorSize:], vol)

	// protective MBR
	mbrSector := image[:sectorSize]
	mbrSector[510], mbrSector[511] = 0x55, 0xaa
	entry := mbrSector[446:]
	entry[4] = 0xee
	binary.LittleEndian.PutUint32(entry[8:], 1)

	// GPT header at LBA 1, partition array at LBA 2
	header := image[sectorSize:]
	copy(header, "EFI PART")
	binary.LittleEndian.PutUint64(header[72:], 2)   // partition array LBA
	binary.LittleEndian.PutUint32(header[80:], 1)   // one entry
	binary.LittleEndian.PutUint32(header[84:], 128) // entry size

	arr := image[2*sectorSize:]
	arr[0] = 0x01 // non zero type GUID marks the slot used
	binary.LittleEndian.PutUint64(arr[32:], partStart)
	binary.LittleEndian.PutUint64(arr[40:], uint64(partStart+len(vol)/sectorSize-1))

	img, err := FromFile(writeImage(t, image))
	require.NoError(t, err)
	defer img.Close()

	require.NotNil(t, img.GPT)
	require.Len(t, img.Volumes, 1)
	assert.Equal(t, int64(partStart*sectorSize), img.Volumes[0].StartOffsetB)
	require.Len(t, img.FileSystems, 1)
	assert.Equal(t, "FAT32", img.FileSystems[0].GetType())
}

func TestNoTableFallsBackToWholeImage(t *testing.T) {
	image := make([]byte, 8*sectorSize) // no signature anywhere
	img, err := FromFile(writeImage(t, image))
	require.NoError(t, err)
	defer img.Close()

	require.Len(t, img.Volumes, 1)
	assert.Equal(t, int64(len(image)), img.Volumes[0].LengthB)
	assert.Equal(t, "unpartitioned", img.Volumes[0].TypeHint)
	assert.Empty(t, img.FileSystems)
	assert.Empty(t, img.GetItems().Collect())
}

func TestEmptyPartitionSlotsSkipped(t *testing.T) {
	const partStart = 4 // sectors
	vol := fat32Volume()
	image := make([]byte, partStart*sectorSize+len(vol))
	copy(image[partStart*sectorSize:], vol)

	mbrSector := image[:sectorSize]
	mbrSector[510], mbrSector[511] = 0x55, 0xaa
	entry := mbrSector[446:]
	entry[4] = 0x0c
	binary.LittleEndian.PutUint32(entry[8:], partStart)
	binary.LittleEndian.PutUint32(entry[12:], uint32(len(vol)/sectorSize))

	// second slot carries a type but no sectors
	stale := mbrSector[462:]
	stale[4] = 0x0c
	binary.LittleEndian.PutUint32(stale[8:], 20)

	img, err := FromFile(writeImage(t, image))
	require.NoError(t, err)
	defer img.Close()

	require.Len(t, img.Volumes, 1)
	assert.Equal(t, int64(partStart*sectorSize), img.Volumes[0].StartOffsetB)
}

func TestFromFileSniffsEvidenceSignature(t *testing.T) {
	// an evidence container renamed to a raw extension still opens
	// through the container path
	name := filepath.Join(t.TempDir(), "evidence.img")
	data := make([]byte, 64)
	copy(data, ewf.EVFSignature[:])
	require.NoError(t, os.WriteFile(name, data, 0644))

	_, err := FromFile(name)
	// the truncated container fails to parse; a raw open of the same
	// file would have degraded to a whole image volume without error
	assert.ErrorIs(t, err, ErrContainerOpen)
}

// larger FAT32 volume whose root holds one file: a complete disk image
func fat32VolumeWithNested(inner []byte) []byte {
	const bps = 512
	image := make([]byte, 64*bps)

	bs := image[:bps]
	binary.LittleEndian.PutUint16(bs[11:], bps)
	bs[13] = 1
	binary.LittleEndian.PutUint16(bs[14:], 1)
	bs[16] = 1
	binary.LittleEndian.PutUint32(bs[32:], 64)
	binary.LittleEndian.PutUint32(bs[36:], 1)
	binary.LittleEndian.PutUint32(bs[44:], 2)
	copy(bs[82:90], "FAT32   ")
	bs[510], bs[511] = 0x55, 0xaa

	fat := image[bps:]
	binary.LittleEndian.PutUint32(fat[0:], 0x0ffffff8)
	binary.LittleEndian.PutUint32(fat[4:], 0x0fffffff)
	binary.LittleEndian.PutUint32(fat[8:], 0x0fffffff) // root directory

	// the nested image occupies a chain starting at cluster 3
	chainLen := (len(inner) + bps - 1) / bps
	for idx := 0; idx < chainLen-1; idx++ {
		binary.LittleEndian.PutUint32(fat[4*(3+idx):], uint32(3+idx+1))
	}
	binary.LittleEndian.PutUint32(fat[4*(3+chainLen-1):], 0x0fffffff)

	root := image[2*bps:]
	for idx := 0; idx < 11; idx++ {
		root[idx] = ' '
	}
	copy(root, "NESTED  IMG")
	root[11] = 0x20
	binary.LittleEndian.PutUint16(root[26:], 3)
	binary.LittleEndian.PutUint32(root[28:], uint32(len(inner)))

	copy(image[3*bps:], inner)
	return image
}

func TestRecursiveItemsDescendIntoNestedImage(t *testing.T) {
	outer := fat32VolumeWithNested(fat32Volume())
	img, err := FromFile(writeImage(t, outer))
	require.NoError(t, err)
	defer img.Close()

	flat := img.GetItems().Collect()
	require.Len(t, flat, 1)
	assert.Equal(t, "NESTED.IMG", flat[0].Name)

	var names []string
	for _, item := range img.GetItemsRecursive() {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"NESTED.IMG", "A.TXT", "B", "C.TXT"}, names)
}

func TestFromReaderNestedBuffer(t *testing.T) {
	img, err := FromReader(&readers.BufferReader{Data: fat32Volume()})
	require.NoError(t, err)
	defer img.Close()
	require.Len(t, img.FileSystems, 1)

	items, err := img.Find("a", false)
	require.NoError(t, err)
	require.Len(t, items, 1)
}
