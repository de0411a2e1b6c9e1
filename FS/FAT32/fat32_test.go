package FAT32

import (
	"encoding/binary"
	"testing"

	"github.com/aarsakian/DiskImage/readers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBPS      = 512
	testSectors  = 16
	testReserved = 1
	testFATSize  = 1 // sectors per FAT
)

func putDirEntry(buf []byte, name string, attr byte, cluster uint32, size uint32) {
	for i := 0; i < 11; i++ {
		buf[i] = ' '
	}
	copy(buf, name)
	buf[11] = attr
	binary.LittleEndian.PutUint16(buf[20:], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(buf[26:], uint16(cluster&0xffff))
	binary.LittleEndian.PutUint32(buf[28:], size)
}

func putLFNEntry(buf []byte, ord byte, part string) {
	buf[0] = ord
	buf[11] = AttrLongName
	units := make([]byte, 26)
	for i := range units {
		units[i] = 0xff
	}
	for i, r := range part {
		binary.LittleEndian.PutUint16(units[2*i:], uint16(r))
	}
	if 2*len(part) < len(units) {
		binary.LittleEndian.PutUint16(units[2*len(part):], 0x0000)
	}
	copy(buf[1:11], units[:10])
	copy(buf[14:26], units[10:22])
	copy(buf[28:32], units[22:26])
}

// buildImage lays out a minimal FAT32 volume: boot sector, one FAT and a
// root directory with a file, a subdirectory, a long named file and a
// deleted entry.
func buildImage(t *testing.T) []byte {
	t.Helper()
	image := make([]byte, testSectors*testBPS)

	bs := image[:testBPS]
	binary.LittleEndian.PutUint16(bs[11:], testBPS)
	bs[13] = 1 // sectors per cluster
	binary.LittleEndian.PutUint16(bs[14:], testReserved)
	bs[16] = 1 // one FAT
	binary.LittleEndian.PutUint32(bs[32:], testSectors)
	binary.LittleEndian.PutUint32(bs[36:], testFATSize)
	binary.LittleEndian.PutUint32(bs[44:], 2) // root cluster
	copy(bs[82:90], "FAT32   ")
	bs[510], bs[511] = 0x55, 0xaa

	fat := image[testReserved*testBPS:]
	putFAT := func(cluster int, value uint32) {
		binary.LittleEndian.PutUint32(fat[4*cluster:], value)
	}
	putFAT(0, 0x0ffffff8)
	putFAT(1, 0x0fffffff)
	for cluster := 2; cluster <= 6; cluster++ {
		putFAT(cluster, 0x0fffffff) // single cluster chains
	}

	dataStart := (testReserved + testFATSize) * testBPS
	clusterAt := func(cluster int) []byte {
		return image[dataStart+(cluster-2)*testBPS:]
	}

	root := clusterAt(2)
	putDirEntry(root[0:], "A       TXT", AttrArchive, 4, 5)
	putDirEntry(root[32:], "B          ", AttrDirectory, 3, 0)
	putLFNEntry(root[64:], 0x41, "LongName.txt")
	putDirEntry(root[96:], "LONGNA~1TXT", AttrArchive, 6, 4)
	putDirEntry(root[128:], "GONE    TXT", AttrArchive, 5, 3)
	root[128] = 0xe5 // deleted

	sub := clusterAt(3)
	putDirEntry(sub[0:], "C       TXT", AttrArchive, 5, 3)

	copy(clusterAt(4), "hello")
	copy(clusterAt(5), "abc")
	copy(clusterAt(6), "data")
	return image
}

func parseImage(t *testing.T) (*FAT32, readers.DiskReader) {
	t.Helper()
	hD := &readers.BufferReader{Data: buildImage(t)}

	fs := new(FAT32)
	data, err := hD.ReadFile(0, 512)
	require.NoError(t, err)
	fs.AddVolume(data)
	require.True(t, fs.HasValidSignature())
	require.NoError(t, fs.Process(hD, 0))
	return fs, hD
}

func TestProcessWalksDirectories(t *testing.T) {
	fs, _ := parseImage(t)

	var names []string
	for _, entry := range fs.Entries {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"A.TXT", "B", "LongName.txt", "_ONE.TXT", "C.TXT"}, names)

	assert.True(t, fs.Entries[1].IsDir())
	assert.True(t, fs.Entries[3].Deleted)
	assert.Equal(t, uint32(3), fs.Entries[4].ParentCluster)
	assert.Equal(t, uint32(2), fs.Entries[0].ParentCluster)
	assert.Zero(t, fs.CorruptCount)
}

func TestReadFileContent(t *testing.T) {
	fs, hD := parseImage(t)

	content, err := fs.ReadFileContent(fs.Entries[0], hD, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	content, err = fs.ReadFileContent(fs.Entries[4], hD, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(content))

	// directories have no content
	content, err = fs.ReadFileContent(fs.Entries[1], hD, 0)
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestClusterChainGuards(t *testing.T) {
	fs, _ := parseImage(t)

	// self loop
	fs.fat[7] = 7
	_, err := fs.ClusterChain(7)
	assert.ErrorIs(t, err, ErrCorruptChain)

	// chain into a free cluster
	fs.fat[8] = 9
	fs.fat[9] = 0
	_, err = fs.ClusterChain(8)
	assert.ErrorIs(t, err, ErrCorruptChain)

	// out of table
	_, err = fs.ClusterChain(uint32(len(fs.fat)) + 5)
	assert.ErrorIs(t, err, ErrCorruptChain)
}

func TestHasValidSignatureRejectsGarbage(t *testing.T) {
	fs := new(FAT32)
	fs.AddVolume(make([]byte, 512))
	assert.False(t, fs.HasValidSignature())
}
