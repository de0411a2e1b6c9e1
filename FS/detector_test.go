package metadata

import (
	"encoding/binary"
	"testing"

	"github.com/aarsakian/DiskImage/readers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal FAT32 volume: boot sector, one FAT, root with a file and a
// subdirectory holding another file
func buildFAT32Volume(t *testing.T) []byte {
	t.Helper()
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

func TestDetectFAT32(t *testing.T) {
	hD := &readers.BufferReader{Data: buildFAT32Volume(t)}

	fs, err := Detect(hD, 0, hD.GetDiskSize())
	require.NoError(t, err)
	require.NotNil(t, fs)
	assert.Equal(t, "FAT32", fs.GetType())
	assert.Equal(t, int64(0), fs.GetOffset())
	assert.Equal(t, 512, fs.GetBlockSize())
}

func TestDetectNoSignature(t *testing.T) {
	hD := &readers.BufferReader{Data: make([]byte, 4096)}
	fs, err := Detect(hD, 0, hD.GetDiskSize())
	require.NoError(t, err)
	assert.Nil(t, fs)
}

func TestFAT32AdapterTraversal(t *testing.T) {
	hD := &readers.BufferReader{Data: buildFAT32Volume(t)}
	fs, err := Detect(hD, 0, hD.GetDiskSize())
	require.NoError(t, err)
	require.NotNil(t, fs)

	items := fs.AllItems().Collect()
	names := make([]string, len(items))
	for idx, item := range items {
		names[idx] = item.Name
	}
	assert.Equal(t, []string{"A.TXT", "B", "C.TXT"}, names)

	// paths resolved through the directory chain
	assert.Equal(t, "/A.TXT", items[0].FullPath())
	assert.Equal(t, "/B/C.TXT", items[2].FullPath())

	// a fresh iterator walks from the start again
	again := fs.AllItems().Collect()
	assert.Equal(t, items, again)

	// directory listing of the subdirectory
	ref, ok := fs.ResolveParent(items[2])
	require.True(t, ok)
	listed := fs.ListDirectory(ref).Collect()
	require.Len(t, listed, 1)
	assert.Equal(t, "C.TXT", listed[0].Name)

	content, err := fs.ReadFileContent(items[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}
