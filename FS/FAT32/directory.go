package FAT32

import (
	"strings"

	"github.com/aarsakian/DiskImage/readers"
	"github.com/aarsakian/DiskImage/utils"
)

// raw 32 byte directory entry
type dirEntry struct {
	Name         [11]byte //0-11 8.3 name
	Attr         uint8    //11
	NTRes        uint8    //12 lowercase flags
	CrtTimeTenth uint8    //13
	CrtTime      uint16   //14-16
	CrtDate      uint16   //16-18
	LstAccDate   uint16   //18-20
	FstClusHI    uint16   //20-22
	WrtTime      uint16   //22-24
	WrtDate      uint16   //24-26
	FstClusLO    uint16   //26-28
	FileSize     uint32   //28-32
}

// long name part, 13 UTF-16 units spread over three fields
type lfnEntry struct {
	Ord       uint8    //0 sequence, 0x40 marks the last part
	Name1     [10]byte //1-11
	Attr      uint8    //11 always 0x0f
	Type      uint8    //12
	Chksum    uint8    //13
	Name2     [12]byte //14-26
	FstClusLO uint16   //26-28 always 0
	Name3     [4]byte  //28-32
}

func (fs *FAT32) parseDirectory(data []byte, parentCluster uint32, nextID *uint64) []Entry {
	var entries []Entry
	var lfnParts []string

	for pos := 0; pos+32 <= len(data); pos += 32 {
		raw := data[pos : pos+32]
		if raw[0] == 0x00 { // no entries beyond this point
			break
		}

		if raw[11]&AttrLongName == AttrLongName && raw[11] != AttrVolumeID {
			if raw[0] == deletedByte {
				lfnParts = nil
				continue
			}
			var lfn lfnEntry
			utils.Unmarshal(raw, &lfn)
			units := append(append(append([]byte{},
				lfn.Name1[:]...), lfn.Name2[:]...), lfn.Name3[:]...)
			// unused name units are 0x0000 then 0xffff padded
			end := len(units)
			for idx := 0; idx+1 < len(units); idx += 2 {
				if units[idx] == 0x00 && units[idx+1] == 0x00 ||
					units[idx] == 0xff && units[idx+1] == 0xff {
					end = idx
					break
				}
			}
			lfnParts = append([]string{utils.DecodeUTF16(units[:end])}, lfnParts...)
			continue
		}

		var raw83 dirEntry
		utils.Unmarshal(raw, &raw83)

		if raw83.Attr&AttrVolumeID != 0 { // volume label slot
			lfnParts = nil
			continue
		}

		shortName := decode83(raw83.Name, raw83.NTRes)
		if shortName == "." || shortName == ".." {
			lfnParts = nil
			continue
		}

		entry := Entry{
			Id:            *nextID,
			ShortName:     shortName,
			Attr:          raw83.Attr,
			Deleted:       raw[0] == deletedByte,
			Size:          raw83.FileSize,
			FirstCluster:  uint32(raw83.FstClusHI)<<16 | uint32(raw83.FstClusLO),
			ParentCluster: parentCluster,
			Created:       utils.FATTimeToTime(raw83.CrtDate, raw83.CrtTime),
			Modified:      utils.FATTimeToTime(raw83.WrtDate, raw83.WrtTime),
			Accessed:      utils.FATTimeToTime(raw83.LstAccDate, 0),
		}
		*nextID++

		entry.Name = entry.ShortName
		if len(lfnParts) > 0 && !entry.Deleted {
			entry.Name = strings.Join(lfnParts, "")
		}
		lfnParts = nil

		entries = append(entries, entry)
	}
	return entries
}

// decode83 renders the fixed 8.3 name, honoring the NT lowercase hints.
// The first byte of a deleted entry is the deletion marker, it is shown
// as '_' since the original character is lost.
func decode83(name [11]byte, ntres uint8) string {
	base := strings.TrimRight(string(name[:8]), " ")
	ext := strings.TrimRight(string(name[8:]), " ")

	if len(base) > 0 && name[0] == deletedByte {
		base = "_" + base[1:]
	}
	if len(base) > 0 && name[0] == 0x05 { // stored escape for a real 0xe5
		base = string(rune(0xe5)) + base[1:]
	}

	if ntres&0x08 != 0 {
		base = strings.ToLower(base)
	}
	if ntres&0x10 != 0 {
		ext = strings.ToLower(ext)
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// ReadFileContent follows the cluster chain of an entry and truncates to
// its logical size.
func (fs FAT32) ReadFileContent(entry Entry, hD readers.DiskReader, partitionOffsetB int64) ([]byte, error) {
	if entry.IsDir() || entry.FirstCluster < 2 {
		return nil, nil
	}
	data, err := fs.readChain(hD, partitionOffsetB, entry.FirstCluster)
	if err != nil {
		return nil, err
	}
	if int64(entry.Size) < int64(len(data)) {
		data = data[:entry.Size]
	}
	return data, nil
}
