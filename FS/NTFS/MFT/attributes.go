package MFT

import (
	"time"

	"github.com/aarsakian/DiskImage/utils"
)

var AttributeTypes = map[uint32]string{
	16:  "Standard Information",
	32:  "Attribute List",
	48:  "FileName",
	64:  "Object ID",
	80:  "Security Descriptor",
	96:  "Volume Name",
	112: "Volume Information",
	128: "DATA",
	144: "Index Root",
	160: "Index Allocation",
	176: "Bitmap",
	192: "Reparse Point",
}

var FilenameFlags = map[uint32]string{
	1: "Read Only", 2: "Hidden", 4: "System", 32: "Archive", 64: "Device", 128: "Normal",
	256: "Temporary", 512: "Sparse", 1024: "Reparse", 2048: "Compressed",
	4096: "Offline", 8192: "Not Indexed", 16384: "Encrypted",
	268435456: "Directory", 536870912: "Index View",
}

type Attribute interface {
	FindType() string
	SetHeader(header *AttributeHeader)
	GetHeader() AttributeHeader
	Parse([]byte)
}

type AttributeHeader struct {
	Type        uint32 //0-4
	AttrLen     uint32 //4-8
	NoNResident uint8  //8
	NameLen     uint8  //9
	NameOff     uint16 //10-12
	Flags       uint16 //12-14
	ID          uint16 //14-16

	ATRrecordResident    *ATRrecordResident
	ATRrecordNoNResident *ATRrecordNoNResident
}

type ATRrecordResident struct {
	ContentSize   uint32 //16-20
	OffsetContent uint16 //20-22
	IDxFlag       uint16 //22-24
}

type ATRrecordNoNResident struct {
	StartVcn        uint64 //16-24
	LastVcn         uint64 //24-32
	RunOff          uint16 //32-34
	Compusize       uint16 //34-36
	F1              uint32 //36-40
	Alloclen        uint64 //40-48
	ActualLength    uint64 //48-56
	InitializedSize uint64 //56-64

	RunList *RunList
}

// RunList maps virtual clusters to logical clusters, offsets are relative
// to the previous run.
type RunList struct {
	Offset int64
	Length uint64
	Next   *RunList
}

func (atrNoNResident *ATRrecordNoNResident) ParseRunList(data []byte) {
	var prev *RunList
	pos := 0
	for pos < len(data) && data[pos] != 0 {
		header := data[pos]
		lenLen := int(header & 0x0f)
		offLen := int(header >> 4)
		if pos+1+lenLen+offLen > len(data) {
			break
		}
		length := uint64(0)
		for i := lenLen - 1; i >= 0; i-- {
			length = length<<8 | uint64(data[pos+1+i])
		}
		offset := int64(0)
		for i := offLen - 1; i >= 0; i-- {
			offset = offset<<8 | int64(data[pos+1+lenLen+i])
		}
		// sign extend the cluster offset
		if offLen > 0 && data[pos+1+lenLen+offLen-1]&0x80 != 0 {
			offset -= 1 << (8 * uint(offLen))
		}

		run := &RunList{Offset: offset, Length: length}
		if prev == nil {
			atrNoNResident.RunList = run
		} else {
			prev.Next = run
		}
		prev = run
		pos += 1 + lenLen + offLen
	}
}

func (attrHeader AttributeHeader) IsLast() bool {
	return attrHeader.Type == 0xffffffff
}

func (attrHeader AttributeHeader) IsNoNResident() bool {
	return attrHeader.NoNResident == 1
}

// Standard Information attribute (0x10)
type SIAttribute struct {
	Crtime   uint64 //0-8 creation
	Mtime    uint64 //8-16 modification of content
	MFTmtime uint64 //16-24 modification of the record
	Atime    uint64 //24-32 last access
	Dospermf uint32 //32-36
	Maxver   uint32
	Ver      uint32
	ClassID  uint32
	OwnID    uint32
	SecID    uint32
	Quota    uint64
	Usn      uint64

	Header *AttributeHeader
}

func (siattr *SIAttribute) FindType() string                  { return AttributeTypes[16] }
func (siattr *SIAttribute) SetHeader(header *AttributeHeader) { siattr.Header = header }
func (siattr *SIAttribute) GetHeader() AttributeHeader        { return *siattr.Header }

func (siattr *SIAttribute) Parse(data []byte) {
	utils.Unmarshal(data, siattr)
}

func (siattr SIAttribute) GetTimestamps() (created, modified, accessed time.Time) {
	return utils.FileTimeToTime(siattr.Crtime), utils.FileTimeToTime(siattr.Mtime),
		utils.FileTimeToTime(siattr.Atime)
}

// FileName attribute (0x30)
type FNAttribute struct {
	ParRef     uint64 //0-8 parent entry (48bit) + sequence (16bit)
	Crtime     uint64 //8-16
	Mtime      uint64 //16-24
	MFTmtime   uint64 //24-32
	Atime      uint64 //32-40
	AllocFsize uint64 //40-48
	RealFsize  uint64 //48-56
	Flags      uint32 //56-60
	Reparse    uint32 //60-64
	Nlen       uint8  //64
	Nspace     uint8  //65 0 POSIX, 1 Win32, 2 DOS, 3 Win32&DOS

	Fname string

	Header *AttributeHeader
}

func (fnattr *FNAttribute) FindType() string                  { return AttributeTypes[48] }
func (fnattr *FNAttribute) SetHeader(header *AttributeHeader) { fnattr.Header = header }
func (fnattr *FNAttribute) GetHeader() AttributeHeader        { return *fnattr.Header }

func (fnattr *FNAttribute) Parse(data []byte) {
	utils.Unmarshal(data, fnattr)
	if 66+2*int(fnattr.Nlen) <= len(data) {
		fnattr.Fname = utils.DecodeUTF16(data[66 : 66+2*int(fnattr.Nlen)])
	}
}

func (fnattr FNAttribute) GetParentEntry() uint64 {
	return fnattr.ParRef & 0x0000ffffffffffff
}

func (fnattr FNAttribute) GetParentSequence() uint16 {
	return uint16(fnattr.ParRef >> 48)
}

func (fnattr FNAttribute) IsDOSNamespace() bool {
	return fnattr.Nspace == 2
}

// DATA attribute (0x80); content kept only when resident, otherwise the
// runlist locates it on disk
type DATA struct {
	Content []byte

	Header *AttributeHeader
}

func (data *DATA) FindType() string                  { return AttributeTypes[128] }
func (data *DATA) SetHeader(header *AttributeHeader) { data.Header = header }
func (data *DATA) GetHeader() AttributeHeader        { return *data.Header }

func (data *DATA) Parse(buf []byte) {
	data.Content = make([]byte, len(buf))
	copy(data.Content, buf)
}
