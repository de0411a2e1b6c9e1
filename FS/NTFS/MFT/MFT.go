package MFT

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/utils"
)

var RecordSize = 1024

var ErrCorruptRecord = errors.New("corrupt MFT record")

var MFTflags = map[uint16]string{
	0: "File Unallocated", 1: "File Allocated", 2: "Folder Unallocated", 3: "Folder Allocated",
}

const RootEntry = 5

type Records []Record

// MFT Record
type Record struct {
	Signature            [4]byte //0-3 FILE
	UpdateFixUpArrOffset uint16  //4-5 offsets are relative to the start of the entry
	UpdateFixUpArrSize   uint16  //6-7
	Lsn                  uint64  //8-15
	Seq                  uint16  //16-17 incremented on allocation or deallocation
	Linkcount            uint16  //18-19
	AttrOff              uint16  //20-21 first attribute location
	Flags                uint16  //22-23 tells whether entry is used or not
	Size                 uint32  //24-27
	AllocSize            uint32  //28-31
	BaseRef              uint64  //32-39
	NextAttrID           uint16  //40-41
	F1                   uint16  //42-43
	Entry                uint32  //44-48

	Attributes []Attribute
	Parent     *Record
}

func (record *Record) Parse(data []byte) error {
	if len(data) < 48 {
		return fmt.Errorf("%w: truncated", ErrCorruptRecord)
	}
	utils.Unmarshal(data[:48], record)

	if string(record.Signature[:]) == "BAAD" {
		return fmt.Errorf("%w: BAAD signature entry %d", ErrCorruptRecord, record.Entry)
	}
	if string(record.Signature[:]) != "FILE" {
		return fmt.Errorf("%w: no FILE signature", ErrCorruptRecord)
	}

	err := record.applyFixUp(data)
	if err != nil {
		return err
	}
	return record.processAttributes(data)
}

// each sector of the record ends with the update sequence number, the
// original bytes live in the fixup array
func (record *Record) applyFixUp(data []byte) error {
	offset := int(record.UpdateFixUpArrOffset)
	count := int(record.UpdateFixUpArrSize) // 1 + nof sectors
	if count < 2 || offset+2*count > len(data) {
		return fmt.Errorf("%w: fixup array out of bounds entry %d", ErrCorruptRecord, record.Entry)
	}
	usn := binary.LittleEndian.Uint16(data[offset : offset+2])

	for idx := 1; idx < count; idx++ {
		sectorEnd := idx*512 - 2
		if sectorEnd+2 > len(data) {
			break
		}
		if binary.LittleEndian.Uint16(data[sectorEnd:sectorEnd+2]) != usn {
			return fmt.Errorf("%w: fixup mismatch entry %d sector %d", ErrCorruptRecord, record.Entry, idx-1)
		}
		copy(data[sectorEnd:sectorEnd+2], data[offset+2*idx:offset+2*idx+2])
	}
	return nil
}

func (record *Record) processAttributes(data []byte) error {
	pos := int(record.AttrOff)
	for pos+16 <= len(data) {
		var attrHeader AttributeHeader
		utils.Unmarshal(data[pos:pos+16], &attrHeader)
		if attrHeader.IsLast() {
			break
		}
		if attrHeader.AttrLen == 0 || pos+int(attrHeader.AttrLen) > len(data) {
			return fmt.Errorf("%w: attribute overruns record entry %d", ErrCorruptRecord, record.Entry)
		}
		attrData := data[pos : pos+int(attrHeader.AttrLen)]

		var attribute Attribute
		switch attrHeader.Type {
		case 16:
			attribute = &SIAttribute{}
		case 48:
			attribute = &FNAttribute{}
		case 128:
			attribute = &DATA{}
		}

		if attribute != nil {
			if attrHeader.IsNoNResident() {
				atrNoNResident := new(ATRrecordNoNResident)
				utils.Unmarshal(attrData[16:], atrNoNResident)
				if int(atrNoNResident.RunOff) < len(attrData) {
					atrNoNResident.ParseRunList(attrData[atrNoNResident.RunOff:])
				}
				attrHeader.ATRrecordNoNResident = atrNoNResident
				attribute.SetHeader(&attrHeader)
			} else {
				atrResident := new(ATRrecordResident)
				utils.Unmarshal(attrData[16:], atrResident)
				attrHeader.ATRrecordResident = atrResident
				attribute.SetHeader(&attrHeader)

				start := int(atrResident.OffsetContent)
				end := start + int(atrResident.ContentSize)
				if start <= end && end <= len(attrData) {
					attribute.Parse(attrData[start:end])
				}
			}
			record.Attributes = append(record.Attributes, attribute)
		}
		pos += int(attrHeader.AttrLen)
	}
	return nil
}

func (record Record) FindAttribute(attrName string) Attribute {
	for idx := range record.Attributes {
		if record.Attributes[idx].FindType() == attrName {
			return record.Attributes[idx]
		}
	}
	return nil
}

// GetFnames returns every FileName attribute skipping the DOS short name
// when a Win32 name exists.
func (record Record) GetFNAttribute() *FNAttribute {
	var dosName *FNAttribute
	for idx := range record.Attributes {
		fnattr, ok := record.Attributes[idx].(*FNAttribute)
		if !ok {
			continue
		}
		if fnattr.IsDOSNamespace() {
			dosName = fnattr
			continue
		}
		return fnattr
	}
	return dosName
}

func (record Record) GetFname() string {
	fnattr := record.GetFNAttribute()
	if fnattr == nil {
		return ""
	}
	return fnattr.Fname
}

func (record Record) GetID() int {
	return int(record.Entry)
}

func (record Record) GetSequence() int {
	return int(record.Seq)
}

func (record Record) getType() string {
	return MFTflags[record.Flags&0x3]
}

func (record Record) IsFolder() bool {
	recordType := record.getType()
	return recordType == "Folder Unallocated" || recordType == "Folder Allocated"
}

func (record Record) IsDeleted() bool {
	return record.Flags&0x1 == 0
}

func (record Record) HasParent() bool {
	return record.Parent != nil
}

// base records only, extension records carry a non zero base reference
func (record Record) IsBaseRecord() bool {
	return record.BaseRef == 0
}

func (record Record) GetTimestamps() (created, modified, accessed time.Time) {
	attr := record.FindAttribute("Standard Information")
	if attr != nil {
		return attr.(*SIAttribute).GetTimestamps()
	}
	fnattr := record.GetFNAttribute()
	if fnattr != nil {
		return utils.FileTimeToTime(fnattr.Crtime), utils.FileTimeToTime(fnattr.Mtime),
			utils.FileTimeToTime(fnattr.Atime)
	}
	return time.Time{}, time.Time{}, time.Time{}
}

func (record Record) GetLogicalFileSize() int64 {
	attr := record.FindAttribute("DATA")
	if attr != nil {
		header := attr.GetHeader()
		if header.ATRrecordNoNResident != nil {
			return int64(header.ATRrecordNoNResident.ActualLength)
		}
		if header.ATRrecordResident != nil {
			return int64(header.ATRrecordResident.ContentSize)
		}
	}
	fnattr := record.GetFNAttribute()
	if fnattr != nil {
		return int64(fnattr.RealFsize)
	}
	return 0
}

func (record Record) GetRunList(attrName string) *RunList {
	attr := record.FindAttribute(attrName)
	if attr == nil {
		return nil
	}
	header := attr.GetHeader()
	if header.ATRrecordNoNResident == nil {
		return nil
	}
	return header.ATRrecordNoNResident.RunList
}

func (record Record) ShowInfo() {
	created, modified, accessed := record.GetTimestamps()
	msg := fmt.Sprintf("record %d %q %s size %d created %s modified %s accessed %s",
		record.Entry, record.GetFname(), record.getType(), record.GetLogicalFileSize(),
		created, modified, accessed)
	fmt.Printf("%s\n", msg)
	logger.DILogger.Info(msg)
}
