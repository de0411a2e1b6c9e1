package MFT

import (
	"errors"
	"fmt"

	"github.com/aarsakian/DiskImage/logger"
)

// MFTTable is the master file table, the authoritative list of every
// file and directory the volume has metadata for.
type MFTTable struct {
	Records Records
	Size    int // in clusters

	CorruptCount int
}

// ProcessRecords parses fixed size record entries, skipping corrupt ones
// so one bad record never aborts the table.
func (mfttable *MFTTable) ProcessRecords(data []byte) {
	for i := 0; i+RecordSize <= len(data); i += RecordSize {
		var record Record
		buf := make([]byte, RecordSize)
		copy(buf, data[i:i+RecordSize]) // fixups patch in place

		err := record.Parse(buf)
		if err != nil {
			if !errors.Is(err, ErrCorruptRecord) {
				continue
			}
			record.Entry = uint32(i / RecordSize)
			mfttable.CorruptCount++
			logger.DILogger.Warning(fmt.Sprintf("skipped entry %d: %v", i/RecordSize, err))
			continue
		}
		if record.Entry == 0 && i != 0 {
			// some writers leave the entry number zeroed, derive it
			record.Entry = uint32(i / RecordSize)
		}
		mfttable.Records = append(mfttable.Records, record)
	}
}

func (mfttable *MFTTable) DetermineClusterOffsetLength() {
	if len(mfttable.Records) == 0 {
		return
	}
	firstRecord := mfttable.Records[0]
	attr := firstRecord.FindAttribute("DATA")
	if attr != nil && attr.GetHeader().ATRrecordNoNResident != nil {
		runlist := attr.GetHeader().ATRrecordNoNResident.RunList
		for runlist != nil {
			mfttable.Size += int(runlist.Length)
			runlist = runlist.Next
		}
	}
}

// FindParentRecords links each record to its parent directory using the
// FileName attribute reference. A stale sequence number means the parent
// was reused, the record is then an orphan.
func (mfttable *MFTTable) FindParentRecords() {
	recordsByEntry := make(map[uint64]*Record, len(mfttable.Records))
	for idx := range mfttable.Records {
		if mfttable.Records[idx].IsBaseRecord() {
			recordsByEntry[uint64(mfttable.Records[idx].Entry)] = &mfttable.Records[idx]
		}
	}

	for idx := range mfttable.Records {
		record := &mfttable.Records[idx]
		fnattr := record.GetFNAttribute()
		if fnattr == nil {
			continue
		}
		parent, ok := recordsByEntry[fnattr.GetParentEntry()]
		if !ok || !parent.IsFolder() {
			continue
		}
		// allow a one step stale sequence for deleted entries
		if parent.GetSequence()-int(fnattr.GetParentSequence()) >= 2 {
			continue
		}
		record.Parent = parent
	}
}
