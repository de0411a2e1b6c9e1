package volume

import "fmt"

// Volume describes one candidate filesystem region of the image in
// bytes. TypeHint comes from the partition table entry and is advisory,
// detection always reprobes the boot sector.
type Volume struct {
	Index        int
	StartOffsetB int64
	LengthB      int64
	TypeHint     string
}

func (vol Volume) EndOffsetB() int64 {
	return vol.StartOffsetB + vol.LengthB
}

func (vol Volume) Overlaps(other Volume) bool {
	return vol.StartOffsetB < other.EndOffsetB() && other.StartOffsetB < vol.EndOffsetB()
}

func (vol Volume) GetInfo() string {
	hint := vol.TypeHint
	if hint == "" {
		hint = "unknown"
	}
	return fmt.Sprintf("volume %d %s at %d size %d", vol.Index, hint,
		vol.StartOffsetB, vol.LengthB)
}
