package readers

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/aarsakian/DiskImage/logger"
)

var segmentSuffixRe = regexp.MustCompile(`^(?P<prefix>.*)\.(?P<num>\d{2,5})$`)

// SegmentedReader presents an ordered set of raw segment files as one
// contiguous byte source. A single file image is the one segment case.
type SegmentedReader struct {
	FirstSegment string
	Segments     []string // explicit list, bypasses discovery

	fds     []*os.File
	sizes   []int64
	offsets []int64 // cumulative start offset of each segment
	total   int64
}

// DiscoverSegments finds the sibling segments of first by its numeric
// suffix (image.001, image.002, ...). Non numeric extensions are treated
// as single segment images.
func DiscoverSegments(first string) ([]string, error) {
	m := segmentSuffixRe.FindStringSubmatch(filepath.Base(first))
	if m == nil {
		if _, err := os.Stat(first); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSegmentMissing, first)
		}
		return []string{first}, nil
	}
	prefix, num := m[1], m[2]
	width := len(num)
	start, _ := strconv.Atoi(num)
	dir := filepath.Dir(first)

	var segments []string
	for i := start; ; i++ {
		name := fmt.Sprintf("%s.%0*d", prefix, width, i)
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			if i == start {
				return nil, fmt.Errorf("%w: %s", ErrSegmentMissing, p)
			}
			break
		}
		segments = append(segments, p)
	}
	return segments, nil
}

func (imgreader *SegmentedReader) CreateHandler() error {
	segments := imgreader.Segments
	var err error
	if len(segments) == 0 {
		segments, err = DiscoverSegments(imgreader.FirstSegment)
		if err != nil {
			return err
		}
	} else if err = verifySegmentOrder(segments); err != nil {
		return err
	}

	for _, segment := range segments {
		fd, err := os.Open(segment)
		if err != nil {
			imgreader.CloseHandler()
			return fmt.Errorf("%w: %s", ErrSegmentMissing, segment)
		}
		finfo, err := fd.Stat()
		if err != nil {
			fd.Close()
			imgreader.CloseHandler()
			return err
		}
		imgreader.fds = append(imgreader.fds, fd)
		imgreader.offsets = append(imgreader.offsets, imgreader.total)
		imgreader.sizes = append(imgreader.sizes, finfo.Size())
		imgreader.total += finfo.Size()
	}
	imgreader.Segments = segments

	logger.DILogger.Info(fmt.Sprintf("opened %d segment(s) total %d bytes",
		len(imgreader.fds), imgreader.total))
	return nil
}

// explicit lists are trusted for ordering only when their suffixes carry
// no sequence numbers, otherwise the numbers must ascend
func verifySegmentOrder(segments []string) error {
	var nums []int
	for _, segment := range segments {
		m := segmentSuffixRe.FindStringSubmatch(filepath.Base(segment))
		if m == nil {
			return nil
		}
		num, _ := strconv.Atoi(m[2])
		nums = append(nums, num)
	}
	if !sort.IntsAreSorted(nums) {
		return fmt.Errorf("%w: %v", ErrSegmentOrder, segments)
	}
	for idx := 1; idx < len(nums); idx++ {
		if nums[idx] == nums[idx-1] {
			return fmt.Errorf("%w: duplicate segment number %d", ErrSegmentOrder, nums[idx])
		}
	}
	return nil
}

func (imgreader *SegmentedReader) CloseHandler() {
	for _, fd := range imgreader.fds {
		fd.Close()
	}
	imgreader.fds = nil
}

// ReadFile reads length bytes at the logical offset, transparently
// spanning segment boundaries.
func (imgreader *SegmentedReader) ReadFile(physicalOffset int64, length int) ([]byte, error) {
	if physicalOffset < 0 || physicalOffset+int64(length) > imgreader.total {
		return nil, fmt.Errorf("%w: offset %d length %d total %d",
			ErrOutOfRange, physicalOffset, length, imgreader.total)
	}

	data := make([]byte, length)
	filled := 0
	for filled < length {
		offset := physicalOffset + int64(filled)
		idx := sort.Search(len(imgreader.offsets), func(i int) bool {
			return imgreader.offsets[i] > offset
		}) - 1
		segmentOffset := offset - imgreader.offsets[idx]
		available := imgreader.sizes[idx] - segmentOffset
		toRead := int64(length - filled)
		if toRead > available {
			toRead = available
		}
		n, err := imgreader.fds[idx].ReadAt(data[filled:filled+int(toRead)], segmentOffset)
		filled += n
		if err != nil {
			logger.DILogger.Error(fmt.Sprintf("segment read %s: %v", imgreader.Segments[idx], err))
			return nil, err
		}
	}
	return data, nil
}

func (imgreader *SegmentedReader) GetDiskSize() int64 {
	return imgreader.total
}
