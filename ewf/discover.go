package ewf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindEvidenceFiles collects the segment files of a split acquisition
// starting from the first one: .E01 .E02 ... .E99 .EAA ... .EZZ .FAA and
// so on, matching the case of the given extension.
func FindEvidenceFiles(first string) ([]string, error) {
	if _, err := os.Stat(first); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSegmentMissing, first)
	}

	ext := filepath.Ext(first)
	if len(ext) != 4 { // ".E01"
		return []string{first}, nil
	}
	base := strings.TrimSuffix(first, ext)
	lower := ext == strings.ToLower(ext)

	filenames := []string{first}
	suffix := ext[1:]
	for {
		next, ok := nextSegmentSuffix(strings.ToUpper(suffix))
		if !ok {
			break
		}
		suffix = next
		if lower {
			next = strings.ToLower(next)
		}
		p := base + "." + next
		if _, err := os.Stat(p); err != nil {
			break
		}
		filenames = append(filenames, p)
	}
	return filenames, nil
}

func nextSegmentSuffix(suffix string) (string, bool) {
	if len(suffix) != 3 {
		return "", false
	}
	letter, rest := suffix[0], suffix[1:]

	if rest[0] >= '0' && rest[0] <= '9' { // numeric phase 01..99
		if rest == "99" {
			return string(letter) + "AA", true
		}
		n := int(rest[0]-'0')*10 + int(rest[1]-'0')
		return fmt.Sprintf("%c%02d", letter, n+1), true
	}

	// letter phase AA..ZZ then the leading letter advances
	c2, c3 := rest[0], rest[1]
	if c3 < 'Z' {
		return string([]byte{letter, c2, c3 + 1}), true
	}
	if c2 < 'Z' {
		return string([]byte{letter, c2 + 1, 'A'}), true
	}
	if letter < 'Z' {
		return string([]byte{letter + 1, 'A', 'A'}), true
	}
	return "", false
}
