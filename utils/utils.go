package utils

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Unmarshal fills a struct from little endian binary data. Fields are
// consumed in declaration order, fixed size byte arrays verbatim.
// Parsing stops without error once data is exhausted.
func Unmarshal(data []byte, v any) error {
	structValPtr := reflect.ValueOf(v)
	structType := reflect.TypeOf(v)
	if structType.Kind() != reflect.Pointer || structType.Elem().Kind() != reflect.Struct {
		return errors.New("needs a pointer to struct")
	}

	idx := 0
	for i := 0; i < structValPtr.Elem().NumField(); i++ {
		field := structValPtr.Elem().Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.Uint8:
			if idx+1 > len(data) {
				return nil
			}
			field.SetUint(uint64(data[idx]))
			idx += 1
		case reflect.Uint16:
			if idx+2 > len(data) {
				return nil
			}
			field.SetUint(uint64(binary.LittleEndian.Uint16(data[idx : idx+2])))
			idx += 2
		case reflect.Uint32:
			if idx+4 > len(data) {
				return nil
			}
			field.SetUint(uint64(binary.LittleEndian.Uint32(data[idx : idx+4])))
			idx += 4
		case reflect.Uint64:
			if idx+8 > len(data) {
				return nil
			}
			field.SetUint(binary.LittleEndian.Uint64(data[idx : idx+8]))
			idx += 8
		case reflect.Int16:
			if idx+2 > len(data) {
				return nil
			}
			field.SetInt(int64(int16(binary.LittleEndian.Uint16(data[idx : idx+2]))))
			idx += 2
		case reflect.Int32:
			if idx+4 > len(data) {
				return nil
			}
			field.SetInt(int64(int32(binary.LittleEndian.Uint32(data[idx : idx+4]))))
			idx += 4
		case reflect.Int64:
			if idx+8 > len(data) {
				return nil
			}
			field.SetInt(int64(binary.LittleEndian.Uint64(data[idx : idx+8])))
			idx += 8
		case reflect.Array:
			length := field.Len()
			if idx+length > len(data) {
				return nil
			}
			reflect.Copy(field, reflect.ValueOf(data[idx:idx+length]))
			idx += length
		default:
			return fmt.Errorf("unsupported field kind %s", field.Kind())
		}
	}
	return nil
}

func Hexify(barray []byte) string {
	return hex.EncodeToString(barray)
}

// DecodeUTF16 decodes little endian UTF-16 content to a string.
func DecodeUTF16(data []byte) string {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := decoder.Bytes(data)
	if err != nil {
		return ""
	}
	return string(bytes.TrimRight(decoded, "\x00"))
}

// FileTime is the number of 100ns intervals since January 1, 1601 (UTC)
// used by NTFS and the EWF header sections.
func FileTimeToTime(filetime uint64) time.Time {
	if filetime == 0 {
		return time.Time{}
	}
	const intervalsPerSec = 10_000_000
	epochDiffSecs := int64(11644473600) // 1601 to 1970
	secs := int64(filetime/intervalsPerSec) - epochDiffSecs
	nsecs := int64(filetime%intervalsPerSec) * 100
	return time.Unix(secs, nsecs).UTC()
}

// FATTimeToTime converts the packed FAT date/time pair. The date word packs
// year since 1980, month and day, the time word hours, minutes and
// two-second granules.
func FATTimeToTime(date uint16, timeval uint16) time.Time {
	if date == 0 {
		return time.Time{}
	}
	year := int(date>>9) + 1980
	month := time.Month((date >> 5) & 0x0f)
	day := int(date & 0x1f)
	hour := int(timeval >> 11)
	min := int((timeval >> 5) & 0x3f)
	sec := int(timeval&0x1f) * 2
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

func Filter[T any](records []T, check func(T) bool) []T {
	var filtered []T
	for _, record := range records {
		if check(record) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func WriteFile(fullpath string, data []byte) error {
	return os.WriteFile(fullpath, data, 0644)
}

func GetMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func GetSHA1(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func GetEntries(selectedEntries string) []string {
	var entries []string
	for _, entry := range bytes.Split([]byte(selectedEntries), []byte(",")) {
		if len(entry) == 0 {
			continue
		}
		entries = append(entries, string(bytes.TrimSpace(entry)))
	}
	return entries
}
