package decoder

import (
	"encoding/binary"
	"time"
)

// ExtractCaptureTime best-effort parses a JPEG's EXIF DateTimeOriginal (tag
// 0x9003, falling back to DateTime 0x0132) tag. No EXIF library is
// available anywhere in the retrieved reference pack, so this is a
// minimal hand-rolled APP1/TIFF tag reader rather than a generalized EXIF
// decoder — it understands just enough of the TIFF IFD layout to find one
// ASCII-valued tag, and returns ok=false on anything it doesn't
// recognize (non-JPEG, missing APP1, truncated segment, malformed IFD)
// rather than erroring, matching spec's "capture_instant stays null on
// failure" fallback.
func ExtractCaptureTime(data []byte) (time.Time, bool) {
	app1 := findAPP1(data)
	if app1 == nil {
		return time.Time{}, false
	}
	return parseExifDateTime(app1)
}

// findAPP1 scans JPEG markers for the APP1 segment carrying "Exif\x00\x00"
// and returns the TIFF payload that follows, or nil if absent.
func findAPP1(data []byte) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil // not a JPEG (SOI marker)
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return nil
		}
		marker := data[pos+1]
		if marker == 0xD8 || marker == 0xD9 {
			pos += 2
			continue
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			pos += 2
			continue
		}
		if pos+4 > len(data) {
			return nil
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		segStart := pos + 4
		segEnd := pos + 2 + segLen
		if segEnd > len(data) || segLen < 2 {
			return nil
		}
		if marker == 0xE1 && segEnd-segStart >= 6 && string(data[segStart:segStart+6]) == "Exif\x00\x00" {
			return data[segStart+6 : segEnd]
		}
		if marker == 0xDA { // start of scan; no more APP markers follow
			return nil
		}
		pos = segEnd
	}
	return nil
}

const (
	tagDateTimeOriginal = 0x9003
	tagDateTime         = 0x0132
	tagExifIFDPointer   = 0x8769
)

// parseExifDateTime walks the TIFF IFD0, and its Exif sub-IFD if present,
// looking for an ASCII datetime tag formatted "YYYY:MM:DD HH:MM:SS".
func parseExifDateTime(tiff []byte) (time.Time, bool) {
	if len(tiff) < 8 {
		return time.Time{}, false
	}

	var order binary.ByteOrder
	switch string(tiff[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return time.Time{}, false
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return time.Time{}, false
	}

	ifd0Offset := order.Uint32(tiff[4:8])
	if best, ok := findDateTimeInIFD(tiff, order, int(ifd0Offset), true); ok {
		return best, true
	}
	return time.Time{}, false
}

// findDateTimeInIFD reads one IFD looking for tagDateTimeOriginal (or
// tagDateTime as fallback), recursing once into the Exif sub-IFD when
// followExif is true.
func findDateTimeInIFD(tiff []byte, order binary.ByteOrder, offset int, followExif bool) (time.Time, bool) {
	if offset <= 0 || offset+2 > len(tiff) {
		return time.Time{}, false
	}
	count := int(order.Uint16(tiff[offset : offset+2]))
	entriesStart := offset + 2

	var fallback string
	var exifIFDOffset int
	haveExifIFD := false

	for i := 0; i < count; i++ {
		entryOff := entriesStart + i*12
		if entryOff+12 > len(tiff) {
			break
		}
		tag := order.Uint16(tiff[entryOff : entryOff+2])
		typ := order.Uint16(tiff[entryOff+2 : entryOff+4])
		valCount := order.Uint32(tiff[entryOff+4 : entryOff+8])
		valOff := entryOff + 8

		switch tag {
		case tagDateTimeOriginal, tagDateTime:
			if typ != 2 { // ASCII
				continue
			}
			s, ok := readASCII(tiff, order, valOff, int(valCount))
			if !ok {
				continue
			}
			if tag == tagDateTimeOriginal {
				if ts, ok := parseExifTimestamp(s); ok {
					return ts, true
				}
			} else {
				fallback = s
			}
		case tagExifIFDPointer:
			if typ == 4 && len(tiff) >= valOff+4 {
				exifIFDOffset = int(order.Uint32(tiff[valOff : valOff+4]))
				haveExifIFD = true
			}
		}
	}

	if followExif && haveExifIFD {
		if ts, ok := findDateTimeInIFD(tiff, order, exifIFDOffset, false); ok {
			return ts, true
		}
	}
	if fallback != "" {
		if ts, ok := parseExifTimestamp(fallback); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func readASCII(tiff []byte, order binary.ByteOrder, valOff, count int) (string, bool) {
	if count <= 0 {
		return "", false
	}
	if count <= 4 {
		if valOff+count > len(tiff) {
			return "", false
		}
		return trimNUL(tiff[valOff : valOff+count]), true
	}
	if valOff+4 > len(tiff) {
		return "", false
	}
	dataOffset := int(order.Uint32(tiff[valOff : valOff+4]))
	if dataOffset < 0 || dataOffset+count > len(tiff) {
		return "", false
	}
	return trimNUL(tiff[dataOffset : dataOffset+count]), true
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// parseExifTimestamp parses the fixed EXIF datetime layout
// "YYYY:MM:DD HH:MM:SS".
func parseExifTimestamp(s string) (time.Time, bool) {
	t, err := time.Parse("2006:01:02 15:04:05", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
