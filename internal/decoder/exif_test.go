package decoder

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// buildMinimalExifJPEG assembles the smallest valid JPEG+APP1/TIFF blob
// carrying a single DateTimeOriginal ASCII tag, enough to exercise the
// hand-rolled parser without a real camera file.
func buildMinimalExifJPEG(t *testing.T, dateTime string) []byte {
	t.Helper()
	value := []byte(dateTime + "\x00") // EXIF ASCII values are NUL-terminated
	require.Equal(t, 20, len(value))

	// TIFF header: "II" (little-endian), magic 42, IFD0 offset = 8.
	tiff := make([]byte, 0, 64)
	tiff = append(tiff, 'I', 'I')
	tiff = appendU16(tiff, 42)
	tiff = appendU32(tiff, 8)

	// IFD0: one entry (DateTimeOriginal), then next-IFD offset = 0.
	ifdStart := len(tiff)
	_ = ifdStart
	tiff = appendU16(tiff, 1) // entry count

	entryValueOffset := 0 // patched below once we know total header length
	entryStart := len(tiff)
	tiff = appendU16(tiff, tagDateTimeOriginal)
	tiff = appendU16(tiff, 2) // type ASCII
	tiff = appendU32(tiff, uint32(len(value)))
	tiff = appendU32(tiff, 0) // placeholder for value offset
	tiff = appendU32(tiff, 0) // next IFD offset = 0

	entryValueOffset = len(tiff)
	tiff = append(tiff, value...)

	// Patch the value offset field (4 bytes before the placeholder's end).
	binary.LittleEndian.PutUint32(tiff[entryStart+8:entryStart+12], uint32(entryValueOffset))

	app1Payload := append([]byte("Exif\x00\x00"), tiff...)
	segLen := len(app1Payload) + 2

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	jpeg = appendU16BE(jpeg, uint16(segLen))
	jpeg = append(jpeg, app1Payload...)
	jpeg = append(jpeg, 0xFF, 0xD9) // EOI

	return jpeg
}

func appendU16(b []byte, v uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return append(b, buf...)
}

func appendU32(b []byte, v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return append(b, buf...)
}

func appendU16BE(b []byte, v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return append(b, buf...)
}

func TestExtractCaptureTimeParsesDateTimeOriginal(t *testing.T) {
	jpeg := buildMinimalExifJPEG(t, "2023:06:15 14:30:00")
	ts, ok := ExtractCaptureTime(jpeg)
	require.True(t, ok)
	require.Equal(t, time.Date(2023, 6, 15, 14, 30, 0, 0, time.UTC), ts)
}

func TestExtractCaptureTimeNonJPEGReturnsFalse(t *testing.T) {
	_, ok := ExtractCaptureTime([]byte("not a jpeg at all"))
	require.False(t, ok)
}

func TestExtractCaptureTimeTruncatedReturnsFalse(t *testing.T) {
	jpeg := buildMinimalExifJPEG(t, "2023:06:15 14:30:00")
	_, ok := ExtractCaptureTime(jpeg[:len(jpeg)-30])
	require.False(t, ok)
}
