package box

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func makeBox(typ string, body []byte) []byte {
	size := 8 + len(body)
	b := make([]byte, size)
	b[0] = byte(size >> 24)
	b[1] = byte(size >> 16)
	b[2] = byte(size >> 8)
	b[3] = byte(size)
	copy(b[4:8], typ)
	copy(b[8:], body)
	return b
}

func TestScanComplete(t *testing.T) {
	buf := makeBox("ftyp", []byte("isom"))
	res := Scan(buf, "ftyp")
	require.Equal(t, Complete, res.Outcome)
	require.Len(t, res.Box, len(buf))
	require.Empty(t, res.Rest)
}

func TestScanCompleteWithRemainder(t *testing.T) {
	box := makeBox("moov", []byte("xyz"))
	buf := append(append([]byte{}, box...), []byte("trailing")...)
	res := Scan(buf, "moov")
	require.Equal(t, Complete, res.Outcome)
	require.Equal(t, "trailing", string(res.Rest))
}

func TestScanIncomplete(t *testing.T) {
	box := makeBox("moof", []byte("0123456789"))
	truncated := box[:10]
	res := Scan(truncated, "moof")
	require.Equal(t, Incomplete, res.Outcome)
	require.Equal(t, uint32(len(box)), res.Size)
}

func TestScanMismatchShort(t *testing.T) {
	res := Scan([]byte{0, 0, 0, 1}, "ftyp")
	require.Equal(t, Mismatch, res.Outcome)
}

func TestScanMismatchType(t *testing.T) {
	buf := makeBox("mdat", []byte("data"))
	res := Scan(buf, "moof")
	require.Equal(t, Mismatch, res.Outcome)
}

func TestIndexOf(t *testing.T) {
	haystack := []byte("....avcC....")
	require.Equal(t, 4, IndexOf(haystack, "avcC"))
	require.Equal(t, -1, IndexOf(haystack, "mp4a"))
}
