// Package box reads ISO/BMFF box headers from a streaming byte slice.
//
// A box is an 8-byte header (big-endian uint32 length, 4-char ASCII
// type) followed by length-8 bytes of payload. The scanner never
// copies; it slices the input it is given.
package box

import (
	"bytes"
	"encoding/binary"
)

// HeaderSize is the length of a box's big-endian size + 4-char type header.
const HeaderSize = 8

// Outcome classifies the result of a Scan.
type Outcome int

const (
	// Mismatch means the slice is too short for a header, or the header's
	// type does not match what was requested.
	Mismatch Outcome = iota
	// Incomplete means the header matched but the declared box body has
	// not fully arrived yet.
	Incomplete
	// Complete means the full box (header + body) is present in buf.
	Complete
)

// Type is an ISO/BMFF four-character box type, e.g. "ftyp", "moov".
type Type string

// Result carries the outcome of scanning buf for a box of the requested type.
type Result struct {
	Outcome Outcome
	// Size is the box's declared total length (header included), valid
	// for Incomplete and Complete outcomes.
	Size uint32
	// Box is the complete box bytes (header + body), valid only when
	// Outcome == Complete. It aliases buf.
	Box []byte
	// Rest is whatever followed the box in buf, valid only when
	// Outcome == Complete. It aliases buf.
	Rest []byte
}

// Scan inspects buf for a complete box of type want starting at offset 0.
//
// It reports Mismatch if buf is shorter than HeaderSize or the type at
// bytes 4..7 does not equal want. It reports Incomplete if the header
// matches but the declared size exceeds len(buf). Otherwise it reports
// Complete with the box sliced off the front of buf.
func Scan(buf []byte, want Type) Result {
	if len(buf) < HeaderSize {
		return Result{Outcome: Mismatch}
	}
	gotType := Type(buf[4:8])
	if gotType != want {
		return Result{Outcome: Mismatch}
	}
	size := binary.BigEndian.Uint32(buf[0:4])
	if size < HeaderSize {
		// A declared size smaller than the header itself can never be
		// satisfied; treat it the same as a type mismatch.
		return Result{Outcome: Mismatch}
	}
	if uint64(size) > uint64(len(buf)) {
		return Result{Outcome: Incomplete, Size: size}
	}
	return Result{
		Outcome: Complete,
		Size:    size,
		Box:     buf[:size],
		Rest:    buf[size:],
	}
}

// IndexOf returns the first index at which needle occurs in haystack, or -1.
// It is used to locate marker substrings (moof, avcC, mp4a) inside boxes
// that are otherwise not walked recursively, matching the canonical
// ffmpeg-produced init-segment layout this parser targets.
func IndexOf(haystack []byte, needle string) int {
	return bytes.Index(haystack, []byte(needle))
}
