package assembler

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/maxim729467/mp4frag/internal/parseerr"
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

func sampleInit() []byte {
	ftyp := makeBox("ftyp", []byte("isom"))
	moov := makeBox("moov", []byte("....avcC fake config...."))
	return append(ftyp, moov...)
}

func sampleSegment(n byte) []byte {
	moof := makeBox("moof", []byte{n, n, n})
	mdat := makeBox("mdat", bytes.Repeat([]byte{n}, 20))
	return append(moof, mdat...)
}

func box8Header(typ string, size uint32) []byte {
	b := make([]byte, 8)
	b[0] = byte(size >> 24)
	b[1] = byte(size >> 16)
	b[2] = byte(size >> 8)
	b[3] = byte(size)
	copy(b[4:8], typ)
	return b
}

func TestFeedWholeStream(t *testing.T) {
	a := New()
	stream := append(sampleInit(), sampleSegment(1)...)
	stream = append(stream, sampleSegment(2)...)

	events, err := a.Feed(stream)
	require.NoError(t, err)
	require.Len(t, events, 3, "expected init + 2 segments")

	require.Equal(t, EventInit, events[0].Kind)
	if diff := cmp.Diff(sampleInit(), events[0].Data); diff != "" {
		t.Fatalf("init blob mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, EventSegment, events[1].Kind)
	if diff := cmp.Diff(sampleSegment(1), events[1].Data); diff != "" {
		t.Fatalf("segment 1 mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, EventSegment, events[2].Kind)
	if diff := cmp.Diff(sampleSegment(2), events[2].Data); diff != "" {
		t.Fatalf("segment 2 mismatch (-want +got):\n%s", diff)
	}
}

func TestFeedSplitAtEveryByte(t *testing.T) {
	a := New()
	stream := append(sampleInit(), sampleSegment(1)...)
	stream = append(stream, sampleSegment(2)...)

	var events []Event
	for i := 0; i < len(stream); i++ {
		evs, err := a.Feed(stream[i : i+1])
		require.NoError(t, err, "byte %d", i)
		events = append(events, evs...)
	}
	require.Len(t, events, 3, "expected 3 events across one-byte-at-a-time feed")
	if diff := cmp.Diff(sampleInit(), events[0].Data); diff != "" {
		t.Fatalf("init blob mismatch under byte-at-a-time feed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(sampleSegment(1), events[1].Data); diff != "" {
		t.Fatalf("segment 1 mismatch under byte-at-a-time feed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(sampleSegment(2), events[2].Data); diff != "" {
		t.Fatalf("segment 2 mismatch under byte-at-a-time feed (-want +got):\n%s", diff)
	}
}

func TestFeedArbitraryChunking(t *testing.T) {
	stream := append(sampleInit(), sampleSegment(1)...)
	stream = append(stream, sampleSegment(2)...)
	stream = append(stream, sampleSegment(3)...)

	whole, err := New().Feed(stream)
	require.NoError(t, err)
	require.Len(t, whole, 4, "expected init + 3 segments")

	a := New()
	chunkSizes := []int{1, 3, 7, 2, 40, 5, 1, 100}
	var chunked []Event
	pos := 0
	ci := 0
	for pos < len(stream) {
		n := chunkSizes[ci%len(chunkSizes)]
		ci++
		end := pos + n
		if end > len(stream) {
			end = len(stream)
		}
		evs, err := a.Feed(stream[pos:end])
		require.NoError(t, err)
		chunked = append(chunked, evs...)
		pos = end
	}

	if diff := cmp.Diff(whole, chunked); diff != "" {
		t.Fatalf("arbitrarily chunked feed diverged from whole-stream feed (-whole +chunked):\n%s", diff)
	}
}

func TestFeedMissingFtyp(t *testing.T) {
	a := New()
	_, err := a.Feed(makeBox("moov", []byte("nope")))
	var perr *parseerr.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, parseerr.MissingFtyp, perr.Kind)
}

func TestFeedMissingMoov(t *testing.T) {
	a := New()
	_, err := a.Feed(makeBox("ftyp", []byte("isom")))
	require.NoError(t, err, "incomplete ftyp-only feed should not error")

	_, err = a.Feed(makeBox("mdat", []byte("oops")))
	var perr *parseerr.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, parseerr.MissingMoov, perr.Kind)
}

func TestFeedMissingMoofColdStart(t *testing.T) {
	a := New()
	stream := append(sampleInit(), makeBox("mdat", []byte("garbage"))...)
	_, err := a.Feed(stream)
	var perr *parseerr.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, parseerr.MissingMoof, perr.Kind)
}

func TestFeedOversizedFtypIsFatal(t *testing.T) {
	a := New()
	header := box8Header("ftyp", maxFtypSize+1)
	_, err := a.Feed(header)
	var perr *parseerr.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, parseerr.OversizedHeader, perr.Kind)
}

func TestFeedHuntRecoversAfterCorruption(t *testing.T) {
	a := New()
	events, err := a.Feed(sampleInit())
	require.NoError(t, err)
	require.Len(t, events, 1)

	events, err = a.Feed(sampleSegment(1))
	require.NoError(t, err)
	require.Len(t, events, 1)

	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	seg2 := sampleSegment(2)
	corrupted := append(garbage, seg2...)

	events, err = a.Feed(corrupted)
	require.NoError(t, err, "expected hunt to recover without error")
	require.Len(t, events, 1)
	require.Equal(t, EventSegment, events[0].Kind)
	if diff := cmp.Diff(seg2, events[0].Data); diff != "" {
		t.Fatalf("hunt-recovered segment mismatch (-want +got):\n%s", diff)
	}
}

func TestFeedHuntAdvancesPastUnusableMatch(t *testing.T) {
	a := New()
	_, err := a.Feed(sampleInit())
	require.NoError(t, err)
	_, err = a.Feed(sampleSegment(1))
	require.NoError(t, err)

	// "moof" lands at index 0 of the carry buffer: too close to the
	// front to leave room for a 4-byte length header before it, so the
	// first match must be rejected and the search must move past it
	// instead of re-finding the same unusable index forever.
	garbage := []byte("moofxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	seg2 := sampleSegment(2)
	corrupted := append(append([]byte{}, garbage...), seg2...)

	events, err := a.Feed(corrupted)
	require.NoError(t, err)
	require.Len(t, events, 1, "expected hunt to eventually recover segment 2 instead of stalling")
	require.Equal(t, EventSegment, events[0].Kind)
	if diff := cmp.Diff(seg2, events[0].Data); diff != "" {
		t.Fatalf("hunt-recovered segment mismatch (-want +got):\n%s", diff)
	}
}

func TestFeedZeroLengthIsNoop(t *testing.T) {
	a := New()
	events, err := a.Feed(nil)
	require.NoError(t, err)
	require.Nil(t, events)
}

func TestResetReturnsToInitialState(t *testing.T) {
	a := New()
	_, _ = a.Feed(sampleInit())
	require.Equal(t, StateMoof, a.State())

	a.Reset()
	require.Equal(t, StateFtyp, a.State())
}
