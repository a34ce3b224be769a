// Package initseg derives a MIME codecs string from an init segment's
// bytes (ftyp+moov). It locates the avcC and mp4a marker substrings by
// textual search rather than walking the box tree, matching the
// layout produced by ffmpeg's frag_keyframe+empty_moov muxer.
package initseg

import (
	"encoding/hex"
	"strings"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/maxim729467/mp4frag/internal/box"
	"github.com/maxim729467/mp4frag/internal/parseerr"
)

const (
	avcCAVCConfigOffset = 5 // skips the tag and the version byte; profile + compat + level begin here
	avcCAVCConfigLen    = 3
)

// Info is the result of parsing an init segment.
type Info struct {
	Mime string
}

// Parse extracts the MIME codecs string from initBlob (ftyp+moov bytes).
// It returns a *parseerr.Error with Kind MissingCodec if no avcC marker
// is present, per the fixed textual-search algorithm this parser uses
// as its sole source of truth for the MIME string.
func Parse(initBlob []byte) (Info, error) {
	audioSuffix := ""
	if box.IndexOf(initBlob, "mp4a") >= 0 {
		audioSuffix = ", mp4a.40.2"
	}

	idx := box.IndexOf(initBlob, "avcC")
	if idx < 0 {
		return Info{}, parseerr.New(parseerr.MissingCodec, "moov contains no avcC marker")
	}

	start := idx + avcCAVCConfigOffset
	end := start + avcCAVCConfigLen
	if end > len(initBlob) {
		return Info{}, parseerr.New(parseerr.MissingCodec, "avcC marker found but configuration record is truncated")
	}
	hex6 := strings.ToUpper(hex.EncodeToString(initBlob[start:end]))

	mime := `video/mp4; codecs="avc1.` + hex6 + `"`
	if audioSuffix != "" {
		mime = `video/mp4; codecs="avc1.` + hex6 + audioSuffix + `"`
	}
	return Info{Mime: mime}, nil
}

// SampleEntries decodes initBlob with a full box walker and returns the
// sample entry type of each track's stsd (e.g. "avc1", "hvc1", "mp4a").
// This is a diagnostic cross-check only: its result never influences
// Parse's Mime value or its MissingCodec error, and a decode failure is
// reported as an error for the caller to log, not to surface as a
// parsing failure. The textual search in Parse remains the sole source
// of truth for the MIME string.
func SampleEntries(initBlob []byte) ([]string, error) {
	sr := bits.NewFixedSliceReader(initBlob)
	f, err := mp4.DecodeFileSR(sr)
	if err != nil {
		return nil, err
	}
	if f.Moov == nil {
		return nil, nil
	}
	var entries []string
	for _, trak := range f.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			continue
		}
		stsd := trak.Mdia.Minf.Stbl.Stsd
		if len(stsd.Children) == 0 {
			continue
		}
		entries = append(entries, stsd.Children[0].Type())
	}
	return entries, nil
}
