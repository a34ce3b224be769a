// Package playlist renders the HLS fMP4 live playlist text from an
// in-memory segment history, in the text/template-free string-builder
// style used elsewhere in the corpus for M3U8 generation.
package playlist

import (
	"math"
	"strconv"
	"strings"
)

// Entry is one HLS ring member as needed to render a playlist line.
type Entry struct {
	Sequence string
	Duration float64 // seconds
}

const version = "7"

// Generate renders the full playlist text for base (the hlsBase
// filename stem) given the current HLS ring entries in order, oldest
// first. An empty entries slice still renders a valid, empty playlist
// with TARGETDURATION and MEDIA-SEQUENCE both zero.
func Generate(base string, entries []Entry) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:" + version + "\n")
	b.WriteString("#EXT-X-ALLOW-CACHE:NO\n")

	target := uint64(0)
	mediaSeq := "0"
	if len(entries) > 0 {
		target = uint64(math.Round(entries[len(entries)-1].Duration))
		mediaSeq = entries[0].Sequence
	}
	b.WriteString("#EXT-X-TARGETDURATION:" + strconv.FormatUint(target, 10) + "\n")
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:" + mediaSeq + "\n")
	b.WriteString(`#EXT-X-MAP:URI="init-` + base + `.mp4"` + "\n")

	for _, e := range entries {
		b.WriteString("#EXTINF:" + strconv.FormatFloat(e.Duration, 'f', 6, 64) + ",\n")
		b.WriteString(base + e.Sequence + ".m4s\n")
	}
	return b.String()
}
