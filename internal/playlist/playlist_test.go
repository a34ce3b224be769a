package playlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateEmpty(t *testing.T) {
	got := Generate("stream", nil)
	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:7\n" +
		"#EXT-X-ALLOW-CACHE:NO\n" +
		"#EXT-X-TARGETDURATION:0\n" +
		"#EXT-X-MEDIA-SEQUENCE:0\n" +
		`#EXT-X-MAP:URI="init-stream.mp4"` + "\n"
	require.Equal(t, want, got)
}

func TestGenerateWithEntries(t *testing.T) {
	entries := []Entry{
		{Sequence: "4", Duration: 2.000001},
		{Sequence: "5", Duration: 1.999998},
		{Sequence: "6", Duration: 2.5},
	}
	got := Generate("stream", entries)
	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:7\n" +
		"#EXT-X-ALLOW-CACHE:NO\n" +
		"#EXT-X-TARGETDURATION:3\n" +
		"#EXT-X-MEDIA-SEQUENCE:4\n" +
		`#EXT-X-MAP:URI="init-stream.mp4"` + "\n" +
		"#EXTINF:2.000001,\n" +
		"stream4.m4s\n" +
		"#EXTINF:1.999998,\n" +
		"stream5.m4s\n" +
		"#EXTINF:2.500000,\n" +
		"stream6.m4s\n"
	require.Equal(t, want, got)
}

func TestRingEvictionReflectedInPlaylist(t *testing.T) {
	entries := []Entry{
		{Sequence: "4", Duration: 2},
		{Sequence: "5", Duration: 2},
		{Sequence: "6", Duration: 2},
	}
	got := Generate("s", entries)
	require.Contains(t, got, "MEDIA-SEQUENCE:4")
	require.Contains(t, got, "s4.m4s")
	require.Contains(t, got, "s5.m4s")
	require.Contains(t, got, "s6.m4s")
	require.NotContains(t, got, "s3.m4s")
}
