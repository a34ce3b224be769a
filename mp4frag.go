// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package mp4frag incrementally parses a fragmented MP4 (fMP4) byte
// stream produced by an external encoder running with movie flags that
// force frag_keyframe+empty_moov, yielding the canonical layout
// ftyp · moov · (moof · mdat)*. It isolates the initialization segment
// and each media segment as they arrive, extracts a MIME codecs string,
// times segments, and exposes the results through read-only accessors,
// bounded ring buffers, and a continuously regenerated HLS playlist.
package mp4frag

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/maxim729467/mp4frag/internal/assembler"
	"github.com/maxim729467/mp4frag/internal/initseg"
	"github.com/maxim729467/mp4frag/internal/metrics"
	"github.com/maxim729467/mp4frag/internal/parseerr"
	"github.com/maxim729467/mp4frag/internal/playlist"
	"github.com/maxim729467/mp4frag/internal/ring"
)

// Kind re-exports the fatal parse error taxonomy as public API.
type Kind = parseerr.Kind

const (
	MissingFtyp     = parseerr.MissingFtyp
	MissingMoov     = parseerr.MissingMoov
	OversizedHeader = parseerr.OversizedHeader
	MissingMoof     = parseerr.MissingMoof
	MissingCodec    = parseerr.MissingCodec
	MissingMdat     = parseerr.MissingMdat
)

// ParseError is a fatal parse error. Use errors.As to recover it and
// inspect its Kind.
type ParseError = parseerr.Error

const (
	minRingSize     = 2
	maxRingSize     = 10
	defaultHLSSize  = 4
	replaceMissing  = -1
)

// hlsEntry is one HLS ring member.
type hlsEntry struct {
	sequence string
	bytes    []byte
	duration float64
}

// SegmentFunc is invoked with the raw bytes of each published segment,
// in addition to (not instead of) the segment subscription channel.
type SegmentFunc func(segment []byte)

// Options configures a Parser at construction.
type Options struct {
	// HLSBase, if non-empty, enables HLS ring and playlist generation,
	// and is used as the filename stem for generated URIs.
	HLSBase string
	// HLSListSize bounds the HLS ring. Clamped to [2, 10]; defaults to
	// 4 when HLSBase is non-empty and this is left at zero.
	HLSListSize int
	// BufferListSize bounds the independent replay ring. Zero disables
	// buffering. When non-zero it is clamped to [2, 10].
	BufferListSize int
	// OnSegment, if set, is invoked synchronously after each published
	// segment, in addition to the segment subscription channel.
	OnSegment SegmentFunc
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics, if set, receives segment and error observations. Nil
	// disables metrics collection entirely.
	Metrics *metrics.Collector
}

func (o Options) hlsEnabled() bool { return o.HLSBase != "" }

func (o Options) hlsBound() uint32 {
	size := o.HLSListSize
	if size == 0 {
		size = defaultHLSSize
	}
	return clampRingSize(size)
}

func (o Options) bufferEnabled() bool { return o.BufferListSize != 0 }

func (o Options) bufferBound() uint32 {
	return clampRingSize(o.BufferListSize)
}

func clampRingSize(n int) uint32 {
	if n < minRingSize {
		return minRingSize
	}
	if n > maxRingSize {
		return maxRingSize
	}
	return uint32(n)
}

// Parser is the public façade over the box scanner, segment assembler,
// init parser, and segment publisher. A Parser is not safe for
// concurrent Write calls; read-only accessors may be called from any
// goroutine.
type Parser struct {
	opts Options
	log  *slog.Logger

	mu sync.Mutex // guards everything below, for cross-goroutine accessor safety

	asm *assembler.Assembler

	mime          string
	initBlob      []byte
	sampleEntries []string

	hlsRing    *ring.Buffer[hlsEntry]
	bufferRing *ring.Buffer[[]byte]
	nextSeq    int

	lastSegment  []byte
	lastTimeMS   int64
	lastDuration float64
	lastSeq      int
	tPrev        time.Time

	m3u8 string

	dispatch *dispatcher
}

// New constructs a Parser in state S_FTYP. opts.OnSegment, if set, is
// invoked after every published segment in addition to any Subscribe
// listeners.
func New(opts Options) *Parser {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Parser{
		opts:     opts,
		log:      log,
		asm:      assembler.New(),
		dispatch: newDispatcher(),
		lastSeq:  replaceMissing,
		lastTimeMS: replaceMissing,
		lastDuration: replaceMissing,
	}
	if opts.hlsEnabled() {
		p.hlsRing = ring.New[hlsEntry](opts.hlsBound())
	}
	if opts.bufferEnabled() {
		p.bufferRing = ring.New[[]byte](opts.bufferBound())
	}
	return p
}

// Write feeds chunk to the assembler. It may synchronously fire
// Initialized and/or one or more Segment events, and invoke OnSegment.
// A non-nil error is a *ParseError; the Parser must not be written to
// again until Flush.
func (p *Parser) Write(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	events, err := p.asm.Feed(chunk)
loop:
	for _, ev := range events {
		switch ev.Kind {
		case assembler.EventInit:
			if initErr := p.onInit(ev.Data); initErr != nil {
				err = initErr
				break loop
			}
		case assembler.EventSegment:
			p.onSegment(ev.Data)
		}
	}
	if err != nil {
		perr, _ := err.(*parseerr.Error)
		if perr != nil {
			p.log.Error("fatal parse error", "kind", perr.Kind.String(), "msg", perr.Msg)
			if p.opts.Metrics != nil {
				p.opts.Metrics.ObserveParseError(perr.Kind.String())
			}
		}
		p.dispatch.fireError(err)
		return err
	}
	return nil
}

func (p *Parser) onInit(blob []byte) error {
	info, err := initseg.Parse(blob)
	if err != nil {
		return err
	}
	p.initBlob = blob
	p.mime = info.Mime
	p.tPrev = time.Now()
	p.lastTimeMS = p.tPrev.UnixMilli()

	if entries, sampleErr := initseg.SampleEntries(blob); sampleErr == nil {
		p.sampleEntries = entries
		p.log.Debug("structural cross-check decoded init segment", "sampleEntries", entries)
	} else {
		p.log.Debug("structural cross-check failed to decode init segment", "err", sampleErr)
	}

	p.log.Info("initialized", "mime", p.mime)
	p.dispatch.fireInitialized()
	return nil
}

func (p *Parser) onSegment(data []byte) {
	now := time.Now()
	duration := now.Sub(p.tPrev).Seconds()
	p.tPrev = now

	seq := p.nextSeq
	p.nextSeq++

	p.lastSegment = data
	p.lastTimeMS = now.UnixMilli()
	p.lastDuration = duration
	p.lastSeq = seq

	if p.opts.hlsEnabled() {
		p.hlsRing.Add(hlsEntry{sequence: strconv.Itoa(seq), bytes: data, duration: duration})
		p.regeneratePlaylist()
	}
	if p.opts.bufferEnabled() {
		p.bufferRing.Add(data)
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.ObserveSegment(len(data), time.Duration(duration*float64(time.Second)))
		hlsLen, bufLen := 0, 0
		if p.hlsRing != nil {
			hlsLen = p.hlsRing.Len()
		}
		if p.bufferRing != nil {
			bufLen = p.bufferRing.Len()
		}
		p.opts.Metrics.SetRingLengths(hlsLen, bufLen)
	}

	p.log.Debug("segment published", "sequence", seq, "bytes", len(data), "duration", duration)

	if p.opts.OnSegment != nil {
		p.opts.OnSegment(data)
	}
	p.dispatch.fireSegment(data)
}

func (p *Parser) regeneratePlaylist() {
	items := p.hlsRing.Items()
	entries := make([]playlist.Entry, len(items))
	for i, it := range items {
		entries[i] = playlist.Entry{Sequence: it.sequence, Duration: it.duration}
	}
	p.m3u8 = playlist.Generate(p.opts.HLSBase, entries)
}

// Flush resets all state to post-construction; options are retained.
func (p *Parser) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.asm.Reset()
	p.mime = ""
	p.initBlob = nil
	p.sampleEntries = nil
	p.nextSeq = 0
	p.lastSegment = nil
	p.lastTimeMS = replaceMissing
	p.lastDuration = replaceMissing
	p.lastSeq = replaceMissing
	p.tPrev = time.Time{}
	p.m3u8 = ""
	if p.hlsRing != nil {
		p.hlsRing.Reset()
	}
	if p.bufferRing != nil {
		p.bufferRing.Reset()
	}
}

// Mime returns the latest MIME string, or "" before init completes.
func (p *Parser) Mime() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mime
}

// Initialization returns the init blob bytes, or nil before it arrives.
func (p *Parser) Initialization() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initBlob
}

// SampleEntries returns the stsd sample entry type of each track
// decoded by the non-fatal structural cross-check, or nil if the
// cross-check has not run or failed to decode.
func (p *Parser) SampleEntries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sampleEntries
}

// Segment returns the bytes of the most recently published segment,
// or nil.
func (p *Parser) Segment() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSegment
}

// Timestamp returns the wall-clock millisecond instant of the latest
// event (init or segment), or -1 before any.
func (p *Parser) Timestamp() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTimeMS
}

// Duration returns the duration in seconds of the latest segment, or
// -1 before any segment has published.
func (p *Parser) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDuration
}

// Sequence returns the most recently assigned sequence number, or -1
// before any segment has published.
func (p *Parser) Sequence() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeq
}

// M3U8 returns the current playlist text, or "" if HLS is disabled or
// no segment has published yet.
func (p *Parser) M3U8() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m3u8
}

// BufferList returns a snapshot of the buffer ring, or nil if empty or
// buffering is disabled.
func (p *Parser) BufferList() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bufferRing == nil {
		return nil
	}
	return p.bufferRing.Items()
}

// BufferListConcat returns the concatenation of the buffer ring, or
// nil if empty or disabled.
func (p *Parser) BufferListConcat() []byte {
	items := p.BufferList()
	if len(items) == 0 {
		return nil
	}
	var out []byte
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

// BufferConcat returns Initialization concatenated with
// BufferListConcat, or nil if either is missing.
func (p *Parser) BufferConcat() []byte {
	init := p.Initialization()
	buf := p.BufferListConcat()
	if init == nil || buf == nil {
		return nil
	}
	out := make([]byte, 0, len(init)+len(buf))
	out = append(out, init...)
	out = append(out, buf...)
	return out
}

// GetHlsSegment returns the segment bytes for the given sequence
// string, or nil if it is not currently held in the HLS ring.
func (p *Parser) GetHlsSegment(seq string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hlsRing == nil {
		return nil
	}
	for _, e := range p.hlsRing.Items() {
		if e.sequence == seq {
			return e.bytes
		}
	}
	return nil
}

// Metrics returns the Collector this Parser was constructed with, or
// nil if none was configured.
func (p *Parser) Metrics() *metrics.Collector {
	return p.opts.Metrics
}

// Subscribe registers a listener for the given event kind and returns
// a channel of payloads. There is no unsubscribe: the Parser keeps every
// registered channel for its whole lifetime, and an event is dropped for
// a channel whose buffer is full.
func (p *Parser) Subscribe(kind EventKind) <-chan Event {
	return p.dispatch.subscribe(kind)
}
