// Package assembler drives the box scanner through the expected fMP4
// box sequence ftyp -> moov -> (moof -> mdat)+, reassembling boxes
// that straddle chunk boundaries and emitting the completed
// initialization blob and media segments as they are assembled.
//
// The buffering strategy mirrors pkg/chunkparser's reusable-buffer
// pattern: bytes accumulate in a single growing slice, and once a box
// is sliced off the front, the remainder is shifted down to the start
// of the backing array rather than left to grow forever.
package assembler

import (
	"bytes"

	"github.com/maxim729467/mp4frag/internal/box"
	"github.com/maxim729467/mp4frag/internal/parseerr"
)

// State is the assembler's current position in the box sequence.
type State int

const (
	StateFtyp State = iota
	StateMoov
	StateMoof
	StateMdat
	StateHunt
)

func (s State) String() string {
	switch s {
	case StateFtyp:
		return "S_FTYP"
	case StateMoov:
		return "S_MOOV"
	case StateMoof:
		return "S_MOOF"
	case StateMdat:
		return "S_MDAT"
	case StateHunt:
		return "S_HUNT"
	default:
		return "S_UNKNOWN"
	}
}

// Sanity caps on declared box sizes for boxes that are expected to stay
// small (ftyp, moof, and - since moov now gets partial-body buffering -
// a generous cap to catch corrupt headers rather than legitimately
// large moov payloads). mdat has no cap: it is the media payload and
// may be arbitrarily large.
const (
	maxFtypSize = 1 << 16  // 64 KiB
	maxMoofSize = 1 << 20  // 1 MiB
	maxMoovSize = 64 << 20 // 64 MiB
)

// EventKind distinguishes the two events an Assembler can emit.
type EventKind int

const (
	// EventInit carries the ftyp+moov initialization blob. Emitted at
	// most once per session.
	EventInit EventKind = iota
	// EventSegment carries one moof+mdat media segment.
	EventSegment
)

// Event is one unit of output from Feed: either the init blob or a
// completed media segment. Data is owned by the caller; it never
// aliases the assembler's internal buffers.
type Event struct {
	Kind EventKind
	Data []byte
}

// Assembler is the fMP4 box-sequence state machine described by the
// segment assembler component.
type Assembler struct {
	state State
	carry []byte // in-progress bytes for the box(es) currently awaited

	ftypBytes []byte // retained from StateFtyp until moov completes
	moofBytes []byte // retained from StateMoof until mdat completes

	segmentsPublished int // drives the cold-start-vs-hunt distinction for moof misses
}

// New returns a fresh Assembler positioned at StateFtyp.
func New() *Assembler {
	return &Assembler{state: StateFtyp}
}

// State returns the assembler's current state, mainly for tests and diagnostics.
func (a *Assembler) State() State { return a.state }

// Reset discards all in-flight buffering and returns the assembler to
// StateFtyp, as happens on flush.
func (a *Assembler) Reset() {
	a.state = StateFtyp
	a.carry = nil
	a.ftypBytes = nil
	a.moofBytes = nil
	a.segmentsPublished = 0
}

// Feed appends chunk to the assembler's pending bytes and drives the
// state machine forward as far as the currently available bytes allow.
// It returns, in order, every Event produced by this call. A zero-length
// chunk is ignored. A non-nil error is fatal; per the façade's write
// contract the Assembler must not be fed again until Reset.
func (a *Assembler) Feed(chunk []byte) ([]Event, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	a.carry = append(a.carry, chunk...)

	var events []Event
	for {
		if a.state == StateHunt {
			advanced, done := a.huntStep()
			if !advanced {
				return events, nil
			}
			if done {
				continue
			}
		}

		want := wantTypeFor(a.state)
		res := box.Scan(a.carry, want)

		switch res.Outcome {
		case box.Mismatch:
			if len(a.carry) < box.HeaderSize {
				// Not enough bytes yet to even read the header; wait.
				return events, nil
			}
			ev, err := a.onMismatch()
			if err != nil {
				return events, err
			}
			if ev != nil {
				events = append(events, *ev)
			}
			// onMismatch only ever switches to StateHunt (recoverable);
			// any other mismatch returns a fatal error above.
			continue

		case box.Incomplete:
			if cap, ok := sanityCapFor(a.state); ok && res.Size > cap {
				return events, parseerr.New(parseerr.OversizedHeader,
					"declared box length exceeds sanity cap for "+a.state.String())
			}
			return events, nil

		case box.Complete:
			ev, err := a.onComplete(res)
			if err != nil {
				return events, err
			}
			a.compact(int(res.Size))
			if ev != nil {
				events = append(events, *ev)
			}
			continue
		}
	}
}

// huntStep searches the carry buffer for "moof" while in StateHunt.
// advanced reports whether a usable match was found and the state
// switched to StateMoof; when it is false nothing usable is in carry yet
// and the caller should wait for more bytes. done reports whether the
// caller should re-enter the main Feed loop under the new state.
//
// A match at index 0-3 leaves no room for the 4-byte length header
// that must precede "moof", so it is unusable. Such a match is
// discarded and the search resumes past it rather than left in place,
// which would otherwise make every subsequent call re-find the same
// unusable index and stall the parser indefinitely.
func (a *Assembler) huntStep() (advanced bool, done bool) {
	for {
		idx := box.IndexOf(a.carry, "moof")
		if idx < 0 {
			// Nothing usable yet; keep whatever tail could still be the
			// start of a future match (at most 3 bytes of an overlapping
			// "moof" prefix) and wait for more data.
			if len(a.carry) > 3 {
				a.carry = bytes.Clone(a.carry[len(a.carry)-3:])
			}
			return false, false
		}
		if idx < 4 {
			a.carry = bytes.Clone(a.carry[idx+1:])
			continue
		}
		a.carry = bytes.Clone(a.carry[idx-4:])
		a.state = StateMoof
		return true, true
	}
}

func wantTypeFor(s State) box.Type {
	switch s {
	case StateFtyp:
		return "ftyp"
	case StateMoov:
		return "moov"
	case StateMoof:
		return "moof"
	case StateMdat:
		return "mdat"
	default:
		return ""
	}
}

func sanityCapFor(s State) (uint32, bool) {
	switch s {
	case StateFtyp:
		return maxFtypSize, true
	case StateMoof:
		return maxMoofSize, true
	case StateMoov:
		return maxMoovSize, true
	default:
		return 0, false
	}
}

// onMismatch handles a confirmed (not just awaiting-more-bytes)
// Mismatch outcome for the current state.
func (a *Assembler) onMismatch() (*Event, error) {
	switch a.state {
	case StateFtyp:
		return nil, parseerr.New(parseerr.MissingFtyp, "first chunk did not start with a valid ftyp box")
	case StateMoov:
		return nil, parseerr.New(parseerr.MissingMoov, "no valid moov box followed ftyp")
	case StateMoof:
		if a.segmentsPublished == 0 {
			return nil, parseerr.New(parseerr.MissingMoof, "expected moof not found on cold start")
		}
		a.state = StateHunt
		return nil, nil
	case StateMdat:
		return nil, parseerr.New(parseerr.MissingMdat, "bytes followed moof but did not form a valid mdat box")
	default:
		return nil, nil
	}
}

// onComplete handles a Complete Scan outcome for the current state,
// performing the associated state transition and, where applicable,
// producing an Event. The caller is responsible for shrinking carry
// afterwards via compact.
func (a *Assembler) onComplete(res box.Result) (*Event, error) {
	switch a.state {
	case StateFtyp:
		a.ftypBytes = bytes.Clone(res.Box)
		a.state = StateMoov
		return nil, nil

	case StateMoov:
		initBlob := make([]byte, 0, len(a.ftypBytes)+len(res.Box))
		initBlob = append(initBlob, a.ftypBytes...)
		initBlob = append(initBlob, res.Box...)
		a.state = StateMoof
		return &Event{Kind: EventInit, Data: initBlob}, nil

	case StateMoof:
		a.moofBytes = bytes.Clone(res.Box)
		a.state = StateMdat
		return nil, nil

	case StateMdat:
		segment := make([]byte, 0, len(a.moofBytes)+len(res.Box))
		segment = append(segment, a.moofBytes...)
		segment = append(segment, res.Box...)
		a.moofBytes = nil
		a.state = StateMoof
		a.segmentsPublished++
		return &Event{Kind: EventSegment, Data: segment}, nil

	default:
		return nil, nil
	}
}

// compact shifts carry down by consumed bytes, reusing the backing
// array instead of letting it grow without bound across the session.
func (a *Assembler) compact(consumed int) {
	rest := len(a.carry) - consumed
	copy(a.carry, a.carry[consumed:])
	a.carry = a.carry[:rest]
}
