// Package parseerr defines the fatal error taxonomy shared by the box
// assembler and the init segment parser, so the public façade can
// expose a single typed error without the two producers importing
// each other or the façade package.
package parseerr

import "fmt"

// Kind classifies why parsing failed fatally.
type Kind int

const (
	// MissingFtyp: the first chunk did not start with a valid ftyp header.
	MissingFtyp Kind = iota
	// MissingMoov: no valid moov header followed ftyp.
	MissingMoov
	// OversizedHeader: a declared ftyp/moov/moof length exceeds the
	// sanity cap for a box that is expected to stay small.
	OversizedHeader
	// MissingMoof: the expected moof was not found on a cold start
	// (no segment has been published yet).
	MissingMoof
	// MissingCodec: moov contained no avcC marker.
	MissingCodec
	// MissingMdat: bytes followed moof but did not form a valid mdat header.
	MissingMdat
)

func (k Kind) String() string {
	switch k {
	case MissingFtyp:
		return "MissingFtyp"
	case MissingMoov:
		return "MissingMoov"
	case OversizedHeader:
		return "OversizedHeader"
	case MissingMoof:
		return "MissingMoof"
	case MissingCodec:
		return "MissingCodec"
	case MissingMdat:
		return "MissingMdat"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a fatal parse error carrying its Kind and an optional
// wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error wrapping a lower-level cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
