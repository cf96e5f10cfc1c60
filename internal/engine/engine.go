// Package engine wraps the AAC decoder behind a feed/drain interface.
package engine

import (
	"errors"
	"fmt"
)

// MaxFrameSamples bounds the interleaved int16 samples one Decode call can
// produce: 2048 samples per channel for up to 8 channels.
const MaxFrameSamples = 2048 * 8

// ErrDecode marks failures reported by the decoder itself.
var ErrDecode = errors.New("decode engine error")

// Status is the outcome of a successful Decode call.
type Status int

const (
	// NeedInput means the engine cannot produce PCM until it is fed.
	NeedInput Status = iota
	// Decoded means Result.Samples samples were written to the scratch buffer.
	Decoded
)

func (s Status) String() string {
	switch s {
	case NeedInput:
		return "need-input"
	case Decoded:
		return "decoded"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result reports what one Decode call produced. A fatal outcome is reported
// as a non-nil error instead.
type Result struct {
	Status  Status
	Samples int
}

// Engine is a stateful decoder. Feed queues one framed packet; Decode drains
// at most one frame of PCM into the caller's scratch buffer.
type Engine interface {
	Feed(packet []byte) error
	Decode(pcm []int16) (Result, error)
	// DecodedSize returns the sample count of the last successful Decode.
	DecodedSize() int
	Close() error
}

// DecodeError wraps a decoder failure so it matches ErrDecode.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}
