package engine

import (
	"encoding/binary"
	"fmt"

	fdkaac "github.com/lizc2003/audio-fdkaac"
)

// frameDecoder is the part of the fdk-aac decoder the engine drives.
type frameDecoder interface {
	Decode(in, out []byte) (decoded, frames int, rest []byte, err error)
}

// FDK decodes ADTS packets with libfdk-aac.
type FDK struct {
	dec     frameDecoder
	close   func()
	pending []byte
	out     []byte
	last    int
}

// NewFDK opens an fdk-aac decoder configured for ADTS input.
func NewFDK() (*FDK, error) {
	d, err := fdkaac.CreateAacDecoder(&fdkaac.AacDecoderConfig{
		TransportFmt: fdkaac.TtMp4Adts,
	})
	if err != nil {
		return nil, fmt.Errorf("open fdk-aac decoder: %w", err)
	}
	return newFDK(d, make([]byte, d.EstimateOutBufBytes()), func() { d.Close() }), nil
}

func newFDK(dec frameDecoder, out []byte, closeFn func()) *FDK {
	return &FDK{dec: dec, close: closeFn, out: out}
}

// Feed appends packet to the pending input.
func (f *FDK) Feed(packet []byte) error {
	f.pending = append(f.pending, packet...)
	return nil
}

// Decode runs the decoder over pending input and converts the interleaved
// little-endian PCM into pcm.
func (f *FDK) Decode(pcm []int16) (Result, error) {
	if len(f.pending) == 0 {
		return Result{Status: NeedInput}, nil
	}
	n, _, rest, err := f.dec.Decode(f.pending, f.out)
	if err != nil {
		f.pending = f.pending[:0]
		return Result{}, &DecodeError{Err: err}
	}
	f.pending = f.pending[:copy(f.pending, rest)]
	if n == 0 {
		return Result{Status: NeedInput}, nil
	}

	samples := n / 2
	if samples > len(pcm) {
		return Result{}, &DecodeError{Err: fmt.Errorf("%d samples do not fit a %d sample buffer", samples, len(pcm))}
	}
	for i := 0; i < samples; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(f.out[2*i:]))
	}
	f.last = samples
	return Result{Status: Decoded, Samples: samples}, nil
}

func (f *FDK) DecodedSize() int {
	return f.last
}

func (f *FDK) Close() error {
	if f.close != nil {
		f.close()
		f.close = nil
	}
	return nil
}
