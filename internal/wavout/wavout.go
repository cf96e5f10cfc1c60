// Package wavout writes kept PCM to a 16-bit WAV file.
package wavout

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitDepth = 16

// Writer is a pipeline PCM sink backed by a WAV encoder.
type Writer struct {
	enc     *wav.Encoder
	file    *os.File
	buf     *goaudio.IntBuffer
	samples int64
	closed  bool
}

// Create opens path for writing interleaved 16-bit PCM.
func Create(path string, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav output needs a sample rate and channel count, got %d Hz / %d channels", sampleRate, channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := New(f, sampleRate, channels)
	w.file = f
	return w, nil
}

// New wraps ws. The caller closes ws after Close.
func New(ws io.WriteSeeker, sampleRate, channels int) *Writer {
	return &Writer{
		enc: wav.NewEncoder(ws, sampleRate, bitDepth, channels, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}
}

// WritePCM appends interleaved samples.
func (w *Writer) WritePCM(pcm []int16) error {
	if cap(w.buf.Data) < len(pcm) {
		w.buf.Data = make([]int, len(pcm))
	}
	w.buf.Data = w.buf.Data[:len(pcm)]
	for i, s := range pcm {
		w.buf.Data[i] = int(s)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	w.samples += int64(len(pcm))
	return nil
}

// Samples returns the number of samples written.
func (w *Writer) Samples() int64 {
	return w.samples
}

// Close finalizes the WAV header and closes the file opened by Create.
// Later calls do nothing.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.enc.Close()
	if w.file != nil {
		err = errors.Join(err, w.file.Close())
	}
	return err
}
