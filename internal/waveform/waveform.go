// Package waveform reduces decoded PCM to a fixed-size amplitude envelope.
package waveform

import (
	"errors"
	"math"
)

const (
	DefaultSegments = 9
	DefaultBuckets  = 49
)

// ErrFinalized is returned by Finalize after the first call.
var ErrFinalized = errors.New("waveform already finalized")

// Builder accumulates one peak per decoded chunk and downsamples them into
// a byte envelope once the program ends. The zero value is not usable; use New.
type Builder struct {
	segments  int
	buckets   int
	peaks     []float64
	finalized bool
}

// New returns a Builder. Non-positive arguments fall back to the defaults.
func New(segments, buckets int) *Builder {
	if segments <= 0 {
		segments = DefaultSegments
	}
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	return &Builder{segments: segments, buckets: buckets}
}

// Add records the peak of one decoded chunk: the largest of the per-segment
// means of non-negative samples.
func (b *Builder) Add(pcm []int16) {
	n := len(pcm)
	peak := 0.0
	for i := 0; i < b.segments; i++ {
		lo, hi := partition(i, n, b.segments)
		var sum int64
		count := 0
		for _, s := range pcm[lo:hi] {
			if s >= 0 {
				sum += int64(s)
				count++
			}
		}
		if count == 0 {
			continue
		}
		if mean := float64(sum) / float64(count); mean > peak {
			peak = mean
		}
	}
	b.peaks = append(b.peaks, peak)
}

// Len returns the number of chunks added so far.
func (b *Builder) Len() int {
	return len(b.peaks)
}

// Finalize downsamples the peaks into exactly Buckets() bytes. Each byte is
// the bucket average scaled against the largest bucket maximum. A silent or
// empty program yields all zeros.
func (b *Builder) Finalize() ([]byte, error) {
	if b.finalized {
		return nil, ErrFinalized
	}
	b.finalized = true

	avgs := make([]float64, b.buckets)
	globalMax := 0.0
	n := len(b.peaks)
	for i := 0; i < b.buckets; i++ {
		lo, hi := partition(i, n, b.buckets)
		if lo == hi {
			continue
		}
		sum, localMax := 0.0, 0.0
		for _, p := range b.peaks[lo:hi] {
			sum += p
			localMax = math.Max(localMax, p)
		}
		avgs[i] = sum / float64(hi-lo)
		globalMax = math.Max(globalMax, localMax)
	}

	out := make([]byte, b.buckets)
	if globalMax == 0 {
		return out, nil
	}
	for i, avg := range avgs {
		v := math.Round(avg / globalMax * 256)
		out[i] = byte(math.Min(math.Max(v, 0), 255))
	}
	return out, nil
}

// Buckets returns the envelope size produced by Finalize.
func (b *Builder) Buckets() int {
	return b.buckets
}

// partition returns the bounds of part i when n items are split into k
// contiguous parts.
func partition(i, n, k int) (int, int) {
	return i * n / k, (i + 1) * n / k
}
