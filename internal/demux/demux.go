// Package demux reads AAC access units out of MP4/M4A containers.
package demux

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/aac"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/tearone/aac-trim/internal/stream"
)

// maxPreallocSamples bounds the index allocation made from an untrusted
// sample count, close to 7 hours of 44.1 kHz AAC.
const maxPreallocSamples = 1 << 20

type sampleRef struct {
	offset int64
	size   uint32
}

// Demuxer serves the access units of the first AAC track in a file.
// It is not safe for concurrent use.
type Demuxer struct {
	r       io.ReadSeeker
	track   stream.Track
	asc     []byte
	samples []sampleRef
	buf     []byte
}

// Open decodes the box tree of r, leaving media data on disk, and indexes
// the first AAC track.
func Open(r io.ReadSeeker) (*Demuxer, error) {
	f, err := mp4.DecodeFile(r, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, &ContainerParseError{Err: err}
	}
	if f.Moov == nil || f.Moov.Mvhd == nil {
		return nil, parseError("moov", "missing movie header")
	}

	for _, trak := range f.Moov.Traks {
		if !isAACTrack(trak) {
			continue
		}
		d := &Demuxer{r: r}
		if err := d.load(f.Moov.Mvhd, trak); err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, ErrNoTrackFound
}

// MPEG-4 audio and the three MPEG-2 AAC profiles (ISO 14496-1 objectTypeIndication).
const (
	objectTypeMPEG4Audio = 0x40
	objectTypeMPEG2Main  = 0x66
	objectTypeMPEG2SSR   = 0x68
)

// isAACTrack reports whether trak carries AAC in an mp4a sample entry.
// MP3 and other codecs wrapped in mp4a are skipped.
func isAACTrack(trak *mp4.TrakBox) bool {
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return false
	}
	stsd := trak.Mdia.Minf.Stbl.Stsd
	if stsd == nil || stsd.Mp4a == nil || stsd.Mp4a.Esds == nil {
		return false
	}
	dcd := stsd.Mp4a.Esds.DecConfigDescriptor
	if dcd == nil {
		return false
	}
	return dcd.ObjectType == objectTypeMPEG4Audio ||
		(dcd.ObjectType >= objectTypeMPEG2Main && dcd.ObjectType <= objectTypeMPEG2SSR)
}

func (d *Demuxer) load(mvhd *mp4.MvhdBox, trak *mp4.TrakBox) error {
	if trak.Mdia.Mdhd == nil {
		return parseError("mdhd", "missing media header")
	}
	dsi := trak.Mdia.Minf.Stbl.Stsd.Mp4a.Esds.DecConfigDescriptor.DecSpecificInfo
	if dsi == nil {
		return parseError("esds", "missing decoder specific info")
	}
	d.asc = dsi.DecConfig
	asc, err := aac.DecodeAudioSpecificConfig(bytes.NewReader(d.asc))
	if err != nil {
		return &ContainerParseError{Box: "esds", Err: err}
	}
	rate, ok := stream.SampleRateIndexFromFrequency(asc.SamplingFrequency)
	if !ok {
		return fmt.Errorf("%w: %d Hz", ErrUnsupportedSampleRate, asc.SamplingFrequency)
	}

	d.track = stream.Track{
		Timescale:      trak.Mdia.Mdhd.Timescale,
		Duration:       trak.Mdia.Mdhd.Duration,
		MovieTimescale: mvhd.Timescale,
		MovieDuration:  mvhd.Duration,
		ObjectType:     asc.ObjectType,
		Profile:        stream.ProfileFromObjectType(asc.ObjectType),
		SampleRate:     rate,
		Channels:       stream.ChannelConfig(asc.ChannelConfiguration),
	}
	if !d.track.Channels.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannelConfig, asc.ChannelConfiguration)
	}
	if trak.Tkhd != nil {
		d.track.ID = trak.Tkhd.TrackID
	}

	if err := d.index(trak.Mdia.Minf.Stbl); err != nil {
		return err
	}
	d.track.SampleCount = uint32(len(d.samples))
	return nil
}

// index resolves the file offset and size of every sample from the
// sample-size, sample-to-chunk and chunk-offset tables.
func (d *Demuxer) index(stbl *mp4.StblBox) error {
	if stbl.Stsz == nil || stbl.Stsc == nil {
		return parseError("stbl", "missing sample size or sample-to-chunk table")
	}
	var chunkOffsets []int64
	switch {
	case stbl.Stco != nil:
		for _, off := range stbl.Stco.ChunkOffset {
			chunkOffsets = append(chunkOffsets, int64(off))
		}
	case stbl.Co64 != nil:
		for _, off := range stbl.Co64.ChunkOffset {
			chunkOffsets = append(chunkOffsets, int64(off))
		}
	default:
		return parseError("stbl", "missing chunk offset table")
	}

	count := int(stbl.Stsz.SampleNumber)
	if count > 0 && len(stbl.Stsc.Entries) == 0 {
		return parseError("stsc", "no entries for %d samples", count)
	}
	for i, e := range stbl.Stsc.Entries {
		if e.SamplesPerChunk == 0 {
			return parseError("stsc", "entry %d has no samples per chunk", i+1)
		}
	}
	d.samples = make([]sampleRef, 0, min(count, maxPreallocSamples))
	currentChunk := 0
	var offset int64
	for nr := 1; nr <= count; nr++ {
		chunkNr, _, err := stbl.Stsc.ChunkNrFromSampleNr(nr)
		if err != nil {
			return &ContainerParseError{Box: "stsc", Err: err}
		}
		if chunkNr < 1 || chunkNr > len(chunkOffsets) {
			return parseError("stco", "sample %d refers to chunk %d of %d", nr, chunkNr, len(chunkOffsets))
		}
		if chunkNr != currentChunk {
			currentChunk = chunkNr
			offset = chunkOffsets[chunkNr-1]
		}
		size := stbl.Stsz.GetSampleSize(nr)
		d.samples = append(d.samples, sampleRef{offset: offset, size: size})
		offset += int64(size)
	}
	return nil
}

// Track returns the selected track's metadata.
func (d *Demuxer) Track() stream.Track {
	return d.track
}

// DecoderConfig returns the raw AudioSpecificConfig of the track.
func (d *Demuxer) DecoderConfig() []byte {
	return d.asc
}

// ReadSample returns access unit pos (1-based). The returned slice is only
// valid until the next call. Past the last unit it returns ErrEndOfTrack.
func (d *Demuxer) ReadSample(pos uint32) ([]byte, error) {
	if pos == 0 || int(pos) > len(d.samples) {
		return nil, ErrEndOfTrack
	}
	ref := d.samples[pos-1]
	if cap(d.buf) < int(ref.size) {
		d.buf = make([]byte, ref.size)
	}
	d.buf = d.buf[:ref.size]
	if _, err := d.r.Seek(ref.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample %d: %w", pos, err)
	}
	if _, err := io.ReadFull(d.r, d.buf); err != nil {
		return nil, &ContainerParseError{Box: "mdat", Err: fmt.Errorf("read sample %d: %w", pos, err)}
	}
	return d.buf, nil
}
