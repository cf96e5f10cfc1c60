package stream

import (
	"fmt"
	"time"
)

// Track is the AAC track selected from a container.
type Track struct {
	ID          uint32
	Timescale   uint32 // media timescale of the track
	Duration    uint64 // in Timescale units
	SampleCount uint32

	// Container (movie header) timing.
	MovieTimescale uint32
	MovieDuration  uint64

	ObjectType byte
	Profile    Profile
	SampleRate SampleRateIndex
	Channels   ChannelConfig
}

// MovieLength returns the container duration truncated to whole seconds.
func (t Track) MovieLength() time.Duration {
	if t.MovieTimescale == 0 {
		return 0
	}
	return time.Duration(t.MovieDuration/uint64(t.MovieTimescale)) * time.Second
}

// Length returns the track duration.
func (t Track) Length() time.Duration {
	if t.Timescale == 0 {
		return 0
	}
	return time.Duration(float64(t.Duration) / float64(t.Timescale) * float64(time.Second))
}

// Audio returns the stream description of the track.
func (t Track) Audio() *AudioStream {
	return &AudioStream{
		TrackID:       t.ID,
		Profile:       t.Profile,
		SampleRate:    t.SampleRate.Hz(),
		ChannelCount:  t.Channels.Channels(),
		ChannelConfig: t.Channels,
		IsInitialized: t.SampleRate.Valid() && t.Channels.Valid(),
	}
}

// AudioStream describes the audio carried by a track or an ADTS stream.
type AudioStream struct {
	TrackID       uint32
	Profile       Profile
	SampleRate    int
	ChannelCount  int
	ChannelConfig ChannelConfig
	BitRate       int64
	IsInitialized bool
}

func (a *AudioStream) CodecName() string {
	return "MPEG-4 AAC Audio"
}

func (a *AudioStream) ChannelDescription() string {
	if a.ChannelConfig.Valid() {
		return a.ChannelConfig.String()
	}
	if a.ChannelCount > 0 {
		return fmt.Sprintf("%d.0", a.ChannelCount)
	}
	return ""
}

func (a *AudioStream) Description() string {
	description := a.ChannelDescription()

	if a.SampleRate > 0 {
		if description != "" {
			description += " / "
		}
		description += fmt.Sprintf("%d kHz", a.SampleRate/1000)
	}
	if a.BitRate > 0 {
		description += fmt.Sprintf(" / %5d kbps", int64(float64(a.BitRate)/1000+0.5))
	}
	if a.Profile != ProfileOther {
		description += " / " + a.Profile.String()
	}
	return description
}
