package aactrim

import (
	"fmt"
	"os"
	"time"

	"github.com/tearone/aac-trim/internal/codec"
	"github.com/tearone/aac-trim/internal/stream"
)

// samplesPerFrame is the PCM frame size of the supported AAC profiles.
const samplesPerFrame = 1024

// InspectResult summarizes an ADTS stream. Consistent is false when frames
// disagree on profile, rate or channels.
type InspectResult struct {
	Path         string
	Description  string
	Profile      string
	SampleRate   int
	Channels     int
	Frames       int
	PayloadBytes int64
	Length       time.Duration
	Consistent   bool
}

// Inspect walks the ADTS frames of the file at path.
func Inspect(path string) (InspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return InspectResult{}, err
	}
	return inspectADTS(path, data)
}

func inspectADTS(path string, data []byte) (InspectResult, error) {
	res := InspectResult{Path: path, Consistent: true}
	audio := &stream.AudioStream{}
	var first codec.FrameHeader

	err := codec.SplitADTS(data, func(h codec.FrameHeader, frame []byte) error {
		if res.Frames == 0 {
			first = h
			codec.ScanAAC(audio, frame)
		} else if h.Profile != first.Profile || h.SampleRate != first.SampleRate || h.Channels != first.Channels {
			res.Consistent = false
		}
		res.Frames++
		res.PayloadBytes += int64(h.PayloadLength())
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	if res.Frames == 0 {
		return res, fmt.Errorf("%s: no ADTS frames", path)
	}

	res.Description = audio.Description()
	res.Profile = audio.Profile.String()
	res.SampleRate = audio.SampleRate
	res.Channels = audio.ChannelCount
	if audio.SampleRate > 0 {
		secs := float64(res.Frames*samplesPerFrame) / float64(audio.SampleRate)
		res.Length = time.Duration(secs * float64(time.Second))
	}
	return res, nil
}
