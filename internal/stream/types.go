package stream

import "fmt"

// Profile is the AAC audio object profile of a track.
type Profile uint8

const (
	ProfileOther Profile = iota
	ProfileMain
	ProfileLowComplexity
	ProfileScalableSampleRate
	ProfileLongTermPrediction
)

// ProfileFromObjectType maps an MPEG-4 audio object type to a Profile.
// Object types outside 1-4 (HE-AAC, ER, LD, ...) map to ProfileOther.
func ProfileFromObjectType(objectType byte) Profile {
	switch objectType {
	case 1:
		return ProfileMain
	case 2:
		return ProfileLowComplexity
	case 3:
		return ProfileScalableSampleRate
	case 4:
		return ProfileLongTermPrediction
	default:
		return ProfileOther
	}
}

// ADTSIndex returns the 1-based profile index carried (minus one) in an ADTS
// header, or 0 when the profile cannot be framed as ADTS.
func (p Profile) ADTSIndex() uint8 {
	switch p {
	case ProfileMain, ProfileLowComplexity, ProfileScalableSampleRate, ProfileLongTermPrediction:
		return uint8(p)
	default:
		return 0
	}
}

func (p Profile) String() string {
	switch p {
	case ProfileMain:
		return "AAC Main"
	case ProfileLowComplexity:
		return "AAC LC"
	case ProfileScalableSampleRate:
		return "AAC SSR"
	case ProfileLongTermPrediction:
		return "AAC LTP"
	default:
		return "Other"
	}
}

// SampleRateIndex indexes the 13-entry MPEG-4 sampling frequency table.
type SampleRateIndex uint8

const (
	Rate96000 SampleRateIndex = iota
	Rate88200
	Rate64000
	Rate48000
	Rate44100
	Rate32000
	Rate24000
	Rate22050
	Rate16000
	Rate12000
	Rate11025
	Rate8000
	Rate7350
)

var sampleRates = []int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}

// SampleRateIndexFromFrequency returns the table index for an exact frequency.
func SampleRateIndexFromFrequency(hz int) (SampleRateIndex, bool) {
	for i, rate := range sampleRates {
		if rate == hz {
			return SampleRateIndex(i), true
		}
	}
	return 0, false
}

// Valid reports whether the index is one of the 13 table entries.
func (i SampleRateIndex) Valid() bool {
	return int(i) < len(sampleRates)
}

// Hz returns the sampling frequency, or 0 for reserved indices.
func (i SampleRateIndex) Hz() int {
	if !i.Valid() {
		return 0
	}
	return sampleRates[i]
}

func (i SampleRateIndex) String() string {
	if !i.Valid() {
		return fmt.Sprintf("reserved(%d)", uint8(i))
	}
	return fmt.Sprintf("%d Hz", i.Hz())
}

// ChannelConfig is the MPEG-4 channel configuration (1-7).
type ChannelConfig uint8

const (
	ChannelMono ChannelConfig = iota + 1
	ChannelStereo
	ChannelThree
	ChannelFour
	ChannelFive
	ChannelFiveOne
	ChannelSevenOne
)

// Valid reports whether the configuration is one of 1-7.
func (c ChannelConfig) Valid() bool {
	return c >= ChannelMono && c <= ChannelSevenOne
}

// Channels returns the number of output channels for the configuration.
func (c ChannelConfig) Channels() int {
	switch c {
	case ChannelFiveOne:
		return 6
	case ChannelSevenOne:
		return 8
	default:
		if c.Valid() {
			return int(c)
		}
		return 0
	}
}

func (c ChannelConfig) String() string {
	switch c {
	case ChannelMono:
		return "1.0"
	case ChannelStereo:
		return "2.0"
	case ChannelThree:
		return "3.0"
	case ChannelFour:
		return "4.0"
	case ChannelFive:
		return "5.0"
	case ChannelFiveOne:
		return "5.1"
	case ChannelSevenOne:
		return "7.1"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(c))
	}
}
