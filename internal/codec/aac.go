package codec

import "github.com/tearone/aac-trim/internal/stream"

// ScanAAC fills a from the ADTS header at the start of data. It leaves an
// already initialized stream untouched.
func ScanAAC(a *stream.AudioStream, data []byte) {
	if a.IsInitialized {
		return
	}
	h, err := ParseADTSHeader(data)
	if err != nil {
		return
	}
	a.Profile = h.Profile
	a.SampleRate = h.SampleRate.Hz()
	if h.Channels.Valid() {
		a.ChannelConfig = h.Channels
		a.ChannelCount = h.Channels.Channels()
	}
	a.IsInitialized = true
}
