package codec

import (
	"testing"

	"github.com/tearone/aac-trim/internal/stream"
)

func FuzzParseADTSHeader(f *testing.F) {
	f.Add([]byte{0xFF, 0xF1, 0x50, 0xBC, 0x00, 0xFF, 0xFC})
	f.Add([]byte{0xFF, 0xF0, 0x50, 0x80, 0x00, 0xFF, 0xFC, 0x00, 0x00})
	f.Add([]byte{0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		h, err := ParseADTSHeader(data)
		if err != nil {
			return
		}
		if h.FrameLength < ADTSHeaderLength || h.FrameLength > MaxFrameLength {
			t.Fatalf("frame length %d accepted", h.FrameLength)
		}
		if !h.SampleRate.Valid() {
			t.Fatalf("reserved rate %d accepted", h.SampleRate)
		}

		// Re-synthesizing yields the same header apart from the bits we
		// always write as fixed values.
		if !h.Channels.Valid() || h.Profile == stream.ProfileOther {
			return
		}
		out, err := SynthesizeADTSHeader(h.PayloadLength(), h.Profile, h.Channels, h.SampleRate)
		if err != nil {
			t.Fatalf("SynthesizeADTSHeader() error = %v", err)
		}
		again, err := ParseADTSHeader(out[:])
		if err != nil {
			t.Fatalf("re-parse error = %v", err)
		}
		if again.FrameLength != h.FrameLength || again.Profile != h.Profile || again.Channels != h.Channels || again.SampleRate != h.SampleRate {
			t.Fatalf("round trip %+v != %+v", again, h)
		}
	})
}

func FuzzSplitADTS(f *testing.F) {
	f.Add([]byte{0xFF, 0xF1, 0x50, 0xBC, 0x00, 0xFF, 0xFC})
	f.Add([]byte{0xFF, 0xF1, 0x50, 0xBC, 0x01, 0x3F, 0xFC, 1, 2})

	f.Fuzz(func(t *testing.T, data []byte) {
		total := 0
		_ = SplitADTS(data, func(_ FrameHeader, frame []byte) error {
			total += len(frame)
			return nil
		})
		if total > len(data) {
			t.Fatalf("frames cover %d bytes of %d", total, len(data))
		}
	})
}
