package codec

import (
	"github.com/tearone/aac-trim/internal/buffer"
	"github.com/tearone/aac-trim/internal/stream"
)

const (
	// ADTSHeaderLength is the size of a header without CRC.
	ADTSHeaderLength = 7
	// MaxFrameLength is the largest value of the 13-bit frame_length field.
	MaxFrameLength = 1<<13 - 1
	// MaxPayloadLength is the largest access unit that fits one ADTS frame.
	MaxPayloadLength = MaxFrameLength - ADTSHeaderLength

	bufferFullnessVBR = 0x7FF
)

// ADTSHeader is a 7-byte ADTS header: MPEG-4, no CRC, one raw data block.
//
//	AAAAAAAA AAAABCCD EEFFFFGH HHIJKLMM MMMMMMMM MMMOOOOO OOOOOOPP
type ADTSHeader [ADTSHeaderLength]byte

var (
	chanHighBit  = buffer.BitRange{Start: 5, End: 6}
	chanLowBits  = buffer.BitRange{Start: 6, End: 8}
	lenHighBits  = buffer.BitRange{Start: 3, End: 5}
	lenMidBits   = buffer.BitRange{Start: 5, End: 13}
	lenLowBits   = buffer.BitRange{Start: 13, End: 16}
	fullHighBits = buffer.BitRange{Start: 5, End: 10}
	fullLowBits  = buffer.BitRange{Start: 10, End: 16}
)

// SynthesizeADTSHeader builds the header for one access unit of payloadLength
// bytes. The frame length field is 13 bits wide; callers keep payloadLength
// at or below MaxPayloadLength, larger values are masked.
func SynthesizeADTSHeader(payloadLength int, profile stream.Profile, channels stream.ChannelConfig, rate stream.SampleRateIndex) (ADTSHeader, error) {
	var h ADTSHeader
	idx := profile.ADTSIndex()
	if idx == 0 {
		return h, ErrUnsupportedProfile
	}

	frameLength := uint16(ADTSHeaderLength+payloadLength) & MaxFrameLength
	cc := uint8(channels) & 0x07

	chanHigh, _ := buffer.Extract8(cc, chanHighBit)
	chanLow, _ := buffer.Extract8(cc, chanLowBits)
	lenHigh, _ := buffer.Extract16(frameLength, lenHighBits)
	lenMid, _ := buffer.Extract16(frameLength, lenMidBits)
	lenLow, _ := buffer.Extract16(frameLength, lenLowBits)
	fullHigh, _ := buffer.Extract16(bufferFullnessVBR, fullHighBits)
	fullLow, _ := buffer.Extract16(bufferFullnessVBR, fullLowBits)

	// syncword
	h[0] = 0b1111_1111
	// syncword tail, MPEG-4, layer 00, protection absent
	h[1] = 0b1111_0001
	// object type, sampling frequency index, private bit, channel config
	h[2] = (idx-1)<<6 | (uint8(rate)&0x0F)<<2 | 0<<1 | chanHigh
	// channel config, original/home/copyright bits, frame length
	h[3] = chanLow<<6 | 0b1111<<2 | uint8(lenHigh)
	h[4] = uint8(lenMid)
	// frame length, buffer fullness
	h[5] = uint8(lenLow)<<5 | uint8(fullHigh)
	// buffer fullness, one raw data block
	h[6] = uint8(fullLow)<<2 | 0b00

	return h, nil
}

// FrameLength returns the 13-bit frame_length field.
func (h ADTSHeader) FrameLength() int {
	return int(h[3]&0x03)<<11 | int(h[4])<<3 | int(h[5])>>5
}

// FrameHeader is a decoded ADTS header.
type FrameHeader struct {
	MPEG2            bool
	ProtectionAbsent bool
	Profile          stream.Profile
	SampleRate       stream.SampleRateIndex
	PrivateBit       bool
	Channels         stream.ChannelConfig
	FrameLength      int
	BufferFullness   int
	RawDataBlocks    int
}

// PayloadLength returns the size of the access unit following the header.
func (h FrameHeader) PayloadLength() int {
	return h.FrameLength - ADTSHeaderLength
}

// ParseADTSHeader decodes the header at the start of data.
func ParseADTSHeader(data []byte) (FrameHeader, error) {
	var h FrameHeader
	if len(data) < ADTSHeaderLength {
		return h, ErrHeaderTooShort
	}
	r := buffer.NewBitReader(data[:ADTSHeaderLength])

	if sync, _ := r.PeekBits(12); sync != 0xFFF {
		return h, ErrSyncwordNotFound
	}
	r.SkipBits(12)
	mpeg2, _ := r.ReadFlag()
	layer, _ := r.ReadBits(2)
	if layer != 0 {
		return h, ErrInvalidLayer
	}
	protectionAbsent, _ := r.ReadFlag()
	profile, _ := r.ReadBits(2)
	rate, _ := r.ReadBits(4)
	private, _ := r.ReadFlag()
	channels, _ := r.ReadBits(3)
	r.SkipBits(4) // original/copy, home, copyright id bit, copyright id start
	frameLength, _ := r.ReadBits(13)
	fullness, _ := r.ReadBits(11)
	blocks, _ := r.ReadBits(2)

	h = FrameHeader{
		MPEG2:            mpeg2,
		ProtectionAbsent: protectionAbsent,
		Profile:          stream.ProfileFromObjectType(byte(profile) + 1),
		SampleRate:       stream.SampleRateIndex(rate),
		PrivateBit:       private,
		Channels:         stream.ChannelConfig(channels),
		FrameLength:      int(frameLength),
		BufferFullness:   int(fullness),
		RawDataBlocks:    int(blocks) + 1,
	}
	if !h.ProtectionAbsent {
		return h, ErrProtectedFrame
	}
	if !h.SampleRate.Valid() {
		return h, ErrInvalidSampleRate
	}
	if h.FrameLength < ADTSHeaderLength {
		return h, ErrInvalidFrameLength
	}
	return h, nil
}

// SplitADTS walks an ADTS byte stream and calls fn for every complete frame,
// header included. It stops at the first malformed or truncated frame.
func SplitADTS(data []byte, fn func(FrameHeader, []byte) error) error {
	for off := 0; off < len(data); {
		h, err := ParseADTSHeader(data[off:])
		if err != nil {
			return &FrameError{Offset: off, Err: err}
		}
		end := off + h.FrameLength
		if end > len(data) {
			return &FrameError{Offset: off, Err: ErrTruncatedFrame}
		}
		if err := fn(h, data[off:end]); err != nil {
			return err
		}
		off = end
	}
	return nil
}
