package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProfile is returned when a profile has no ADTS object type.
	ErrUnsupportedProfile = errors.New("unsupported AAC profile for ADTS framing")
	// ErrFrameTooLong is returned when an access unit does not fit the 13-bit
	// frame length field.
	ErrFrameTooLong = fmt.Errorf("access unit exceeds %d bytes", MaxPayloadLength)

	ErrHeaderTooShort     = errors.New("adts header too short")
	ErrSyncwordNotFound   = errors.New("adts syncword not found")
	ErrInvalidLayer       = errors.New("adts layer must be 0")
	ErrProtectedFrame     = errors.New("adts frames with CRC are not supported")
	ErrInvalidSampleRate  = errors.New("adts sampling frequency index is reserved")
	ErrInvalidFrameLength = errors.New("adts frame length shorter than header")
	ErrTruncatedFrame     = errors.New("adts frame truncated")
)

// FrameError reports where in an ADTS stream parsing failed.
type FrameError struct {
	Offset int
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("adts frame at byte %d: %v", e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
