package demux

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoTrackFound is returned when a container holds no AAC track.
	ErrNoTrackFound = errors.New("no AAC audio track found")
	// ErrEndOfTrack is returned by ReadSample past the last access unit.
	ErrEndOfTrack = fmt.Errorf("end of track: %w", io.EOF)
	// ErrUnsupportedSampleRate is returned for rates outside the MPEG-4 table.
	ErrUnsupportedSampleRate = errors.New("sample rate not in MPEG-4 frequency table")
	// ErrUnsupportedChannelConfig is returned for channel configurations
	// outside 1-7, including 0 (layout carried in a program config element).
	ErrUnsupportedChannelConfig = errors.New("channel configuration cannot be framed as ADTS")
)

// ContainerParseError reports a malformed container.
type ContainerParseError struct {
	Box string
	Err error
}

func (e *ContainerParseError) Error() string {
	if e.Box == "" {
		return fmt.Sprintf("parse container: %v", e.Err)
	}
	return fmt.Sprintf("parse container: %s: %v", e.Box, e.Err)
}

func (e *ContainerParseError) Unwrap() error {
	return e.Err
}

func parseError(box string, format string, args ...any) error {
	return &ContainerParseError{Box: box, Err: fmt.Errorf(format, args...)}
}
