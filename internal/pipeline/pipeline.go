// Package pipeline drives one file through framing, decoding, silence
// trimming and envelope extraction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tearone/aac-trim/internal/codec"
	"github.com/tearone/aac-trim/internal/demux"
	"github.com/tearone/aac-trim/internal/engine"
	"github.com/tearone/aac-trim/internal/silence"
	"github.com/tearone/aac-trim/internal/stream"
	"github.com/tearone/aac-trim/internal/waveform"
)

// Source serves the access units of one track. ReadSample is 1-based and
// returns demux.ErrEndOfTrack after the last unit.
type Source interface {
	Track() stream.Track
	ReadSample(pos uint32) ([]byte, error)
}

// PCMSink receives the decoded samples of every kept chunk.
type PCMSink interface {
	WritePCM(pcm []int16) error
}

// Observer is notified of per-packet outcomes.
type Observer interface {
	PacketKept(bytes int)
	PacketDropped()
	Decoded(samples int)
}

type Config struct {
	Source     Source
	Engine     engine.Engine
	Output     io.Writer
	Classifier silence.Classifier
	Waveform   *waveform.Builder
	PCM        PCMSink
	Observer   Observer
	Logger     *slog.Logger

	// ScratchSamples sizes the PCM scratch buffer. Zero means
	// engine.MaxFrameSamples.
	ScratchSamples int
}

type Result struct {
	Track        stream.Track
	Packets      int
	Kept         int
	Dropped      int
	BytesWritten int64
	Samples      int64
	Envelope     []byte
	Elapsed      time.Duration
}

// State is the position of a Session in the decode loop.
type State int

const (
	Hunting State = iota
	Fed
	Drained
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Hunting:
		return "hunting"
	case Fed:
		return "fed"
	case Drained:
		return "drained"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the state of one decode run. It is owned by a single goroutine.
type Session struct {
	cfg   Config
	log   *slog.Logger
	track stream.Track
	total time.Duration
	state State

	position uint32 // next access unit to read, 1-based
	scratch  []int16
	pcm      []int16 // valid prefix of scratch
	packet   []byte

	result Result
}

// NewSession validates cfg and prepares a session for the source's track.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Source == nil || cfg.Engine == nil || cfg.Output == nil {
		return nil, errors.New("pipeline: source, engine and output are required")
	}
	if cfg.Waveform == nil {
		cfg.Waveform = waveform.New(waveform.DefaultSegments, waveform.DefaultBuckets)
	}
	if cfg.ScratchSamples <= 0 {
		cfg.ScratchSamples = engine.MaxFrameSamples
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	track := cfg.Source.Track()
	return &Session{
		cfg:      cfg,
		log:      log,
		track:    track,
		total:    track.MovieLength(),
		position: 1,
		scratch:  make([]int16, cfg.ScratchSamples),
		packet:   make([]byte, 0, codec.MaxFrameLength),
		result:   Result{Track: track},
	}, nil
}

// Run decodes the whole track described by cfg.
func Run(ctx context.Context, cfg Config) (Result, error) {
	s, err := NewSession(cfg)
	if err != nil {
		return Result{}, err
	}
	return s.Run(ctx)
}

func (s *Session) State() State {
	return s.state
}

// Position returns the next access unit the session will read.
func (s *Session) Position() uint32 {
	return s.position
}

// Run executes the decode loop until the track ends, ctx is cancelled or a
// fatal error occurs. Output written before a failure is not rolled back.
func (s *Session) Run(ctx context.Context) (res Result, err error) {
	start := time.Now()
	defer func() {
		s.result.Elapsed = time.Since(start)
		res.Elapsed = s.result.Elapsed
	}()

	s.log.Info("decode started",
		"track", s.track.ID,
		"profile", s.track.Profile,
		"rate", s.track.SampleRate,
		"channels", s.track.Channels,
		"samples", s.track.SampleCount,
		"duration", s.total,
		"guards", s.cfg.Classifier)

	for {
		if err := ctx.Err(); err != nil {
			s.state = Failed
			return s.result, err
		}

		s.state = Hunting
		dec, err := s.cfg.Engine.Decode(s.scratch)
		if err != nil {
			return s.result, s.fail("decode", s.position, err)
		}

		var packet []byte
		if dec.Status == engine.NeedInput {
			payload, err := s.cfg.Source.ReadSample(s.position)
			if errors.Is(err, demux.ErrEndOfTrack) {
				return s.finish()
			}
			if err != nil {
				return s.result, s.fail("read", s.position, err)
			}
			if packet, err = s.frame(payload); err != nil {
				return s.result, s.fail("frame", s.position, err)
			}
			if err := s.cfg.Engine.Feed(packet); err != nil {
				return s.result, s.fail("feed", s.position, err)
			}
			s.state = Fed
			s.position++

			if dec, err = s.cfg.Engine.Decode(s.scratch); err != nil {
				return s.result, s.fail("decode", s.position-1, err)
			}
			s.state = Drained
		}

		s.pcm = s.scratch[:0]
		if dec.Status == engine.Decoded {
			s.pcm = s.scratch[:s.cfg.Engine.DecodedSize()]
		}
		if err := s.classify(packet); err != nil {
			return s.result, err
		}
	}
}

// frame prefixes payload with its ADTS header.
func (s *Session) frame(payload []byte) ([]byte, error) {
	if len(payload) > codec.MaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes", codec.ErrFrameTooLong, len(payload))
	}
	h, err := codec.SynthesizeADTSHeader(len(payload), s.track.Profile, s.track.Channels, s.track.SampleRate)
	if err != nil {
		return nil, err
	}
	s.packet = append(s.packet[:0], h[:]...)
	s.packet = append(s.packet, payload...)
	return s.packet, nil
}

// classify applies the silence policy to the current PCM. packet is nil when
// the PCM came from input fed on an earlier iteration.
func (s *Session) classify(packet []byte) error {
	elapsed := silence.NormalizedPosition(s.position, s.track.MovieTimescale, s.track.Timescale)
	// A packet the decoder has not produced PCM for yet cannot be judged silent.
	keep := len(s.pcm) == 0 || s.cfg.Classifier.ShouldKeep(s.pcm, elapsed, s.total)
	pos := s.position - 1

	if s.cfg.Observer != nil && len(s.pcm) > 0 {
		s.cfg.Observer.Decoded(len(s.pcm))
	}
	s.result.Samples += int64(len(s.pcm))

	if packet != nil {
		s.result.Packets++
		if !keep {
			s.result.Dropped++
			if s.cfg.Observer != nil {
				s.cfg.Observer.PacketDropped()
			}
			s.log.Debug("packet dropped", "position", pos, "elapsed", elapsed, "samples", len(s.pcm))
			return nil
		}
		n, err := s.cfg.Output.Write(packet)
		s.result.BytesWritten += int64(n)
		if err != nil {
			return s.fail("write", pos, err)
		}
		s.result.Kept++
		if s.cfg.Observer != nil {
			s.cfg.Observer.PacketKept(n)
		}
		s.log.Debug("packet kept", "position", pos, "elapsed", elapsed, "samples", len(s.pcm), "bytes", n)
	} else if !keep {
		return nil
	}

	s.cfg.Waveform.Add(s.pcm)
	if s.cfg.PCM != nil && len(s.pcm) > 0 {
		if err := s.cfg.PCM.WritePCM(s.pcm); err != nil {
			return s.fail("write pcm", pos, err)
		}
	}
	return nil
}

func (s *Session) finish() (Result, error) {
	envelope, err := s.cfg.Waveform.Finalize()
	if err != nil {
		return s.result, s.fail("finalize", s.position, err)
	}
	s.state = Finished
	s.result.Envelope = envelope
	s.log.Info("decode finished",
		"packets", s.result.Packets,
		"kept", s.result.Kept,
		"dropped", s.result.Dropped,
		"bytes", s.result.BytesWritten,
		"chunks", s.cfg.Waveform.Len())
	return s.result, nil
}

func (s *Session) fail(op string, pos uint32, err error) error {
	s.state = Failed
	s.log.Error("decode failed", "op", op, "position", pos, "error", err)
	return &Error{Op: op, Position: pos, Err: err}
}
