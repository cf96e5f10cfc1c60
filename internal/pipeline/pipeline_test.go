package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tearone/aac-trim/internal/codec"
	"github.com/tearone/aac-trim/internal/demux"
	"github.com/tearone/aac-trim/internal/engine"
	"github.com/tearone/aac-trim/internal/silence"
	"github.com/tearone/aac-trim/internal/stream"
	"github.com/tearone/aac-trim/internal/waveform"
)

const samplesPerFrame = 32

// unit builds an access unit: amplitude (0 is silence), frames decoded from
// it, and an id used to check ordering.
func unit(amp, frames, id byte) []byte {
	return []byte{amp, frames, id}
}

type fakeSource struct {
	track   stream.Track
	units   [][]byte
	readErr map[uint32]error
}

func newSource(units [][]byte) *fakeSource {
	n := uint32(len(units))
	return &fakeSource{
		units: units,
		track: stream.Track{
			ID:             1,
			Timescale:      1,
			MovieTimescale: 1,
			MovieDuration:  uint64(n),
			SampleCount:    n,
			Profile:        stream.ProfileLowComplexity,
			SampleRate:     stream.Rate44100,
			Channels:       stream.ChannelStereo,
		},
	}
}

func (s *fakeSource) Track() stream.Track { return s.track }

func (s *fakeSource) ReadSample(pos uint32) ([]byte, error) {
	if err := s.readErr[pos]; err != nil {
		return nil, err
	}
	if pos == 0 || int(pos) > len(s.units) {
		return nil, demux.ErrEndOfTrack
	}
	return s.units[pos-1], nil
}

// fakeEngine turns every fed unit into unit[1] frames of constant PCM.
type fakeEngine struct {
	frames []int16
	last   int
	fed    int
	failOn int // fail every decode once this many units were fed
	delay  int // frames held back before output starts
}

func (e *fakeEngine) Feed(packet []byte) error {
	h, err := codec.ParseADTSHeader(packet)
	if err != nil {
		return err
	}
	if h.FrameLength != len(packet) {
		return fmt.Errorf("frame length %d, packet %d bytes", h.FrameLength, len(packet))
	}
	payload := packet[codec.ADTSHeaderLength:]
	e.fed++
	frames := 1
	if len(payload) > 1 {
		frames = int(payload[1])
	}
	for i := 0; i < frames; i++ {
		e.frames = append(e.frames, int16(payload[0])*100)
	}
	return nil
}

func (e *fakeEngine) Decode(pcm []int16) (engine.Result, error) {
	if e.failOn > 0 && e.fed >= e.failOn {
		return engine.Result{}, &engine.DecodeError{Err: errors.New("corrupt frame")}
	}
	if len(e.frames) <= e.delay {
		return engine.Result{Status: engine.NeedInput}, nil
	}
	amp := e.frames[0]
	e.frames = e.frames[1:]
	for i := 0; i < samplesPerFrame; i++ {
		pcm[i] = amp
	}
	e.last = samplesPerFrame
	return engine.Result{Status: engine.Decoded, Samples: samplesPerFrame}, nil
}

func (e *fakeEngine) DecodedSize() int { return e.last }
func (e *fakeEngine) Close() error     { return nil }

type countingObserver struct {
	kept, dropped, samples int
	onKept                 func()
}

func (o *countingObserver) PacketKept(int) {
	o.kept++
	if o.onKept != nil {
		o.onKept()
	}
}
func (o *countingObserver) PacketDropped()      { o.dropped++ }
func (o *countingObserver) Decoded(samples int) { o.samples += samples }

type pcmCollector struct {
	chunks int
	total  int
}

func (c *pcmCollector) WritePCM(pcm []int16) error {
	c.chunks++
	c.total += len(pcm)
	return nil
}

func keptIDs(t *testing.T, out []byte) []byte {
	t.Helper()
	var ids []byte
	err := codec.SplitADTS(out, func(h codec.FrameHeader, frame []byte) error {
		if h.Profile != stream.ProfileLowComplexity || h.SampleRate != stream.Rate44100 || h.Channels != stream.ChannelStereo {
			return fmt.Errorf("unexpected header %+v", h)
		}
		ids = append(ids, frame[codec.ADTSHeaderLength+2])
		return nil
	})
	if err != nil {
		t.Fatalf("SplitADTS(output) error = %v", err)
	}
	return ids
}

var guards = silence.Classifier{LeadGuard: 3 * time.Second, TrailGuard: 3 * time.Second}

// twentyUnits has silence at 1, 2, 16 and 19 (outside the body) and at 8
// (inside it). Unit p is judged at p+1 seconds of a 20 second program.
func twentyUnits() [][]byte {
	silent := map[int]bool{1: true, 2: true, 8: true, 16: true, 19: true}
	var units [][]byte
	for p := 1; p <= 20; p++ {
		amp := byte(10 + p)
		if silent[p] {
			amp = 0
		}
		units = append(units, unit(amp, 1, byte(p)))
	}
	return units
}

func TestRun_TrimsOnlyUnprotectedSilence(t *testing.T) {
	var out bytes.Buffer
	obs := &countingObserver{}
	res, err := Run(context.Background(), Config{
		Source:     newSource(twentyUnits()),
		Engine:     &fakeEngine{},
		Output:     &out,
		Classifier: guards,
		Observer:   obs,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []byte{3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 17, 18, 20}
	if got := keptIDs(t, out.Bytes()); !bytes.Equal(got, want) {
		t.Fatalf("kept units = %v, want %v", got, want)
	}
	if res.Packets != 20 || res.Kept != 16 || res.Dropped != 4 {
		t.Fatalf("Result = %+v", res)
	}
	if res.BytesWritten != int64(out.Len()) || res.BytesWritten != 16*10 {
		t.Fatalf("BytesWritten = %d, output %d", res.BytesWritten, out.Len())
	}
	if obs.kept != 16 || obs.dropped != 4 || obs.samples != 20*samplesPerFrame {
		t.Fatalf("observer = %+v", obs)
	}
	if len(res.Envelope) != waveform.DefaultBuckets {
		t.Fatalf("envelope length = %d", len(res.Envelope))
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func() ([]byte, []byte) {
		var out bytes.Buffer
		res, err := Run(context.Background(), Config{
			Source:     newSource(twentyUnits()),
			Engine:     &fakeEngine{},
			Output:     &out,
			Classifier: guards,
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return out.Bytes(), res.Envelope
	}
	out1, env1 := run()
	out2, env2 := run()
	if !bytes.Equal(out1, out2) || !bytes.Equal(env1, env2) {
		t.Fatalf("runs differ")
	}
}

func TestRun_SilentProgram(t *testing.T) {
	var units [][]byte
	for i := 1; i <= 30; i++ {
		units = append(units, unit(0, 1, byte(i)))
	}
	var out bytes.Buffer
	res, err := Run(context.Background(), Config{
		Source:     newSource(units),
		Engine:     &fakeEngine{},
		Output:     &out,
		Classifier: guards,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !bytes.Equal(res.Envelope, make([]byte, waveform.DefaultBuckets)) {
		t.Fatalf("envelope = %v, want zeros", res.Envelope)
	}
	// 3 s < elapsed < 27 s keeps units 3 through 25.
	if res.Kept != 23 {
		t.Fatalf("kept = %d, want 23", res.Kept)
	}
}

func TestRun_EmptyTrack(t *testing.T) {
	var out bytes.Buffer
	res, err := Run(context.Background(), Config{
		Source: newSource(nil),
		Engine: &fakeEngine{},
		Output: &out,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Len() != 0 || res.Packets != 0 || len(res.Envelope) != waveform.DefaultBuckets {
		t.Fatalf("Result = %+v, output %d bytes", res, out.Len())
	}
}

func TestRun_DecodeErrorPosition(t *testing.T) {
	var out bytes.Buffer
	res, err := Run(context.Background(), Config{
		Source:     newSource(twentyUnits()),
		Engine:     &fakeEngine{failOn: 5},
		Output:     &out,
		Classifier: guards,
	})
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Run() error = %v, want *Error", err)
	}
	if perr.Op != "decode" || perr.Position != 5 || !errors.Is(err, engine.ErrDecode) {
		t.Fatalf("error = %v", err)
	}
	if got, want := err.Error(), "decode at access unit 5: decode engine error: corrupt frame"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	// Units 1 and 2 are trimmed, 3 and 4 were written before the failure.
	if got := keptIDs(t, out.Bytes()); !bytes.Equal(got, []byte{3, 4}) {
		t.Fatalf("output before failure = %v", got)
	}
	if res.Envelope != nil {
		t.Fatalf("envelope produced on failure")
	}
}

func TestRun_ReadError(t *testing.T) {
	src := newSource(twentyUnits())
	cause := &demux.ContainerParseError{Box: "mdat", Err: errors.New("short read")}
	src.readErr = map[uint32]error{7: cause}

	_, err := Run(context.Background(), Config{
		Source: src,
		Engine: &fakeEngine{},
		Output: &bytes.Buffer{},
	})
	var perr *Error
	if !errors.As(err, &perr) || perr.Op != "read" || perr.Position != 7 {
		t.Fatalf("Run() error = %v", err)
	}
	var cerr *demux.ContainerParseError
	if !errors.As(err, &cerr) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestRun_FrameTooLong(t *testing.T) {
	units := twentyUnits()
	units[3] = make([]byte, codec.MaxPayloadLength+1)
	_, err := Run(context.Background(), Config{
		Source: newSource(units),
		Engine: &fakeEngine{},
		Output: &bytes.Buffer{},
	})
	var perr *Error
	if !errors.As(err, &perr) || perr.Position != 4 || !errors.Is(err, codec.ErrFrameTooLong) {
		t.Fatalf("Run() error = %v, want ErrFrameTooLong at 4", err)
	}
}

func TestRun_UnsupportedProfile(t *testing.T) {
	src := newSource(twentyUnits())
	src.track.Profile = stream.ProfileOther
	var out bytes.Buffer
	_, err := Run(context.Background(), Config{
		Source: src,
		Engine: &fakeEngine{},
		Output: &out,
	})
	if !errors.Is(err, codec.ErrUnsupportedProfile) {
		t.Fatalf("Run() error = %v, want ErrUnsupportedProfile", err)
	}
	if out.Len() != 0 {
		t.Fatalf("output written for unsupported profile")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := Run(ctx, Config{
		Source: newSource(twentyUnits()),
		Engine: &fakeEngine{},
		Output: &out,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if out.Len() != 0 {
		t.Fatalf("output written after cancel")
	}
}

func TestRun_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := &countingObserver{}
	obs.onKept = func() {
		if obs.kept == 3 {
			cancel()
		}
	}
	res, err := Run(ctx, Config{
		Source:     newSource(twentyUnits()),
		Engine:     &fakeEngine{},
		Output:     &bytes.Buffer{},
		Classifier: guards,
		Observer:   obs,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res.Kept != 3 {
		t.Fatalf("kept = %d, want 3", res.Kept)
	}
}

func TestRun_DrainsBufferedFrames(t *testing.T) {
	// Each unit decodes to two frames; the second is drained on the next
	// iteration without a feed.
	var units [][]byte
	for i := 1; i <= 10; i++ {
		units = append(units, unit(50, 2, byte(i)))
	}
	pcm := &pcmCollector{}
	wf := waveform.New(waveform.DefaultSegments, waveform.DefaultBuckets)
	var out bytes.Buffer
	res, err := Run(context.Background(), Config{
		Source:   newSource(units),
		Engine:   &fakeEngine{},
		Output:   &out,
		Waveform: wf,
		PCM:      pcm,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Packets != 10 || res.Kept != 10 {
		t.Fatalf("Result = %+v", res)
	}
	if wf.Len() != 20 || pcm.chunks != 20 || res.Samples != 20*samplesPerFrame {
		t.Fatalf("waveform %d chunks, pcm %d chunks, %d samples", wf.Len(), pcm.chunks, res.Samples)
	}
}

func TestRun_DelayedEngine(t *testing.T) {
	// The engine holds one frame back: the first unit yields no PCM when
	// fed and the final frame never leaves the decoder.
	var out bytes.Buffer
	pcm := &pcmCollector{}
	var units [][]byte
	for i := 1; i <= 20; i++ {
		units = append(units, unit(40, 1, byte(i)))
	}
	res, err := Run(context.Background(), Config{
		Source:     newSource(units),
		Engine:     &fakeEngine{delay: 1},
		Output:     &out,
		Classifier: guards,
		PCM:        pcm,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Dropped != 0 || res.Kept != 20 {
		t.Fatalf("Result = %+v", res)
	}
	if got := keptIDs(t, out.Bytes()); got[0] != 1 {
		t.Fatalf("first kept unit = %d, want 1", got[0])
	}
	if pcm.chunks != 19 {
		t.Fatalf("pcm chunks = %d, want 19", pcm.chunks)
	}
}

// slowEngine stretches every decode call.
type slowEngine struct {
	*fakeEngine
	pause time.Duration
}

func (e slowEngine) Decode(pcm []int16) (engine.Result, error) {
	time.Sleep(e.pause)
	return e.fakeEngine.Decode(pcm)
}

func TestRun_ReportsElapsed(t *testing.T) {
	var units [][]byte
	for i := 1; i <= 10; i++ {
		units = append(units, unit(40, 1, byte(i)))
	}
	s, err := NewSession(Config{
		Source: newSource(units),
		Engine: slowEngine{fakeEngine: &fakeEngine{}, pause: time.Millisecond},
		Output: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 21 decode calls, each sleeping at least a millisecond.
	if res.Elapsed < 20*time.Millisecond {
		t.Fatalf("Elapsed = %s, want at least 20ms", res.Elapsed)
	}

	failing := slowEngine{fakeEngine: &fakeEngine{failOn: 3}, pause: time.Millisecond}
	res, err = Run(context.Background(), Config{Source: newSource(units), Engine: failing, Output: &bytes.Buffer{}})
	if err == nil {
		t.Fatalf("Run() succeeded with a failing engine")
	}
	if res.Elapsed <= 0 {
		t.Fatalf("Elapsed = %s after failure", res.Elapsed)
	}
}

func TestNewSession_RequiresCollaborators(t *testing.T) {
	if _, err := NewSession(Config{}); err == nil {
		t.Fatalf("NewSession() accepted an empty config")
	}
	s, err := NewSession(Config{Source: newSource(nil), Engine: &fakeEngine{}, Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if s.State() != Hunting || s.Position() != 1 {
		t.Fatalf("new session state %v at %d", s.State(), s.Position())
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.State() != Finished {
		t.Fatalf("state = %v, want finished", s.State())
	}
}
