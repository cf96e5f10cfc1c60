package aactrim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tearone/aac-trim/internal/demux"
	"github.com/tearone/aac-trim/internal/engine"
	"github.com/tearone/aac-trim/internal/pipeline"
	"github.com/tearone/aac-trim/internal/report"
	internalsettings "github.com/tearone/aac-trim/internal/settings"
	"github.com/tearone/aac-trim/internal/stream"
	"github.com/tearone/aac-trim/internal/waveform"
	"github.com/tearone/aac-trim/internal/wavout"
)

// Stage represents a coarse progress stage for Run.
type Stage string

const (
	StageStarting        Stage = "starting"
	StageOpened          Stage = "opened"
	StageDecoding        Stage = "decoding"
	StageDecoded         Stage = "decoded"
	StageRenderingReport Stage = "rendering_report"
	StageDone            Stage = "done"
)

// ProgressEvent is emitted when Run transitions between major phases.
type ProgressEvent struct {
	Stage       Stage
	Path        string
	AccessUnits uint32
	Kept        int
	Dropped     int
	Elapsed     time.Duration
	OccurredAt  time.Time
}

// Settings are library-facing trim and output controls.
type Settings struct {
	Preset           string
	LeadGuard        time.Duration
	TrailGuard       time.Duration
	Segments         int
	Buckets          int
	OutputFileName   string
	WaveformFileName string
	ReportFileName   string
	PCMFileName      string
	GenerateReport   bool
}

// DefaultSettings returns library defaults equivalent to CLI defaults.
func DefaultSettings(baseDir string) Settings {
	return fromInternalSettings(internalsettings.Default(baseDir))
}

// Observer receives per-packet outcomes, e.g. for metrics.
type Observer interface {
	PacketKept(bytes int)
	PacketDropped()
	Decoded(samples int)
}

// Options configure one Run call for a single input file.
type Options struct {
	Path         string
	OutputPath   string
	WaveformPath string
	ReportPath   string
	PCMPath      string
	Settings     Settings
	Logger       *slog.Logger
	Observer     Observer
	OnProgress   func(ProgressEvent)

	newEngine  func() (engine.Engine, error)
	openSource func(io.ReadSeeker) (pipeline.Source, error)
}

// TrackInfo describes the AAC track that was trimmed.
type TrackInfo struct {
	ID          uint32
	Codec       string
	Description string
	SampleRate  int
	Channels    int
	AccessUnits uint32
	Length      time.Duration
}

// Result contains the trim outcome plus rendered report content.
type Result struct {
	Track        TrackInfo
	Packets      int
	Kept         int
	Dropped      int
	BytesWritten int64
	Samples      int64
	Envelope     []byte
	OutputPath   string
	WaveformPath string
	PCMPath      string
	Report       string
	ReportPath   string
	Elapsed      time.Duration
}

// Run trims one file: it writes the kept ADTS stream and the waveform, and
// optionally a PCM dump and a report. On failure the partially written
// output is left in place and no waveform is written.
func Run(ctx context.Context, options Options) (Result, error) {
	if options.Path == "" {
		return Result{}, errors.New("path is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cfg := toInternalSettings(options.Settings)
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	log := options.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("input", options.Path)

	start := time.Now()
	emit(options.OnProgress, ProgressEvent{
		Stage:      StageStarting,
		Path:       options.Path,
		OccurredAt: time.Now(),
	})

	in, err := os.Open(options.Path)
	if err != nil {
		return Result{}, err
	}
	defer in.Close()

	openSource := options.openSource
	if openSource == nil {
		openSource = openDemuxer
	}
	src, err := openSource(in)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", options.Path, err)
	}
	track := src.Track()

	emit(options.OnProgress, ProgressEvent{
		Stage:       StageOpened,
		Path:        options.Path,
		AccessUnits: track.SampleCount,
		OccurredAt:  time.Now(),
	})
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	newEngine := options.newEngine
	if newEngine == nil {
		newEngine = func() (engine.Engine, error) { return engine.NewFDK() }
	}
	eng, err := newEngine()
	if err != nil {
		return Result{}, err
	}
	defer eng.Close()

	result := Result{
		OutputPath:   pathOr(options.OutputPath, cfg.OutputFileName, options.Path),
		WaveformPath: pathOr(options.WaveformPath, cfg.WaveformFileName, options.Path),
		PCMPath:      pathOr(options.PCMPath, cfg.PCMFileName, options.Path),
	}

	out, err := os.Create(result.OutputPath)
	if err != nil {
		return Result{}, err
	}
	defer out.Close()
	bw := bufio.NewWriter(out)

	var pcm *wavout.Writer
	if result.PCMPath != "" {
		audio := track.Audio()
		if pcm, err = wavout.Create(result.PCMPath, audio.SampleRate, audio.ChannelCount); err != nil {
			return Result{}, err
		}
		defer pcm.Close()
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:       StageDecoding,
		Path:        options.Path,
		AccessUnits: track.SampleCount,
		OccurredAt:  time.Now(),
	})

	pcfg := pipeline.Config{
		Source:     src,
		Engine:     eng,
		Output:     bw,
		Classifier: cfg.Classifier(),
		Waveform:   waveform.New(cfg.Segments, cfg.Buckets),
		Observer:   options.Observer,
		Logger:     log,
	}
	if pcm != nil {
		pcfg.PCM = pcm
	}
	res, runErr := pipeline.Run(ctx, pcfg)
	if err := bw.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("write %s: %w", result.OutputPath, err)
	}
	if runErr != nil {
		return Result{}, runErr
	}
	if err := out.Close(); err != nil {
		return Result{}, err
	}
	if pcm != nil {
		if err := pcm.Close(); err != nil {
			return Result{}, err
		}
		log.Info("pcm written", "path", result.PCMPath, "samples", pcm.Samples())
	}

	result.Track = buildTrackInfo(track)
	result.Packets = res.Packets
	result.Kept = res.Kept
	result.Dropped = res.Dropped
	result.BytesWritten = res.BytesWritten
	result.Samples = res.Samples
	result.Envelope = res.Envelope

	emit(options.OnProgress, ProgressEvent{
		Stage:       StageDecoded,
		Path:        options.Path,
		AccessUnits: track.SampleCount,
		Kept:        res.Kept,
		Dropped:     res.Dropped,
		Elapsed:     time.Since(start),
		OccurredAt:  time.Now(),
	})

	if result.WaveformPath != "" {
		if err := os.WriteFile(result.WaveformPath, res.Envelope, 0o644); err != nil {
			return Result{}, err
		}
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageRenderingReport,
		Path:       options.Path,
		OccurredAt: time.Now(),
	})
	run := report.Run{
		Input:    options.Path,
		Output:   result.OutputPath,
		Waveform: result.WaveformPath,
		PCM:      result.PCMPath,
		Result:   res,
	}
	result.Report = report.Build(run, cfg)
	if cfg.GenerateReport || options.ReportPath != "" {
		if result.ReportPath, err = report.WriteReport(options.ReportPath, run, cfg); err != nil {
			return Result{}, err
		}
	}

	result.Elapsed = time.Since(start)
	emit(options.OnProgress, ProgressEvent{
		Stage:       StageDone,
		Path:        options.Path,
		AccessUnits: track.SampleCount,
		Kept:        res.Kept,
		Dropped:     res.Dropped,
		Elapsed:     result.Elapsed,
		OccurredAt:  time.Now(),
	})
	return result, nil
}

func openDemuxer(r io.ReadSeeker) (pipeline.Source, error) {
	return demux.Open(r)
}

func emit(cb func(ProgressEvent), event ProgressEvent) {
	if cb != nil {
		cb(event)
	}
}

// pathOr returns explicit, or pattern expanded for input.
func pathOr(explicit, pattern, input string) string {
	if explicit != "" {
		return explicit
	}
	if pattern == "" {
		return ""
	}
	return internalsettings.ExpandName(pattern, input)
}

func buildTrackInfo(track stream.Track) TrackInfo {
	audio := track.Audio()
	return TrackInfo{
		ID:          track.ID,
		Codec:       audio.CodecName(),
		Description: audio.Description(),
		SampleRate:  audio.SampleRate,
		Channels:    audio.ChannelCount,
		AccessUnits: track.SampleCount,
		Length:      track.Length(),
	}
}

func fromInternalSettings(s internalsettings.Settings) Settings {
	return Settings{
		Preset:           s.Preset,
		LeadGuard:        s.LeadGuard,
		TrailGuard:       s.TrailGuard,
		Segments:         s.Segments,
		Buckets:          s.Buckets,
		OutputFileName:   s.OutputFileName,
		WaveformFileName: s.WaveformFileName,
		ReportFileName:   s.ReportFileName,
		PCMFileName:      s.PCMFileName,
		GenerateReport:   s.GenerateReport,
	}
}

func toInternalSettings(s Settings) internalsettings.Settings {
	return internalsettings.Settings{
		Preset:           s.Preset,
		LeadGuard:        s.LeadGuard,
		TrailGuard:       s.TrailGuard,
		Segments:         s.Segments,
		Buckets:          s.Buckets,
		OutputFileName:   s.OutputFileName,
		WaveformFileName: s.WaveformFileName,
		ReportFileName:   s.ReportFileName,
		PCMFileName:      s.PCMFileName,
		GenerateReport:   s.GenerateReport,
		LogLevel:         "info",
	}
}
