package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/tearone/aac-trim/internal/metrics"
	"github.com/tearone/aac-trim/internal/settings"
	"github.com/tearone/aac-trim/internal/silence"
	"github.com/tearone/aac-trim/internal/util"
	"github.com/tearone/aac-trim/pkg/aactrim"
)

var version = "dev"

const repoSlug = "tearone/aac-trim"

type rootOptions struct {
	path        string
	output      string
	waveform    string
	reportFile  string
	pcmOut      string
	metricsFile string
	configFile  string
	preset      string
	logLevel    string
	leadGuard   time.Duration
	trailGuard  time.Duration
	segments    int
	buckets     int
	genReport   bool
	stdout      bool
	selfUpdate  bool
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:           "aactrim <path>",
	Short:         "Trim lead-in and trail-out silence from AAC tracks.",
	Long:          "Re-frame the AAC track of an MP4 file as ADTS, dropping silent packets at the start and end, and write a waveform envelope of what was kept.",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.aac>...",
	Short: "Summarize ADTS streams",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			res, err := aactrim.Inspect(path)
			if err != nil {
				return err
			}
			writeInspect(cmd.OutOrStdout(), res)
		}
		return nil
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List silence guard presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range silence.PresetNames() {
			c, _ := silence.Preset(name)
			marker := " "
			if name == silence.DefaultPreset {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s%s\n", marker, name, c)
		}
		return nil
	},
	DisableFlagsInUseLine: true,
}

var configCmd = &cobra.Command{
	Use:   "config <file.yaml>",
	Short: "Write the effective settings as YAML",
	Long:  "Write the settings resulting from defaults, --config and the other flags to a YAML file usable with --config.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildSettings(cmd)
		if err != nil {
			return err
		}
		if err := settings.Save(args[0], s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Settings written: %s\n", args[0])
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update aactrim",
	Long:  "Update aactrim to latest version (release builds only).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSelfUpdate(cmd.Context(), cmd.OutOrStdout())
	},
	DisableFlagsInUseLine: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "aactrim version: %s\n", version)
		return nil
	},
	DisableFlagsInUseLine: true,
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML settings file")
	rootCmd.PersistentFlags().StringVar(&opts.preset, "preset", silence.DefaultPreset, "Silence guard preset (see 'aactrim presets')")
	rootCmd.PersistentFlags().DurationVar(&opts.leadGuard, "lead-guard", silence.PresetStandard.LeadGuard, "Silence is trimmed only before this program time")
	rootCmd.PersistentFlags().DurationVar(&opts.trailGuard, "trail-guard", silence.PresetStandard.TrailGuard, "Silence is trimmed only within this distance of the end")
	rootCmd.PersistentFlags().IntVar(&opts.segments, "segments", 9, "Waveform segments per decoded chunk")
	rootCmd.PersistentFlags().IntVar(&opts.buckets, "buckets", 49, "Waveform envelope length in bytes")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output ADTS filename, {0} is the input name")
	rootCmd.Flags().StringVar(&opts.waveform, "waveform", "", "Waveform filename, {0} is the input name")
	rootCmd.Flags().StringVar(&opts.reportFile, "report", "", "Report filename, implies --generate-report")
	rootCmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Write report to stdout")
	rootCmd.Flags().BoolVarP(&opts.genReport, "generate-report", "r", false, "Write a trim report next to the output")
	rootCmd.Flags().StringVar(&opts.pcmOut, "pcm-out", "", "Also write the kept PCM as a WAV file, {0} is the input name")
	rootCmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format")
	rootCmd.Flags().BoolVar(&opts.selfUpdate, "self-update", false, "Update aactrim to latest version (release builds only)")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "aactrim: %s\n", err.Error())
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if opts.selfUpdate {
		return runSelfUpdate(cmd.Context(), cmd.OutOrStdout())
	}
	if len(args) == 0 {
		return errors.New("requires a file or directory argument")
	}
	opts.path = args[0]

	s, err := buildSettings(cmd)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	level, _ := s.Level()
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	m := metrics.New()
	runErr := runForPath(cmd.Context(), cmd.OutOrStdout(), opts.path, s, log, m)
	if s.MetricsFileName != "" {
		if err := m.WriteTextfile(s.MetricsFileName); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// buildSettings layers defaults, the config file, the preset and explicit
// flags, in that order.
func buildSettings(cmd *cobra.Command) (settings.Settings, error) {
	cwd, _ := os.Getwd()
	s := settings.Default(cwd)

	if opts.configFile != "" {
		loaded, err := settings.Load(opts.configFile, s)
		if err != nil {
			return s, err
		}
		s = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("preset") {
		if err := s.ApplyPreset(opts.preset); err != nil {
			return s, err
		}
	}
	if flags.Changed("lead-guard") {
		s.LeadGuard = opts.leadGuard
	}
	if flags.Changed("trail-guard") {
		s.TrailGuard = opts.trailGuard
	}
	if flags.Changed("segments") {
		s.Segments = opts.segments
	}
	if flags.Changed("buckets") {
		s.Buckets = opts.buckets
	}
	if flags.Changed("log-level") {
		s.LogLevel = opts.logLevel
	}
	if opts.output != "" {
		s.OutputFileName = opts.output
	}
	if opts.waveform != "" {
		s.WaveformFileName = opts.waveform
	}
	if opts.pcmOut != "" {
		s.PCMFileName = opts.pcmOut
	}
	if opts.metricsFile != "" {
		s.MetricsFileName = opts.metricsFile
	}
	if flags.Changed("generate-report") {
		s.GenerateReport = opts.genReport
	}
	if opts.reportFile != "" {
		s.ReportFileName = opts.reportFile
		s.GenerateReport = true
	}
	if opts.stdout {
		s.ReportFileName = "-"
		s.GenerateReport = true
	}
	return s, nil
}

func runSelfUpdate(ctx context.Context, out io.Writer) error {
	if version == "" || version == "dev" {
		return errors.New("self-update is only available in release builds")
	}

	if _, err := semver.ParseTolerant(version); err != nil {
		return fmt.Errorf("could not parse version: %w", err)
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repoSlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found from github repository", repoSlug, version)
	}

	if latest.LessOrEqual(version) {
		fmt.Fprintf(out, "Current binary is the latest version: %s\n", version)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version: %s\n", latest.Version())
	return nil
}

var inputExtensions = map[string]bool{
	".m4a": true,
	".m4b": true,
	".mp4": true,
}

// collectInputs returns path itself for a file, or every MP4 audio file
// below a directory in walk order.
func collectInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	inputs := []string{}
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && inputExtensions[strings.ToLower(filepath.Ext(p))] {
			inputs = append(inputs, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no .m4a, .m4b or .mp4 files under %s", path)
	}
	return inputs, nil
}

func runForPath(ctx context.Context, out io.Writer, path string, s settings.Settings, log *slog.Logger, m *metrics.Metrics) error {
	inputs, err := collectInputs(path)
	if err != nil {
		return err
	}
	if len(inputs) > 1 {
		for name, pattern := range map[string]string{
			"output":   s.OutputFileName,
			"waveform": s.WaveformFileName,
			"pcm-out":  s.PCMFileName,
		} {
			if pattern != "" && !strings.Contains(pattern, "{0}") {
				return fmt.Errorf("--%s must contain {0} when trimming %d files", name, len(inputs))
			}
		}
	}

	var failed []error
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := trimFile(ctx, input, s, log, m)
		if err != nil {
			if len(inputs) == 1 || errors.Is(err, context.Canceled) {
				return err
			}
			log.Error("trim failed", "input", input, "error", err)
			failed = append(failed, fmt.Errorf("%s: %w", input, err))
			continue
		}
		fmt.Fprintf(out, "Output written: %s (%s of %s packets kept)\n",
			res.OutputPath, util.FormatNumber(int64(res.Kept)), util.FormatNumber(int64(res.Packets)))
		if res.ReportPath != "" && res.ReportPath != "-" {
			fmt.Fprintf(out, "Report written: %s\n", res.ReportPath)
		}
	}
	return errors.Join(failed...)
}

func trimFile(ctx context.Context, input string, s settings.Settings, log *slog.Logger, m *metrics.Metrics) (aactrim.Result, error) {
	start := time.Now()
	res, err := aactrim.Run(ctx, aactrim.Options{
		Path:     input,
		Settings: librarySettings(s),
		Logger:   log,
		Observer: m,
	})
	m.RecordFile(err, time.Since(start))
	if err == nil {
		m.SetEnvelope(res.Envelope)
	}
	return res, err
}

func librarySettings(s settings.Settings) aactrim.Settings {
	return aactrim.Settings{
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

func writeInspect(w io.Writer, res aactrim.InspectResult) {
	fmt.Fprintf(w, "%s\n", res.Path)
	fmt.Fprintf(w, "  %-14s%s\n", "Audio:", res.Description)
	fmt.Fprintf(w, "  %-14s%s\n", "Frames:", util.FormatNumber(int64(res.Frames)))
	fmt.Fprintf(w, "  %-14s%s\n", "Payload:", util.FormatBytes(res.PayloadBytes))
	fmt.Fprintf(w, "  %-14s%s\n", "Length:", util.FormatDuration(res.Length, true))
	if !res.Consistent {
		fmt.Fprintf(w, "  %-14s%s\n", "Warning:", "frame parameters change mid-stream")
	}
}
