package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tearone/aac-trim/internal/silence"
	"github.com/tearone/aac-trim/internal/waveform"
)

// Settings mirrors aactrim options. File names may contain {0}, which is
// replaced by the input's base name without extension.
type Settings struct {
	Preset     string        `yaml:"preset"`
	LeadGuard  time.Duration `yaml:"lead_guard"`
	TrailGuard time.Duration `yaml:"trail_guard"`

	Segments int `yaml:"segments"`
	Buckets  int `yaml:"buckets"`

	OutputFileName   string `yaml:"output_file"`
	WaveformFileName string `yaml:"waveform_file"`
	ReportFileName   string `yaml:"report_file"`
	PCMFileName      string `yaml:"pcm_file"`
	MetricsFileName  string `yaml:"metrics_file"`

	GenerateReport bool   `yaml:"generate_report"`
	LogLevel       string `yaml:"log_level"`
}

func Default(baseDir string) Settings {
	return Settings{
		Preset:           silence.DefaultPreset,
		LeadGuard:        silence.PresetStandard.LeadGuard,
		TrailGuard:       silence.PresetStandard.TrailGuard,
		Segments:         waveform.DefaultSegments,
		Buckets:          waveform.DefaultBuckets,
		OutputFileName:   filepath.Join(baseDir, "{0}.aac"),
		WaveformFileName: filepath.Join(baseDir, "{0}.waveform"),
		ReportFileName:   filepath.Join(baseDir, "AACTrim_{0}.txt"),
		GenerateReport:   false,
		LogLevel:         "info",
	}
}

// ApplyPreset sets the guard windows from a named preset.
func (s *Settings) ApplyPreset(name string) error {
	c, err := silence.Preset(name)
	if err != nil {
		return err
	}
	s.Preset = name
	s.LeadGuard = c.LeadGuard
	s.TrailGuard = c.TrailGuard
	return nil
}

// Classifier returns the silence policy for these settings.
func (s Settings) Classifier() silence.Classifier {
	return silence.Classifier{LeadGuard: s.LeadGuard, TrailGuard: s.TrailGuard}
}

// Level parses LogLevel.
func (s Settings) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if s.Preset != "" {
		if _, err := silence.Preset(s.Preset); err != nil {
			errs = append(errs, fmt.Errorf("preset: %w", err))
		}
	}
	if s.LeadGuard < 0 {
		errs = append(errs, fmt.Errorf("lead_guard: %s is negative", s.LeadGuard))
	}
	if s.TrailGuard < 0 {
		errs = append(errs, fmt.Errorf("trail_guard: %s is negative", s.TrailGuard))
	}
	if s.Segments <= 0 {
		errs = append(errs, fmt.Errorf("segments: %d must be positive", s.Segments))
	}
	if s.Buckets <= 0 {
		errs = append(errs, fmt.Errorf("buckets: %d must be positive", s.Buckets))
	}
	if s.OutputFileName == "" {
		errs = append(errs, errors.New("output_file: must not be empty"))
	}
	if _, err := s.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// fileSettings distinguishes fields absent from a config file from zero values.
type fileSettings struct {
	Preset           *string        `yaml:"preset"`
	LeadGuard        *time.Duration `yaml:"lead_guard"`
	TrailGuard       *time.Duration `yaml:"trail_guard"`
	Segments         *int           `yaml:"segments"`
	Buckets          *int           `yaml:"buckets"`
	OutputFileName   *string        `yaml:"output_file"`
	WaveformFileName *string        `yaml:"waveform_file"`
	ReportFileName   *string        `yaml:"report_file"`
	PCMFileName      *string        `yaml:"pcm_file"`
	MetricsFileName  *string        `yaml:"metrics_file"`
	GenerateReport   *bool          `yaml:"generate_report"`
	LogLevel         *string        `yaml:"log_level"`
}

// Load overlays the YAML file at path onto base. A preset named in the file
// is applied before any explicit guard values.
func Load(path string, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	var f fileSettings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}

	s := base
	if f.Preset != nil {
		if err := s.ApplyPreset(*f.Preset); err != nil {
			return base, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	setIf(&s.LeadGuard, f.LeadGuard)
	setIf(&s.TrailGuard, f.TrailGuard)
	setIf(&s.Segments, f.Segments)
	setIf(&s.Buckets, f.Buckets)
	setIf(&s.OutputFileName, f.OutputFileName)
	setIf(&s.WaveformFileName, f.WaveformFileName)
	setIf(&s.ReportFileName, f.ReportFileName)
	setIf(&s.PCMFileName, f.PCMFileName)
	setIf(&s.MetricsFileName, f.MetricsFileName)
	setIf(&s.GenerateReport, f.GenerateReport)
	setIf(&s.LogLevel, f.LogLevel)
	return s, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Save writes s as YAML.
func Save(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ExpandName replaces {0} in pattern with the base name of input, minus its
// extension.
func ExpandName(pattern, input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(pattern, "{0}", base)
}
