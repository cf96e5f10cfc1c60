package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tearone/aac-trim/internal/pipeline"
	"github.com/tearone/aac-trim/internal/settings"
	"github.com/tearone/aac-trim/internal/util"
)

const productVersion = "1.0.0"

const envelopeRows = 8

// Run describes one finished trim for reporting.
type Run struct {
	Input    string
	Output   string
	Waveform string
	PCM      string
	Result   pipeline.Result
}

var placeholder = regexp.MustCompile(`\{\d+\}`)

// WriteReport renders run and writes it to path, or to the expanded
// ReportFileName when path is empty. "-" writes to stdout. An existing report
// is kept with a Unix timestamp suffix.
func WriteReport(path string, run Run, s settings.Settings) (string, error) {
	reportName := s.ReportFileName
	if strings.Contains(reportName, "{0}") {
		reportName = settings.ExpandName(reportName, run.Input)
	} else if placeholder.MatchString(reportName) {
		reportName = placeholder.ReplaceAllString(reportName, "")
	}
	if reportName != "-" && filepath.Ext(reportName) == "" {
		reportName += ".txt"
	}
	if path != "" {
		reportName = path
	}

	output := Build(run, s)
	if reportName == "-" {
		_, err := os.Stdout.WriteString(output)
		return reportName, err
	}
	if _, err := os.Stat(reportName); err == nil {
		backup := fmt.Sprintf("%s.%d", reportName, time.Now().Unix())
		_ = os.Rename(reportName, backup)
	}
	return reportName, os.WriteFile(reportName, []byte(output), 0o644)
}

// Build renders the plain-text report.
func Build(run Run, s settings.Settings) string {
	var b strings.Builder
	res := run.Result
	track := res.Track
	audio := track.Audio()

	b.WriteString("FILE INFO:\n\n\n")
	fmt.Fprintf(&b, "%-16s%s\n", "Input:", run.Input)
	fmt.Fprintf(&b, "%-16s%s\n", "Output:", run.Output)
	if run.Waveform != "" {
		fmt.Fprintf(&b, "%-16s%s\n", "Waveform:", run.Waveform)
	}
	if run.PCM != "" {
		fmt.Fprintf(&b, "%-16s%s\n", "PCM:", run.PCM)
	}
	fmt.Fprintf(&b, "%-16s%s\n\n\n", "aactrim:", productVersion)

	b.WriteString("TRACK:\n\n\n")
	fmt.Fprintf(&b, "%-24s%-16s%-16s\n", "Codec", "Track", "Description")
	fmt.Fprintf(&b, "%-24s%-16s%-16s\n", "-----", "-----", "-----------")
	fmt.Fprintf(&b, "%-24s%-16d%-16s\n", audio.CodecName(), track.ID, audio.Description())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%-24s%s (h:m:s.ms)\n", "Length:", util.FormatDuration(track.Length(), true))
	fmt.Fprintf(&b, "%-24s%s (h:m:s)\n", "Program Length:", util.FormatDuration(track.MovieLength(), false))
	fmt.Fprintf(&b, "%-24s%s\n", "Access Units:", util.FormatNumber(int64(track.SampleCount)))
	b.WriteString("\n\n")

	b.WriteString("TRIM:\n\n\n")
	guards := s.Classifier()
	preset := s.Preset
	if preset == "" {
		preset = "custom"
	}
	fmt.Fprintf(&b, "%-24s%s (%s)\n", "Guards:", guards, preset)
	fmt.Fprintf(&b, "%-24s%s\n", "Packets:", util.FormatNumber(int64(res.Packets)))
	fmt.Fprintf(&b, "%-24s%s (%.2f%%)\n", "Kept:", util.FormatNumber(int64(res.Kept)), util.Percent(res.Kept, res.Packets))
	fmt.Fprintf(&b, "%-24s%s (%.2f%%)\n", "Dropped:", util.FormatNumber(int64(res.Dropped)), util.Percent(res.Dropped, res.Packets))
	fmt.Fprintf(&b, "%-24s%s bytes\n", "Written:", util.FormatNumber(res.BytesWritten))
	fmt.Fprintf(&b, "%-24s%s\n", "Decoded Samples:", util.FormatNumber(res.Samples))
	fmt.Fprintf(&b, "%-24s%s\n", "Elapsed:", res.Elapsed.Round(time.Millisecond))

	if len(res.Envelope) > 0 {
		b.WriteString("\n\nWAVEFORM:\n\n\n")
		writeEnvelope(&b, res.Envelope)
	}
	return b.String()
}

// writeEnvelope draws the envelope as columns of '#', one per bucket.
func writeEnvelope(b *strings.Builder, envelope []byte) {
	for row := envelopeRows; row > 0; row-- {
		threshold := (row - 1) * 256 / envelopeRows
		for _, v := range envelope {
			if v > 0 && int(v) >= threshold {
				b.WriteByte('#')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString("|\n")
	}
	b.WriteString(strings.Repeat("-", len(envelope)))
	b.WriteString("+\n")
}
