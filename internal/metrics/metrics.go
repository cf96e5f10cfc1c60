package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of one aactrim invocation on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	PacketsKept    prometheus.Counter
	PacketsDropped prometheus.Counter
	BytesWritten   prometheus.Counter
	DecodedSamples prometheus.Counter

	Files          *prometheus.CounterVec
	DecodeDuration prometheus.Histogram
	EnvelopePeak   prometheus.Gauge
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		PacketsKept: factory.NewCounter(prometheus.CounterOpts{
			Name: "aactrim_packets_kept_total",
			Help: "Total number of ADTS packets written to the output",
		}),
		PacketsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "aactrim_packets_dropped_total",
			Help: "Total number of packets trimmed as lead-in or trail-out silence",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "aactrim_output_bytes_total",
			Help: "Total number of ADTS bytes written",
		}),
		DecodedSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "aactrim_decoded_samples_total",
			Help: "Total number of interleaved PCM samples decoded",
		}),
		Files: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aactrim_files_total",
			Help: "Total number of input files by outcome",
		}, []string{"result"}),
		DecodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aactrim_decode_duration_seconds",
			Help:    "Wall time spent decoding one file",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		EnvelopePeak: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aactrim_envelope_peak",
			Help: "Largest envelope byte of the last finished file",
		}),
	}
}

// PacketKept records a written packet of n bytes.
func (m *Metrics) PacketKept(n int) {
	m.PacketsKept.Inc()
	m.BytesWritten.Add(float64(n))
}

// PacketDropped records a trimmed packet.
func (m *Metrics) PacketDropped() {
	m.PacketsDropped.Inc()
}

// Decoded records n decoded samples.
func (m *Metrics) Decoded(n int) {
	m.DecodedSamples.Add(float64(n))
}

// RecordFile records the outcome and duration of one file.
func (m *Metrics) RecordFile(err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Files.WithLabelValues(result).Inc()
	m.DecodeDuration.Observe(elapsed.Seconds())
}

// SetEnvelope records the peak of a finished envelope.
func (m *Metrics) SetEnvelope(envelope []byte) {
	peak := 0
	for _, v := range envelope {
		peak = max(peak, int(v))
	}
	m.EnvelopePeak.Set(float64(peak))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
