package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SpectralMetrics covers the producer side: sample source, FFT pipeline and detector fan-out
type SpectralMetrics struct {
	FramesTotal    prometheus.Counter
	FrameDuration  prometheus.Histogram
	SourceErrors   *prometheus.CounterVec
	SourceOverruns prometheus.Counter
	SampleRate     prometheus.Gauge
}

// NewSpectralMetrics creates and registers the producer metrics
func NewSpectralMetrics(registry *prometheus.Registry) (*SpectralMetrics, error) {
	m := &SpectralMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register spectral metrics: %w", err)
	}
	return m, nil
}

func (m *SpectralMetrics) initMetrics() {
	m.FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "frames_total",
		Help:      "Total number of spectral frames produced",
	})
	m.FrameDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "frame_processing_seconds",
		Help:      "Time spent transforming one frame and running detectors on it",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	m.SourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "source_errors_total",
		Help:      "Sample source failures by source kind",
	}, []string{"kind"})
	m.SourceOverruns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "source_overruns_total",
		Help:      "Capture periods dropped because the producer fell behind",
	})
	m.SampleRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "sample_rate_hz",
		Help:      "Sample rate of the active source",
	})
}

// ObserveFrame records one produced frame
func (m *SpectralMetrics) ObserveFrame(seconds float64) {
	m.FramesTotal.Inc()
	m.FrameDuration.Observe(seconds)
}

// RecordSourceError counts a fatal source failure
func (m *SpectralMetrics) RecordSourceError(kind string) {
	m.SourceErrors.WithLabelValues(kind).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *SpectralMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesTotal.Describe(ch)
	m.FrameDuration.Describe(ch)
	m.SourceErrors.Describe(ch)
	m.SourceOverruns.Describe(ch)
	m.SampleRate.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SpectralMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesTotal.Collect(ch)
	m.FrameDuration.Collect(ch)
	m.SourceErrors.Collect(ch)
	m.SourceOverruns.Collect(ch)
	m.SampleRate.Collect(ch)
}
