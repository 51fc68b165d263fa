package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics covers detector script execution
type DetectorMetrics struct {
	framesProcessed *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	faults          *prometheus.CounterVec
	eventsEmitted   *prometheus.CounterVec
	enabled         *prometheus.GaugeVec
}

// NewDetectorMetrics creates and registers the detector metrics
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

func (m *DetectorMetrics) initMetrics() {
	m.framesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "detector_frames_total",
		Help:      "Frames handed to each detector",
	}, []string{"detector"})
	m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "detector_run_seconds",
		Help:      "Per-frame run time of each detector",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14),
	}, []string{"detector"})
	m.faults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "detector_faults_total",
		Help:      "Detectors disabled after a fault",
	}, []string{"detector"})
	m.eventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "detector_events_total",
		Help:      "Event updates emitted by each detector",
	}, []string{"detector"})
	m.enabled = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "detector_enabled",
		Help:      "1 while the detector is running, 0 once disabled",
	}, []string{"detector"})
}

// RecordRun records one successful per-frame call
func (m *DetectorMetrics) RecordRun(detector string, seconds float64) {
	m.framesProcessed.WithLabelValues(detector).Inc()
	m.runDuration.WithLabelValues(detector).Observe(seconds)
}

// RecordFault records a detector being disabled
func (m *DetectorMetrics) RecordFault(detector string) {
	m.faults.WithLabelValues(detector).Inc()
	m.enabled.WithLabelValues(detector).Set(0)
}

// RecordEvent counts an emitted event update
func (m *DetectorMetrics) RecordEvent(detector string) {
	m.eventsEmitted.WithLabelValues(detector).Inc()
}

// SetEnabled marks a detector as attached
func (m *DetectorMetrics) SetEnabled(detector string) {
	m.enabled.WithLabelValues(detector).Set(1)
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesProcessed.Describe(ch)
	m.runDuration.Describe(ch)
	m.faults.Describe(ch)
	m.eventsEmitted.Describe(ch)
	m.enabled.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.framesProcessed.Collect(ch)
	m.runDuration.Collect(ch)
	m.faults.Collect(ch)
	m.eventsEmitted.Collect(ch)
	m.enabled.Collect(ch)
}
