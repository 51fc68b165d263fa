// Package observability wires the Prometheus collectors for every pysdr component.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Spectral  *metrics.SpectralMetrics
	Render    *metrics.RenderMetrics
	Detector  *metrics.DetectorMetrics
	Events    *metrics.EventMetrics
	MQTT      *metrics.MQTTMetrics
	Datastore *metrics.DatastoreMetrics
	HTTP      *metrics.HTTPMetrics
}

// NewMetrics creates a registry and initialises every collector on it
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}
	var err error
	if m.Spectral, err = metrics.NewSpectralMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create spectral metrics: %w", err)
	}
	if m.Render, err = metrics.NewRenderMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create render metrics: %w", err)
	}
	if m.Detector, err = metrics.NewDetectorMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create detector metrics: %w", err)
	}
	if m.Events, err = metrics.NewEventMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create event metrics: %w", err)
	}
	if m.MQTT, err = metrics.NewMQTTMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}
	if m.Datastore, err = metrics.NewDatastoreMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}
	if m.HTTP, err = metrics.NewHTTPMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	return m, nil
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Snapshot is a compact status summary for the API and the terminal status line
type Snapshot struct {
	Frames        float64 `json:"frames"`
	QueueDepth    float64 `json:"queue_depth"`
	QueueDropped  float64 `json:"queue_dropped"`
	TextureRow    float64 `json:"texture_row"`
	LiveEvents    float64 `json:"live_events"`
	DetectorFault float64 `json:"detector_faults"`
}

// Snapshot reads the current values of the headline metrics
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Frames:        metricValue(m.Spectral.FramesTotal),
		QueueDepth:    metricValue(m.Render.QueueDepth),
		QueueDropped:  metricValue(m.Render.QueueDropped),
		TextureRow:    metricValue(m.Render.TextureRow),
		LiveEvents:    metricValue(m.Events.Live),
		DetectorFault: m.familySum("pysdr_detector_faults_total"),
	}
}

// metricValue reads a single counter or gauge
func metricValue(c prometheus.Metric) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	if pb.Counter != nil {
		return pb.GetCounter().GetValue()
	}
	return pb.GetGauge().GetValue()
}

// familySum adds up every series of a counter family
func (m *Metrics) familySum(name string) float64 {
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
	}
	return sum
}
