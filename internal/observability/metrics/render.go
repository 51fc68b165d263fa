package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RenderMetrics covers the frame queue and the tile canvas
type RenderMetrics struct {
	QueueDepth    prometheus.Gauge
	QueuePushed   prometheus.Counter
	QueueDropped  prometheus.Counter
	RowsInserted  prometheus.Counter
	TextureRow    prometheus.Gauge
	DrainDuration prometheus.Histogram
}

// NewRenderMetrics creates and registers the render-side metrics
func NewRenderMetrics(registry *prometheus.Registry) (*RenderMetrics, error) {
	m := &RenderMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register render metrics: %w", err)
	}
	return m, nil
}

func (m *RenderMetrics) initMetrics() {
	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "frame_queue_depth",
		Help:      "Rows waiting in the frame queue",
	})
	m.QueuePushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "frame_queue_pushed_total",
		Help:      "Rows pushed into the frame queue",
	})
	m.QueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "frame_queue_dropped_total",
		Help:      "Oldest rows discarded because the queue was full",
	})
	m.RowsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "canvas_rows_inserted_total",
		Help:      "Rows written into the tile canvas",
	})
	m.TextureRow = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "canvas_texture_row",
		Help:      "Global index of the newest row on the canvas",
	})
	m.DrainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "render_drain_seconds",
		Help:      "Time spent draining the frame queue into the canvas per render tick",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
	})
}

// Describe implements the prometheus.Collector interface.
func (m *RenderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.QueueDepth.Describe(ch)
	m.QueuePushed.Describe(ch)
	m.QueueDropped.Describe(ch)
	m.RowsInserted.Describe(ch)
	m.TextureRow.Describe(ch)
	m.DrainDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *RenderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.QueueDepth.Collect(ch)
	m.QueuePushed.Collect(ch)
	m.QueueDropped.Collect(ch)
	m.RowsInserted.Collect(ch)
	m.TextureRow.Collect(ch)
	m.DrainDuration.Collect(ch)
}
