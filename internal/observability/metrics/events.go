package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics covers the correlator, the event bus and out-of-band ingestion
type EventMetrics struct {
	Live           prometheus.Gauge
	Created        prometheus.Counter
	Updated        prometheus.Counter
	Pruned         prometheus.Counter
	BusDropped     prometheus.Counter
	ingestMessages *prometheus.CounterVec
}

// NewEventMetrics creates and registers the event metrics
func NewEventMetrics(registry *prometheus.Registry) (*EventMetrics, error) {
	m := &EventMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register event metrics: %w", err)
	}
	return m, nil
}

func (m *EventMetrics) initMetrics() {
	m.Live = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "events_live",
		Help:      "Events currently held by the correlator",
	})
	m.Created = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "events_created_total",
		Help:      "New (identity, start row) entries added to the correlator",
	})
	m.Updated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "events_updated_total",
		Help:      "In-place replacements of an existing entry",
	})
	m.Pruned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "events_pruned_total",
		Help:      "Entries dropped after scrolling out of the retained window",
	})
	m.BusDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "event_bus_dropped_total",
		Help:      "Lifecycle notifications dropped because the bus buffer was full",
	})
	m.ingestMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "ingest_messages_total",
		Help:      "Out-of-band event messages by transport and outcome",
	}, []string{"transport", "status"})
}

// RecordIngest counts one ingested message
func (m *EventMetrics) RecordIngest(transport, status string) {
	m.ingestMessages.WithLabelValues(transport, status).Inc()
}

// IngestMessages exposes the ingest counter vector for inspection
func (m *EventMetrics) IngestMessages() *prometheus.CounterVec {
	return m.ingestMessages
}

// Describe implements the prometheus.Collector interface.
func (m *EventMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Live.Describe(ch)
	m.Created.Describe(ch)
	m.Updated.Describe(ch)
	m.Pruned.Describe(ch)
	m.BusDropped.Describe(ch)
	m.ingestMessages.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EventMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Live.Collect(ch)
	m.Created.Collect(ch)
	m.Updated.Collect(ch)
	m.Pruned.Collect(ch)
	m.BusDropped.Collect(ch)
	m.ingestMessages.Collect(ch)
}
