package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for event persistence
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	storedEvents      prometheus.Gauge
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "datastore_operations_total",
		Help:      "Datastore operations by type and outcome",
	}, []string{"operation", "status"})
	m.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "datastore_operation_seconds",
		Help:      "Datastore operation latency",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"operation"})
	m.storedEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "datastore_events_stored",
		Help:      "Events written during this session",
	})
}

// RecordOperation records one datastore operation with its outcome and duration
func (m *DatastoreMetrics) RecordOperation(operation, status string, seconds float64) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
	if operation == OpInsert && status == StatusSuccess {
		m.storedEvents.Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDuration.Describe(ch)
	m.storedEvents.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDuration.Collect(ch)
	m.storedEvents.Collect(ch)
}
