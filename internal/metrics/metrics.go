// Package metrics records batch-run counters for the copyhash command and
// exports them in the Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anatolykoptev/go-copyhash"
)

const namespace = "copyhash"

// BatchMetrics holds the counters of one batch run in a private registry.
type BatchMetrics struct {
	registry *prometheus.Registry

	recordsTotal   *prometheus.CounterVec
	recordDuration *prometheus.HistogramVec
	panicsTotal    prometheus.Counter
	catalogSize    prometheus.Gauge
}

// New registers the batch metrics on a fresh registry.
func New() *BatchMetrics {
	registry := prometheus.NewRegistry()

	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "records_total",
			Help:      "Records leaving the workflow by request and final status.",
		},
		[]string{"request", "status"},
	)
	recordDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "record_duration_seconds",
			Help:      "Time spent processing one record, by request.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"request"},
	)
	panicsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "panics_total",
			Help:      "Panics recovered while processing records.",
		},
	)
	catalogSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "entries",
			Help:      "Known images loaded for the run.",
		},
	)

	registry.MustRegister(recordsTotal, recordDuration, panicsTotal, catalogSize)

	return &BatchMetrics{
		registry:       registry,
		recordsTotal:   recordsTotal,
		recordDuration: recordDuration,
		panicsTotal:    panicsTotal,
		catalogSize:    catalogSize,
	}
}

// Registry returns the registry the metrics are registered on.
func (m *BatchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRecord matches copyhash.Config.OnRecord.
func (m *BatchMetrics) ObserveRecord(ev copyhash.RecordEvent) {
	request := requestLabel(ev.Request)
	m.recordsTotal.WithLabelValues(request, string(ev.Status)).Inc()
	if ev.Duration > 0 {
		m.recordDuration.WithLabelValues(request).Observe(ev.Duration.Seconds())
	}
}

// ObservePanic matches copyhash.Config.OnPanic.
func (m *BatchMetrics) ObservePanic(string, any) {
	m.panicsTotal.Inc()
}

// SetCatalogSize records the number of catalog entries loaded for the run.
func (m *BatchMetrics) SetCatalogSize(n int) {
	m.catalogSize.Set(float64(n))
}

// WriteTextfile writes every metric to path for the node exporter textfile collector.
func (m *BatchMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func requestLabel(r copyhash.Request) string {
	if r == copyhash.RequestNone {
		return "none"
	}
	return string(r)
}
