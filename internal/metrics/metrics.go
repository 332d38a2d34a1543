// Package metrics exposes prometheus instruments for the ingestion pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes.
const (
	RowProcessed = "processed"
	RowFailed    = "failed"
	RowBlank     = "blank"
)

// Ingestion groups the pipeline instruments. A nil *Ingestion records nothing.
type Ingestion struct {
	rows        *prometheus.CounterVec
	batches     *prometheus.CounterVec
	changes     *prometheus.CounterVec
	rowDuration *prometheus.HistogramVec
}

// NewIngestion registers the instruments with reg.
func NewIngestion(reg prometheus.Registerer) *Ingestion {
	factory := promauto.With(reg)
	return &Ingestion{
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapingest",
			Name:      "rows_total",
			Help:      "Spreadsheet rows handled by outcome.",
		}, []string{"result"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapingest",
			Name:      "batches_total",
			Help:      "Import batches by terminal status.",
		}, []string{"status"}),
		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sapingest",
			Name:      "entity_changes_total",
			Help:      "Normalized entity writes by kind and action.",
		}, []string{"kind", "action"}),
		rowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sapingest",
			Name:      "row_distribution_seconds",
			Help:      "Latency of distributing one row.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"result"}),
	}
}

var defaultIngestion = sync.OnceValue(func() *Ingestion {
	return NewIngestion(prometheus.DefaultRegisterer)
})

// Default returns the instruments registered on the default registry.
func Default() *Ingestion {
	return defaultIngestion()
}

// Row counts one row outcome.
func (m *Ingestion) Row(result string) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(result).Inc()
}

// ObserveRow records how long a row took to distribute.
func (m *Ingestion) ObserveRow(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rowDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// Change counts one normalized entity write.
func (m *Ingestion) Change(kind, action string) {
	if m == nil {
		return
	}
	m.changes.WithLabelValues(kind, action).Inc()
}

// Batch counts a batch reaching a terminal status.
func (m *Ingestion) Batch(status string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
}
