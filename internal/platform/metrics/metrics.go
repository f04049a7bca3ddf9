package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	BatchesAccepted  prometheus.Counter
	BatchesRejected  *prometheus.CounterVec
	BatchesReplayed  prometheus.Counter
	MandatesRevoked  prometheus.Counter
	MandatesVerified prometheus.Counter
	SubmitLatency    prometheus.Histogram
}

// New creates all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all Prometheus metrics registered against reg, so tests
// can use an isolated registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BatchesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "aval_batches_accepted_total",
			Help: "Total number of transaction batches accepted by the ledger",
		}),
		BatchesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aval_batches_rejected_total",
			Help: "Total number of transaction batches rejected, labeled by reason",
		}, []string{"reason"}),
		BatchesReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "aval_batches_replayed_total",
			Help: "Total number of batches replayed from the append log at startup",
		}),
		MandatesRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "aval_mandates_revoked_total",
			Help: "Total number of mandate credential ids revoked",
		}),
		MandatesVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "aval_mandates_verified_total",
			Help: "Total number of individual mandates that passed verification",
		}),
		SubmitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aval_submit_latency_seconds",
			Help:    "Latency of ledger batch submissions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveRejection increments the rejection counter for a reason code.
func (m *Metrics) ObserveRejection(reason string) {
	m.BatchesRejected.WithLabelValues(reason).Inc()
}
