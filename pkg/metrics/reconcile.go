package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics records outcomes of reconciliation passes per channel.
type ReconcileMetrics struct {
	outcomes *prometheus.CounterVec
	attempts *prometheus.HistogramVec
}

// NewReconcileMetrics registers the reconcile metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Reconciliation passes by channel and outcome.",
	}, []string{"channel", "outcome"})
	attempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_attempts",
		Help:    "Ledger attempt count observed when a pass reaches a terminal outcome.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	}, []string{"channel"})
	reg.MustRegister(outcomes, attempts)
	return &ReconcileMetrics{
		outcomes: outcomes,
		attempts: attempts,
	}
}

// IncOutcome increments the outcome counter for the named channel.
func (m *ReconcileMetrics) IncOutcome(channel, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

// ObserveAttempts records the ledger attempt count at terminal outcome.
func (m *ReconcileMetrics) ObserveAttempts(channel string, attempts int) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(channel)).Observe(float64(attempts))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
