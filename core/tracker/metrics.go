package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "markalloc"

// Fetch outcomes
const (
	fetchIssued  = "issued"
	fetchApplied = "applied"
	fetchStale   = "stale"
	fetchFailed  = "failed"
)

// Validation outcomes
const (
	validationIssued     = "issued"
	validationAccepted   = "accepted"
	validationStale      = "stale"
	validationFailed     = "failed"
	validationTimedOut   = "timed_out"
	validationSuppressed = "suppressed"
)

// Metrics counts what the engine does. A nil *Metrics records nothing.
type Metrics struct {
	fetches     *prometheus.CounterVec
	validations *prometheus.CounterVec
	violations  prometheus.Counter
}

// NewMetrics creates the engine metrics and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "summary_fetches_total",
			Help:      "Allocation summary fetches by outcome.",
		}, []string{"outcome"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "validations_total",
			Help:      "Draft mark validations by outcome.",
		}, []string{"outcome"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "invariant_violations_total",
			Help:      "Applied summaries whose totals disagree with their contents.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.validations, m.violations)
	}
	return m
}

func (m *Metrics) fetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) validation(outcome string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) violation() {
	if m == nil {
		return
	}
	m.violations.Inc()
}
