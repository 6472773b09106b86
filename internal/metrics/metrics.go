package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of the aggregation pipeline. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	providerRequests    *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
	budgetRejections    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Name:      "provider_requests_total",
			Help:      "Provider fetches by outcome.",
		}, []string{"provider", "outcome"}),
		aggregationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a full provider fan-out and aggregation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		budgetRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Name:      "budget_rejections_total",
			Help:      "Calls refused because a provider request limit was reached.",
		}, []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.providerRequests, m.aggregationDuration, m.budgetRejections)
	}
	return m
}

// ObserveProviderOutcome counts one provider fetch, e.g. outcome "success" or an error kind.
func (m *Metrics) ObserveProviderOutcome(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveAggregation(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.aggregationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveBudgetRejection(provider string) {
	if m == nil {
		return
	}
	m.budgetRejections.WithLabelValues(provider).Inc()
}
