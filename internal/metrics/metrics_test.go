package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordsNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProviderOutcome("OpenWeatherMap", "success")
		m.ObserveAggregation("day", time.Second)
		m.ObserveBudgetRejection("OpenWeatherMap")
	})
}

func TestCollectorsAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveProviderOutcome("WeerLive", "success")
	m.ObserveProviderOutcome("WeerLive", "success")
	m.ObserveAggregation("week", 250*time.Millisecond)
	m.ObserveBudgetRejection("AccuWeather")

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				byName[f.GetName()] += metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				byName[f.GetName()] += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 2.0, byName["weather_provider_requests_total"])
	assert.Equal(t, 1.0, byName["weather_aggregation_duration_seconds"])
	assert.Equal(t, 1.0, byName["weather_budget_rejections_total"])
}
