package providers

import (
	"context"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

// UnavailableProvider stands in for an adapter that could not be constructed, typically
// because its credential is missing. Every fetch reports the construction error.
type UnavailableProvider struct {
	name string
	err  error
}

func NewUnavailableProvider(name string, err error) *UnavailableProvider {
	return &UnavailableProvider{name: name, err: err}
}

func (p *UnavailableProvider) Name() string { return p.name }

// Err returns the reason the provider is unavailable.
func (p *UnavailableProvider) Err() error { return p.err }

func (p *UnavailableProvider) FetchDay(context.Context, time.Time, weather.Location, bool) ([]weather.ForecastRecord, error) {
	return nil, p.err
}

func (p *UnavailableProvider) FetchWeek(context.Context, weather.Location, bool) ([]weather.ForecastRecord, error) {
	return nil, p.err
}

func (p *UnavailableProvider) MapCondition(string) weather.Condition {
	return weather.ConditionUnknown
}
