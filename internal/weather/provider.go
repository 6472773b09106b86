package weather

import (
	"context"
	"time"
)

// Provider abstracts a weather data source (OpenWeatherMap, AccuWeather, WeerLive, ...).
//
// FetchDay returns the records of the given calendar date, FetchWeek one record per
// calendar date the provider forecasts. When simulate is true a bundled payload replaces
// the live HTTP response but goes through the same parsing and accounting.
// MapCondition must never fail: unrecognized codes map to ConditionUnknown.
type Provider interface {
	Name() string
	FetchDay(ctx context.Context, date time.Time, loc Location, simulate bool) ([]ForecastRecord, error)
	FetchWeek(ctx context.Context, loc Location, simulate bool) ([]ForecastRecord, error)
	MapCondition(raw string) Condition
}

// Settings exposes the persisted enabled/disabled flag of each provider.
type Settings interface {
	Enabled(provider string) bool
}

// ResultStore keeps recent aggregation results per location and mode.
type ResultStore interface {
	SaveResult(loc Location, result AggregationResult)
	GetLatest(loc Location, mode Mode) (AggregationResult, error)
}
