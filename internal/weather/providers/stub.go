package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameTest = "Test"

const localLayout = "2006-01-02T15:04:05"

// TestProvider serves a bundled forecast regardless of the simulate flag. It needs no
// credential and is meant for demos and for exercising the pipeline end to end.
type TestProvider struct {
	base
}

func NewTestProvider(opts Options) *TestProvider {
	return &TestProvider{base: newBase(NameTest, "", opts, nil)}
}

type testItem struct {
	Time      string   `json:"time"`
	Condition string   `json:"condition"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	Humidity  *float64 `json:"humidity"`
}

func (p *TestProvider) FetchDay(ctx context.Context, date time.Time, _ weather.Location, _ bool) ([]weather.ForecastRecord, error) {
	records, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return p.filterDay(records, date, true)
}

func (p *TestProvider) FetchWeek(ctx context.Context, _ weather.Location, _ bool) ([]weather.ForecastRecord, error) {
	records, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return p.groupByDate(records), nil
}

func (p *TestProvider) load(ctx context.Context) ([]weather.ForecastRecord, error) {
	body, err := p.do(ctx, request{fixture: "test_forecast.json"}, true)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Timezone  string             `json:"timezone"`
		UTCOffset int                `json:"utc_offset"`
		Items     *[]json.RawMessage `json:"items"`
	}
	if err := p.decode(body, &payload); err != nil {
		return nil, err
	}
	if payload.Items == nil {
		return nil, p.malformed("items missing", nil)
	}

	// Times are local wall clock in the payload's zone, like every live adapter.
	zone := loadZone(payload.Timezone, time.Duration(payload.UTCOffset)*time.Second)
	records := make([]weather.ForecastRecord, 0, len(*payload.Items))
	for i, raw := range *payload.Items {
		var item testItem
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		ts, err := time.ParseInLocation(localLayout, item.Time, zone)
		if err != nil {
			p.skip(i, "invalid time", err)
			continue
		}
		if item.Min == nil || item.Max == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		records = append(records, p.record(p.MapCondition(item.Condition), ts, *item.Min, *item.Max, item.Humidity))
	}
	return records, nil
}

// MapCondition accepts the vocabulary names themselves.
func (p *TestProvider) MapCondition(raw string) weather.Condition {
	return weather.ParseCondition(raw)
}
