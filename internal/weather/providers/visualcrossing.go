package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameVisualCrossing = "Visual Crossing"

// VisualCrossingProvider reads the Visual Crossing timeline API.
type VisualCrossingProvider struct {
	base
}

func NewVisualCrossingProvider(opts Options) (*VisualCrossingProvider, error) {
	if err := requireKey(NameVisualCrossing, opts); err != nil {
		return nil, err
	}
	return &VisualCrossingProvider{
		base: newBase(NameVisualCrossing, "https://weather.visualcrossing.com", opts, visualCrossingError),
	}, nil
}

type vcTimeline struct {
	Timezone string             `json:"timezone"`
	TzOffset float64            `json:"tzoffset"`
	Days     *[]json.RawMessage `json:"days"`
}

type vcDay struct {
	Datetime string            `json:"datetime"`
	TempMin  *float64          `json:"tempmin"`
	TempMax  *float64          `json:"tempmax"`
	Humidity *float64          `json:"humidity"`
	Icon     string            `json:"icon"`
	Hours    []json.RawMessage `json:"hours"`
}

type vcHour struct {
	DatetimeEpoch int64    `json:"datetimeEpoch"`
	Temp          *float64 `json:"temp"`
	Humidity      *float64 `json:"humidity"`
	Icon          string   `json:"icon"`
}

// Visual Crossing reports errors as plain text.
func visualCrossingError(body []byte) (string, bool) {
	msg := strings.TrimSpace(string(body))
	if msg == "" || strings.HasPrefix(msg, "<") {
		return "", false
	}
	if m, ok := jsonMessage(body, "message", "errorCode"); ok {
		return m, true
	}
	if strings.HasPrefix(msg, "{") {
		return "", false
	}
	return msg, true
}

func (p *VisualCrossingProvider) FetchDay(ctx context.Context, date time.Time, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	timeline, zone, err := p.timeline(ctx, loc, date.Format("2006-01-02"), "hours", "visualcrossing_day.json", simulate)
	if err != nil {
		return nil, err
	}

	var records []weather.ForecastRecord
	for i, raw := range *timeline.Days {
		var day vcDay
		if err := json.Unmarshal(raw, &day); err != nil {
			p.skip(i, "undecodable day", err)
			continue
		}
		for j, rawHour := range day.Hours {
			var hour vcHour
			if err := json.Unmarshal(rawHour, &hour); err != nil {
				p.skip(j, "undecodable hour", err)
				continue
			}
			if hour.DatetimeEpoch == 0 || hour.Temp == nil {
				p.skip(j, "missing time or temperature", nil)
				continue
			}
			ts := time.Unix(hour.DatetimeEpoch, 0).In(zone)
			records = append(records, p.record(p.MapCondition(hour.Icon), ts, *hour.Temp, *hour.Temp, hour.Humidity))
		}
	}
	return p.filterDay(records, date, simulate)
}

func (p *VisualCrossingProvider) FetchWeek(ctx context.Context, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	timeline, zone, err := p.timeline(ctx, loc, "next7days", "days", "visualcrossing_week.json", simulate)
	if err != nil {
		return nil, err
	}

	records := make([]weather.ForecastRecord, 0, len(*timeline.Days))
	for i, raw := range *timeline.Days {
		var day vcDay
		if err := json.Unmarshal(raw, &day); err != nil {
			p.skip(i, "undecodable day", err)
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02", day.Datetime, zone)
		if err != nil {
			p.skip(i, "invalid datetime", err)
			continue
		}
		if day.TempMin == nil || day.TempMax == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		records = append(records, p.record(p.MapCondition(day.Icon), ts, *day.TempMin, *day.TempMax, day.Humidity))
	}
	return records, nil
}

func (p *VisualCrossingProvider) timeline(ctx context.Context, loc weather.Location, period, include, fixture string, simulate bool) (vcTimeline, *time.Location, error) {
	var timeline vcTimeline

	body, err := p.do(ctx, request{
		path: "/VisualCrossingWebServices/rest/services/timeline/" + latLon(loc) + "/" + period,
		query: map[string]string{
			"key":         p.apiKey,
			"unitGroup":   "metric",
			"include":     include,
			"contentType": "json",
		},
		fixture: fixture,
	}, simulate)
	if err != nil {
		return timeline, nil, err
	}

	if err := p.decode(body, &timeline); err != nil {
		return timeline, nil, err
	}
	if timeline.Days == nil {
		return timeline, nil, p.malformed("days missing", nil)
	}
	zone := loadZone(timeline.Timezone, time.Duration(timeline.TzOffset*float64(time.Hour)))
	return timeline, zone, nil
}

// MapCondition maps a Visual Crossing icon name such as "partly-cloudy-day".
func (p *VisualCrossingProvider) MapCondition(raw string) weather.Condition {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "clear-day":
		return weather.ConditionSunny
	case "clear-night":
		return weather.ConditionClear
	case "partly-cloudy-day", "partly-cloudy-night":
		return weather.ConditionPartlyCloudy
	case "cloudy":
		return weather.ConditionCloudy
	case "rain", "showers-day", "showers-night":
		return weather.ConditionRain
	case "thunder", "thunder-rain", "thunder-showers-day", "thunder-showers-night":
		return weather.ConditionThunderstorm
	case "snow", "snow-showers-day", "snow-showers-night":
		return weather.ConditionSnow
	case "sleet":
		return weather.ConditionIce
	case "hail":
		return weather.ConditionHail
	case "fog":
		return weather.ConditionFog
	case "wind":
		return weather.ConditionWindy
	default:
		return weather.ConditionUnknown
	}
}
