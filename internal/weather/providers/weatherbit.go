package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameWeatherbit = "Weatherbit"

// WeatherbitProvider reads the hourly and daily forecast endpoints of Weatherbit.io.
type WeatherbitProvider struct {
	base
}

func NewWeatherbitProvider(opts Options) (*WeatherbitProvider, error) {
	if err := requireKey(NameWeatherbit, opts); err != nil {
		return nil, err
	}
	return &WeatherbitProvider{
		base: newBase(NameWeatherbit, "https://api.weatherbit.io", opts, func(body []byte) (string, bool) {
			return jsonMessage(body, "error", "status_message")
		}),
	}, nil
}

type weatherbitPayload struct {
	Timezone string             `json:"timezone"`
	Data     *[]json.RawMessage `json:"data"`
}

type weatherbitWeather struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type weatherbitHour struct {
	TimestampLocal string            `json:"timestamp_local"`
	Ts             int64             `json:"ts"`
	Temp           *float64          `json:"temp"`
	Rh             *float64          `json:"rh"`
	Weather        weatherbitWeather `json:"weather"`
}

type weatherbitDay struct {
	ValidDate string            `json:"valid_date"`
	MinTemp   *float64          `json:"min_temp"`
	MaxTemp   *float64          `json:"max_temp"`
	Rh        *float64          `json:"rh"`
	Weather   weatherbitWeather `json:"weather"`
}

func (p *WeatherbitProvider) FetchDay(ctx context.Context, date time.Time, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	payload, zone, err := p.forecast(ctx, "/v2.0/forecast/hourly", loc, map[string]string{"hours": "48"}, "weatherbit_hourly.json", simulate)
	if err != nil {
		return nil, err
	}

	records := make([]weather.ForecastRecord, 0, len(*payload.Data))
	for i, raw := range *payload.Data {
		var item weatherbitHour
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		if item.Temp == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		ts, err := time.ParseInLocation(localLayout, item.TimestampLocal, zone)
		if err != nil {
			if item.Ts == 0 {
				p.skip(i, "missing time", err)
				continue
			}
			ts = time.Unix(item.Ts, 0).In(zone)
		}
		cond := p.MapCondition(strconv.Itoa(item.Weather.Code))
		records = append(records, p.record(cond, ts, *item.Temp, *item.Temp, item.Rh))
	}
	return p.filterDay(records, date, simulate)
}

func (p *WeatherbitProvider) FetchWeek(ctx context.Context, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	payload, zone, err := p.forecast(ctx, "/v2.0/forecast/daily", loc, map[string]string{"days": "7"}, "weatherbit_daily.json", simulate)
	if err != nil {
		return nil, err
	}

	records := make([]weather.ForecastRecord, 0, len(*payload.Data))
	for i, raw := range *payload.Data {
		var item weatherbitDay
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02", item.ValidDate, zone)
		if err != nil {
			p.skip(i, "invalid valid_date", err)
			continue
		}
		if item.MinTemp == nil || item.MaxTemp == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		cond := p.MapCondition(strconv.Itoa(item.Weather.Code))
		records = append(records, p.record(cond, ts, *item.MinTemp, *item.MaxTemp, item.Rh))
	}
	return records, nil
}

func (p *WeatherbitProvider) forecast(ctx context.Context, endpoint string, loc weather.Location, extra map[string]string, fixture string, simulate bool) (weatherbitPayload, *time.Location, error) {
	var payload weatherbitPayload

	query := map[string]string{
		"key": p.apiKey,
		"lat": coordinate(loc.Latitude),
		"lon": coordinate(loc.Longitude),
	}
	for k, v := range extra {
		query[k] = v
	}

	body, err := p.do(ctx, request{path: endpoint, query: query, fixture: fixture}, simulate)
	if err != nil {
		return payload, nil, err
	}
	if err := p.decode(body, &payload); err != nil {
		return payload, nil, err
	}
	if payload.Data == nil {
		return payload, nil, p.malformed("data missing", nil)
	}
	return payload, loadZone(payload.Timezone, 0), nil
}

// MapCondition maps a Weatherbit weather code (200-900).
func (p *WeatherbitProvider) MapCondition(raw string) weather.Condition {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return weather.ConditionUnknown
	}
	switch code {
	case 200, 201, 202, 230, 231, 232, 233:
		return weather.ConditionThunderstorm
	case 300, 301, 302:
		return weather.ConditionDrizzle
	case 500, 501, 502, 520, 521, 522:
		return weather.ConditionRain
	case 511, 611, 612:
		return weather.ConditionIce
	case 600, 601, 602, 610, 621, 622, 623:
		return weather.ConditionSnow
	case 700:
		return weather.ConditionMist
	case 711:
		return weather.ConditionSmoke
	case 721:
		return weather.ConditionHaze
	case 731:
		return weather.ConditionDust
	case 741, 751:
		return weather.ConditionFog
	case 800:
		return weather.ConditionClear
	case 801, 802:
		return weather.ConditionPartlyCloudy
	case 803, 804:
		return weather.ConditionCloudy
	default:
		return weather.ConditionUnknown
	}
}
