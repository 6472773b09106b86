package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameOpenWeatherMap = "OpenWeatherMap"

// OpenWeatherMapProvider reads the 5 day / 3 hour forecast of OpenWeatherMap.
type OpenWeatherMapProvider struct {
	base
}

func NewOpenWeatherMapProvider(opts Options) (*OpenWeatherMapProvider, error) {
	if err := requireKey(NameOpenWeatherMap, opts); err != nil {
		return nil, err
	}
	return &OpenWeatherMapProvider{
		base: newBase(NameOpenWeatherMap, "https://api.openweathermap.org", opts, func(body []byte) (string, bool) {
			return jsonMessage(body, "message", "cod")
		}),
	}, nil
}

type owmForecast struct {
	List *[]json.RawMessage `json:"list"`
	City struct {
		Timezone int `json:"timezone"`
	} `json:"city"`
}

type owmItem struct {
	Dt   int64 `json:"dt"`
	Main *struct {
		TempMin  *float64 `json:"temp_min"`
		TempMax  *float64 `json:"temp_max"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		ID   int    `json:"id"`
		Main string `json:"main"`
	} `json:"weather"`
}

func (p *OpenWeatherMapProvider) FetchDay(ctx context.Context, date time.Time, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	records, err := p.forecast(ctx, loc, simulate)
	if err != nil {
		return nil, err
	}
	return p.filterDay(records, date, simulate)
}

func (p *OpenWeatherMapProvider) FetchWeek(ctx context.Context, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	records, err := p.forecast(ctx, loc, simulate)
	if err != nil {
		return nil, err
	}
	return p.groupByDate(records), nil
}

func (p *OpenWeatherMapProvider) forecast(ctx context.Context, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	body, err := p.do(ctx, request{
		path: "/data/2.5/forecast",
		query: map[string]string{
			"lat":   coordinate(loc.Latitude),
			"lon":   coordinate(loc.Longitude),
			"appid": p.apiKey,
			"units": "metric",
		},
		fixture: "openweathermap_forecast.json",
	}, simulate)
	if err != nil {
		return nil, err
	}
	return p.parse(body)
}

func (p *OpenWeatherMapProvider) parse(body []byte) ([]weather.ForecastRecord, error) {
	var payload owmForecast
	if err := p.decode(body, &payload); err != nil {
		return nil, err
	}
	if payload.List == nil {
		return nil, p.malformed("forecast list missing", nil)
	}

	zone := time.FixedZone("", payload.City.Timezone)
	records := make([]weather.ForecastRecord, 0, len(*payload.List))
	for i, raw := range *payload.List {
		var item owmItem
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		if item.Dt == 0 || item.Main == nil || item.Main.TempMin == nil || item.Main.TempMax == nil {
			p.skip(i, "missing time or temperature", nil)
			continue
		}

		cond := weather.ConditionUnknown
		if len(item.Weather) > 0 {
			cond = p.MapCondition(strconv.Itoa(item.Weather[0].ID))
		}
		ts := time.Unix(item.Dt, 0).In(zone)
		records = append(records, p.record(cond, ts, *item.Main.TempMin, *item.Main.TempMax, item.Main.Humidity))
	}
	return records, nil
}

// MapCondition maps an OpenWeatherMap weather condition id.
func (p *OpenWeatherMapProvider) MapCondition(raw string) weather.Condition {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return weather.ConditionUnknown
	}
	switch {
	case code >= 200 && code < 300:
		return weather.ConditionThunderstorm
	case code >= 300 && code < 400:
		return weather.ConditionDrizzle
	case code == 511:
		return weather.ConditionIce
	case code >= 500 && code < 600:
		return weather.ConditionRain
	case code >= 600 && code < 700:
		return weather.ConditionSnow
	}
	switch code {
	case 701:
		return weather.ConditionMist
	case 711:
		return weather.ConditionSmoke
	case 721:
		return weather.ConditionHaze
	case 731, 761:
		return weather.ConditionDust
	case 741:
		return weather.ConditionFog
	case 751:
		return weather.ConditionSand
	case 762:
		return weather.ConditionAsh
	case 771:
		return weather.ConditionSquall
	case 781:
		return weather.ConditionTornado
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
