package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameAccuWeather = "AccuWeather"

// AccuWeatherProvider reads the hourly and daily forecasts of AccuWeather. Forecasts are
// addressed by an AccuWeather location key, resolved from coordinates through the
// geoposition search and cached per coordinate pair.
type AccuWeatherProvider struct {
	base

	mu   sync.Mutex
	keys map[string]string
}

func NewAccuWeatherProvider(opts Options) (*AccuWeatherProvider, error) {
	if err := requireKey(NameAccuWeather, opts); err != nil {
		return nil, err
	}
	return &AccuWeatherProvider{
		base: newBase(NameAccuWeather, "https://dataservice.accuweather.com", opts, func(body []byte) (string, bool) {
			return jsonMessage(body, "Message", "Code")
		}),
		keys: make(map[string]string),
	}, nil
}

type accuValue struct {
	Value *float64 `json:"Value"`
}

type accuHour struct {
	DateTime         string    `json:"DateTime"`
	WeatherIcon      int       `json:"WeatherIcon"`
	Temperature      accuValue `json:"Temperature"`
	RelativeHumidity *float64  `json:"RelativeHumidity"`
}

type accuDaily struct {
	DailyForecasts *[]json.RawMessage `json:"DailyForecasts"`
}

type accuDay struct {
	Date        string `json:"Date"`
	Temperature struct {
		Minimum accuValue `json:"Minimum"`
		Maximum accuValue `json:"Maximum"`
	} `json:"Temperature"`
	Day struct {
		Icon int `json:"Icon"`
	} `json:"Day"`
}

func (p *AccuWeatherProvider) FetchDay(ctx context.Context, date time.Time, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	key, err := p.locationKey(ctx, loc, simulate)
	if err != nil {
		return nil, err
	}

	body, err := p.do(ctx, request{
		path: "/forecasts/v1/hourly/12hour/" + key,
		query: map[string]string{
			"apikey":  p.apiKey,
			"metric":  "true",
			"details": "true",
		},
		fixture: "accuweather_hourly.json",
	}, simulate)
	if err != nil {
		return nil, err
	}

	records, err := p.parseHourly(body)
	if err != nil {
		return nil, err
	}
	return p.filterDay(records, date, simulate)
}

func (p *AccuWeatherProvider) FetchWeek(ctx context.Context, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	key, err := p.locationKey(ctx, loc, simulate)
	if err != nil {
		return nil, err
	}

	body, err := p.do(ctx, request{
		path: "/forecasts/v1/daily/5day/" + key,
		query: map[string]string{
			"apikey": p.apiKey,
			"metric": "true",
		},
		fixture: "accuweather_daily.json",
	}, simulate)
	if err != nil {
		return nil, err
	}
	return p.parseDaily(body)
}

// locationKey asks the geoposition search for the key of loc. Location.PlaceID comes from
// the geocoder and is never an AccuWeather key. Live lookups are cached; a lookup counts
// as a call of its own.
func (p *AccuWeatherProvider) locationKey(ctx context.Context, loc weather.Location, simulate bool) (string, error) {
	if !simulate {
		p.mu.Lock()
		key, ok := p.keys[loc.Key()]
		p.mu.Unlock()
		if ok {
			return key, nil
		}
	}

	body, err := p.do(ctx, request{
		path: "/locations/v1/cities/geoposition/search",
		query: map[string]string{
			"apikey": p.apiKey,
			"q":      latLon(loc),
		},
		fixture: "accuweather_location.json",
	}, simulate)
	if err != nil {
		return "", err
	}

	var payload struct {
		Key string `json:"Key"`
	}
	if err := p.decode(body, &payload); err != nil {
		return "", err
	}
	if payload.Key == "" {
		return "", p.malformed("location key missing", nil)
	}
	if !simulate {
		p.mu.Lock()
		p.keys[loc.Key()] = payload.Key
		p.mu.Unlock()
	}
	return payload.Key, nil
}

func (p *AccuWeatherProvider) parseHourly(body []byte) ([]weather.ForecastRecord, error) {
	var items []json.RawMessage
	if err := p.decode(body, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, p.malformed("hourly forecast list missing", nil)
	}

	records := make([]weather.ForecastRecord, 0, len(items))
	for i, raw := range items {
		var item accuHour
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		ts, err := time.Parse(time.RFC3339, item.DateTime)
		if err != nil {
			p.skip(i, "invalid DateTime", err)
			continue
		}
		if item.Temperature.Value == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		t := *item.Temperature.Value
		records = append(records, p.record(p.MapCondition(strconv.Itoa(item.WeatherIcon)), ts, t, t, item.RelativeHumidity))
	}
	return records, nil
}

func (p *AccuWeatherProvider) parseDaily(body []byte) ([]weather.ForecastRecord, error) {
	var payload accuDaily
	if err := p.decode(body, &payload); err != nil {
		return nil, err
	}
	if payload.DailyForecasts == nil {
		return nil, p.malformed("daily forecast list missing", nil)
	}

	records := make([]weather.ForecastRecord, 0, len(*payload.DailyForecasts))
	for i, raw := range *payload.DailyForecasts {
		var item accuDay
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		ts, err := time.Parse(time.RFC3339, item.Date)
		if err != nil {
			p.skip(i, "invalid Date", err)
			continue
		}
		minT, maxT := item.Temperature.Minimum.Value, item.Temperature.Maximum.Value
		if minT == nil || maxT == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		// The daily endpoint does not report humidity.
		records = append(records, p.record(p.MapCondition(strconv.Itoa(item.Day.Icon)), day, *minT, *maxT, nil))
	}
	return records, nil
}

// MapCondition maps an AccuWeather icon number (1-44).
func (p *AccuWeatherProvider) MapCondition(raw string) weather.Condition {
	icon, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return weather.ConditionUnknown
	}
	switch icon {
	case 1, 2, 30:
		return weather.ConditionSunny
	case 3, 4, 35, 36:
		return weather.ConditionPartlyCloudy
	case 5, 37:
		return weather.ConditionHaze
	case 6, 7, 8, 38:
		return weather.ConditionCloudy
	case 11:
		return weather.ConditionFog
	case 12, 13, 14, 18, 39, 40:
		return weather.ConditionRain
	case 15, 16, 17, 41, 42:
		return weather.ConditionThunderstorm
	case 19, 20, 21, 22, 23, 29, 43, 44:
		return weather.ConditionSnow
	case 24, 25, 26:
		return weather.ConditionIce
	case 31:
		return weather.ConditionCold
	case 32:
		return weather.ConditionWindy
	case 33, 34:
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
