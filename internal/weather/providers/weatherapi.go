package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameWeatherAPI = "WeatherAPI"

// WeatherAPIProvider reads the forecast endpoint of WeatherAPI.com.
type WeatherAPIProvider struct {
	base
}

func NewWeatherAPIProvider(opts Options) (*WeatherAPIProvider, error) {
	if err := requireKey(NameWeatherAPI, opts); err != nil {
		return nil, err
	}
	return &WeatherAPIProvider{
		base: newBase(NameWeatherAPI, "https://api.weatherapi.com", opts, weatherAPIError),
	}, nil
}

type weatherAPICondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type weatherAPIPayload struct {
	Location struct {
		TzID string `json:"tz_id"`
	} `json:"location"`
	Forecast *struct {
		ForecastDay *[]json.RawMessage `json:"forecastday"`
	} `json:"forecast"`
}

type weatherAPIDay struct {
	Date string `json:"date"`
	Day  *struct {
		MaxTempC    *float64            `json:"maxtemp_c"`
		MinTempC    *float64            `json:"mintemp_c"`
		AvgHumidity *float64            `json:"avghumidity"`
		Condition   weatherAPICondition `json:"condition"`
	} `json:"day"`
	Hour []json.RawMessage `json:"hour"`
}

type weatherAPIHour struct {
	TimeEpoch int64               `json:"time_epoch"`
	Time      string              `json:"time"`
	TempC     *float64            `json:"temp_c"`
	Humidity  *float64            `json:"humidity"`
	Condition weatherAPICondition `json:"condition"`
}

func weatherAPIError(body []byte) (string, bool) {
	var payload struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return "", false
	}
	if payload.Error.Message != "" {
		return payload.Error.Message, true
	}
	if payload.Error.Code != 0 {
		return "error code " + strconv.Itoa(payload.Error.Code), true
	}
	return "", false
}

func (p *WeatherAPIProvider) FetchDay(ctx context.Context, date time.Time, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	days, zone, err := p.forecast(ctx, loc, map[string]string{
		"days": "1",
		"dt":   date.Format("2006-01-02"),
	}, "weatherapi_day.json", simulate)
	if err != nil {
		return nil, err
	}

	var records []weather.ForecastRecord
	for _, day := range days {
		for j, raw := range day.Hour {
			var hour weatherAPIHour
			if err := json.Unmarshal(raw, &hour); err != nil {
				p.skip(j, "undecodable hour", err)
				continue
			}
			if hour.TempC == nil {
				p.skip(j, "missing temperature", nil)
				continue
			}
			ts, err := time.ParseInLocation("2006-01-02 15:04", hour.Time, zone)
			if err != nil {
				if hour.TimeEpoch == 0 {
					p.skip(j, "missing time", err)
					continue
				}
				ts = time.Unix(hour.TimeEpoch, 0).In(zone)
			}
			cond := p.MapCondition(strconv.Itoa(hour.Condition.Code))
			records = append(records, p.record(cond, ts, *hour.TempC, *hour.TempC, hour.Humidity))
		}
	}
	return p.filterDay(records, date, simulate)
}

func (p *WeatherAPIProvider) FetchWeek(ctx context.Context, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	days, zone, err := p.forecast(ctx, loc, map[string]string{"days": "7"}, "weatherapi_week.json", simulate)
	if err != nil {
		return nil, err
	}

	records := make([]weather.ForecastRecord, 0, len(days))
	for i, day := range days {
		ts, err := time.ParseInLocation("2006-01-02", day.Date, zone)
		if err != nil {
			p.skip(i, "invalid date", err)
			continue
		}
		if day.Day == nil || day.Day.MinTempC == nil || day.Day.MaxTempC == nil {
			p.skip(i, "missing daily summary", nil)
			continue
		}
		cond := p.MapCondition(strconv.Itoa(day.Day.Condition.Code))
		records = append(records, p.record(cond, ts, *day.Day.MinTempC, *day.Day.MaxTempC, day.Day.AvgHumidity))
	}
	return records, nil
}

func (p *WeatherAPIProvider) forecast(ctx context.Context, loc weather.Location, extra map[string]string, fixture string, simulate bool) ([]weatherAPIDay, *time.Location, error) {
	query := map[string]string{
		"key": p.apiKey,
		"q":   latLon(loc),
	}
	for k, v := range extra {
		query[k] = v
	}

	body, err := p.do(ctx, request{path: "/v1/forecast.json", query: query, fixture: fixture}, simulate)
	if err != nil {
		return nil, nil, err
	}

	var payload weatherAPIPayload
	if err := p.decode(body, &payload); err != nil {
		return nil, nil, err
	}
	if payload.Forecast == nil || payload.Forecast.ForecastDay == nil {
		return nil, nil, p.malformed("forecastday missing", nil)
	}

	zone := loadZone(payload.Location.TzID, 0)
	days := make([]weatherAPIDay, 0, len(*payload.Forecast.ForecastDay))
	for i, raw := range *payload.Forecast.ForecastDay {
		var day weatherAPIDay
		if err := json.Unmarshal(raw, &day); err != nil {
			p.skip(i, "undecodable forecastday", err)
			continue
		}
		days = append(days, day)
	}
	return days, zone, nil
}

// MapCondition maps a WeatherAPI.com condition code (1000-1282).
func (p *WeatherAPIProvider) MapCondition(raw string) weather.Condition {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return weather.ConditionUnknown
	}
	switch code {
	case 1000:
		return weather.ConditionSunny
	case 1003:
		return weather.ConditionPartlyCloudy
	case 1006, 1009:
		return weather.ConditionCloudy
	case 1030:
		return weather.ConditionMist
	case 1135, 1147:
		return weather.ConditionFog
	case 1087, 1273, 1276, 1279, 1282:
		return weather.ConditionThunderstorm
	case 1072, 1150, 1153, 1168, 1171:
		return weather.ConditionDrizzle
	case 1063, 1180, 1183, 1186, 1189, 1192, 1195, 1240, 1243, 1246:
		return weather.ConditionRain
	case 1198, 1201, 1069, 1204, 1207, 1237, 1249, 1252, 1261, 1264:
		return weather.ConditionIce
	case 1066, 1114, 1210, 1213, 1216, 1219, 1222, 1225, 1255, 1258:
		return weather.ConditionSnow
	case 1117:
		return weather.ConditionStormy
	default:
		return weather.ConditionUnknown
	}
}
