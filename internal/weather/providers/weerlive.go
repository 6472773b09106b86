package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/i474232898/weather-aggregation/internal/common"
	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameWeerLive = "WeerLive"

// WeerLiveProvider reads the Dutch weerlive.nl API, which answers hourly and daily
// forecasts in a single payload using local Dutch time.
type WeerLiveProvider struct {
	base
	zone *time.Location
}

func NewWeerLiveProvider(opts Options) (*WeerLiveProvider, error) {
	if err := requireKey(NameWeerLive, opts); err != nil {
		return nil, err
	}
	return &WeerLiveProvider{
		base: newBase(NameWeerLive, "https://weerlive.nl", opts, weerLiveError),
		zone: loadZone("Europe/Amsterdam", time.Hour),
	}, nil
}

type weerLivePayload struct {
	LiveWeer []struct {
		Fout string `json:"fout"`
	} `json:"liveweer"`
	Hourly *[]json.RawMessage `json:"uur_verw"`
	Daily  *[]json.RawMessage `json:"wk_verw"`
}

type weerLiveHour struct {
	Uur   string   `json:"uur"`
	Image string   `json:"image"`
	Temp  *float64 `json:"temp"`
}

type weerLiveDay struct {
	Dag     string   `json:"dag"`
	Image   string   `json:"image"`
	MinTemp *float64 `json:"min_temp"`
	MaxTemp *float64 `json:"max_temp"`
}

func weerLiveError(body []byte) (string, bool) {
	var payload weerLivePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	if len(payload.LiveWeer) == 0 || payload.LiveWeer[0].Fout == "" {
		return "", false
	}
	return payload.LiveWeer[0].Fout, true
}

func (p *WeerLiveProvider) FetchDay(ctx context.Context, date time.Time, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	payload, err := p.fetch(ctx, loc, simulate)
	if err != nil {
		return nil, err
	}
	if payload.Hourly == nil {
		return nil, p.malformed("hourly forecast missing", nil)
	}

	records := make([]weather.ForecastRecord, 0, len(*payload.Hourly))
	for i, raw := range *payload.Hourly {
		var item weerLiveHour
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		ts, err := time.ParseInLocation("02-01-2006 15:04", item.Uur, p.zone)
		if err != nil {
			p.skip(i, "invalid uur", err)
			continue
		}
		if item.Temp == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		// Hourly entries carry no humidity.
		records = append(records, p.record(p.MapCondition(item.Image), ts, *item.Temp, *item.Temp, nil))
	}
	return p.filterDay(records, date, simulate)
}

func (p *WeerLiveProvider) FetchWeek(ctx context.Context, loc weather.Location, simulate bool) ([]weather.ForecastRecord, error) {
	payload, err := p.fetch(ctx, loc, simulate)
	if err != nil {
		return nil, err
	}
	if payload.Daily == nil {
		return nil, p.malformed("daily forecast missing", nil)
	}

	records := make([]weather.ForecastRecord, 0, len(*payload.Daily))
	for i, raw := range *payload.Daily {
		var item weerLiveDay
		if err := json.Unmarshal(raw, &item); err != nil {
			p.skip(i, "undecodable item", err)
			continue
		}
		day, err := time.ParseInLocation("02-01-2006", item.Dag, p.zone)
		if err != nil {
			p.skip(i, "invalid dag", err)
			continue
		}
		if item.MinTemp == nil || item.MaxTemp == nil {
			p.skip(i, "missing temperature", nil)
			continue
		}
		records = append(records, p.record(p.MapCondition(item.Image), day, *item.MinTemp, *item.MaxTemp, nil))
	}
	return records, nil
}

func (p *WeerLiveProvider) fetch(ctx context.Context, loc weather.Location, simulate bool) (weerLivePayload, error) {
	var payload weerLivePayload

	body, err := p.do(ctx, request{
		path: "/api/weerlive_api_v2.php",
		query: map[string]string{
			"key":     p.apiKey,
			"locatie": latLon(loc),
		},
		fixture: "weerlive.json",
	}, simulate)
	if err != nil {
		return payload, err
	}

	if err := p.decode(body, &payload); err != nil {
		return payload, err
	}
	// Some failures are reported with a success status.
	if len(payload.LiveWeer) > 0 && payload.LiveWeer[0].Fout != "" {
		return payload, weather.NewProviderError(p.name, weather.KindTransport, payload.LiveWeer[0].Fout, nil)
	}
	return payload, nil
}

// MapCondition maps a WeerLive image name such as "halfbewolkt" or "buien".
func (p *WeerLiveProvider) MapCondition(raw string) weather.Condition {
	image := strings.ToLower(strings.TrimSpace(raw))
	switch image {
	case "zonnig":
		return weather.ConditionSunny
	case "helderenacht":
		return weather.ConditionClear
	case "bliksem":
		return weather.ConditionThunderstorm
	case "regen", "buien", "halfbewolkt_regen":
		return weather.ConditionRain
	case "hagel":
		return weather.ConditionHail
	case "mist", "nachtmist":
		return weather.ConditionFog
	case "sneeuw":
		return weather.ConditionSnow
	case "bewolkt", "zwaarbewolkt", "nachtbewolkt":
		return weather.ConditionCloudy
	case "lichtbewolkt", "halfbewolkt", "wolkennacht":
		return weather.ConditionPartlyCloudy
	}

	switch {
	case image == "":
		return weather.ConditionUnknown
	case common.ContainsAnyFold(image, "onweer", "bliksem"):
		return weather.ConditionThunderstorm
	case common.ContainsAnyFold(image, "regen", "bui"):
		return weather.ConditionRain
	case common.ContainsAnyFold(image, "sneeuw"):
		return weather.ConditionSnow
	case common.ContainsAnyFold(image, "ijzel", "ijs"):
		return weather.ConditionIce
	case common.ContainsAnyFold(image, "bewolkt"):
		return weather.ConditionCloudy
	default:
		return weather.ConditionUnknown
	}
}
