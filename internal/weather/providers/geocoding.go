package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

const NameGeocoding = "Geocoding"

// GeocodingProvider resolves free-text queries to locations through geocode.maps.co.
// It shares the request budget and credential handling of the weather adapters but
// never takes part in an aggregation.
type GeocodingProvider struct {
	base
}

func NewGeocodingProvider(opts Options) (*GeocodingProvider, error) {
	if err := requireKey(NameGeocoding, opts); err != nil {
		return nil, err
	}
	return &GeocodingProvider{
		base: newBase(NameGeocoding, "https://geocode.maps.co", opts, func(body []byte) (string, bool) {
			return jsonMessage(body, "error", "message")
		}),
	}, nil
}

type geocodingPlace struct {
	PlaceID     json.Number `json:"place_id"`
	DisplayName string      `json:"display_name"`
	Lat         string      `json:"lat"`
	Lon         string      `json:"lon"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// Search returns the places matching query in the order the service ranked them.
func (p *GeocodingProvider) Search(ctx context.Context, query string, simulate bool) ([]weather.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, weather.NewProviderError(p.name, weather.KindInvalidRequest, "", weather.ErrEmptyQuery)
	}

	body, err := p.do(ctx, request{
		path: "/search",
		query: map[string]string{
			"q":       query,
			"api_key": p.apiKey,
		},
		fixture: "geocoding_search.json",
	}, simulate)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := p.decode(body, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, p.malformed("result list missing", nil)
	}

	locations := make([]weather.Location, 0, len(items))
	for i, raw := range items {
		var place geocodingPlace
		if err := json.Unmarshal(raw, &place); err != nil {
			p.skip(i, "undecodable place", err)
			continue
		}
		lat, errLat := strconv.ParseFloat(place.Lat, 64)
		lon, errLon := strconv.ParseFloat(place.Lon, 64)
		if errLat != nil || errLon != nil {
			p.skip(i, "invalid coordinates", nil)
			continue
		}

		name := firstNonEmpty(place.Address.City, place.Address.Town, place.Address.Village)
		if name == "" {
			name, _, _ = strings.Cut(place.DisplayName, ",")
		}
		locations = append(locations, weather.Location{
			Name:      strings.TrimSpace(name),
			State:     place.Address.State,
			Country:   place.Address.Country,
			PlaceID:   place.PlaceID.String(),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return locations, nil
}

func (p *GeocodingProvider) FetchDay(context.Context, time.Time, weather.Location, bool) ([]weather.ForecastRecord, error) {
	return nil, weather.NewProviderError(p.name, weather.KindNoData, "geocoding returns no forecasts", weather.ErrNoDataForDate)
}

func (p *GeocodingProvider) FetchWeek(context.Context, weather.Location, bool) ([]weather.ForecastRecord, error) {
	return nil, weather.NewProviderError(p.name, weather.KindNoData, "geocoding returns no forecasts", weather.ErrNoDataForDate)
}

func (p *GeocodingProvider) MapCondition(string) weather.Condition {
	return weather.ConditionUnknown
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
