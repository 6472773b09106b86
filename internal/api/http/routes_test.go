package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/weather-aggregation/internal/budget"
	"github.com/i474232898/weather-aggregation/internal/metrics"
	"github.com/i474232898/weather-aggregation/internal/settings"
	"github.com/i474232898/weather-aggregation/internal/store"
	"github.com/i474232898/weather-aggregation/internal/weather"
	"github.com/i474232898/weather-aggregation/internal/weather/providers"
)

type fakeGeocoder struct {
	locations []weather.Location
	err       error
}

func (f fakeGeocoder) Search(context.Context, string, bool) ([]weather.Location, error) {
	return f.locations, f.err
}

type testEnv struct {
	app      *fiber.App
	settings *settings.Store
}

func newTestEnv(t *testing.T, geocoder Geocoder) testEnv {
	t.Helper()
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	budgets := budget.NewFileStore(filepath.Join(dir, "requests.json"), logger)
	b, err := budget.New(providers.NameTest, budget.Limits{}, budgets)
	require.NoError(t, err)

	favoritesPath := filepath.Join(dir, "favorites.json")
	require.NoError(t, os.WriteFile(favoritesPath, []byte(`{
  "2759794": {"Name": "Amsterdam", "Latitude": 52.374, "Longitude": 4.8897, "Country": "NL", "State": "Noord-Holland"}
}`), 0o644))

	prefs, err := settings.Load(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	stub := providers.NewTestProvider(providers.Options{Budget: b, Logger: logger, Metrics: m})
	missing := providers.NewUnavailableProvider(providers.NameWeatherbit,
		weather.NewProviderError(providers.NameWeatherbit, weather.KindCredentialMissing, "WEATHERBIT_API_KEY is not set", weather.ErrCredentialMissing))

	svc := weather.NewService(store.NewMemoryStore(10, time.Hour), []weather.Provider{stub, missing}, nil, logger, m)

	app := NewApp(logger)
	RegisterRoutes(app, Deps{
		Service:      svc,
		Geocoder:     geocoder,
		Favorites:    store.NewLocationStore(favoritesPath),
		Settings:     prefs,
		Budgets:      map[string]*budget.RequestBudget{providers.NameTest: b},
		Gatherer:     reg,
		FetchTimeout: 5 * time.Second,
	})
	return testEnv{app: app, settings: prefs}
}

func (e testEnv) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// TestForecastValidation verifies that the forecast endpoint rejects missing or
// out-of-range parameters.
func TestForecastValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{
		"/api/v1/forecast?lon=4.89",
		"/api/v1/forecast?lat=abc&lon=4.89",
		"/api/v1/forecast?lat=91&lon=4.89",
		"/api/v1/forecast?lat=52.37&lon=181",
		"/api/v1/forecast?lat=52.37&lon=4.89&mode=month",
		"/api/v1/forecast?lat=52.37&lon=4.89&date=2024-13-01",
		"/api/v1/forecast?lat=52.37&lon=4.89&simulate=maybe",
	} {
		resp, body := env.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Contains(t, string(body), `"error":true`, target)
	}
}

func TestForecast(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/forecast?lat=52.37&lon=4.89&name=Amsterdam&simulate=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var day weather.AggregationResult
	require.NoError(t, json.Unmarshal(body, &day))
	assert.Equal(t, weather.ModeDay, day.Mode)
	assert.Equal(t, "Amsterdam", day.Location.Name)
	require.Len(t, day.Buckets, 6)
	assert.Equal(t, "06:00", day.Buckets[0].Key)
	require.Len(t, day.Errors, 1)
	assert.Contains(t, day.Errors[0], "WEATHERBIT_API_KEY is not set")

	resp, body = env.do(t, http.MethodGet, "/api/v1/forecast?lat=52.37&lon=4.89&mode=week&simulate=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var week weather.AggregationResult
	require.NoError(t, json.Unmarshal(body, &week))
	require.Len(t, week.Buckets, 2)
	assert.Equal(t, "Monday", week.Buckets[0].Key)
	assert.Equal(t, "Tuesday", week.Buckets[1].Key)

	resp, body = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "weather_provider_requests_total")
	assert.Contains(t, string(body), "weather_aggregation_duration_seconds")
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodGet, "/api/v1/locations/search?q=Amsterdam", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	env = newTestEnv(t, fakeGeocoder{locations: []weather.Location{{Name: "Amsterdam", Latitude: 52.37, Longitude: 4.89}}})
	resp, _ = env.do(t, http.MethodGet, "/api/v1/locations/search?q=", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/locations/search?q=Amsterdam", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"name":"Amsterdam"`)

	env = newTestEnv(t, fakeGeocoder{err: weather.NewProviderError("Geocoding", weather.KindInvalidRequest, "", weather.ErrEmptyQuery)})
	resp, _ = env.do(t, http.MethodGet, "/api/v1/locations/search?q=Amsterdam", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env = newTestEnv(t, fakeGeocoder{err: weather.NewProviderError("Geocoding", weather.KindAdmissionDenied, "", weather.ErrRequestLimitReached)})
	resp, body = env.do(t, http.MethodGet, "/api/v1/locations/search?q=Amsterdam", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, string(body), "request limit reached")
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/favorites", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"id":"2759794"`)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/favorites/2759794/cached?mode=week", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/v1/favorites/2759794/forecast?mode=week&simulate=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fresh weather.AggregationResult
	require.NoError(t, json.Unmarshal(body, &fresh))
	assert.Equal(t, "2759794", fresh.Location.PlaceID)

	resp, body = env.do(t, http.MethodGet, "/api/v1/favorites/2759794/cached?mode=week", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cached weather.AggregationResult
	require.NoError(t, json.Unmarshal(body, &cached))
	assert.Equal(t, fresh.ID, cached.ID)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/favorites/unknown/forecast", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProviders(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/providers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []providerView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 2)
	assert.Equal(t, providers.NameTest, views[0].Name)
	assert.False(t, views[0].Enabled)
	assert.True(t, views[0].Available)
	require.NotNil(t, views[0].Budget)
	assert.False(t, views[1].Available)
	assert.Nil(t, views[1].Budget)

	resp, _ = env.do(t, http.MethodPut, "/api/v1/providers/Nope", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/v1/providers/test", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/v1/providers/test", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.settings.Enabled(providers.NameTest))
	var updated providerView
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.True(t, updated.Available)

	resp, body = env.do(t, http.MethodPut, "/api/v1/providers/weatherbit", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, providers.NameWeatherbit, updated.Name)
	assert.False(t, updated.Enabled)
	assert.False(t, updated.Available)
	assert.Contains(t, updated.Error, "WEATHERBIT_API_KEY is not set")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}
