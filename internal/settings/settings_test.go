package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-aggregation/internal/settings"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := settings.Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)

	assert.True(t, s.Enabled("OpenWeatherMap"))
	assert.False(t, s.Enabled("Test"))
	assert.True(t, s.Enabled("Some New Provider"))
	assert.Equal(t, 50, s.Limits("AccuWeather").Daily)
	assert.Equal(t, 0, s.Limits("AccuWeather").Monthly)
	assert.Equal(t, 1000000, s.Limits("WeatherAPI").Monthly)
	assert.Equal(t, 1000, s.Limits("Visual Crossing").Daily)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	data := []byte(`
providers:
  visual_crossing:
    enabled: false
    daily_limit: 10
  weatherbit:
    monthly_limit: 200
  test:
    enabled: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := settings.Load(path)
	require.NoError(t, err)

	assert.False(t, s.Enabled("Visual Crossing"))
	assert.Equal(t, 10, s.Limits("Visual Crossing").Daily)
	assert.Equal(t, 50, s.Limits("Weatherbit").Daily)
	assert.Equal(t, 200, s.Limits("Weatherbit").Monthly)
	assert.True(t, s.Enabled("Test"))
}

func TestSetEnabled_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := settings.Load(path)
	require.NoError(t, err)

	require.NoError(t, s.SetEnabled("WeerLive", false))
	assert.False(t, s.Enabled("WeerLive"))

	reloaded, err := settings.Load(path)
	require.NoError(t, err)
	assert.False(t, reloaded.Enabled("WeerLive"))
	assert.True(t, reloaded.Enabled("AccuWeather"))
	assert.Equal(t, settings.ProviderSettings{Enabled: false, DailyLimit: 300}, reloaded.Provider("WeerLive"))
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [yaml"), 0o644))

	_, err := settings.Load(path)
	assert.Error(t, err)
}
