package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/i474232898/weather-aggregation/internal/budget"
)

// ProviderSettings is the persisted user preference of one provider.
type ProviderSettings struct {
	Enabled      bool `mapstructure:"enabled"`
	DailyLimit   int  `mapstructure:"daily_limit"`
	MonthlyLimit int  `mapstructure:"monthly_limit"`
}

// Defaults are the free-tier allowances of each provider. Zero means unlimited.
var Defaults = map[string]ProviderSettings{
	"OpenWeatherMap":  {Enabled: true, DailyLimit: 1000},
	"AccuWeather":     {Enabled: true, DailyLimit: 50},
	"WeerLive":        {Enabled: true, DailyLimit: 300},
	"Visual Crossing": {Enabled: true, DailyLimit: 1000},
	"WeatherAPI":      {Enabled: true, MonthlyLimit: 1000000},
	"Weatherbit":      {Enabled: true, DailyLimit: 50},
	"Geocoding":       {Enabled: true, DailyLimit: 5000},
	"Test":            {Enabled: false},
}

// Store is the YAML-backed settings document. Unknown providers are enabled and unlimited.
type Store struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// Load reads the settings file at path. A missing file yields the defaults.
func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	for name, d := range Defaults {
		k := key(name)
		v.SetDefault(k+".enabled", d.Enabled)
		v.SetDefault(k+".daily_limit", d.DailyLimit)
		v.SetDefault(k+".monthly_limit", d.MonthlyLimit)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}
	return &Store{v: v, path: path}, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Enabled(provider string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key(provider) + ".enabled"
	if !s.v.IsSet(k) {
		return true
	}
	return s.v.GetBool(k)
}

// SetEnabled changes the flag of provider and rewrites the settings file.
func (s *Store) SetEnabled(provider string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(key(provider)+".enabled", enabled)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Limits returns the request allowances used to build the budget of provider.
func (s *Store) Limits(provider string) budget.Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key(provider)
	return budget.Limits{
		Daily:   s.v.GetInt(k + ".daily_limit"),
		Monthly: s.v.GetInt(k + ".monthly_limit"),
	}
}

// Provider returns the full settings of provider.
func (s *Store) Provider(provider string) ProviderSettings {
	l := s.Limits(provider)
	return ProviderSettings{
		Enabled:      s.Enabled(provider),
		DailyLimit:   l.Daily,
		MonthlyLimit: l.Monthly,
	}
}

// key maps a display name to its YAML key, e.g. "Visual Crossing" -> "providers.visual_crossing".
func key(provider string) string {
	name := strings.ToLower(strings.TrimSpace(provider))
	return "providers." + strings.ReplaceAll(name, " ", "_")
}
