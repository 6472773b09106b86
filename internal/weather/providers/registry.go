package providers

import (
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/weather-aggregation/internal/budget"
	"github.com/i474232898/weather-aggregation/internal/metrics"
	"github.com/i474232898/weather-aggregation/internal/weather"
)

// WeatherProviders lists the forecast adapters in registration order. The order is the
// tie-break order of the aggregation.
var WeatherProviders = []string{
	NameOpenWeatherMap,
	NameAccuWeather,
	NameWeerLive,
	NameVisualCrossing,
	NameWeatherAPI,
	NameWeatherbit,
	NameTest,
}

// Config holds what Build needs to construct every adapter.
type Config struct {
	Lookup   KeyLookup
	Store    budget.Store
	Limits   func(provider string) budget.Limits
	Clock    clockwork.Clock
	Client   *resty.Client
	BaseURLs map[string]string
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Registry is the constructed provider set.
type Registry struct {
	Providers   []weather.Provider
	Geocoder    *GeocodingProvider
	GeocoderErr error
	Budgets     map[string]*budget.RequestBudget
}

type constructor func(Options) (weather.Provider, error)

var constructors = map[string]constructor{
	NameOpenWeatherMap: func(o Options) (weather.Provider, error) { return NewOpenWeatherMapProvider(o) },
	NameAccuWeather:    func(o Options) (weather.Provider, error) { return NewAccuWeatherProvider(o) },
	NameWeerLive:       func(o Options) (weather.Provider, error) { return NewWeerLiveProvider(o) },
	NameVisualCrossing: func(o Options) (weather.Provider, error) { return NewVisualCrossingProvider(o) },
	NameWeatherAPI:     func(o Options) (weather.Provider, error) { return NewWeatherAPIProvider(o) },
	NameWeatherbit:     func(o Options) (weather.Provider, error) { return NewWeatherbitProvider(o) },
	NameTest:           func(o Options) (weather.Provider, error) { return NewTestProvider(o), nil },
}

// Build constructs every adapter with its own request budget. A provider whose
// credential is missing is registered as an UnavailableProvider.
func Build(cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("providers: request budget store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	lookup := cfg.Lookup
	if lookup == nil {
		lookup = EnvLookup
	}

	reg := &Registry{Budgets: make(map[string]*budget.RequestBudget)}

	options := func(name string) (Options, error) {
		var limits budget.Limits
		if cfg.Limits != nil {
			limits = cfg.Limits(name)
		}
		b, err := budget.New(name, limits, cfg.Store, budget.WithClock(clock), budget.WithLogger(logger))
		if err != nil {
			return Options{}, fmt.Errorf("request budget for %s: %w", name, err)
		}
		reg.Budgets[name] = b
		return Options{
			BaseURL: cfg.BaseURLs[name],
			Budget:  b,
			Client:  cfg.Client,
			Logger:  logger,
			Metrics: cfg.Metrics,
		}, nil
	}

	for _, name := range WeatherProviders {
		opts, err := options(name)
		if err != nil {
			return nil, err
		}
		if name != NameTest {
			opts.APIKey, err = loadAPIKey(name, lookup)
			if err != nil {
				logger.Warn("provider unavailable", zap.String("provider", name), zap.Error(err))
				reg.Providers = append(reg.Providers, NewUnavailableProvider(name, err))
				continue
			}
		}
		p, err := constructors[name](opts)
		if err != nil {
			reg.Providers = append(reg.Providers, NewUnavailableProvider(name, err))
			continue
		}
		reg.Providers = append(reg.Providers, p)
	}

	opts, err := options(NameGeocoding)
	if err != nil {
		return nil, err
	}
	if opts.APIKey, err = loadAPIKey(NameGeocoding, lookup); err != nil {
		logger.Warn("provider unavailable", zap.String("provider", NameGeocoding), zap.Error(err))
		reg.GeocoderErr = err
		return reg, nil
	}
	if reg.Geocoder, err = NewGeocodingProvider(opts); err != nil {
		reg.GeocoderErr = err
	}
	return reg, nil
}

// Names returns the names of all registered providers, geocoding included.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Providers)+1)
	for _, p := range r.Providers {
		names = append(names, p.Name())
	}
	return append(names, NameGeocoding)
}
