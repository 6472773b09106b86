package cli

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/weather-aggregation/internal/budget"
	"github.com/i474232898/weather-aggregation/internal/config"
	"github.com/i474232898/weather-aggregation/internal/logging"
	"github.com/i474232898/weather-aggregation/internal/metrics"
	"github.com/i474232898/weather-aggregation/internal/settings"
	"github.com/i474232898/weather-aggregation/internal/store"
	"github.com/i474232898/weather-aggregation/internal/weather"
	"github.com/i474232898/weather-aggregation/internal/weather/providers"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "weather-aggregation",
		Short: "Multi-provider weather forecast aggregation",
		Long: `weather-aggregation fetches forecasts from several weather providers concurrently,
normalizes them and merges them into an hourly or daily view. Every provider call
is checked against a persisted daily and monthly request budget.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	load := func() (*app, error) {
		return bootstrap(envFile)
	}

	root.AddCommand(
		newServeCmd(load),
		newForecastCmd(load),
		newSearchCmd(load),
		newBudgetsCmd(load),
	)
	return root
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds every collaborator, built once per command.
type app struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	settings  *settings.Store
	budgets   *budget.FileStore
	registry  *providers.Registry
	metrics   *prometheus.Registry
	service   *weather.Service
	cache     *store.MemoryStore
	favorites *store.LocationStore
}

type loader func() (*app, error)

func bootstrap(envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	prefs, err := settings.Load(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	budgets := budget.NewFileStore(cfg.BudgetFile, logger)
	client := resty.New().
		SetTimeout(cfg.HTTPTimeout).
		SetHeader("User-Agent", "weather-aggregation")

	registry, err := providers.Build(providers.Config{
		Store:   budgets,
		Limits:  prefs.Limits,
		Client:  client,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	cache := store.NewMemoryStore(cfg.CacheMaxHistory, cfg.CacheMaxAge)
	service := weather.NewService(cache, registry.Providers, prefs, logger, m)

	return &app{
		cfg:       cfg,
		logger:    logger,
		settings:  prefs,
		budgets:   budgets,
		registry:  registry,
		metrics:   reg,
		service:   service,
		cache:     cache,
		favorites: store.NewLocationStore(cfg.FavoritesFile),
	}, nil
}
