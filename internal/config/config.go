package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string

	// HTTPTimeout bounds a single outbound provider request.
	HTTPTimeout time.Duration
	// FetchTimeout bounds a whole fan-out, all providers included.
	FetchTimeout time.Duration
	// RefreshInterval controls how often favorites are refreshed.
	RefreshInterval time.Duration

	SettingsFile  string
	BudgetFile    string
	FavoritesFile string

	// In-memory result cache retention.
	CacheMaxHistory int           // max number of results per location and mode (0 = unlimited)
	CacheMaxAge     time.Duration // max age of results (0 = unlimited)

	// Simulate replaces live provider responses with bundled payloads.
	Simulate bool

	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, after an optional .env file, with
// sensible defaults. Provider credentials are looked up per provider and are not part
// of AppConfig.
func Load(envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}

	cfg.SettingsFile = getenvDefault("SETTINGS_FILE", "settings.yaml")
	cfg.BudgetFile = getenvDefault("BUDGET_FILE", "requests.json")
	cfg.FavoritesFile = getenvDefault("FAVORITES_FILE", "favorites.json")

	cfg.CacheMaxHistory = getenvInt("CACHE_MAX_HISTORY", 24) // roughly 12h at 30-minute intervals
	if cfg.CacheMaxAge, err = getenvDuration("CACHE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.Simulate = getenvBool("SIMULATE", false)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
