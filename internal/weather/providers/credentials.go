package providers

import (
	"fmt"
	"os"
	"strings"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

// KeyLookup resolves a credential by its environment-style key.
type KeyLookup func(key string) (string, bool)

// EnvLookup reads credentials from the process environment.
var EnvLookup KeyLookup = os.LookupEnv

// EnvKey derives the credential key of a provider from its display name,
// e.g. "Visual Crossing" -> "VISUAL_CROSSING_API_KEY".
func EnvKey(displayName string) string {
	name := strings.ToUpper(strings.TrimSpace(displayName))
	return strings.ReplaceAll(name, " ", "_") + "_API_KEY"
}

func loadAPIKey(displayName string, lookup KeyLookup) (string, error) {
	if lookup == nil {
		lookup = EnvLookup
	}
	key := EnvKey(displayName)
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", weather.NewProviderError(displayName, weather.KindCredentialMissing,
			fmt.Sprintf("%s is not set", key), weather.ErrCredentialMissing)
	}
	return strings.TrimSpace(v), nil
}

func requireKey(name string, opts Options) error {
	if strings.TrimSpace(opts.APIKey) == "" {
		return weather.NewProviderError(name, weather.KindCredentialMissing,
			fmt.Sprintf("%s is not set", EnvKey(name)), weather.ErrCredentialMissing)
	}
	return nil
}
