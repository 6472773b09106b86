package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
)

type cachedResult struct {
	result   weather.AggregationResult
	storedAt time.Time
}

// ResultHistory holds the time-ordered aggregation results of a location and mode.
type ResultHistory struct {
	Results []cachedResult
}

// MemoryStore is a concurrency-safe in-memory cache of aggregation results.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key and mode, value: history
	data map[string]*ResultHistory

	// retention configuration
	maxHistory int           // max number of results per location and mode
	maxAge     time.Duration // optional max age for results

	clock clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return NewMemoryStoreWithClock(maxHistory, maxAge, clockwork.NewRealClock())
}

// NewMemoryStoreWithClock is NewMemoryStore with an explicit clock for retention.
func NewMemoryStoreWithClock(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ResultHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

func cacheKey(loc weather.Location, mode weather.Mode) string {
	return loc.Key() + "|" + string(mode)
}

// SaveResult appends a result for a location and enforces retention.
func (s *MemoryStore) SaveResult(loc weather.Location, result weather.AggregationResult) {
	key := cacheKey(loc, result.Mode)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &ResultHistory{}
		s.data[key] = history
	}

	history.Results = append(history.Results, cachedResult{result: result, storedAt: now})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Results) > s.maxHistory {
		over := len(history.Results) - s.maxHistory
		history.Results = history.Results[over:]
	}

	s.pruneLocked(history, now)
}

// GetLatest returns the most recent result for a location and mode.
func (s *MemoryStore) GetLatest(loc weather.Location, mode weather.Mode) (weather.AggregationResult, error) {
	key := cacheKey(loc, mode)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		return weather.AggregationResult{}, ErrNotFound
	}
	s.pruneLocked(history, now)
	if len(history.Results) == 0 {
		delete(s.data, key)
		return weather.AggregationResult{}, ErrNotFound
	}
	return history.Results[len(history.Results)-1].result, nil
}

// GetHistory returns all retained results for a location and mode, oldest first.
func (s *MemoryStore) GetHistory(loc weather.Location, mode weather.Mode) ([]weather.AggregationResult, error) {
	key := cacheKey(loc, mode)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	s.pruneLocked(history, now)
	if len(history.Results) == 0 {
		return nil, ErrNotFound
	}

	out := make([]weather.AggregationResult, 0, len(history.Results))
	for _, r := range history.Results {
		out = append(out, r.result)
	}
	return out, nil
}

// pruneLocked enforces retention by age.
func (s *MemoryStore) pruneLocked(history *ResultHistory, now time.Time) {
	if s.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-s.maxAge)
	i := 0
	for ; i < len(history.Results); i++ {
		if !history.Results[i].storedAt.Before(cutoff) {
			break
		}
	}
	history.Results = history.Results[i:]
}
