package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-aggregation/internal/metrics"
)

// FetchRequest describes one aggregation run.
type FetchRequest struct {
	Location Location
	Date     time.Time
	Mode     Mode
	Simulate bool
}

// Service fans out to all enabled providers, merges their records and keeps the latest
// result per location in the store.
type Service struct {
	store     ResultStore
	providers []Provider
	settings  Settings
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewService creates a new Service. A nil settings enables every provider.
func NewService(store ResultStore, providers []Provider, settings Settings, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		providers: providers,
		settings:  settings,
		logger:    logger,
		metrics:   m,
	}
}

// Providers returns the registered providers in registration order.
func (s *Service) Providers() []Provider {
	return s.providers
}

type outcome struct {
	provider string
	records  []ForecastRecord
	err      error
}

// Fetch runs every enabled provider concurrently, waits for all of them and aggregates
// the successful results. Failures are reported in the result, never returned.
func (s *Service) Fetch(ctx context.Context, req FetchRequest) AggregationResult {
	started := time.Now()
	if req.Mode == "" {
		req.Mode = ModeDay
	}

	result := AggregationResult{
		ID:       uuid.NewString(),
		Location: req.Location,
		Mode:     req.Mode,
		Date:     req.Date,
		Buckets:  []AggregatedBucket{},
		Errors:   []string{},
	}
	log := s.logger.With(
		zap.String("fetch_id", result.ID),
		zap.String("location", req.Location.Key()),
		zap.String("mode", string(req.Mode)),
	)

	// Flags are read once, before the fan-out.
	enabled := s.enabledProviders()
	if len(enabled) == 0 {
		log.Info("no enabled providers; returning empty result")
		return result
	}

	outcomes := make([]outcome, len(enabled))
	var wg sync.WaitGroup
	for i, p := range enabled {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			outcomes[i] = s.call(ctx, p, req)
		}(i, p)
	}
	wg.Wait()

	var records []ForecastRecord
	for _, o := range outcomes {
		if o.err != nil {
			log.Warn("provider fetch failed",
				zap.String("provider", o.provider),
				zap.String("kind", string(KindOf(o.err))),
				zap.Error(o.err),
			)
			result.Errors = append(result.Errors, errorMessage(o.provider, o.err))
			s.metrics.ObserveProviderOutcome(o.provider, string(KindOf(o.err)))
			continue
		}
		s.metrics.ObserveProviderOutcome(o.provider, "success")
		for _, r := range o.records {
			if r.Source == "" {
				r.Source = o.provider
			}
			records = append(records, r)
		}
	}

	result.Buckets = BucketRecords(req.Mode, records)
	s.metrics.ObserveAggregation(string(req.Mode), time.Since(started))

	log.Info("aggregation completed",
		zap.Int("providers", len(enabled)),
		zap.Int("records", len(records)),
		zap.Int("buckets", len(result.Buckets)),
		zap.Int("failures", len(result.Errors)),
	)
	return result
}

// FetchAndStore aggregates and saves the result for later retrieval.
func (s *Service) FetchAndStore(ctx context.Context, req FetchRequest) (AggregationResult, error) {
	result := s.Fetch(ctx, req)
	if s.store == nil {
		return result, nil
	}
	if result.Empty() {
		// Keep the last good result.
		s.logger.Info("no data for location; keeping last stored result",
			zap.String("location", req.Location.Key()),
			zap.Strings("errors", result.Errors),
		)
		return result, fmt.Errorf("no forecast data available for %s", req.Location.Key())
	}
	s.store.SaveResult(req.Location, result)
	return result, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(loc Location, mode Mode) (AggregationResult, error) {
	if s.store == nil {
		return AggregationResult{}, errors.New("result store not configured")
	}
	return s.store.GetLatest(loc, mode)
}

func (s *Service) enabledProviders() []Provider {
	out := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if s.settings != nil && !s.settings.Enabled(p.Name()) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) call(ctx context.Context, p Provider, req FetchRequest) (o outcome) {
	o.provider = p.Name()
	defer func() {
		if rec := recover(); rec != nil {
			o.records = nil
			o.err = NewProviderError(o.provider, KindTransport, "provider panicked", fmt.Errorf("%v", rec))
		}
	}()

	switch req.Mode {
	case ModeWeek:
		o.records, o.err = p.FetchWeek(ctx, req.Location, req.Simulate)
	default:
		o.records, o.err = p.FetchDay(ctx, req.Date, req.Location, req.Simulate)
	}
	return o
}

func errorMessage(provider string, err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return fmt.Sprintf("%s: %v", provider, err)
}
