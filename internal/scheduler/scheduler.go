package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-aggregation/internal/weather"
)

// Favorites supplies the locations to refresh.
type Favorites interface {
	Locations() ([]weather.Location, error)
}

// Refresher aggregates and stores the result of one request.
type Refresher interface {
	FetchAndStore(ctx context.Context, req weather.FetchRequest) (weather.AggregationResult, error)
}

// Options tune a Scheduler.
type Options struct {
	Interval time.Duration
	// Timeout bounds the refresh of a single location and mode.
	Timeout  time.Duration
	Simulate bool
	Modes    []weather.Mode
}

// Scheduler periodically refreshes the cached forecasts of the favorite locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	favorites Favorites
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a new Scheduler. Both modes are refreshed unless opts.Modes says otherwise.
func New(favorites Favorites, service Refresher, opts Options, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.Modes) == 0 {
		opts.Modes = []weather.Mode{weather.ModeDay, weather.ModeWeek}
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		favorites: favorites,
		opts:      opts,
		logger:    logger.Named("scheduler"),
		now:       time.Now,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The first run
// happens immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.opts.Interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every favorite location in every configured mode and waits for all
// of them. It returns the number of refreshes that produced data.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	locations, err := s.favorites.Locations()
	if err != nil {
		s.logger.Error("load favorite locations", zap.Error(err))
		return 0
	}
	if len(locations) == 0 {
		s.logger.Debug("no favorite locations; nothing to refresh")
		return 0
	}

	s.logger.Info("running forecast refresh", zap.Int("locations", len(locations)))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)
	for _, loc := range locations {
		for _, mode := range s.opts.Modes {
			wg.Add(1)
			go func(loc weather.Location, mode weather.Mode) {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
				defer cancel()

				req := weather.FetchRequest{Location: loc, Date: s.now(), Mode: mode, Simulate: s.opts.Simulate}
				if _, err := s.service.FetchAndStore(ctx, req); err != nil {
					s.logger.Warn("refresh failed",
						zap.String("location", loc.Key()),
						zap.String("mode", string(mode)),
						zap.Error(err),
					)
					return
				}
				mu.Lock()
				refreshed++
				mu.Unlock()
			}(loc, mode)
		}
	}
	wg.Wait()

	s.logger.Info("completed forecast refresh", zap.Int("refreshed", refreshed))
	return refreshed
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
