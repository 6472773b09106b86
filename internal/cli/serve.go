package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-aggregation/internal/api/http"
	"github.com/i474232898/weather-aggregation/internal/scheduler"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic refresh of favorite locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			sched := scheduler.New(a.favorites, a.service, scheduler.Options{
				Interval: a.cfg.RefreshInterval,
				Timeout:  a.cfg.FetchTimeout,
				Simulate: a.cfg.Simulate,
			}, a.logger)
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()

			app := httpapi.NewApp(a.logger)
			deps := httpapi.Deps{
				Service:      a.service,
				GeocoderErr:  a.registry.GeocoderErr,
				Favorites:    a.favorites,
				Settings:     a.settings,
				Budgets:      a.registry.Budgets,
				Gatherer:     a.metrics,
				FetchTimeout: a.cfg.FetchTimeout,
				Simulate:     a.cfg.Simulate,
			}
			if a.registry.Geocoder != nil {
				deps.Geocoder = a.registry.Geocoder
			}
			httpapi.RegisterRoutes(app, deps)

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("http server listening", zap.String("port", a.cfg.Port))
				errCh <- app.Listen(":" + a.cfg.Port)
			}()

			// Wait for termination signal
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			a.logger.Info("shutting down")
			return app.ShutdownWithContext(shutdownCtx)
		},
	}
}
