package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/compass/internal/api"
	"github.com/UnknownOlympus/compass/internal/config"
	"github.com/UnknownOlympus/compass/internal/geocoding"
	"github.com/UnknownOlympus/compass/internal/location"
	"github.com/UnknownOlympus/compass/internal/metrics"
	"github.com/UnknownOlympus/compass/internal/repository"
	"github.com/UnknownOlympus/compass/internal/service"
	"github.com/UnknownOlympus/compass/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	// Canceled on SIGINT/SIGTERM for graceful shutdown.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	dtb, err := repository.NewDatabase(
		ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer dtb.Close()

	repo := repository.NewRepository(dtb, logger)
	if err = repo.Migrate(ctx); err != nil {
		return err
	}

	geoProvider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(cfg.Geocoder.Provider),
		APIKey:    cfg.Geocoder.APIKey,
		RateLimit: cfg.Geocoder.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Geocoder.Provider)

	hub := location.NewHub(logger, cfg.QueueSize, location.WithHubMetrics(appMetrics))
	defer hub.Close()

	tracking := service.NewTrackingService(
		logger,
		hub,
		repo,
		repository.NewSettingsStore(dtb),
		geoProvider,
		cfg.Geocoder.Provider,
		appMetrics,
		trackerConfig(cfg.Tracker),
	)

	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(logger, tracking, repo, reg),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "Starting HTTP server", "port", cfg.Port)
		if srvErr := server.ListenAndServe(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "HTTP server failed", "error", srvErr)
			stop()
		}
	}()

	// Sessions outlive the signal until the HTTP server has stopped accepting requests.
	trackingCtx, stopTracking := context.WithCancel(context.WithoutCancel(ctx))
	trackingDone := make(chan struct{})
	go func() {
		defer close(trackingDone)
		tracking.Run(trackingCtx)
	}()

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")
	<-ctx.Done()

	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(writeTimeout)*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "HTTP server shutdown failed", "error", err)
	}

	stopTracking()
	<-trackingDone

	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")
	return nil
}

func trackerConfig(cfg config.TrackerConfig) tracker.Config {
	return tracker.Config{
		Watch: location.WatchOptions{
			HighAccuracy: cfg.HighAccuracy,
			MaximumAge:   cfg.MaximumAge,
			Timeout:      cfg.Timeout,
		},
		MaxRetries:  cfg.MaxRetries,
		BackoffStep: cfg.BackoffStep,
	}
}

