package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/location-fix-service/internal/acquisition"
	httpadapter "github.com/couchcryptid/location-fix-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/location-fix-service/internal/adapter/kafka"
	"github.com/couchcryptid/location-fix-service/internal/adapter/mapbox"
	"github.com/couchcryptid/location-fix-service/internal/adapter/nmea"
	"github.com/couchcryptid/location-fix-service/internal/config"
	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

// demoCenter is where the simulated receiver converges.
var demoCenter = domain.Coordinate{Lat: 30.2747, Lon: -97.7404}

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	categories := domain.DefaultCategories
	if cfg.CategoriesFile != "" {
		categories, err = domain.LoadCategories(cfg.CategoriesFile)
		if err != nil {
			logger.Error("failed to load categories", "path", cfg.CategoriesFile, "error", err)
			os.Exit(1)
		}
	}

	var provider domain.LocationProvider
	switch cfg.GPSType {
	case config.GPSTypeDemo:
		provider = nmea.NewDemo(demoCenter, time.Second, nil)
	default:
		provider = nmea.NewProvider(nmea.Config{Port: cfg.GPSPort, Baud: cfg.GPSBaud, UERE: cfg.GPSUERE}, logger)
	}
	logger.Info("location provider configured", "provider", provider.Name())

	// Initialize resolver (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var resolver domain.AddressResolver
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRatePerMin, metrics, logger)
		breaker := mapbox.NewBreakerGeocoder(client, mapbox.BreakerConfig{}, logger)
		resolver = mapbox.NewCachedGeocoder(breaker, cfg.MapboxCacheSize, cfg.MapboxCacheTTL, nil, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled",
			"cache_size", cfg.MapboxCacheSize,
			"cache_ttl", cfg.MapboxCacheTTL,
			"timeout", cfg.MapboxTimeout,
			"rate_per_min", cfg.MapboxRatePerMin,
		)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	settings := acquisition.DefaultSettings()
	settings.DesiredAccuracy = cfg.DesiredAccuracy
	settings.Timeout = cfg.AcquisitionTimeout
	settings.StalenessThreshold = cfg.StalenessThreshold
	settings.StuckTimeout = cfg.StuckTimeout
	machine := acquisition.New(provider, resolver, settings, logger, metrics)

	formatter := domain.NewFormatter(time.Local)
	hub := httpadapter.NewHub(machine, formatter, cfg.WSAllowedOrigins, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, machine, formatter, categories, hub, logger)

	var feed *kafkaadapter.Feed
	if len(cfg.KafkaBrokers) > 0 {
		feed = kafkaadapter.NewFeed(cfg.KafkaBrokers, cfg.KafkaStateTopic, metrics, logger)
		logger.Info("kafka state feed enabled", "topic", cfg.KafkaStateTopic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start acquisition loop and snapshot consumers. The feed has its own
	// context so it can publish the snapshot the machine emits on shutdown.
	var loops, feeds sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		if err := machine.Run(ctx); err != nil {
			logger.Error("acquisition loop error", "error", err)
		}
	}()
	go func() {
		defer loops.Done()
		hub.Run(ctx)
	}()

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	if feed != nil {
		feeds.Add(1)
		go func() {
			defer feeds.Done()
			feed.Run(feedCtx, machine)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	loops.Wait()
	stopFeed()
	feeds.Wait()
	if feed != nil {
		if err := feed.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
