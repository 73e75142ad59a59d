// Package main provides the entrypoint for the waypoint route API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointroute/waypointroute/internal/api"
	"github.com/waypointroute/waypointroute/internal/api/handler"
	"github.com/waypointroute/waypointroute/internal/api/middleware"
	"github.com/waypointroute/waypointroute/internal/api/models"
	"github.com/waypointroute/waypointroute/internal/config"
	"github.com/waypointroute/waypointroute/internal/provider/resilience"
	"github.com/waypointroute/waypointroute/internal/routing"
	"github.com/waypointroute/waypointroute/internal/routing/googlemaps"
	"github.com/waypointroute/waypointroute/internal/routing/openrouteservice"
	"github.com/waypointroute/waypointroute/internal/routing/rediscache"
	"github.com/waypointroute/waypointroute/internal/telemetry"
	"github.com/waypointroute/waypointroute/internal/widget"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "waypointroute-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting waypoint route API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Float64("sample_ratio", cfg.Telemetry.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetricsWithMeter(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetricsWithMeter(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// Directions provider
	providers := resilience.NewRegistry()
	provider := newProvider(cfg, providers, log)
	if cfg.APIKey() == "" {
		log.Warn().
			Str("provider", provider.Name()).
			Msg("no directions API key configured - route requests will be denied")
	}

	// Directions cache
	readiness := map[string]handler.Check{}
	var cache routing.Cache
	if cfg.RedisAddr != "" {
		rdb, err := rediscache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		defer rdb.Close()

		cache = rediscache.New(rediscache.Config{Client: rdb})
		readiness["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis directions cache connected")
	} else {
		cache = routing.NewMemoryCache(time.Minute)
		log.Info().Msg("using in-memory directions cache")
	}

	directions := routing.NewService(routing.ServiceConfig{
		Provider: provider,
		Cache:    cache,
		Metrics:  providerMetrics,
		Logger:   log,
		CacheTTL: cfg.DirectionsCacheTTL,
		Timeout:  cfg.ProviderTimeout,
	})

	widgets := widget.NewRegistry(widget.Config{
		Provider:       directions,
		Origin:         cfg.Origin,
		Destination:    cfg.Destination,
		Mode:           routing.TravelModeDriving,
		ComputeTimeout: cfg.ProviderTimeout,
		Logger:         log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		RequireTLS:      cfg.RequireTLS,
		Widgets:         widgets,
		Providers:       providers,
		MapView:         mapView(cfg),
		ReadinessChecks: readiness,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("provider", provider.Name()).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	// Let automatic route computations finish
	if err := widgets.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("widgets did not drain before shutdown deadline")
	}

	log.Info().Msg("server stopped")
}

// newProvider builds the configured directions provider.
func newProvider(cfg *config.Config, providers *resilience.Registry, log zerolog.Logger) routing.Provider {
	if cfg.RouteProvider == config.ProviderOpenRouteService {
		return openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.ORSAPIKey,
			Timeout:  cfg.ProviderTimeout,
			Registry: providers,
			Logger:   log,
		})
	}
	return googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:   cfg.GoogleMapsAPIKey,
		Timeout:  cfg.ProviderTimeout,
		Registry: providers,
		Logger:   log,
	})
}

func mapView(cfg *config.Config) models.MapView {
	return models.MapView{
		Container: models.MapContainer{
			Width:  cfg.Map.Width,
			Height: cfg.Map.Height,
		},
		Center:      models.Point{Lat: cfg.Map.Center.Lat, Lon: cfg.Map.Center.Lon},
		Zoom:        cfg.Map.Zoom,
		MapID:       cfg.Map.MapID,
		Origin:      models.Point{Lat: cfg.Origin.Lat, Lon: cfg.Origin.Lon},
		Destination: models.Point{Lat: cfg.Destination.Lat, Lon: cfg.Destination.Lon},
		TravelMode:  string(routing.TravelModeDriving),
	}
}
