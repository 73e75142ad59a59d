// Package config loads service configuration from the environment.
//
// An optional .env file is read first; variables already set in the process
// environment take precedence over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/waypointroute/waypointroute/internal/routing"
)

// Route providers.
const (
	ProviderGoogleMaps       = "googlemaps"
	ProviderOpenRouteService = "openrouteservice"
)

// Config holds the service configuration.
type Config struct {
	Port string
	Env  string

	// RouteProvider selects the directions backend.
	RouteProvider    string
	GoogleMapsAPIKey string
	ORSAPIKey        string

	// Origin and Destination are the fixed route endpoints.
	Origin      routing.Coordinate
	Destination routing.Coordinate

	Map MapConfig

	DirectionsCacheTTL time.Duration
	ProviderTimeout    time.Duration

	// RedisAddr enables the shared directions cache when set.
	RedisAddr string

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool

	Telemetry TelemetryConfig
}

// MapConfig is what the map renderer needs to initialize.
type MapConfig struct {
	Center routing.Coordinate
	Zoom   int
	MapID  string
	Width  string
	Height string
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

var defaults = map[string]any{
	"APP_PORT":                    "8080",
	"APP_ENV":                     "development",
	"ROUTE_PROVIDER":              ProviderGoogleMaps,
	"ORIGIN_LAT":                  30.532666949482124,
	"ORIGIN_LON":                  -87.30156987413315,
	"DESTINATION_LAT":             30.48873,
	"DESTINATION_LON":             -87.19806,
	"MAP_CENTER_LAT":              30.48873,
	"MAP_CENTER_LON":              -87.19806,
	"MAP_ZOOM":                    10,
	"MAP_ID":                      "DEMO_MAP_ID",
	"MAP_WIDTH":                   "100%",
	"MAP_HEIGHT":                  "100vh",
	"DIRECTIONS_CACHE_TTL":        "5m",
	"PROVIDER_TIMEOUT":            "10s",
	"REQUIRE_TLS":                 false,
	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_TRACES_SAMPLER_ARG":     1.0,
}

// Load reads configuration from envFiles (default: .env) and the environment.
// Missing env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		Port:             v.GetString("APP_PORT"),
		Env:              v.GetString("APP_ENV"),
		RouteProvider:    strings.ToLower(strings.TrimSpace(v.GetString("ROUTE_PROVIDER"))),
		GoogleMapsAPIKey: v.GetString("GOOGLE_MAPS_API_KEY"),
		ORSAPIKey:        v.GetString("ORS_API_KEY"),
		Origin: routing.Coordinate{
			Lat: v.GetFloat64("ORIGIN_LAT"),
			Lon: v.GetFloat64("ORIGIN_LON"),
		},
		Destination: routing.Coordinate{
			Lat: v.GetFloat64("DESTINATION_LAT"),
			Lon: v.GetFloat64("DESTINATION_LON"),
		},
		Map: MapConfig{
			Center: routing.Coordinate{
				Lat: v.GetFloat64("MAP_CENTER_LAT"),
				Lon: v.GetFloat64("MAP_CENTER_LON"),
			},
			Zoom:   v.GetInt("MAP_ZOOM"),
			MapID:  v.GetString("MAP_ID"),
			Width:  v.GetString("MAP_WIDTH"),
			Height: v.GetString("MAP_HEIGHT"),
		},
		DirectionsCacheTTL: v.GetDuration("DIRECTIONS_CACHE_TTL"),
		ProviderTimeout:    v.GetDuration("PROVIDER_TIMEOUT"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RequireTLS:         v.GetBool("REQUIRE_TLS"),
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SampleRatio:  v.GetFloat64("OTEL_TRACES_SAMPLER_ARG"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the service misbehave rather than fail loudly.
func (c *Config) Validate() error {
	switch c.RouteProvider {
	case ProviderGoogleMaps, ProviderOpenRouteService:
	default:
		return fmt.Errorf("unknown ROUTE_PROVIDER %q", c.RouteProvider)
	}
	if err := routing.ValidateCoordinate(c.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := routing.ValidateCoordinate(c.Destination); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if err := routing.ValidateCoordinate(c.Map.Center); err != nil {
		return fmt.Errorf("map center: %w", err)
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		return fmt.Errorf("MAP_ZOOM must be between 0 and 22, got %d", c.Map.Zoom)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	return nil
}

// APIKey returns the key of the selected route provider.
func (c *Config) APIKey() string {
	if c.RouteProvider == ProviderOpenRouteService {
		return c.ORSAPIKey
	}
	return c.GoogleMapsAPIKey
}
