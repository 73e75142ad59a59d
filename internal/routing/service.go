package routing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/waypointroute/waypointroute/internal/telemetry"
)

// ServiceConfig holds configuration for the directions service.
type ServiceConfig struct {
	// Provider is the upstream directions provider.
	Provider Provider

	// Cache stores responses (default: in-memory).
	Cache Cache

	// Metrics records provider calls (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a response is served without asking the provider
	// (default: 5 minutes). A negative value disables caching.
	CacheTTL time.Duration

	// Timeout bounds one shared upstream call (default: 10 seconds).
	Timeout time.Duration
}

// Service provides directions with caching. It satisfies Provider, so callers
// can use it in place of the upstream provider.
//
// A provider failure is always returned to the caller; expired entries are
// never served in its place.
type Service struct {
	provider Provider
	cache    Cache
	metrics  *telemetry.ProviderMetrics
	logger   zerolog.Logger
	cacheTTL time.Duration
	timeout  time.Duration

	inflight singleflight.Group
}

// NewService creates a new directions service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(0)
	}

	return &Service{
		provider: cfg.Provider,
		cache:    cache,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		cacheTTL: cacheTTL,
		timeout:  timeout,
	}
}

// Name returns the name of the underlying provider.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetDirections returns directions for req, from cache when fresh.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if err := ValidateCoordinate(req.Origin); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     StatusInvalidCoordinates,
			Message:  "invalid origin coordinates",
			Err:      err,
		}
	}
	if err := ValidateCoordinate(req.Destination); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     StatusInvalidCoordinates,
			Message:  "invalid destination coordinates",
			Err:      err,
		}
	}
	if req.Mode == "" {
		req.Mode = TravelModeDriving
	}

	if s.cacheTTL < 0 {
		return s.fetch(ctx, req)
	}

	key := CacheKey(req)
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("directions cache read failed")
	}
	if ok && cached.Fresh(time.Now()) {
		s.metrics.RecordCacheHit(s.provider.Name())
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
		return cached.Response, nil
	}
	s.metrics.RecordCacheMiss(s.provider.Name())

	// Identical concurrent requests share one upstream call. The call runs detached
	// from any single caller so one cancellation does not fail the others.
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		resp, err := s.fetch(shared, req)
		if err != nil {
			return nil, err
		}
		s.store(shared, key, resp)
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DirectionsResponse), nil
	}
}

func (s *Service) store(ctx context.Context, key string, resp *DirectionsResponse) {
	now := time.Now()
	entry := &CachedDirections{
		Response:  resp,
		FetchedAt: now,
		ExpiresAt: now.Add(s.cacheTTL),
	}
	if err := s.cache.Set(ctx, key, entry, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("directions cache write failed")
	}
}

// fetch asks the provider and normalizes an empty answer into ErrNoRouteFound.
func (s *Service) fetch(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	s.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Int("waypoints", len(req.Waypoints)).
		Str("mode", string(req.Mode)).
		Str("provider", s.provider.Name()).
		Msg("fetching directions from provider")

	start := time.Now()
	resp, err := s.provider.GetDirections(ctx, req)
	if err == nil && (resp == nil || len(resp.Routes) == 0) {
		err = &Error{
			Provider: s.provider.Name(),
			Code:     StatusZeroResults,
			Message:  "provider returned no routes",
			Err:      ErrNoRouteFound,
		}
	}
	s.metrics.RecordRequest(s.provider.Name(), StatusOf(err), time.Since(start))

	if err != nil {
		s.logger.Error().Err(err).
			Str("status", StatusOf(err)).
			Int("waypoints", len(req.Waypoints)).
			Str("provider", s.provider.Name()).
			Msg("failed to fetch directions")
		return nil, err
	}
	return resp, nil
}

// CacheKey derives the cache key for req. Waypoint text is matched exactly.
// Format: {mode}:{originLat},{originLon}:{destLat},{destLon}:{quoted waypoints}.
func CacheKey(req DirectionsRequest) string {
	var b strings.Builder
	b.WriteString(string(req.Mode))
	fmt.Fprintf(&b, ":%.6f,%.6f:%.6f,%.6f:",
		req.Origin.Lat, req.Origin.Lon,
		req.Destination.Lat, req.Destination.Lon,
	)
	for i, wp := range req.Waypoints {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Quote(wp.Location))
	}
	return b.String()
}

var _ Provider = (*Service)(nil)
