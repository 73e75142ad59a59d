package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointroute/waypointroute/internal/routing"
	"github.com/waypointroute/waypointroute/internal/routing/rediscache"
)

func newTestCache(t *testing.T) (*rediscache.Cache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return rediscache.New(rediscache.Config{Client: client}), mr, client
}

func sampleEntry(now time.Time) *routing.CachedDirections {
	return &routing.CachedDirections{
		Response: &routing.DirectionsResponse{
			Status:   routing.StatusOK,
			Provider: "googlemaps",
			Routes: []routing.Route{{
				Summary: "US-90 E",
				Legs: []routing.Leg{
					{StartAddress: "A", EndAddress: "B", DistanceMeters: 1200, DurationSeconds: 300},
					{StartAddress: "B", EndAddress: "C", DistanceMeters: 3400, DurationSeconds: 900},
				},
			}},
			FetchedAt: now,
		},
		FetchedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func TestCache_SetAndGet(t *testing.T) {
	cache, mr, _ := newTestCache(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, cache.Set(ctx, "k1", sampleEntry(now), 5*time.Minute))

	assert.True(t, mr.Exists(rediscache.DefaultKeyPrefix+"k1"))
	assert.Equal(t, 5*time.Minute, mr.TTL(rediscache.DefaultKeyPrefix+"k1"))

	got, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Response)
	assert.True(t, got.ExpiresAt.Equal(now.Add(5*time.Minute)))
	assert.True(t, got.Fresh(now))
	require.Len(t, got.Response.Routes, 1)
	assert.Equal(t, 3400, got.Response.Routes[0].Legs[1].DistanceMeters)
	assert.Equal(t, "US-90 E", got.Response.Routes[0].Summary)
}

func TestCache_GetMiss(t *testing.T) {
	cache, _, _ := newTestCache(t)

	got, ok, err := cache.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCache_RetentionExpires(t *testing.T) {
	cache, mr, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", sampleEntry(time.Now()), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_CorruptEntry(t *testing.T) {
	cache, mr, _ := newTestCache(t)

	require.NoError(t, mr.Set(rediscache.DefaultKeyPrefix+"bad", "{not json"))

	_, _, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestCache_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := rediscache.New(rediscache.Config{Client: client, KeyPrefix: "test:"})
	require.NoError(t, cache.Set(context.Background(), "k", sampleEntry(time.Now()), time.Minute))

	assert.True(t, mr.Exists("test:k"))
}

func TestCache_BacksDirectionsService(t *testing.T) {
	cache, _, _ := newTestCache(t)
	provider := &countingProvider{}

	svc := routing.NewService(routing.ServiceConfig{
		Provider: provider,
		Cache:    cache,
		Logger:   zerolog.Nop(),
	})

	req := routing.DirectionsRequest{
		Origin:      routing.Coordinate{Lat: 30.532666949482124, Lon: -87.30156987413315},
		Destination: routing.Coordinate{Lat: 30.48873, Lon: -87.19806},
		Waypoints:   []routing.Waypoint{{Location: "Pensacola, FL"}},
	}

	_, err := svc.GetDirections(context.Background(), req)
	require.NoError(t, err)
	resp, err := svc.GetDirections(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1200, resp.Routes[0].Legs[0].DistanceMeters)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := rediscache.Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = rediscache.Connect(context.Background(), addr)
	assert.Error(t, err)
}

type countingProvider struct {
	calls int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) GetDirections(_ context.Context, _ routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	p.calls++
	return &routing.DirectionsResponse{
		Status:   routing.StatusOK,
		Provider: "counting",
		Routes: []routing.Route{{
			Legs: []routing.Leg{{DistanceMeters: 1200, DurationSeconds: 300}},
		}},
		FetchedAt: time.Now(),
	}, nil
}
