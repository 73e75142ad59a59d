// Package resilience wraps calls to directions providers with a circuit breaker,
// bounded retries and per-provider health tracking.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig decides when calls to a directions provider are cut off.
type BreakerConfig struct {
	// MinRequests is how many calls the breaker must see before it may open (default: 5).
	MinRequests uint32

	// FailureRatio opens the breaker once reached (default: 0.5).
	FailureRatio float64

	// OpenTimeout is how long the breaker stays open before a trial call (default: 30s).
	OpenTimeout time.Duration

	// TrialRequests is how many calls pass while half-open (default: 1).
	TrialRequests uint32
}

// DefaultBreakerConfig returns the breaker settings used for directions providers.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:   5,
		FailureRatio:  0.5,
		OpenTimeout:   30 * time.Second,
		TrialRequests: 1,
	}
}

func (b BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if b.MinRequests == 0 {
		b.MinRequests = d.MinRequests
	}
	if b.FailureRatio <= 0 {
		b.FailureRatio = d.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = d.OpenTimeout
	}
	if b.TrialRequests == 0 {
		b.TrialRequests = d.TrialRequests
	}
	return b
}

// ShouldTrip reports whether counts justify opening the breaker.
func (b BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests < b.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
}

// countsAgainstProvider reports whether err says something about the provider.
// A caller that gave up, such as a widget edit superseding an HTTP request, does not.
func countsAgainstProvider(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func newBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{ //nolint:bodyclose // type param, not response
		Name:        name,
		MaxRequests: cfg.TrialRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.ShouldTrip,
		IsSuccessful: func(err error) bool {
			return !countsAgainstProvider(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("directions circuit breaker state changed")
		},
	})
}
