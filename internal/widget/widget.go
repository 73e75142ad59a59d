// Package widget holds the route widget: an ordered list of free-text waypoints
// between a fixed origin and destination, the last applied directions result and
// the totals derived from it.
package widget

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointroute/waypointroute/internal/routing"
)

// DefaultComputeTimeout bounds automatic computations, which have no caller context.
const DefaultComputeTimeout = 10 * time.Second

// Outcome reports what a route computation did to the widget.
type Outcome int

const (
	// OutcomeSkipped means at least one waypoint was empty and no request was made.
	OutcomeSkipped Outcome = iota
	// OutcomeApplied means the result was stored and totals recomputed.
	OutcomeApplied
	// OutcomeFailed means the provider failed; state is unchanged.
	OutcomeFailed
	// OutcomeStale means a newer computation had already been applied.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeApplied:
		return "applied"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Waypoint is an intermediate stop given as free text.
type Waypoint struct {
	Location string
}

// Config holds what every widget shares.
type Config struct {
	// Provider computes routes (required).
	Provider routing.Provider

	// Origin and Destination are the fixed route endpoints.
	Origin      routing.Coordinate
	Destination routing.Coordinate

	// Mode is the travel mode (default: driving).
	Mode routing.TravelMode

	// ComputeTimeout bounds automatic computations (default: 10s).
	ComputeTimeout time.Duration

	// Logger for widget operations.
	Logger zerolog.Logger
}

// Snapshot is a consistent copy of widget state.
type Snapshot struct {
	ID        string
	MapReady  bool
	Waypoints []Waypoint
	Result    *routing.DirectionsResponse
	Totals    Totals

	// Generation is the generation of the applied result, 0 before the first.
	Generation uint64
}

// Widget is one mounted route widget. It is safe for concurrent use.
//
// Every computation takes the next generation number when it starts. A response
// is applied only if its generation is newer than the applied one, so a slow
// earlier request never overwrites a later result.
type Widget struct {
	id          string
	provider    routing.Provider
	origin      routing.Coordinate
	destination routing.Coordinate
	mode        routing.TravelMode
	timeout     time.Duration
	logger      zerolog.Logger

	mu        sync.Mutex
	waypoints []Waypoint
	mapReady  bool
	result    *routing.DirectionsResponse
	totals    Totals
	issued    uint64
	applied   uint64
	closed    bool

	inflight sync.WaitGroup
}

// New creates a widget with a single empty waypoint slot.
func New(id string, cfg Config) *Widget {
	mode := cfg.Mode
	if mode == "" {
		mode = routing.TravelModeDriving
	}
	timeout := cfg.ComputeTimeout
	if timeout <= 0 {
		timeout = DefaultComputeTimeout
	}

	return &Widget{
		id:          id,
		provider:    cfg.Provider,
		origin:      cfg.Origin,
		destination: cfg.Destination,
		mode:        mode,
		timeout:     timeout,
		logger:      cfg.Logger.With().Str("widget_id", id).Logger(),
		waypoints:   []Waypoint{{}},
	}
}

// ID returns the widget identifier.
func (w *Widget) ID() string {
	return w.id
}

// AddWaypoint appends an empty waypoint.
func (w *Widget) AddWaypoint() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.waypoints = append(w.waypoints, Waypoint{})
	w.autoComputeLocked()
}

// RemoveWaypoint removes the waypoint at index, keeping the order of the rest.
// An out-of-range index changes nothing and reports false.
func (w *Widget) RemoveWaypoint(index int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index < 0 || index >= len(w.waypoints) {
		return false
	}
	w.waypoints = append(w.waypoints[:index], w.waypoints[index+1:]...)
	w.autoComputeLocked()
	return true
}

// SetWaypointLocation overwrites the text at index. The text is not checked for
// geocodability. An out-of-range index changes nothing and reports false.
func (w *Widget) SetWaypointLocation(index int, location string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index < 0 || index >= len(w.waypoints) {
		return false
	}
	w.waypoints[index].Location = location
	w.autoComputeLocked()
	return true
}

// MarkMapReady records that the renderer finished initializing.
func (w *Widget) MarkMapReady() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mapReady = true
	w.autoComputeLocked()
}

// ComputeRoute asks the provider for a route through the current waypoints. It
// is skipped when any waypoint is empty. A provider failure is logged and
// returned alongside OutcomeFailed; state is left as it was.
func (w *Widget) ComputeRoute(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	req, gen, ok := w.prepareLocked()
	w.mu.Unlock()

	if !ok {
		w.logger.Debug().Msg("route computation skipped, empty waypoint")
		return OutcomeSkipped, nil
	}
	return w.compute(ctx, req, gen)
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	waypoints := make([]Waypoint, len(w.waypoints))
	copy(waypoints, w.waypoints)

	return Snapshot{
		ID:         w.id,
		MapReady:   w.mapReady,
		Waypoints:  waypoints,
		Result:     w.result,
		Totals:     w.totals,
		Generation: w.applied,
	}
}

// Wait blocks until automatic computations started so far have finished.
func (w *Widget) Wait() {
	w.inflight.Wait()
}

// Close stops automatic computations and waits for running ones.
func (w *Widget) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.inflight.Wait()
}

// autoComputeLocked starts a background computation when the map is ready and
// every waypoint is filled. It runs on each qualifying change without debouncing.
func (w *Widget) autoComputeLocked() {
	if !w.mapReady || w.closed {
		return
	}
	req, gen, ok := w.prepareLocked()
	if !ok {
		return
	}

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		_, _ = w.compute(ctx, req, gen)
	}()
}

// prepareLocked builds the request from current state and reserves a generation.
func (w *Widget) prepareLocked() (routing.DirectionsRequest, uint64, bool) {
	stops := make([]routing.Waypoint, 0, len(w.waypoints))
	for _, wp := range w.waypoints {
		if wp.Location == "" {
			return routing.DirectionsRequest{}, 0, false
		}
		stops = append(stops, routing.Waypoint{Location: wp.Location})
	}

	w.issued++
	return routing.DirectionsRequest{
		Origin:      w.origin,
		Destination: w.destination,
		Waypoints:   stops,
		Mode:        w.mode,
	}, w.issued, true
}

func (w *Widget) compute(ctx context.Context, req routing.DirectionsRequest, gen uint64) (Outcome, error) {
	resp, err := w.provider.GetDirections(ctx, req)
	if err == nil {
		err = checkResponse(resp, w.provider.Name())
	}
	if err != nil {
		w.logger.Error().Err(err).
			Str("status", routing.StatusOf(err)).
			Uint64("generation", gen).
			Int("waypoints", len(req.Waypoints)).
			Msg("directions request failed")
		return OutcomeFailed, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen <= w.applied {
		w.logger.Debug().
			Uint64("generation", gen).
			Uint64("applied", w.applied).
			Msg("discarding stale directions response")
		return OutcomeStale, nil
	}

	w.result = resp
	w.totals = ComputeTotals(resp)
	w.applied = gen

	w.logger.Debug().
		Uint64("generation", gen).
		Str("distance_km", w.totals.DistanceKm).
		Str("duration_min", w.totals.DurationMin).
		Msg("route applied")

	return OutcomeApplied, nil
}

// checkResponse treats anything but an OK status with at least one route as a
// provider failure.
func checkResponse(resp *routing.DirectionsResponse, provider string) error {
	if resp == nil {
		return &routing.Error{
			Provider: provider,
			Code:     routing.StatusUnknownError,
			Message:  "provider returned no response",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	if resp.Status != routing.StatusOK {
		return &routing.Error{
			Provider: provider,
			Code:     resp.Status,
			Message:  "directions request failed with status " + resp.Status,
			Err:      routing.ErrProviderUnavailable,
		}
	}
	if len(resp.Routes) == 0 {
		return &routing.Error{
			Provider: provider,
			Code:     routing.StatusZeroResults,
			Message:  "provider returned no routes",
			Err:      routing.ErrNoRouteFound,
		}
	}
	return nil
}
