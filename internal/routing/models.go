// Package routing provides driving directions through ordered waypoints.
package routing

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the directions provider is down, refused the
	// request, or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("directions provider unavailable")
	// ErrNoRouteFound indicates no route exists through the given stops.
	ErrNoRouteFound = errors.New("no route found through the given stops")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates coordinates are out of range or a waypoint
	// could not be read as a coordinate by a provider that requires one.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidRequest indicates the provider rejected the request as malformed.
	ErrInvalidRequest = errors.New("invalid directions request")
)

// Provider computes routes. Implementations must be safe for concurrent use.
type Provider interface {
	// GetDirections computes a route from origin to destination through the
	// request's waypoints in order. A nil error implies Status == StatusOK and at
	// least one route.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// TravelMode is the mode of transport for a directions request.
type TravelMode string

// TravelModeDriving is the only mode the widget requests.
const TravelModeDriving TravelMode = "DRIVING"

// Status values reported by directions providers. Anything other than StatusOK
// is a failure.
const (
	StatusOK                 = "OK"
	StatusNotFound           = "NOT_FOUND"
	StatusZeroResults        = "ZERO_RESULTS"
	StatusMaxWaypoints       = "MAX_WAYPOINTS_EXCEEDED"
	StatusInvalidRequest     = "INVALID_REQUEST"
	StatusOverQueryLimit     = "OVER_QUERY_LIMIT"
	StatusRequestDenied      = "REQUEST_DENIED"
	StatusUnknownError       = "UNKNOWN_ERROR"
	StatusProviderFailure    = "PROVIDER_FAILURE"
	StatusInvalidCoordinates = "INVALID_COORDINATES"
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Waypoint is an intermediate stop given as free text: an address or a
// "lat,lng" pair. It is passed to the provider untouched.
type Waypoint struct {
	Location string
}

// DirectionsRequest is the request for computing a route.
type DirectionsRequest struct {
	Origin      Coordinate
	Destination Coordinate
	Waypoints   []Waypoint
	Mode        TravelMode
}

// DirectionsResponse is the provider's answer: candidate routes, first one preferred.
type DirectionsResponse struct {
	Status    string
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is one candidate route made of ordered legs.
type Route struct {
	Summary          string
	OverviewPolyline string // Encoded polyline (precision 5)
	BoundingBox      *BoundingBox
	Legs             []Leg
}

// Leg is the part of a route between two consecutive stops.
type Leg struct {
	StartAddress    string
	EndAddress      string
	StartLocation   Coordinate
	EndLocation     Coordinate
	DistanceMeters  int
	DurationSeconds int
}

// BoundingBox represents a geographic bounding box.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Error provides detailed error information from the directions provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Status code reported by the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// StatusOf returns the provider status code carried by err, StatusOK for nil,
// and StatusUnknownError for errors that did not come from a provider.
func StatusOf(err error) string {
	if err == nil {
		return StatusOK
	}
	var rerr *Error
	if errors.As(err, &rerr) && rerr.Code != "" {
		return rerr.Code
	}
	return StatusUnknownError
}

// ValidateCoordinate checks that c is within valid WGS84 ranges.
func ValidateCoordinate(c Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
