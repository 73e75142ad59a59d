// Package googlemaps provides a client for the Google Maps Directions API.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointroute/waypointroute/internal/provider/resilience"
	"github.com/waypointroute/waypointroute/internal/routing"
)

const (
	// ProviderName identifies this directions provider.
	ProviderName = "googlemaps"

	// DefaultBaseURL is the Google Maps API base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	directionsPath = "/maps/api/directions/json"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Directions client.
type ClientConfig struct {
	// APIKey is the Google Maps API key. An empty key is sent as is and the
	// API answers REQUEST_DENIED.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Google).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Maps Directions API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new Directions client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections computes a driving route from origin to destination through the
// waypoints in the given order. Waypoint text is forwarded untouched; the API
// geocodes addresses itself.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	params := url.Values{}
	params.Set("origin", formatCoordinate(req.Origin))
	params.Set("destination", formatCoordinate(req.Destination))
	params.Set("mode", travelMode(req.Mode))
	params.Set("units", "metric")
	params.Set("key", c.apiKey)
	if len(req.Waypoints) > 0 {
		stops := make([]string, len(req.Waypoints))
		for i, wp := range req.Waypoints {
			stops[i] = wp.Location
		}
		params.Set("waypoints", strings.Join(stops, "|"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+directionsPath+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Int("waypoints", len(req.Waypoints)).
		Msg("requesting directions from Google Maps")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail(&routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusProviderFailure,
			Message:  "failed to reach directions provider",
			Err:      fmt.Errorf("%w: %s", routing.ErrProviderUnavailable, err.Error()),
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusProviderFailure,
			Message:  "failed to read directions response",
			Err:      fmt.Errorf("%w: %s", routing.ErrProviderUnavailable, err.Error()),
		})
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(&routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("directions provider returned status %d", resp.StatusCode),
			Err:      routing.ErrProviderUnavailable,
		})
	}

	var dr directionsResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, c.fail(&routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusProviderFailure,
			Message:  "failed to decode directions response",
			Err:      fmt.Errorf("%w: %s", routing.ErrProviderUnavailable, err.Error()),
		})
	}

	if dr.Status != routing.StatusOK {
		return nil, c.fail(statusError(dr.Status, dr.ErrorMessage))
	}
	if len(dr.Routes) == 0 {
		return nil, c.fail(statusError(routing.StatusZeroResults, "status OK without routes"))
	}

	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}

	result := toDirectionsResponse(&dr)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Int("leg_count", len(result.Routes[0].Legs)).
		Msg("received directions from Google Maps")

	return result, nil
}

func (c *Client) fail(err *routing.Error) error {
	if c.registry != nil {
		c.registry.RecordFailure(ProviderName, err.Code, err.Message)
	}
	return err
}

// statusError maps a non-OK Directions API status to a routing error.
func statusError(status, message string) *routing.Error {
	if message == "" {
		message = "directions request failed with status " + status
	}

	var sentinel error
	switch status {
	case routing.StatusNotFound, routing.StatusZeroResults:
		sentinel = routing.ErrNoRouteFound
	case routing.StatusOverQueryLimit, "OVER_DAILY_LIMIT":
		sentinel = routing.ErrRateLimitExceeded
	case routing.StatusInvalidRequest, routing.StatusMaxWaypoints, "MAX_ROUTE_LENGTH_EXCEEDED":
		sentinel = routing.ErrInvalidRequest
	default:
		// REQUEST_DENIED, UNKNOWN_ERROR and anything new
		sentinel = routing.ErrProviderUnavailable
	}

	return &routing.Error{
		Provider: ProviderName,
		Code:     status,
		Message:  message,
		Err:      sentinel,
	}
}

// toDirectionsResponse converts the API response to the domain model.
func toDirectionsResponse(dr *directionsResponse) *routing.DirectionsResponse {
	routes := make([]routing.Route, 0, len(dr.Routes))

	for i := range dr.Routes {
		r := &dr.Routes[i]
		out := routing.Route{
			Summary:          r.Summary,
			OverviewPolyline: r.OverviewPolyline.Points,
			Legs:             make([]routing.Leg, 0, len(r.Legs)),
		}

		if r.Bounds != nil {
			out.BoundingBox = &routing.BoundingBox{
				MinLon: r.Bounds.Southwest.Lng,
				MinLat: r.Bounds.Southwest.Lat,
				MaxLon: r.Bounds.Northeast.Lng,
				MaxLat: r.Bounds.Northeast.Lat,
			}
		}

		for j := range r.Legs {
			l := &r.Legs[j]
			out.Legs = append(out.Legs, routing.Leg{
				StartAddress:    l.StartAddress,
				EndAddress:      l.EndAddress,
				StartLocation:   routing.Coordinate{Lat: l.StartLocation.Lat, Lon: l.StartLocation.Lng},
				EndLocation:     routing.Coordinate{Lat: l.EndLocation.Lat, Lon: l.EndLocation.Lng},
				DistanceMeters:  int(l.Distance.Value),
				DurationSeconds: int(l.Duration.Value),
			})
		}

		routes = append(routes, out)
	}

	return &routing.DirectionsResponse{
		Status:    dr.Status,
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}

func formatCoordinate(c routing.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

func travelMode(m routing.TravelMode) string {
	if m == "" {
		return "driving"
	}
	return strings.ToLower(string(m))
}

var _ routing.Provider = (*Client)(nil)
