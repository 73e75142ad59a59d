// Package openrouteservice provides a directions client for the OpenRouteService API.
//
// ORS routes between coordinates only. Waypoints must therefore be
// coordinate-parseable text ("lat,lng"); address waypoints are rejected with
// routing.ErrInvalidCoordinates instead of being geocoded.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointroute/waypointroute/internal/provider/resilience"
	"github.com/waypointroute/waypointroute/internal/routing"
)

const (
	// ProviderName identifies this directions provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	drivingProfile = "driving-car"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
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

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
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

// GetDirections computes a driving route through the waypoints in order.
// Each ORS segment becomes one leg.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := routing.ValidateCoordinate(req.Origin); err != nil {
		return nil, invalidCoordinates("invalid origin coordinates")
	}
	if err := routing.ValidateCoordinate(req.Destination); err != nil {
		return nil, invalidCoordinates("invalid destination coordinates")
	}

	// ORS uses [lon, lat] order (GeoJSON)
	coords := make([][]float64, 0, len(req.Waypoints)+2)
	coords = append(coords, []float64{req.Origin.Lon, req.Origin.Lat})
	for i, wp := range req.Waypoints {
		pt, err := ParseCoordinate(wp.Location)
		if err != nil {
			return nil, invalidCoordinates(fmt.Sprintf("waypoint %d is not a coordinate: %q", i+1, wp.Location))
		}
		coords = append(coords, []float64{pt.Lon, pt.Lat})
	}
	coords = append(coords, []float64{req.Destination.Lon, req.Destination.Lat})

	body, err := json.Marshal(orsRequest{
		Coordinates:  coords,
		Instructions: true,
		Geometry:     true,
		Units:        "m",
		Language:     "en",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, drivingProfile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Str("profile", drivingProfile).
		Int("coordinates", len(coords)).
		Msg("requesting directions from ORS")

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

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(&routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusProviderFailure,
			Message:  "failed to read directions response",
			Err:      fmt.Errorf("%w: %s", routing.ErrProviderUnavailable, err.Error()),
		})
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(handleErrorResponse(resp.StatusCode, respBody))
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, c.fail(&routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusProviderFailure,
			Message:  "failed to decode directions response",
			Err:      fmt.Errorf("%w: %s", routing.ErrProviderUnavailable, err.Error()),
		})
	}
	if len(orsResp.Routes) == 0 {
		return nil, c.fail(&routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusZeroResults,
			Message:  "no route found through the given stops",
			Err:      routing.ErrNoRouteFound,
		})
	}

	if c.registry != nil {
		c.registry.RecordSuccess(ProviderName)
	}

	result := toDirectionsResponse(&orsResp, req)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received directions from ORS")

	return result, nil
}

func (c *Client) fail(err *routing.Error) error {
	if c.registry != nil {
		c.registry.RecordFailure(ProviderName, err.Code, err.Message)
	}
	return err
}

// handleErrorResponse maps ORS error responses to routing errors. The Code field
// carries the equivalent directions status so callers log one vocabulary.
func handleErrorResponse(statusCode int, body []byte) *routing.Error {
	var orsErr orsErrorResponse
	if err := json.Unmarshal(body, &orsErr); err != nil {
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("directions provider returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return &routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusOverQueryLimit,
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	case http.StatusForbidden, http.StatusUnauthorized:
		return &routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusRequestDenied,
			Message:  "API access denied - check API key configuration",
			Err:      routing.ErrProviderUnavailable,
		}
	case http.StatusNotFound:
		return &routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusZeroResults,
			Message:  "no route found through the given stops",
			Err:      routing.ErrNoRouteFound,
		}
	case http.StatusBadRequest:
		if orsErr.Error.Code == orsErrorCodeNotFound || orsErr.Error.Code == orsErrorCodePointNotFound {
			return &routing.Error{
				Provider: ProviderName,
				Code:     routing.StatusZeroResults,
				Message:  orsErr.Error.Message,
				Err:      routing.ErrNoRouteFound,
			}
		}
		return &routing.Error{
			Provider: ProviderName,
			Code:     routing.StatusInvalidRequest,
			Message:  orsErr.Error.Message,
			Err:      routing.ErrInvalidRequest,
		}
	default:
		if statusCode >= 500 {
			return &routing.Error{
				Provider: ProviderName,
				Code:     routing.StatusUnknownError,
				Message:  "directions provider is temporarily unavailable",
				Err:      routing.ErrProviderUnavailable,
			}
		}
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  orsErr.Error.Message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toDirectionsResponse converts the ORS response to the domain model. Leg
// addresses are the input texts since ORS does not reverse-geocode.
func toDirectionsResponse(resp *orsResponse, req routing.DirectionsRequest) *routing.DirectionsResponse {
	stops := make([]string, 0, len(req.Waypoints)+2)
	stops = append(stops, formatCoordinate(req.Origin))
	for _, wp := range req.Waypoints {
		stops = append(stops, wp.Location)
	}
	stops = append(stops, formatCoordinate(req.Destination))

	routes := make([]routing.Route, 0, len(resp.Routes))
	for i := range resp.Routes {
		orsRoute := &resp.Routes[i]
		route := routing.Route{
			OverviewPolyline: orsRoute.Geometry,
			Summary:          routeSummaryText(orsRoute),
		}

		if len(orsRoute.BBox) >= 4 {
			route.BoundingBox = &routing.BoundingBox{
				MinLon: orsRoute.BBox[0],
				MinLat: orsRoute.BBox[1],
				MaxLon: orsRoute.BBox[2],
				MaxLat: orsRoute.BBox[3],
			}
		}

		for j := range orsRoute.Segments {
			segment := &orsRoute.Segments[j]
			leg := routing.Leg{
				DistanceMeters:  int(segment.Distance),
				DurationSeconds: int(segment.Duration),
			}
			if j+1 < len(stops) {
				leg.StartAddress = stops[j]
				leg.EndAddress = stops[j+1]
			}
			route.Legs = append(route.Legs, leg)
		}

		// Single-segment responses sometimes omit segments entirely
		if len(route.Legs) == 0 {
			route.Legs = []routing.Leg{{
				StartAddress:    stops[0],
				EndAddress:      stops[len(stops)-1],
				DistanceMeters:  int(orsRoute.Summary.Distance),
				DurationSeconds: int(orsRoute.Summary.Duration),
			}}
		}

		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{
		Status:    routing.StatusOK,
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}

// routeSummaryText names the longest road of the route, if ORS named it.
func routeSummaryText(r *orsRoute) string {
	var name string
	var longest float64
	for i := range r.Segments {
		for _, step := range r.Segments[i].Steps {
			if step.Name != "" && step.Name != "-" && step.Distance > longest {
				longest = step.Distance
				name = step.Name
			}
		}
	}
	return name
}

// ParseCoordinate reads "lat,lng" text into a coordinate.
func ParseCoordinate(s string) (routing.Coordinate, error) {
	latText, lonText, ok := strings.Cut(s, ",")
	if !ok {
		return routing.Coordinate{}, routing.ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return routing.Coordinate{}, routing.ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return routing.Coordinate{}, routing.ErrInvalidCoordinates
	}
	c := routing.Coordinate{Lat: lat, Lon: lon}
	if err := routing.ValidateCoordinate(c); err != nil {
		return routing.Coordinate{}, err
	}
	return c, nil
}

func invalidCoordinates(message string) *routing.Error {
	return &routing.Error{
		Provider: ProviderName,
		Code:     routing.StatusInvalidCoordinates,
		Message:  message,
		Err:      routing.ErrInvalidCoordinates,
	}
}

func formatCoordinate(c routing.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

var _ routing.Provider = (*Client)(nil)
