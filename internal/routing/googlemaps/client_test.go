package googlemaps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/waypointroute/waypointroute/internal/provider/resilience"
	"github.com/waypointroute/waypointroute/internal/routing"
)

const okResponse = `{
  "status": "OK",
  "geocoded_waypoints": [
    {"geocoder_status": "OK", "place_id": "a"},
    {"geocoder_status": "OK", "place_id": "b"},
    {"geocoder_status": "OK", "place_id": "c"}
  ],
  "routes": [
    {
      "summary": "US-90 E",
      "bounds": {
        "northeast": {"lat": 30.55, "lng": -87.19},
        "southwest": {"lat": 30.47, "lng": -87.31}
      },
      "overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC"},
      "legs": [
        {
          "distance": {"text": "1.2 km", "value": 1200},
          "duration": {"text": "5 mins", "value": 300},
          "start_address": "Origin Rd, Pace, FL",
          "end_address": "Stop 1, Pensacola, FL",
          "start_location": {"lat": 30.5326, "lng": -87.3015},
          "end_location": {"lat": 30.52, "lng": -87.28}
        },
        {
          "distance": {"text": "3.4 km", "value": 3400},
          "duration": {"text": "15 mins", "value": 900},
          "start_address": "Stop 1, Pensacola, FL",
          "end_address": "Destination St, Pensacola, FL",
          "start_location": {"lat": 30.52, "lng": -87.28},
          "end_location": {"lat": 30.48873, "lng": -87.19806}
        }
      ]
    },
    {
      "summary": "alternate",
      "overview_polyline": {"points": ""},
      "legs": []
    }
  ]
}`

func newTestClient(serverURL string, server *httptest.Server) *Client {
	return NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    serverURL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Logger:     zerolog.Nop(),
	})
}

func testRequest(waypoints ...string) routing.DirectionsRequest {
	req := routing.DirectionsRequest{
		Origin:      routing.Coordinate{Lat: 30.532666949482124, Lon: -87.30156987413315},
		Destination: routing.Coordinate{Lat: 30.48873, Lon: -87.19806},
		Mode:        routing.TravelModeDriving,
	}
	for _, wp := range waypoints {
		req.Waypoints = append(req.Waypoints, routing.Waypoint{Location: wp})
	}
	return req
}

func TestClient_GetDirections_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != directionsPath {
			t.Errorf("expected path %s, got %s", directionsPath, r.URL.Path)
		}

		q := r.URL.Query()
		if q.Get("key") != "mock123" {
			t.Errorf("expected key 'mock123', got '%s'", q.Get("key"))
		}
		if q.Get("origin") != "30.532666949482124,-87.30156987413315" {
			t.Errorf("unexpected origin %q", q.Get("origin"))
		}
		if q.Get("destination") != "30.48873,-87.19806" {
			t.Errorf("unexpected destination %q", q.Get("destination"))
		}
		if q.Get("waypoints") != "Stop 1, Pensacola, FL|30.4,-87.2" {
			t.Errorf("unexpected waypoints %q", q.Get("waypoints"))
		}
		if q.Get("mode") != "driving" {
			t.Errorf("expected mode driving, got %q", q.Get("mode"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server)

	resp, err := client.GetDirections(context.Background(), testRequest("Stop 1, Pensacola, FL", "30.4,-87.2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Provider != ProviderName {
		t.Errorf("expected provider %s, got %s", ProviderName, resp.Provider)
	}
	if resp.Status != routing.StatusOK {
		t.Errorf("expected status OK, got %s", resp.Status)
	}
	if len(resp.Routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(resp.Routes))
	}

	route := resp.Routes[0]
	if route.Summary != "US-90 E" {
		t.Errorf("expected summary 'US-90 E', got %q", route.Summary)
	}
	if route.OverviewPolyline == "" {
		t.Error("expected non-empty overview polyline")
	}
	if route.BoundingBox == nil {
		t.Fatal("expected bounding box to be set")
	}
	if route.BoundingBox.MinLat != 30.47 || route.BoundingBox.MaxLon != -87.19 {
		t.Errorf("unexpected bounding box %+v", route.BoundingBox)
	}
	if len(route.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(route.Legs))
	}
	if route.Legs[0].DistanceMeters != 1200 || route.Legs[1].DistanceMeters != 3400 {
		t.Errorf("unexpected leg distances %d, %d", route.Legs[0].DistanceMeters, route.Legs[1].DistanceMeters)
	}
	if route.Legs[0].DurationSeconds != 300 || route.Legs[1].DurationSeconds != 900 {
		t.Errorf("unexpected leg durations %d, %d", route.Legs[0].DurationSeconds, route.Legs[1].DurationSeconds)
	}
	if route.Legs[1].EndAddress != "Destination St, Pensacola, FL" {
		t.Errorf("unexpected end address %q", route.Legs[1].EndAddress)
	}
}

func TestClient_GetDirections_NoWaypointsOmitsParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["waypoints"]; ok {
			t.Error("expected no waypoints parameter")
		}
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server)

	if _, err := client.GetDirections(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_GetDirections_StatusMapping(t *testing.T) {
	tests := []struct {
		status   string
		sentinel error
	}{
		{routing.StatusNotFound, routing.ErrNoRouteFound},
		{routing.StatusZeroResults, routing.ErrNoRouteFound},
		{routing.StatusOverQueryLimit, routing.ErrRateLimitExceeded},
		{routing.StatusInvalidRequest, routing.ErrInvalidRequest},
		{routing.StatusMaxWaypoints, routing.ErrInvalidRequest},
		{routing.StatusRequestDenied, routing.ErrProviderUnavailable},
		{routing.StatusUnknownError, routing.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status":"` + tt.status + `","routes":[]}`))
			}))
			defer server.Close()

			client := newTestClient(server.URL, server)

			_, err := client.GetDirections(context.Background(), testRequest("Somewhere"))
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var routingErr *routing.Error
			if !errors.As(err, &routingErr) {
				t.Fatalf("expected routing.Error, got %T", err)
			}
			if routingErr.Code != tt.status {
				t.Errorf("expected code %s, got %s", tt.status, routingErr.Code)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v, got %v", tt.sentinel, routingErr.Err)
			}
		})
	}
}

func TestClient_GetDirections_ErrorMessagePassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","routes":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server)

	_, err := client.GetDirections(context.Background(), testRequest("Somewhere"))

	var routingErr *routing.Error
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected routing.Error, got %T", err)
	}
	if routingErr.Message != "The provided API key is invalid." {
		t.Errorf("unexpected message %q", routingErr.Message)
	}
}

func TestClient_GetDirections_OKWithoutRoutes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","routes":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server)

	_, err := client.GetDirections(context.Background(), testRequest("Somewhere"))
	if !errors.Is(err, routing.ErrNoRouteFound) {
		t.Errorf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestClient_GetDirections_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server)

	_, err := client.GetDirections(context.Background(), testRequest("Somewhere"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var routingErr *routing.Error
	if !errors.As(err, &routingErr) {
		t.Fatalf("expected routing.Error, got %T", err)
	}
	if routingErr.Code != "HTTP_500" {
		t.Errorf("expected code HTTP_500, got %s", routingErr.Code)
	}
	if !errors.Is(err, routing.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", routingErr.Err)
	}
}

func TestClient_GetDirections_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{
		APIKey:   "mock123",
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	_, err := client.GetDirections(context.Background(), testRequest("Somewhere"))
	if routing.StatusOf(err) != routing.StatusProviderFailure {
		t.Fatalf("expected %s, got %v", routing.StatusProviderFailure, err)
	}
	if !errors.Is(err, routing.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	health := registry.Health(ProviderName)
	if health.LastFailureAt == nil {
		t.Fatal("expected decode failure to be recorded")
	}
	if health.LastStatus != routing.StatusProviderFailure {
		t.Errorf("expected last status %s, got %s", routing.StatusProviderFailure, health.LastStatus)
	}
	if got := health.FailuresByStatus[routing.StatusProviderFailure]; got != 1 {
		t.Errorf("expected 1 provider failure, got %d", got)
	}
}

func TestClient_GetDirections_RecordsHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okResponse))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{
		APIKey:   "mock123",
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	if _, err := client.GetDirections(context.Background(), testRequest("Somewhere")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	health := registry.Health(ProviderName)
	if health == nil {
		t.Fatal("expected provider to be registered")
	}
	if health.LastSuccessAt == nil {
		t.Error("expected last success to be recorded")
	}
	if health.Condition() != resilience.ConditionHealthy {
		t.Errorf("expected healthy, got %s", health.Condition())
	}
}

func TestClient_GetDirections_DeniedKeyMarksProviderDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","routes":[]}`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{
		APIKey:   "bad",
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	if _, err := client.GetDirections(context.Background(), testRequest("Somewhere")); err == nil {
		t.Fatal("expected error, got nil")
	}

	health := registry.Health(ProviderName)
	if health.Condition() != resilience.ConditionDenied {
		t.Errorf("expected denied, got %s", health.Condition())
	}
	if health.LastMessage != "The provided API key is invalid." {
		t.Errorf("unexpected last message %q", health.LastMessage)
	}
}

func TestClient_Name(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test", Logger: zerolog.Nop()})

	if client.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, client.Name())
	}
}

// mockHTTPClient wraps http.Client to implement HTTPDoer interface.
type mockHTTPClient struct {
	client *http.Client
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}
