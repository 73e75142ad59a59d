package routing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockProvider is a mock directions provider for testing.
type mockProvider struct {
	name      string
	response  *DirectionsResponse
	err       error
	callCount atomic.Int32
	delay     time.Duration
	mu        sync.Mutex
	lastReq   DirectionsRequest
}

func (m *mockProvider) GetDirections(_ context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func testResponse() *DirectionsResponse {
	return &DirectionsResponse{
		Status: StatusOK,
		Routes: []Route{
			{
				OverviewPolyline: "_p~iF~ps|U_ulLnnqC",
				Legs: []Leg{
					{DistanceMeters: 1200, DurationSeconds: 300},
					{DistanceMeters: 3400, DurationSeconds: 900},
				},
			},
		},
		Provider:  "test-provider",
		FetchedAt: time.Now(),
	}
}

func testRequest(waypoints ...string) DirectionsRequest {
	req := DirectionsRequest{
		Origin:      Coordinate{Lat: 30.532666949482124, Lon: -87.30156987413315},
		Destination: Coordinate{Lat: 30.48873, Lon: -87.19806},
		Mode:        TravelModeDriving,
	}
	for _, wp := range waypoints {
		req.Waypoints = append(req.Waypoints, Waypoint{Location: wp})
	}
	return req
}

func TestService_GetDirections_CacheMiss(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider})

	resp, err := service.GetDirections(context.Background(), testRequest("Pensacola, FL"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
	if len(resp.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(resp.Routes))
	}
	if len(resp.Routes[0].Legs) != 2 {
		t.Errorf("expected 2 legs, got %d", len(resp.Routes[0].Legs))
	}
}

func TestService_GetDirections_CacheHit(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	req := testRequest("Pensacola, FL", "Milton, FL")

	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}
	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (cache hit), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_WaypointTextIsPartOfKey(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider})

	_, _ = service.GetDirections(context.Background(), testRequest("Pensacola"))
	_, _ = service.GetDirections(context.Background(), testRequest("Pensacola, FL"))
	_, _ = service.GetDirections(context.Background(), testRequest("Pensacola, FL", "Milton"))

	if provider.callCount.Load() != 3 {
		t.Errorf("expected 3 provider calls (different waypoints), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_WaypointOrderIsPartOfKey(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider})

	_, _ = service.GetDirections(context.Background(), testRequest("A", "B"))
	_, _ = service.GetDirections(context.Background(), testRequest("B", "A"))

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls (different order), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_CachingDisabled(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: -1})

	req := testRequest("Pensacola, FL")
	_, _ = service.GetDirections(context.Background(), req)
	_, _ = service.GetDirections(context.Background(), req)

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls with caching disabled, got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_CacheExpiry(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 50 * time.Millisecond})

	req := testRequest("Pensacola, FL")
	_, _ = service.GetDirections(context.Background(), req)

	time.Sleep(100 * time.Millisecond)

	_, _ = service.GetDirections(context.Background(), req)

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls (cache expired), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_ErrorAfterExpiryIsReturned(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 50 * time.Millisecond})

	req := testRequest("Pensacola, FL")
	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	provider.err = &Error{Provider: "test-provider", Code: StatusRequestDenied, Message: "denied", Err: ErrProviderUnavailable}

	resp, err := service.GetDirections(context.Background(), req)
	if err == nil {
		t.Fatal("expected provider error once the entry expired, got a response")
	}
	if resp != nil {
		t.Error("expected no response alongside the error")
	}
	if StatusOf(err) != StatusRequestDenied {
		t.Errorf("expected status %s, got %s", StatusRequestDenied, StatusOf(err))
	}
}

func TestService_GetDirections_ProviderError(t *testing.T) {
	provider := &mockProvider{
		name: "test-provider",
		err: &Error{
			Provider: "test-provider",
			Code:     StatusZeroResults,
			Message:  "no route",
			Err:      ErrNoRouteFound,
		},
	}
	service := NewService(ServiceConfig{Provider: provider})

	_, err := service.GetDirections(context.Background(), testRequest("Atlantis"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrNoRouteFound) {
		t.Errorf("expected ErrNoRouteFound, got %v", err)
	}
	if StatusOf(err) != StatusZeroResults {
		t.Errorf("expected status %s, got %s", StatusZeroResults, StatusOf(err))
	}
}

func TestService_GetDirections_EmptyRoutesIsFailure(t *testing.T) {
	provider := &mockProvider{
		name:     "test-provider",
		response: &DirectionsResponse{Status: StatusOK, Provider: "test-provider"},
	}
	service := NewService(ServiceConfig{Provider: provider})

	_, err := service.GetDirections(context.Background(), testRequest("Pensacola, FL"))
	if !errors.Is(err, ErrNoRouteFound) {
		t.Errorf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestService_GetDirections_InvalidCoordinates(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider})

	tests := []struct {
		name string
		req  DirectionsRequest
	}{
		{
			name: "invalid origin latitude",
			req: DirectionsRequest{
				Origin:      Coordinate{Lat: 91, Lon: 4.9041},
				Destination: Coordinate{Lat: 52.0907, Lon: 5.1214},
			},
		},
		{
			name: "invalid destination longitude",
			req: DirectionsRequest{
				Origin:      Coordinate{Lat: 52.3676, Lon: 4.9041},
				Destination: Coordinate{Lat: 52.0907, Lon: 181},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.GetDirections(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}

	if provider.callCount.Load() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_DefaultsMode(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse()}
	service := NewService(ServiceConfig{Provider: provider})

	req := testRequest("Pensacola, FL")
	req.Mode = ""
	_, _ = service.GetDirections(context.Background(), req)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.lastReq.Mode != TravelModeDriving {
		t.Errorf("expected mode %s, got %s", TravelModeDriving, provider.lastReq.Mode)
	}
}

func TestService_GetDirections_ConcurrentIdenticalRequestsShareCall(t *testing.T) {
	provider := &mockProvider{name: "test-provider", response: testResponse(), delay: 50 * time.Millisecond}
	service := NewService(ServiceConfig{Provider: provider})

	req := testRequest("Pensacola, FL")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = service.GetDirections(context.Background(), req)
		}()
	}
	wg.Wait()

	if provider.callCount.Load() > 2 {
		t.Errorf("expected concurrent identical requests to share a call, got %d calls", provider.callCount.Load())
	}
}

// gatedProvider blocks until release is closed or its context ends.
type gatedProvider struct {
	release chan struct{}
	calls   atomic.Int32
	ctxErr  atomic.Value
}

func (g *gatedProvider) Name() string { return "gated" }

func (g *gatedProvider) GetDirections(ctx context.Context, _ DirectionsRequest) (*DirectionsResponse, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return testResponse(), nil
	case <-ctx.Done():
		g.ctxErr.Store(ctx.Err())
		return nil, ctx.Err()
	}
}

func TestService_GetDirections_CallerCancelDoesNotFailSharedCall(t *testing.T) {
	provider := &gatedProvider{release: make(chan struct{})}
	service := NewService(ServiceConfig{Provider: provider, Timeout: time.Second})
	req := testRequest("Pensacola, FL")

	cancelled, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := service.GetDirections(cancelled, req)
		firstErr <- err
	}()

	// Wait for the first caller to reach the provider
	deadline := time.Now().Add(time.Second)
	for provider.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	secondErr := make(chan error, 1)
	go func() {
		_, err := service.GetDirections(context.Background(), req)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancelled caller to get context.Canceled, got %v", err)
	}

	close(provider.release)
	if err := <-secondErr; err != nil {
		t.Errorf("expected joined caller to succeed, got %v", err)
	}
	if v := provider.ctxErr.Load(); v != nil {
		t.Errorf("shared call saw context error %v", v)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls.Load())
	}
}

func TestService_GetDirections_SharedCallTimeout(t *testing.T) {
	provider := &gatedProvider{release: make(chan struct{})}
	service := NewService(ServiceConfig{Provider: provider, Timeout: 30 * time.Millisecond})

	_, err := service.GetDirections(context.Background(), testRequest("Pensacola, FL"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestCacheKey(t *testing.T) {
	req := testRequest("Pensacola, FL", "30.4,-87.2")
	got := CacheKey(req)
	want := `DRIVING:30.532667,-87.301570:30.488730,-87.198060:"Pensacola, FL"|"30.4,-87.2"`
	if got != want {
		t.Errorf("CacheKey() = %q, want %q", got, want)
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(nil); got != StatusOK {
		t.Errorf("StatusOf(nil) = %s, want %s", got, StatusOK)
	}
	if got := StatusOf(errors.New("plain")); got != StatusUnknownError {
		t.Errorf("StatusOf(plain) = %s, want %s", got, StatusUnknownError)
	}
	wrapped := errors.Join(errors.New("ctx"), &Error{Code: StatusOverQueryLimit, Err: ErrRateLimitExceeded})
	if got := StatusOf(wrapped); got != StatusOverQueryLimit {
		t.Errorf("StatusOf(wrapped) = %s, want %s", got, StatusOverQueryLimit)
	}
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		err  *Error
		want bool
	}{
		{&Error{Err: ErrProviderUnavailable}, true},
		{&Error{Err: ErrRateLimitExceeded}, true},
		{&Error{Err: ErrNoRouteFound}, false},
		{&Error{Err: ErrInvalidCoordinates}, false},
	}
	for _, tt := range tests {
		if got := tt.err.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err.Err, got, tt.want)
		}
	}
}

func TestMemoryCache_Retention(t *testing.T) {
	cache := NewMemoryCache(time.Millisecond)
	ctx := context.Background()

	entry := &CachedDirections{
		Response:  testResponse(),
		FetchedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Millisecond),
	}
	if err := cache.Set(ctx, "k", entry, 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok, _ := cache.Get(ctx, "k"); !ok {
		t.Fatal("expected entry within retention")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Error("expected entry to be gone after retention")
	}
}
