package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned while the provider's breaker rejects calls.
	ErrCircuitOpen = errors.New("directions provider circuit is open")

	errBodyNotRewindable = errors.New("request body cannot be replayed")
)

// ClientConfig holds configuration for a provider HTTP client.
type ClientConfig struct {
	// Name is the provider name used for the breaker and the registry.
	Name string

	// Timeout bounds a single HTTP attempt (default: 10s).
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a 5xx or network
	// failure. Zero disables retries.
	MaxRetries int

	// InitialInterval and MaxInterval bound the exponential backoff between
	// attempts (defaults: 100ms and 2s).
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker decides when the provider is cut off. Zero fields take defaults.
	Breaker BreakerConfig

	// Registry, when set, receives the client under Name.
	Registry *Registry

	// Logger receives breaker state transitions.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the settings directions providers start from.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         DefaultBreakerConfig(),
	}
}

// Client sends provider requests through a circuit breaker and retries
// transient failures. The retry is transport level only: a directions status
// in a 200 body is returned as is.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        ClientConfig
}

// NewClient creates a provider HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	cfg.Breaker = cfg.Breaker.withDefaults()

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker(cfg.Name, cfg.Breaker, cfg.Logger),
		cfg:        cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do sends req. 5xx responses and network errors are retried with exponential
// backoff; when retries run out the last 5xx response is returned so the caller
// can read the provider's error body. ErrCircuitOpen is returned without a call
// while the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.cfg.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries))
	}

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil {
			last.Body.Close()
		}
		last = resp
	}

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			return c.send(ctx, req)
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case errors.Is(err, errBodyNotRewindable), errors.Is(err, context.Canceled):
			return backoff.Permanent(err)
		}
		if resp != nil {
			keep(resp)
		}
		return err
	}

	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		var serverErr *ServerError
		if last != nil && errors.As(err, &serverErr) {
			return last, nil
		}
		if last != nil {
			last.Body.Close()
		}
		return nil, err
	}
	return last, nil
}

// send makes one attempt. A 5xx is reported as a ServerError alongside the
// response so the breaker counts it.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	attemptReq, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(attemptReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// cloneRequest copies req for one attempt. Bodies are replayed through GetBody,
// which http.NewRequest sets for in-memory readers such as the ORS JSON payload.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotRewindable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

// ServerError is a 5xx answer from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker's counts for the current generation.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
