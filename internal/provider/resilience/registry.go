package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/waypointroute/waypointroute/internal/routing"
)

// Condition summarizes whether route computations can currently succeed.
type Condition string

const (
	// ConditionHealthy means the last call succeeded or nothing has failed yet.
	ConditionHealthy Condition = "healthy"
	// ConditionDegraded means the breaker is probing or the provider is throttling.
	ConditionDegraded Condition = "degraded"
	// ConditionDenied means the provider rejected the API key; every computation
	// fails until the configuration changes.
	ConditionDenied Condition = "denied"
	// ConditionDown means the breaker is open and calls are not attempted.
	ConditionDown Condition = "down"
)

// ProviderHealth is a point-in-time view of one directions provider.
type ProviderHealth struct {
	Name    string
	Breaker gobreaker.State
	Counts  gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time

	// LastStatus and LastMessage describe the most recent failure, e.g.
	// REQUEST_DENIED with the provider's error message.
	LastStatus  string
	LastMessage string

	// FailuresByStatus counts failures per directions status since start.
	FailuresByStatus map[string]uint64
}

// failing reports whether the most recent outcome was a failure.
func (h *ProviderHealth) failing() bool {
	if h.LastFailureAt == nil {
		return false
	}
	return h.LastSuccessAt == nil || h.LastFailureAt.After(*h.LastSuccessAt)
}

// Condition derives the provider condition from the breaker and the last outcome.
func (h *ProviderHealth) Condition() Condition {
	switch {
	case h.Breaker == gobreaker.StateOpen:
		return ConditionDown
	case h.failing() && h.LastStatus == routing.StatusRequestDenied:
		return ConditionDenied
	case h.Breaker == gobreaker.StateHalfOpen:
		return ConditionDegraded
	case h.failing() && h.LastStatus == routing.StatusOverQueryLimit:
		return ConditionDegraded
	default:
		return ConditionHealthy
	}
}

// Registry tracks directions providers and the outcome of their calls.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerState
}

type providerState struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastStatus    string
	lastMessage   string
	failures      map[string]uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*providerState)}
}

// Register adds a provider client under name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &providerState{
		client:   client,
		failures: make(map[string]uint64),
	}
}

// RecordSuccess records a directions response with status OK.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := time.Now()
		p.lastSuccessAt = &now
	}
}

// RecordFailure records a failed directions call. status is the directions
// status code (REQUEST_DENIED, OVER_QUERY_LIMIT, PROVIDER_FAILURE, ...).
func (r *Registry) RecordFailure(name, status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[name]
	if !ok {
		return
	}
	now := time.Now()
	p.lastFailureAt = &now
	p.lastStatus = status
	p.lastMessage = message
	p.failures[status]++
}

// Health returns the health of one provider, or nil if it is not registered.
func (r *Registry) Health(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.health(name)
}

// All returns the health of every provider ordered by name.
func (r *Registry) All() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *providerState) health(name string) *ProviderHealth {
	failures := make(map[string]uint64, len(p.failures))
	for status, n := range p.failures {
		failures[status] = n
	}
	return &ProviderHealth{
		Name:             name,
		Breaker:          p.client.State(),
		Counts:           p.client.Counts(),
		LastSuccessAt:    p.lastSuccessAt,
		LastFailureAt:    p.lastFailureAt,
		LastStatus:       p.lastStatus,
		LastMessage:      p.lastMessage,
		FailuresByStatus: failures,
	}
}
