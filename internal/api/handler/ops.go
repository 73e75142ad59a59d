// Package handler provides HTTP handlers for the waypoint route API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/waypointroute/waypointroute/internal/api/models"
	"github.com/waypointroute/waypointroute/internal/api/response"
	"github.com/waypointroute/waypointroute/internal/provider/resilience"
	"github.com/waypointroute/waypointroute/internal/widget"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// OpsConfig holds dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Providers reports circuit breaker state per directions provider.
	Providers *resilience.Registry

	// Widgets is counted in the status report.
	Widgets *widget.Registry

	// Checks are run by the readiness probe, keyed by subsystem name.
	Checks map[string]Check
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	details := make(map[string]interface{}, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			health.Status = models.HealthStatusFail
		}
	}
	if len(details) > 0 {
		health.Details = details
	}

	if health.Status != models.HealthStatusOK {
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  []models.ProviderStatus{},
	}
	if h.cfg.Widgets != nil {
		status.MountedWidgets = h.cfg.Widgets.Len()
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.cfg.Providers != nil {
		for _, p := range h.cfg.Providers.All() {
			ps := providerStatus(p)
			if ps.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
				status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, "provider_"+ps.Condition+":"+p.Name)
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	subsystems := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.cfg.Checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}
	return subsystems
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	condition := p.Condition()
	ps := models.ProviderStatus{
		Provider:   p.Name,
		Condition:  string(condition),
		Breaker:    p.Breaker.String(),
		LastStatus: p.LastStatus,
	}
	if len(p.FailuresByStatus) > 0 {
		ps.FailuresByStatus = p.FailuresByStatus
	}

	switch condition {
	case resilience.ConditionDown, resilience.ConditionDenied:
		ps.Status = models.HealthStatusFail
	case resilience.ConditionDegraded:
		ps.Status = models.HealthStatusDegraded
	default:
		ps.Status = models.HealthStatusOK
	}

	if p.LastSuccessAt != nil {
		t := models.Timestamp(*p.LastSuccessAt)
		ps.LastSuccessAt = &t
	}
	if p.LastFailureAt != nil {
		t := models.Timestamp(*p.LastFailureAt)
		ps.LastFailureAt = &t
	}
	if p.LastMessage != "" {
		msg := p.LastMessage
		ps.Message = &msg
	}
	return ps
}
