package models

// HealthStatus is the overall verdict of a health or status report.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health is the body of the liveness and readiness endpoints.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus reports whether route computations can currently succeed.
type SystemStatus struct {
	Status                 HealthStatus      `json:"status"`
	Time                   Timestamp         `json:"time"`
	Subsystems             []SubsystemStatus `json:"subsystems"`
	Providers              []ProviderStatus  `json:"providers"`
	MountedWidgets         int               `json:"mountedWidgets"`
	ActiveDegradationFlags []string          `json:"activeDegradationFlags,omitempty"`
}

// SubsystemStatus is the result of one readiness check, e.g. the directions cache.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus describes one directions provider.
type ProviderStatus struct {
	Provider string       `json:"provider"`
	Status   HealthStatus `json:"status"`

	// Condition is healthy, degraded, denied or down.
	Condition string `json:"condition"`
	Breaker   string `json:"breaker"`

	// LastStatus is the directions status of the most recent failure,
	// e.g. REQUEST_DENIED or OVER_QUERY_LIMIT.
	LastStatus       string            `json:"lastStatus,omitempty"`
	Message          *string           `json:"message,omitempty"`
	LastSuccessAt    *Timestamp        `json:"lastSuccessAt,omitempty"`
	LastFailureAt    *Timestamp        `json:"lastFailureAt,omitempty"`
	FailuresByStatus map[string]uint64 `json:"failuresByStatus,omitempty"`
}
