// Package response writes API responses. Every response carries the request ID
// of the call so clients can quote it when reporting a problem.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/waypointroute/waypointroute/internal/api/middleware"
	"github.com/waypointroute/waypointroute/internal/api/models"
)

const (
	// OutcomeHeader reports what an explicit route computation did:
	// applied, failed, stale or skipped.
	OutcomeHeader = middleware.OutcomeHeader

	// GenerationHeader carries the widget generation of a snapshot so clients
	// can drop snapshots older than one they already rendered.
	GenerationHeader = "X-Widget-Generation"
)

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	correlate(w, r)
	writeJSON(w, status, data)
}

// Snapshot writes the current state of a widget.
func Snapshot(w http.ResponseWriter, r *http.Request, snap models.WidgetSnapshot) {
	correlate(w, r)
	w.Header().Set(GenerationHeader, strconv.FormatUint(snap.Generation, 10))
	writeJSON(w, http.StatusOK, snap)
}

// Mounted writes a newly mounted widget with its location.
func Mounted(w http.ResponseWriter, r *http.Request, snap models.WidgetSnapshot) {
	correlate(w, r)
	w.Header().Set("Location", "/v1/widgets/"+snap.WidgetID)
	w.Header().Set(GenerationHeader, strconv.FormatUint(snap.Generation, 10))
	writeJSON(w, http.StatusCreated, snap)
}

// Computed writes the widget after a route computation. The status is 200 even
// when the provider failed; outcome tells the caller what happened.
func Computed(w http.ResponseWriter, r *http.Request, outcome string, snap models.WidgetSnapshot) {
	w.Header().Set(OutcomeHeader, outcome)
	Snapshot(w, r, snap)
}

// Unmounted acknowledges a widget removal.
func Unmounted(w http.ResponseWriter, r *http.Request) {
	correlate(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes problem as application/problem+json.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 with optional field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503, used while the widget registry shuts down.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}

func correlate(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
