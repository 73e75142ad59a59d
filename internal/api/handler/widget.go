package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/waypointroute/waypointroute/internal/api/models"
	"github.com/waypointroute/waypointroute/internal/api/response"
	"github.com/waypointroute/waypointroute/internal/widget"
	"github.com/waypointroute/waypointroute/pkg/polyline"
)

// WidgetHandler handles route widget endpoints.
type WidgetHandler struct {
	widgets *widget.Registry
}

// NewWidgetHandler creates a new WidgetHandler.
func NewWidgetHandler(widgets *widget.Registry) *WidgetHandler {
	return &WidgetHandler{widgets: widgets}
}

// Mount handles POST /v1/widgets - mount a widget with one empty waypoint.
func (h *WidgetHandler) Mount(w http.ResponseWriter, r *http.Request) {
	wgt := h.widgets.Mount()
	response.Mounted(w, r, toSnapshot(wgt.Snapshot()))
}

// Get handles GET /v1/widgets/{widgetId} - current panel, totals and route overlay.
func (h *WidgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	wgt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.Snapshot(w, r, toSnapshot(wgt.Snapshot()))
}

// Unmount handles DELETE /v1/widgets/{widgetId}.
func (h *WidgetHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	if err := h.widgets.Unmount(chi.URLParam(r, "widgetId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Unmounted(w, r)
}

// MapReady handles POST /v1/widgets/{widgetId}/map-ready - the renderer has loaded.
func (h *WidgetHandler) MapReady(w http.ResponseWriter, r *http.Request) {
	wgt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	wgt.MarkMapReady()
	response.Snapshot(w, r, toSnapshot(wgt.Snapshot()))
}

// AddWaypoint handles POST /v1/widgets/{widgetId}/waypoints - append an empty waypoint.
func (h *WidgetHandler) AddWaypoint(w http.ResponseWriter, r *http.Request) {
	wgt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	wgt.AddWaypoint()
	response.Snapshot(w, r, toSnapshot(wgt.Snapshot()))
}

// SetWaypoint handles PUT /v1/widgets/{widgetId}/waypoints/{index} - overwrite the
// waypoint text. An index past the end leaves the widget unchanged.
func (h *WidgetHandler) SetWaypoint(w http.ResponseWriter, r *http.Request) {
	wgt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}

	var input models.SetWaypointRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.Location == nil {
		response.BadRequest(w, r, "location is required", []models.FieldError{
			{Field: "location", Message: "is required", Code: "REQUIRED"},
		})
		return
	}

	wgt.SetWaypointLocation(index, *input.Location)
	response.Snapshot(w, r, toSnapshot(wgt.Snapshot()))
}

// RemoveWaypoint handles DELETE /v1/widgets/{widgetId}/waypoints/{index}. An
// index past the end leaves the widget unchanged.
func (h *WidgetHandler) RemoveWaypoint(w http.ResponseWriter, r *http.Request) {
	wgt, ok := h.lookup(w, r)
	if !ok {
		return
	}
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}

	wgt.RemoveWaypoint(index)
	response.Snapshot(w, r, toSnapshot(wgt.Snapshot()))
}

// ComputeRoute handles POST /v1/widgets/{widgetId}/route:compute - the "Calculate
// Route" action. Provider failures are not surfaced: the widget keeps its state
// and the snapshot is returned as is.
func (h *WidgetHandler) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	wgt, ok := h.lookup(w, r)
	if !ok {
		return
	}

	outcome, _ := wgt.ComputeRoute(r.Context())
	response.Computed(w, r, outcome.String(), toSnapshot(wgt.Snapshot()))
}

func (h *WidgetHandler) lookup(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	wgt, err := h.widgets.Get(chi.URLParam(r, "widgetId"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return wgt, true
}

func (h *WidgetHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, widget.ErrWidgetNotFound) {
		response.NotFound(w, r, "widget not found")
		return
	}
	response.ServiceUnavailable(w, r, err.Error())
}

func parseIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		response.BadRequest(w, r, "invalid waypoint index", []models.FieldError{
			{Field: "index", Message: "must be a non-negative integer", Code: "INVALID_INDEX"},
		})
		return 0, false
	}
	return index, true
}

func toSnapshot(s widget.Snapshot) models.WidgetSnapshot {
	rows := make([]models.WaypointRow, len(s.Waypoints))
	for i, wp := range s.Waypoints {
		rows[i] = models.WaypointRow{
			Index:       i,
			Location:    wp.Location,
			Placeholder: "Waypoint " + strconv.Itoa(i+1),
		}
	}

	out := models.WidgetSnapshot{
		WidgetID:  s.ID,
		MapReady:  s.MapReady,
		Waypoints: rows,
		Totals: models.Totals{
			DistanceKm:  s.Totals.DistanceKm,
			DurationMin: s.Totals.DurationMin,
		},
		Generation: s.Generation,
	}

	if s.Result == nil || len(s.Result.Routes) == 0 {
		return out
	}

	route := s.Result.Routes[0]
	overlay := &models.RouteOverlay{
		Provider:  s.Result.Provider,
		Summary:   route.Summary,
		Legs:      make([]models.RouteLeg, len(route.Legs)),
		Path:      []models.Point{},
		FetchedAt: models.Timestamp(s.Result.FetchedAt),
	}
	for i, leg := range route.Legs {
		overlay.Legs[i] = models.RouteLeg{
			StartAddress:    leg.StartAddress,
			EndAddress:      leg.EndAddress,
			DistanceMeters:  leg.DistanceMeters,
			DurationSeconds: leg.DurationSeconds,
		}
	}
	// A malformed geometry leaves the path empty; legs and totals still apply
	path, err := polyline.Decode(route.OverviewPolyline)
	if err != nil {
		path = nil
	}
	for _, c := range path {
		overlay.Path = append(overlay.Path, models.Point{Lat: c.Lat, Lon: c.Lon})
	}

	if bb := route.BoundingBox; bb != nil {
		overlay.BoundingBox = &models.BoundingBox{
			MinLat: bb.MinLat,
			MinLon: bb.MinLon,
			MaxLat: bb.MaxLat,
			MaxLon: bb.MaxLon,
		}
	} else if sw, ne, ok := polyline.Bounds(path); ok {
		overlay.BoundingBox = &models.BoundingBox{
			MinLat: sw.Lat,
			MinLon: sw.Lon,
			MaxLat: ne.Lat,
			MaxLon: ne.Lon,
		}
	}

	out.Route = overlay
	return out
}
