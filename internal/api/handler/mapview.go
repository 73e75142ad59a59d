package handler

import (
	"net/http"

	"github.com/waypointroute/waypointroute/internal/api/models"
	"github.com/waypointroute/waypointroute/internal/api/response"
)

// MapHandler serves the renderer configuration.
type MapHandler struct {
	view models.MapView
}

// NewMapHandler creates a new MapHandler.
func NewMapHandler(view models.MapView) *MapHandler {
	return &MapHandler{view: view}
}

// GetMapView handles GET /v1/map - container size, center, zoom and map ID.
func (h *MapHandler) GetMapView(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.view)
}
