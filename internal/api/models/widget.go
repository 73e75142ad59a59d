// Package models holds the JSON shapes of the waypoint route API.
package models

import (
	"encoding/json"
	"time"
)

// WidgetSnapshot is the full state of one route widget: the input panel, the
// totals line and the route overlay.
type WidgetSnapshot struct {
	WidgetID   string        `json:"widgetId"`
	MapReady   bool          `json:"mapReady"`
	Waypoints  []WaypointRow `json:"waypoints"`
	Totals     Totals        `json:"totals"`
	Route      *RouteOverlay `json:"route"`
	Generation uint64        `json:"generation"`
}

// WaypointRow is one waypoint input.
type WaypointRow struct {
	Index       int    `json:"index"`
	Location    string `json:"location"`
	Placeholder string `json:"placeholder"`
}

// Totals holds the summed distance and duration with two decimals. Both are
// empty before the first route has been applied.
type Totals struct {
	DistanceKm  string `json:"distanceKm"`
	DurationMin string `json:"durationMin"`
}

// RouteOverlay is what the map renderer draws for the applied route.
type RouteOverlay struct {
	Provider    string       `json:"provider"`
	Summary     string       `json:"summary,omitempty"`
	Legs        []RouteLeg   `json:"legs"`
	Path        []Point      `json:"path"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
	FetchedAt   Timestamp    `json:"fetchedAt"`
}

// RouteLeg is the part of the route between two consecutive stops.
type RouteLeg struct {
	StartAddress    string `json:"startAddress"`
	EndAddress      string `json:"endAddress"`
	DistanceMeters  int    `json:"distanceMeters"`
	DurationSeconds int    `json:"durationSeconds"`
}

// BoundingBox is the extent of the route, for fitting the map view.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// SetWaypointRequest is the body of a waypoint edit.
type SetWaypointRequest struct {
	Location *string `json:"location"`
}

// MapView is the renderer configuration shared by every widget.
type MapView struct {
	Container   MapContainer `json:"container"`
	Center      Point        `json:"center"`
	Zoom        int          `json:"zoom"`
	MapID       string       `json:"mapId"`
	Origin      Point        `json:"origin"`
	Destination Point        `json:"destination"`
	TravelMode  string       `json:"travelMode"`
}

// MapContainer holds CSS dimensions of the map element.
type MapContainer struct {
	Width  string `json:"width"`
	Height string `json:"height"`
}

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Timestamp encodes as an RFC 3339 string in UTC.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}
