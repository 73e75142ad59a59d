package googlemaps

// directionsResponse is the Directions API JSON response.
type directionsResponse struct {
	Status            string             `json:"status"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	GeocodedWaypoints []geocodedWaypoint `json:"geocoded_waypoints,omitempty"`
	Routes            []route            `json:"routes"`
}

// geocodedWaypoint reports how each stop was resolved.
type geocodedWaypoint struct {
	GeocoderStatus string   `json:"geocoder_status"`
	PlaceID        string   `json:"place_id,omitempty"`
	Types          []string `json:"types,omitempty"`
}

type route struct {
	Summary          string   `json:"summary"`
	Bounds           *bounds  `json:"bounds,omitempty"`
	OverviewPolyline polyline `json:"overview_polyline"`
	Legs             []leg    `json:"legs"`
	Warnings         []string `json:"warnings,omitempty"`
	WaypointOrder    []int    `json:"waypoint_order,omitempty"`
}

type bounds struct {
	Northeast latLng `json:"northeast"`
	Southwest latLng `json:"southwest"`
}

type polyline struct {
	Points string `json:"points"`
}

type leg struct {
	Distance      textValue `json:"distance"`
	Duration      textValue `json:"duration"`
	StartAddress  string    `json:"start_address"`
	EndAddress    string    `json:"end_address"`
	StartLocation latLng    `json:"start_location"`
	EndLocation   latLng    `json:"end_location"`
}

// textValue is a Directions API quantity: display text plus the value in
// meters or seconds.
type textValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
