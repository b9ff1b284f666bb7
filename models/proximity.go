package models

// ServiceClass identifies a proximity service category.
type ServiceClass string

const (
	ServiceGP    ServiceClass = "gp"
	ServiceBus   ServiceClass = "bus"
	ServiceTrain ServiceClass = "train"
)

// RouteHazards are accessibility obstacles found in turn-by-turn instructions.
type RouteHazards struct {
	Stairs           bool `json:"stairs"`
	SteepIncline     bool `json:"steep_incline"`
	BusyRoadCrossing bool `json:"busy_road_crossing"`
	TrafficLight     bool `json:"traffic_light"`
}

// ProximityResult is the nearest accepted POI for one service class, with the
// walking-route assessment when a route was obtained.
type ProximityResult struct {
	Service        ServiceClass `json:"service"`
	Name           string       `json:"name"`
	Address        string       `json:"address"`
	DistanceMeters float64      `json:"distance_meters"`

	// RawDurationMinutes is the provider's walking estimate; DurationMinutes
	// is that figure after the 1.4x slower-pace adjustment.
	RawDurationMinutes int          `json:"raw_duration_minutes,omitempty"`
	DurationMinutes    int          `json:"duration_minutes,omitempty"`
	HasRoute           bool         `json:"has_route"`
	Hazards            RouteHazards `json:"hazards"`

	Score float64 `json:"score"`
}
