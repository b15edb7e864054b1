package api

import "multimodal_router/pkg/config"

// LatLonJSON represents a lat/lon pair in JSON.
type LatLonJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteRequest is the JSON body for POST /api/v1/route. Every field
// besides From/To is an optional override of the server profile.
type RouteRequest struct {
	From LatLonJSON `json:"from"`
	To   LatLonJSON `json:"to"`

	BikeSpeedMps         *float64 `json:"bike_speed_mps,omitempty"`
	WalkSpeedMps         *float64 `json:"walk_speed_mps,omitempty"`
	RideToWalkPenaltyS   *float64 `json:"ride_to_walk_penalty_s,omitempty"`
	WalkToRidePenaltyS   *float64 `json:"walk_to_ride_penalty_s,omitempty"`
	SurfacePenaltySPerKm *float64 `json:"surface_penalty_s_per_km,omitempty"`
	PreferredSurfaces    []string `json:"preferred_surfaces,omitempty"`
}

// RouteResponse is the JSON response for a successful route query.
// Geometry carries one GeoJSON LineString feature per contiguous label
// run, for direct rendering.
type RouteResponse struct {
	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`

	DistanceFootM             float64 `json:"distance_foot_m"`
	DistanceBikePreferredM    float64 `json:"distance_bike_preferred_m"`
	DistanceBikeNonPreferredM float64 `json:"distance_bike_non_preferred_m"`

	Path     []LatLonJSON `json:"path"`
	Labels   []string     `json:"labels"`
	Geometry interface{}  `json:"geometry"`
}

// SnapResponse is the JSON response for GET /api/v1/snap.
type SnapResponse struct {
	NodeIdx uint32  `json:"node_idx"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`

	Edge *SnapEdgeJSON `json:"edge,omitempty"`
}

// SnapEdgeJSON describes the nearest-edge projection, when one exists
// within the snap cutoff.
type SnapEdgeJSON struct {
	EdgeIdx uint32  `json:"edge_idx"`
	NodeU   uint32  `json:"node_u"`
	NodeV   uint32  `json:"node_v"`
	Ratio   float64 `json:"ratio"`
	DistM   float64 `json:"dist_m"`
}

// ConfigResponse is the JSON response for GET /api/v1/config.
type ConfigResponse struct {
	Surfaces []string       `json:"surfaces"`
	Profile  config.Profile `json:"profile"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes uint32 `json:"num_nodes"`
	NumEdges uint32 `json:"num_edges"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
