package api

import (
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"
	"strconv"

	geojson "github.com/paulmach/go.geojson"

	"multimodal_router/pkg/config"
	"multimodal_router/pkg/metrics"
	"multimodal_router/pkg/routing"
	"multimodal_router/pkg/spatial"
	"multimodal_router/pkg/surface"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	engine  *routing.Engine
	profile config.Profile
}

// NewHandlers creates handlers over a loaded engine and the server
// profile used as request defaults.
func NewHandlers(engine *routing.Engine, profile config.Profile) *Handlers {
	return &Handlers{engine: engine, profile: profile}
}

var labelNames = map[uint8]string{
	routing.LabelBikePreferred:    "bike_preferred",
	routing.LabelBikeNonPreferred: "bike_non_preferred",
	routing.LabelFoot:             "foot",
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}
	if err := validateCoord(req.From); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "from")
		return
	}
	if err := validateCoord(req.To); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "to")
		return
	}

	params := h.paramsFor(&req)
	result, err := h.engine.RouteLatLon(req.From.Lat, req.From.Lon, req.To.Lat, req.To.Lon, &params)
	if err != nil {
		metrics.RouteQueriesTotal.WithLabelValues("error").Inc()
		switch {
		case errors.Is(err, spatial.ErrNotLoaded):
			writeError(w, http.StatusServiceUnavailable, "engine_not_loaded", "")
		case errors.Is(err, routing.ErrInvalidParam):
			writeError(w, http.StatusBadRequest, "invalid_params", "")
		case errors.Is(err, routing.ErrOutOfRange):
			writeError(w, http.StatusBadRequest, "node_out_of_range", "")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}
	if !result.Success {
		metrics.RouteQueriesTotal.WithLabelValues("no_route").Inc()
		writeError(w, http.StatusNotFound, "no_route_found", "")
		return
	}
	metrics.RouteQueriesTotal.WithLabelValues("ok").Inc()

	writeJSON(w, h.buildRouteResponse(result))
}

// paramsFor layers the request's overrides on top of the server profile.
func (h *Handlers) paramsFor(req *RouteRequest) routing.Params {
	p := h.profile.Params()
	if req.BikeSpeedMps != nil {
		p.BikeSpeedMps = *req.BikeSpeedMps
	}
	if req.WalkSpeedMps != nil {
		p.WalkSpeedMps = *req.WalkSpeedMps
	}
	if req.RideToWalkPenaltyS != nil {
		p.RideToWalkPenaltyS = *req.RideToWalkPenaltyS
	}
	if req.WalkToRidePenaltyS != nil {
		p.WalkToRidePenaltyS = *req.WalkToRidePenaltyS
	}
	if req.SurfacePenaltySPerKm != nil {
		p.SurfacePenaltySPerKm = *req.SurfacePenaltySPerKm
	}
	if req.PreferredSurfaces != nil {
		var mask uint16
		for _, name := range req.PreferredSurfaces {
			mask |= 1 << surface.FromTag(name)
		}
		p.BikeSurfaceMask = mask
	}
	return p
}

func (h *Handlers) buildRouteResponse(result *routing.Result) RouteResponse {
	resp := RouteResponse{
		DistanceM:                 result.DistanceM,
		DurationS:                 result.DurationS,
		DistanceFootM:             result.DistanceFootM,
		DistanceBikePreferredM:    result.DistanceBikePreferredM,
		DistanceBikeNonPreferredM: result.DistanceBikeNonPreferredM,
	}

	resp.Path = make([]LatLonJSON, len(result.Nodes))
	for i, n := range result.Nodes {
		lat, lon, _ := h.engine.Node(n)
		resp.Path[i] = LatLonJSON{Lat: lat, Lon: lon}
	}
	resp.Labels = make([]string, len(result.Labels))
	for i, l := range result.Labels {
		resp.Labels[i] = labelNames[l]
	}
	resp.Geometry = routeGeometry(resp.Path, result.Labels)
	return resp
}

// routeGeometry splits the path into contiguous same-label runs and
// returns a GeoJSON FeatureCollection with one LineString per run,
// labelled for rendering.
func routeGeometry(path []LatLonJSON, labels []uint8) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(path) < 2 {
		return fc
	}

	runStart := 0
	for i := 1; i <= len(labels); i++ {
		if i < len(labels) && labels[i] == labels[runStart] {
			continue
		}
		coords := make([][]float64, 0, i-runStart+1)
		for j := runStart; j <= i; j++ {
			coords = append(coords, []float64{path[j].Lon, path[j].Lat})
		}
		f := geojson.NewLineStringFeature(coords)
		f.SetProperty("label", labelNames[labels[runStart]])
		fc.AddFeature(f)
		runStart = i
	}
	return fc
}

// HandleSnap handles GET /api/v1/snap?lat=..&lon=..
func (h *Handlers) HandleSnap(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || validateCoord(LatLonJSON{Lat: lat, Lon: lon}) != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "")
		return
	}

	idx, err := h.engine.Nearest(lat, lon)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "engine_not_loaded", "")
		return
	}
	nodeLat, nodeLon, _ := h.engine.Node(idx)

	resp := SnapResponse{NodeIdx: idx, Lat: nodeLat, Lon: nodeLon}
	if snap, err := h.engine.SnapEdge(lat, lon); err == nil {
		resp.Edge = &SnapEdgeJSON{
			EdgeIdx: snap.EdgeIdx,
			NodeU:   snap.NodeU,
			NodeV:   snap.NodeV,
			Ratio:   snap.Ratio,
			DistM:   snap.Dist,
		}
	}
	writeJSON(w, resp)
}

// HandleConfig handles GET /api/v1/config: the surface taxonomy plus the
// profile the server applies when a request carries no overrides.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ConfigResponse{
		Surfaces: surface.Names(),
		Profile:  h.profile,
	})
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatsResponse{
		NumNodes: h.engine.NumNodes(),
		NumEdges: h.engine.NumEdges(),
	})
}

func validateCoord(ll LatLonJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lon) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lon, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lon < -180 || ll.Lon > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
