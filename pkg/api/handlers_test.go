package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"multimodal_router/pkg/config"
	"multimodal_router/pkg/graph"
	"multimodal_router/pkg/routing"
	"multimodal_router/pkg/surface"
)

// testGraph is two separate streets at latitude 1.30: nodes 0-1 around
// lon 103.800 and nodes 2-3 around 103.900. Routing across them fails.
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	lat := []float32{1.30, 1.30, 1.30, 1.30}
	lon := []float32{103.800, 103.801, 103.900, 103.901}

	type edge struct {
		u, v uint32
	}
	edges := []edge{{0, 1}, {1, 0}, {2, 3}, {3, 2}}

	offsets := make([]uint32, 5)
	for _, e := range edges {
		offsets[e.u+1]++
	}
	for i := 1; i <= 4; i++ {
		offsets[i] += offsets[i-1]
	}
	neighbors := make([]uint32, len(edges))
	lengthM := make([]float32, len(edges))
	surf := make([]uint8, len(edges))
	mask := make([]uint8, len(edges))
	cur := make([]uint32, 4)
	copy(cur, offsets[:4])
	for _, e := range edges {
		idx := cur[e.u]
		cur[e.u]++
		neighbors[idx] = e.v
		lengthM[idx] = 111
		surf[idx] = uint8(surface.Asphalt)
		mask[idx] = graph.BikeBit | graph.FootBit
	}

	return &graph.Graph{
		NumNodes:  4,
		NumEdges:  uint32(len(edges)),
		IDs:       []uint64{10, 20, 30, 40},
		Lat:       lat,
		Lon:       lon,
		Offsets:   offsets,
		Neighbors: neighbors,
		LengthM:   lengthM,
		Surface:   surf,
		ModeMask:  mask,
	}
}

func testHandlers(t *testing.T) *Handlers {
	t.Helper()
	engine := routing.NewEngineFromGraph(testGraph(t))
	t.Cleanup(func() { engine.Close() })
	return NewHandlers(engine, config.Default())
}

func postRoute(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleRoute(w, req)
	return w
}

func TestHandleRouteSuccess(t *testing.T) {
	h := testHandlers(t)
	w := postRoute(t, h, `{"from":{"lat":1.30,"lon":103.8001},"to":{"lat":1.30,"lon":103.8009}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp RouteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DistanceM != 111 {
		t.Errorf("DistanceM = %f, want 111", resp.DistanceM)
	}
	if len(resp.Path) != 2 || len(resp.Labels) != 1 {
		t.Fatalf("path/labels = %d/%d, want 2/1", len(resp.Path), len(resp.Labels))
	}
	if resp.Labels[0] != "bike_preferred" {
		t.Errorf("label = %q, want bike_preferred", resp.Labels[0])
	}
	if resp.DurationS <= 0 {
		t.Errorf("DurationS = %f, want > 0", resp.DurationS)
	}

	// Geometry is a GeoJSON FeatureCollection with one labelled feature.
	var geom struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string      `json:"type"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	raw, _ := json.Marshal(resp.Geometry)
	if err := json.Unmarshal(raw, &geom); err != nil {
		t.Fatalf("decode geometry: %v", err)
	}
	if geom.Type != "FeatureCollection" || len(geom.Features) != 1 {
		t.Fatalf("geometry = %s with %d features", geom.Type, len(geom.Features))
	}
	f := geom.Features[0]
	if f.Geometry.Type != "LineString" || len(f.Geometry.Coordinates) != 2 {
		t.Errorf("feature geometry %s with %d coords", f.Geometry.Type, len(f.Geometry.Coordinates))
	}
	if f.Properties["label"] != "bike_preferred" {
		t.Errorf("feature label = %v", f.Properties["label"])
	}
}

func TestHandleRouteNoRoute(t *testing.T) {
	h := testHandlers(t)
	w := postRoute(t, h, `{"from":{"lat":1.30,"lon":103.8001},"to":{"lat":1.30,"lon":103.9009}}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "no_route_found" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestHandleRouteRejectsBadRequests(t *testing.T) {
	h := testHandlers(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"wrong content type", "text/plain", `{}`, http.StatusBadRequest},
		{"malformed json", "application/json", `{"from":`, http.StatusBadRequest},
		{"latitude out of range", "application/json",
			`{"from":{"lat":95,"lon":0},"to":{"lat":1.30,"lon":103.8}}`, http.StatusBadRequest},
		{"invalid speed override", "application/json",
			`{"from":{"lat":1.30,"lon":103.8001},"to":{"lat":1.30,"lon":103.8009},"bike_speed_mps":-5}`,
			http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/route", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			h.HandleRoute(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleRouteProfileOverrides(t *testing.T) {
	h := testHandlers(t)

	// Crawl speed makes the trip proportionally longer.
	w := postRoute(t, h, `{"from":{"lat":1.30,"lon":103.8001},"to":{"lat":1.30,"lon":103.8009},"bike_speed_mps":1,"walk_speed_mps":0.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RouteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.DurationS != 111 {
		t.Errorf("DurationS = %f, want 111 at 1 m/s", resp.DurationS)
	}
}

func TestHandleSnap(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snap?lat=1.3001&lon=103.8002", nil)
	w := httptest.NewRecorder()
	h.HandleSnap(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp SnapResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NodeIdx != 0 {
		t.Errorf("NodeIdx = %d, want 0", resp.NodeIdx)
	}
	if resp.Edge == nil {
		t.Fatal("want an edge projection within the cutoff")
	}
	if resp.Edge.NodeU+resp.Edge.NodeV != 1 {
		t.Errorf("edge = %d-%d, want the 0-1 street", resp.Edge.NodeU, resp.Edge.NodeV)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/snap?lat=abc&lon=103.8", nil)
	w = httptest.NewRecorder()
	h.HandleSnap(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad lat: status = %d, want 400", w.Code)
	}
}

func TestHandleConfig(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	w := httptest.NewRecorder()
	h.HandleConfig(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp ConfigResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Surfaces) != surface.Count {
		t.Errorf("surfaces = %d entries, want %d", len(resp.Surfaces), surface.Count)
	}
	if resp.Surfaces[int(surface.Asphalt)] != "asphalt" {
		t.Errorf("surfaces[asphalt] = %q", resp.Surfaces[int(surface.Asphalt)])
	}
	if resp.Profile.BikeSpeedMps != 6.0 {
		t.Errorf("profile bike speed = %f", resp.Profile.BikeSpeedMps)
	}
}

func TestHandleHealthAndStats(t *testing.T) {
	h := testHandlers(t)

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	var stats StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.NumNodes != 4 || stats.NumEdges != 4 {
		t.Errorf("stats = %+v, want 4 nodes / 4 edges", stats)
	}
}

func TestServerRoutesRegistered(t *testing.T) {
	h := testHandlers(t)
	srv := NewServer(DefaultConfig(":0"), h)

	for _, path := range []string{"/api/v1/health", "/api/v1/stats", "/api/v1/config", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("http://test%s", path), nil)
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}
