package routing

import (
	"multimodal_router/pkg/graph"
	"multimodal_router/pkg/spatial"
)

// Engine bundles the immutable shared state of the service: the graph
// views, the KD nearest-node index and the edge snapper. Built once at
// load time and then read concurrently by any number of query goroutines;
// each query owns its own scratch, so no locking is needed.
type Engine struct {
	data    GraphData
	views   *graph.Views // nil when built from an in-memory graph
	kd      *spatial.Index
	snapper *Snapper
}

// NewEngine builds an engine over the mmap-backed artifact views. The
// engine takes ownership of the views; Close releases them.
func NewEngine(views *graph.Views) *Engine {
	e := &Engine{
		data:  DataFromViews(views),
		views: views,
	}
	e.kd = spatial.NewIndex(e.data.Lat, e.data.Lon)
	e.snapper = NewSnapper(&e.data)
	return e
}

// NewEngineFromGraph builds an engine over a freshly built in-memory
// graph. Used by tools and tests that skip the artifact round-trip.
func NewEngineFromGraph(g *graph.Graph) *Engine {
	e := &Engine{data: DataFromGraph(g)}
	e.kd = spatial.NewIndex(e.data.Lat, e.data.Lon)
	e.snapper = NewSnapper(&e.data)
	return e
}

// Close releases the underlying mappings, if any.
func (e *Engine) Close() error {
	if e.views == nil {
		return nil
	}
	return e.views.Close()
}

// NumNodes returns the node count of the loaded graph.
func (e *Engine) NumNodes() uint32 { return e.data.NumNodes }

// NumEdges returns the directed edge count of the loaded graph.
func (e *Engine) NumEdges() uint32 { return uint32(len(e.data.Neighbors)) }

// Nearest snaps a coordinate to the closest graph node.
func (e *Engine) Nearest(lat, lon float64) (uint32, error) {
	return e.kd.Nearest(lat, lon)
}

// Node returns the coordinates of a graph node.
func (e *Engine) Node(i uint32) (lat, lon float64, err error) {
	return e.kd.Node(i)
}

// SnapEdge projects a coordinate onto the nearest edge.
func (e *Engine) SnapEdge(lat, lon float64) (SnapResult, error) {
	return e.snapper.Snap(lat, lon)
}

// Route computes the time-optimal multimodal path between two node
// indices.
func (e *Engine) Route(source, target uint32, p *Params) (*Result, error) {
	return FindPath(&e.data, source, target, p)
}

// RouteLatLon snaps both coordinates to their nearest graph node and
// routes between them.
func (e *Engine) RouteLatLon(fromLat, fromLon, toLat, toLon float64, p *Params) (*Result, error) {
	source, err := e.Nearest(fromLat, fromLon)
	if err != nil {
		return nil, err
	}
	target, err := e.Nearest(toLat, toLon)
	if err != nil {
		return nil, err
	}
	return e.Route(source, target, p)
}
