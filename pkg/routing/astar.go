package routing

import (
	"math"

	"multimodal_router/pkg/geo"
	"multimodal_router/pkg/graph"
	"multimodal_router/pkg/surface"
)

// GraphData is the flat read-only view the search runs over. The slices
// are borrowed from either an in-memory Graph or the mmap-backed views;
// they must not be mutated while queries run.
type GraphData struct {
	NumNodes uint32
	Lat      []float32
	Lon      []float32

	Offsets   []uint32
	Neighbors []uint32
	LengthM   []float32
	Surface   []uint8
	ModeMask  []uint8
}

// DataFromGraph borrows the arrays of a built graph.
func DataFromGraph(g *graph.Graph) GraphData {
	return GraphData{
		NumNodes:  g.NumNodes,
		Lat:       g.Lat,
		Lon:       g.Lon,
		Offsets:   g.Offsets,
		Neighbors: g.Neighbors,
		LengthM:   g.LengthM,
		Surface:   g.Surface,
		ModeMask:  g.ModeMask,
	}
}

// DataFromViews borrows the arrays of the mmap-backed artifact views.
func DataFromViews(v *graph.Views) GraphData {
	return GraphData{
		NumNodes:  v.Edges.NumNodes,
		Lat:       v.Nodes.Lat,
		Lon:       v.Nodes.Lon,
		Offsets:   v.Edges.Offsets,
		Neighbors: v.Edges.Neighbors,
		LengthM:   v.Edges.LengthM,
		Surface:   v.Edges.Surface,
		ModeMask:  v.Edges.ModeMask,
	}
}

const noState = ^uint32(0)

// switchEdge marks a parent step that crossed layers at the same node
// instead of traversing an edge.
const switchEdge = ^uint32(0)

// stateOf encodes (node, layer) as a single index into the doubled state
// space.
func stateOf(node uint32, layer Layer) uint32 {
	return node*2 + uint32(layer)
}

// preferredBike reports whether a surface needs no preference bias.
// Unknown and values outside the taxonomy are neutral.
func preferredBike(s uint8, mask uint16) bool {
	if s >= surface.Count || s == uint8(surface.Unknown) {
		return true
	}
	return mask&(1<<s) != 0
}

// search holds the per-query scratch. Everything is sized 2N (one slot
// per node and layer) and freed when the query returns.
type search struct {
	g *GraphData
	p *Params

	gCost       []float64 // bias-adjusted cost the heap orders by
	gTime       []float64 // physical seconds, reported to the caller
	parent      []uint32
	parentEdge  []uint32 // source edge slot, or switchEdge
	parentLabel []uint8
	closed      []bool
	pq          MinHeap

	targetLat float64
	targetLon float64
	invVmax   float64
}

// FindPath runs the two-layer time-optimal A* between two node indices.
// Both the riding and the walking copy of the source are seeded; the
// first target pop in either layer wins.
func FindPath(g *GraphData, source, target uint32, p *Params) (*Result, error) {
	if source >= g.NumNodes || target >= g.NumNodes {
		return nil, ErrOutOfRange
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	numStates := 2 * int(g.NumNodes)
	s := &search{
		g:           g,
		p:           p,
		gCost:       make([]float64, numStates),
		gTime:       make([]float64, numStates),
		parent:      make([]uint32, numStates),
		parentEdge:  make([]uint32, numStates),
		parentLabel: make([]uint8, numStates),
		closed:      make([]bool, numStates),
		targetLat:   float64(g.Lat[target]),
		targetLon:   float64(g.Lon[target]),
		invVmax:     1 / math.Max(p.BikeSpeedMps, p.WalkSpeedMps),
	}
	for i := range s.gCost {
		s.gCost[i] = math.Inf(1)
		s.parent[i] = noState
	}

	srcRide := stateOf(source, LayerRide)
	srcWalk := stateOf(source, LayerWalk)
	s.gCost[srcRide] = 0
	s.gCost[srcWalk] = 0
	h0 := s.heuristic(source)
	s.pq.Push(srcRide, h0)
	s.pq.Push(srcWalk, h0)

	goal := noState
	for s.pq.Len() > 0 {
		state, _ := s.pq.Pop()
		if s.closed[state] {
			continue // stale entry
		}
		s.closed[state] = true

		node := state / 2
		if node == target {
			goal = state
			break
		}

		if Layer(state&1) == LayerRide {
			s.expandRide(node)
		} else {
			s.expandWalk(node)
		}
	}

	if goal == noState {
		return &Result{Success: false}, nil
	}
	return s.reconstruct(goal), nil
}

// heuristic is the optimistic straight-line time at the faster of the two
// speeds. Switch arcs cover zero distance, so it is admissible in both
// layers whenever every edge is charged at least length/vmax seconds; a
// surface factor below 1 charges less than that and can break this bound.
func (s *search) heuristic(node uint32) float64 {
	return geo.Haversine(float64(s.g.Lat[node]), float64(s.g.Lon[node]),
		s.targetLat, s.targetLon) * s.invVmax
}

func (s *search) expandRide(u uint32) {
	g := s.g
	from := stateOf(u, LayerRide)
	invBike := 1 / s.p.BikeSpeedMps
	biasPerM := math.Max(0, s.p.SurfacePenaltySPerKm) / 1000

	for e := g.Offsets[u]; e < g.Offsets[u+1]; e++ {
		if g.ModeMask[e]&graph.BikeBit == 0 {
			continue
		}
		length := float64(g.LengthM[e])
		surf := g.Surface[e]
		tEdge := length * invBike * surfaceFactor(s.p.BikeSurfaceFactor, surf)

		var bias float64
		label := LabelBikePreferred
		if !preferredBike(surf, s.p.BikeSurfaceMask) {
			bias = biasPerM * length
			label = LabelBikeNonPreferred
		}
		s.relaxEdge(from, g.Neighbors[e], LayerRide, e, tEdge, bias, label)
	}

	if s.p.RideToWalkPenaltyS >= 0 {
		s.relaxSwitch(u, LayerRide, LayerWalk, s.p.RideToWalkPenaltyS)
	}
}

func (s *search) expandWalk(u uint32) {
	g := s.g
	from := stateOf(u, LayerWalk)
	invWalk := 1 / s.p.WalkSpeedMps

	for e := g.Offsets[u]; e < g.Offsets[u+1]; e++ {
		if g.ModeMask[e]&graph.FootBit == 0 {
			continue
		}
		length := float64(g.LengthM[e])
		tEdge := length * invWalk * surfaceFactor(s.p.WalkSurfaceFactor, g.Surface[e])
		s.relaxEdge(from, g.Neighbors[e], LayerWalk, e, tEdge, 0, LabelFoot)
	}

	if s.p.WalkToRidePenaltyS >= 0 {
		s.relaxSwitch(u, LayerWalk, LayerRide, s.p.WalkToRidePenaltyS)
	}
}

func (s *search) relaxEdge(from, v uint32, layer Layer, e uint32, tEdge, bias float64, label uint8) {
	to := stateOf(v, layer)
	cand := s.gCost[from] + tEdge + bias
	if cand < s.gCost[to] {
		s.gCost[to] = cand
		s.gTime[to] = s.gTime[from] + tEdge
		s.parent[to] = from
		s.parentEdge[to] = e
		s.parentLabel[to] = label
		s.pq.Push(to, cand+s.heuristic(v))
	}
}

func (s *search) relaxSwitch(u uint32, from, to Layer, penalty float64) {
	fromState := stateOf(u, from)
	toState := stateOf(u, to)
	cand := s.gCost[fromState] + penalty
	if cand < s.gCost[toState] {
		s.gCost[toState] = cand
		s.gTime[toState] = s.gTime[fromState] // zero-length, no physical time
		s.parent[toState] = fromState
		s.parentEdge[toState] = switchEdge
		s.parentLabel[toState] = 0
		s.pq.Push(toState, cand+s.heuristic(u))
	}
}

// reconstruct walks the parent chain from the popped goal back to the
// source. Switch steps contribute no node and no label; edge steps append
// the destination node and accumulate distances by label.
func (s *search) reconstruct(goal uint32) *Result {
	chain := []uint32{}
	for cur := goal; cur != noState; cur = s.parent[cur] {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	res := &Result{
		Success:   true,
		Nodes:     []uint32{chain[0] / 2},
		Labels:    []uint8{},
		DurationS: s.gTime[goal],
	}

	for _, cur := range chain[1:] {
		e := s.parentEdge[cur]
		if e == switchEdge {
			continue
		}
		length := float64(s.g.LengthM[e])
		label := s.parentLabel[cur]

		res.DistanceM += length
		switch label {
		case LabelFoot:
			res.DistanceFootM += length
		case LabelBikePreferred:
			res.DistanceBikePreferredM += length
		default:
			res.DistanceBikeNonPreferredM += length
		}

		res.Nodes = append(res.Nodes, cur/2)
		res.Labels = append(res.Labels, label)
	}

	return res
}
