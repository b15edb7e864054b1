package routing

import (
	"errors"
	"math"

	"github.com/tidwall/rtree"

	"multimodal_router/pkg/geo"
)

const maxSnapDistMeters = 500.0

// ErrPointTooFar is returned when the query point is too far from any
// edge of the graph.
var ErrPointTooFar = errors.New("point too far from network")

// SnapResult is a point projected onto the nearest edge.
type SnapResult struct {
	EdgeIdx uint32  // index into the edge arrays
	NodeU   uint32  // source node of the edge
	NodeV   uint32  // target node of the edge
	Ratio   float64 // 0.0 = at NodeU, 1.0 = at NodeV
	Dist    float64 // meters from query point to the projection
}

// Search window half-size in degrees. 0.01° ≈ 1.1 km, comfortably past
// the 500 m snap cutoff.
const snapWindowDeg = 0.01

// Snapper projects query points onto the nearest edge using an R-tree
// over edge bounding boxes. Built once at load; immutable.
type Snapper struct {
	tree    rtree.RTreeG[uint32]
	g       *GraphData
	sources []uint32 // edge slot → source node
}

// NewSnapper indexes every edge slot by its lon/lat bounding box. For an
// undirected segment both directed slots are inserted; the search keeps
// the best projection, so the duplicate costs nothing but space.
func NewSnapper(g *GraphData) *Snapper {
	s := &Snapper{g: g}
	for u := uint32(0); u < g.NumNodes; u++ {
		for e := g.Offsets[u]; e < g.Offsets[u+1]; e++ {
			v := g.Neighbors[e]
			minLon := math.Min(float64(g.Lon[u]), float64(g.Lon[v]))
			maxLon := math.Max(float64(g.Lon[u]), float64(g.Lon[v]))
			minLat := math.Min(float64(g.Lat[u]), float64(g.Lat[v]))
			maxLat := math.Max(float64(g.Lat[u]), float64(g.Lat[v]))
			s.tree.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}, e)
		}
	}
	// Edge slot → source node, resolved during search without a second
	// scan of the CSR rows.
	s.sources = make([]uint32, len(g.Neighbors))
	for u := uint32(0); u < g.NumNodes; u++ {
		for e := g.Offsets[u]; e < g.Offsets[u+1]; e++ {
			s.sources[e] = u
		}
	}
	return s
}

// Snap finds the nearest edge to (lat, lon) within the snap cutoff.
func (s *Snapper) Snap(lat, lon float64) (SnapResult, error) {
	bestDist := math.Inf(1)
	var best SnapResult

	s.tree.Search(
		[2]float64{lon - snapWindowDeg, lat - snapWindowDeg},
		[2]float64{lon + snapWindowDeg, lat + snapWindowDeg},
		func(_, _ [2]float64, e uint32) bool {
			u := s.sources[e]
			v := s.g.Neighbors[e]
			dist, ratio := geo.PointToSegmentDist(
				lat, lon,
				float64(s.g.Lat[u]), float64(s.g.Lon[u]),
				float64(s.g.Lat[v]), float64(s.g.Lon[v]),
			)
			if dist < bestDist {
				bestDist = dist
				best = SnapResult{EdgeIdx: e, NodeU: u, NodeV: v, Ratio: ratio, Dist: dist}
			}
			return true
		},
	)

	if bestDist > maxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}
	return best, nil
}
