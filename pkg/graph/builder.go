package graph

import (
	"fmt"
	"sort"

	"github.com/paulmach/osm"

	"multimodal_router/pkg/geo"
	osmparser "multimodal_router/pkg/osm"
)

// BuildOptions configures graph construction.
type BuildOptions struct {
	BBox osmparser.BBox // if non-zero, drop segments with an endpoint outside
}

// Build compacts a parse result into a CSR Graph. Node ids are sorted
// ascending and assigned dense indices; way steps whose endpoints resolve
// to the same index or to an uncollected node are dropped. Each physical
// segment yields up to two directed edges, one per direction some mode is
// allowed to travel.
func Build(result *osmparser.ParseResult, opts ...BuildOptions) (*Graph, error) {
	var opt BuildOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	useBBox := !opt.BBox.IsZero()

	// Step 1: dense indices over the collected nodes, sorted by OSM id.
	allIDs := make([]osm.NodeID, 0, len(result.NodeLat))
	for id := range result.NodeLat {
		allIDs = append(allIDs, id)
	}
	sort.Slice(allIDs, func(i, j int) bool { return allIDs[i] < allIDs[j] })

	numNodes := uint32(len(allIDs))
	idToIdx := make(map[osm.NodeID]uint32, numNodes)
	for i, id := range allIDs {
		idToIdx[id] = uint32(i)
	}

	// A way step survives if both endpoints resolved, are distinct, and
	// (when filtering) both lie inside the bbox.
	type step struct {
		u, v uint32
	}
	resolve := func(w *osmparser.WayAccess, i int) (step, bool) {
		idU, idV := w.NodeIDs[i], w.NodeIDs[i+1]
		if idU == idV {
			return step{}, false
		}
		u, okU := idToIdx[idU]
		v, okV := idToIdx[idV]
		if !okU || !okV {
			return step{}, false
		}
		if useBBox {
			if !opt.BBox.Contains(result.NodeLat[idU], result.NodeLon[idU]) ||
				!opt.BBox.Contains(result.NodeLat[idV], result.NodeLon[idV]) {
				return step{}, false
			}
		}
		return step{u, v}, true
	}

	// Step 2: count directed edge slots per source node.
	offsets := make([]uint32, numNodes+1)
	for wi := range result.Ways {
		w := &result.Ways[wi]
		for i := 0; i+1 < len(w.NodeIDs); i++ {
			s, ok := resolve(w, i)
			if !ok {
				continue
			}
			if w.BikeFwd || w.FootAllowed {
				offsets[s.u+1]++
			}
			if w.BikeBack || w.FootAllowed {
				offsets[s.v+1]++
			}
		}
	}
	for i := uint32(1); i <= numNodes; i++ {
		offsets[i] += offsets[i-1]
	}
	numEdges := offsets[numNodes]

	// Step 3: fill the parallel edge arrays.
	neighbors := make([]uint32, numEdges)
	lengthM := make([]float32, numEdges)
	surf := make([]uint8, numEdges)
	modeMask := make([]uint8, numEdges)
	cur := make([]uint32, numNodes)
	copy(cur, offsets[:numNodes])

	place := func(from, to uint32, dist float32, s uint8, mask uint8) {
		idx := cur[from]
		cur[from]++
		neighbors[idx] = to
		lengthM[idx] = dist
		surf[idx] = s
		modeMask[idx] = mask
	}

	for wi := range result.Ways {
		w := &result.Ways[wi]
		for i := 0; i+1 < len(w.NodeIDs); i++ {
			s, ok := resolve(w, i)
			if !ok {
				continue
			}
			idU, idV := w.NodeIDs[i], w.NodeIDs[i+1]
			latU, okU := result.NodeLat[idU]
			latV, okV := result.NodeLat[idV]
			if !okU || !okV {
				return nil, fmt.Errorf("missing coordinate for node id %d or %d", idU, idV)
			}
			dist := float32(geo.Haversine(latU, result.NodeLon[idU], latV, result.NodeLon[idV]))

			if w.BikeFwd || w.FootAllowed {
				var mask uint8
				if w.BikeFwd {
					mask |= BikeBit
				}
				if w.FootAllowed {
					mask |= FootBit
				}
				place(s.u, s.v, dist, uint8(w.Surface), mask)
			}
			if w.BikeBack || w.FootAllowed {
				var mask uint8
				if w.BikeBack {
					mask |= BikeBit
				}
				if w.FootAllowed {
					mask |= FootBit
				}
				place(s.v, s.u, dist, uint8(w.Surface), mask)
			}
		}
	}

	// Step 4: node coordinate arrays in index order.
	ids := make([]uint64, numNodes)
	lat := make([]float32, numNodes)
	lon := make([]float32, numNodes)
	for i, id := range allIDs {
		ids[i] = uint64(id)
		lat[i] = float32(result.NodeLat[id])
		lon[i] = float32(result.NodeLon[id])
	}

	return &Graph{
		NumNodes:  numNodes,
		NumEdges:  numEdges,
		IDs:       ids,
		Lat:       lat,
		Lon:       lon,
		Offsets:   offsets,
		Neighbors: neighbors,
		LengthM:   lengthM,
		Surface:   surf,
		ModeMask:  modeMask,
	}, nil
}
