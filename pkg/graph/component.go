package graph

// UnionFind implements a disjoint-set data structure with path halving
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// LargestComponent returns the node indices belonging to the largest
// weakly connected component (the directed graph treated as undirected,
// ignoring mode bits: a bike-only edge still connects for this purpose).
func LargestComponent(g *Graph) []uint32 {
	if g.NumNodes == 0 {
		return nil
	}

	uf := NewUnionFind(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Neighbors[e])
		}
	}

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent creates a new graph containing only the given nodes
// (which must be sorted ascending so dense reindexing preserves id order)
// and the edges fully inside the set.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return &Graph{Offsets: []uint32{0}}
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}
	numNodes := uint32(len(nodes))

	// Count surviving edges per new source index.
	offsets := make([]uint32, numNodes+1)
	for newU, oldU := range nodes {
		start, end := g.EdgesFrom(oldU)
		for e := start; e < end; e++ {
			if _, ok := oldToNew[g.Neighbors[e]]; ok {
				offsets[newU+1]++
			}
		}
	}
	for i := uint32(1); i <= numNodes; i++ {
		offsets[i] += offsets[i-1]
	}
	numEdges := offsets[numNodes]

	neighbors := make([]uint32, numEdges)
	lengthM := make([]float32, numEdges)
	surf := make([]uint8, numEdges)
	modeMask := make([]uint8, numEdges)

	pos := make([]uint32, numNodes)
	copy(pos, offsets[:numNodes])
	for _, oldU := range nodes {
		newU := oldToNew[oldU]
		start, end := g.EdgesFrom(oldU)
		for e := start; e < end; e++ {
			newV, ok := oldToNew[g.Neighbors[e]]
			if !ok {
				continue
			}
			idx := pos[newU]
			pos[newU]++
			neighbors[idx] = newV
			lengthM[idx] = g.LengthM[e]
			surf[idx] = g.Surface[e]
			modeMask[idx] = g.ModeMask[e]
		}
	}

	ids := make([]uint64, numNodes)
	lat := make([]float32, numNodes)
	lon := make([]float32, numNodes)
	for newIdx, oldIdx := range nodes {
		ids[newIdx] = g.IDs[oldIdx]
		lat[newIdx] = g.Lat[oldIdx]
		lon[newIdx] = g.Lon[oldIdx]
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
	}
}
