package graph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrBadFormat reports a malformed artifact: magic mismatch, truncated
// blob, sizes-block inconsistency, or a broken CSR invariant.
var ErrBadFormat = errors.New("bad artifact format")

// Mapping owns a read-only memory mapping of one artifact. All typed views
// over it are non-owning; they are valid until Close.
type Mapping struct {
	data []byte
	f    *os.File
}

// Close releases the address range and the file descriptor together.
func (m *Mapping) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func mapFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Mapping{data: data, f: f}, nil
}

// reader slices typed views out of a mapping by sequential offset, failing
// with the field name when the blob is shorter than its header promises.
type reader struct {
	buf  []byte
	pos  int
	path string
}

func (r *reader) take(n int, field string) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%s: %w: truncated at %s (need %d bytes at offset %d, have %d)",
			r.path, ErrBadFormat, field, n, r.pos, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint32s(n int, field string) ([]uint32, error) {
	b, err := r.take(n*4, field)
	if err != nil || n == 0 {
		return nil, err
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), n), nil
}

func (r *reader) uint64s(n int, field string) ([]uint64, error) {
	b, err := r.take(n*8, field)
	if err != nil || n == 0 {
		return nil, err
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), n), nil
}

func (r *reader) float32s(n int, field string) ([]float32, error) {
	b, err := r.take(n*4, field)
	if err != nil || n == 0 {
		return nil, err
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n), nil
}

// NodesView is a zero-copy view over nodes.bin.
type NodesView struct {
	NumNodes uint32
	IDs      []uint64
	Lat      []float32
	Lon      []float32

	mapping *Mapping
}

// Close releases the underlying mapping; the view must not be used after.
func (v *NodesView) Close() error { return v.mapping.Close() }

// LoadNodes maps nodes.bin read-only and returns typed views into it.
func LoadNodes(path string) (*NodesView, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	v, err := parseNodes(m, path)
	if err != nil {
		m.Close()
		return nil, err
	}
	return v, nil
}

func parseNodes(m *Mapping, path string) (*NodesView, error) {
	r := &reader{buf: m.data, path: path}

	hb, err := r.take(nodesHeaderSize, "header")
	if err != nil {
		return nil, err
	}
	if string(hb[:8]) != nodesMagic {
		return nil, fmt.Errorf("%s: %w: magic %q, want %q", path, ErrBadFormat, hb[:8], nodesMagic)
	}
	numNodes := binary.LittleEndian.Uint32(hb[8:12])
	if numNodes > maxNodes {
		return nil, fmt.Errorf("%s: %w: numNodes %d exceeds limit %d", path, ErrBadFormat, numNodes, maxNodes)
	}

	n := int(numNodes)
	ids, err := r.uint64s(n, "ids")
	if err != nil {
		return nil, err
	}
	lat, err := r.float32s(n, "lat")
	if err != nil {
		return nil, err
	}
	lon, err := r.float32s(n, "lon")
	if err != nil {
		return nil, err
	}

	return &NodesView{
		NumNodes: numNodes,
		IDs:      ids,
		Lat:      lat,
		Lon:      lon,
		mapping:  m,
	}, nil
}

// EdgesView is a zero-copy view over edges.bin.
type EdgesView struct {
	NumNodes uint32
	NumEdges uint32

	Offsets   []uint32 // NumNodes + 1
	Neighbors []uint32 // NumEdges
	LengthM   []float32
	Surface   []uint8
	ModeMask  []uint8

	mapping *Mapping
}

// Close releases the underlying mapping; the view must not be used after.
func (v *EdgesView) Close() error { return v.mapping.Close() }

// EdgesFrom returns the range of edge slots for edges originating from u.
func (v *EdgesView) EdgesFrom(u uint32) (start, end uint32) {
	return v.Offsets[u], v.Offsets[u+1]
}

// LoadEdges maps edges.bin read-only, validates the header, sizes block
// and CSR invariants, and returns typed views into it.
func LoadEdges(path string) (*EdgesView, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	v, err := parseEdges(m, path)
	if err != nil {
		m.Close()
		return nil, err
	}
	return v, nil
}

func parseEdges(m *Mapping, path string) (*EdgesView, error) {
	r := &reader{buf: m.data, path: path}

	hb, err := r.take(edgesHeaderSize, "header")
	if err != nil {
		return nil, err
	}
	magic := string(hb[:8])
	if magic != edgesMagic && magic != edgesMagicLegacy {
		return nil, fmt.Errorf("%s: %w: magic %q, want %q", path, ErrBadFormat, hb[:8], edgesMagic)
	}
	numNodes := binary.LittleEndian.Uint32(hb[8:12])
	numEdges := binary.LittleEndian.Uint32(hb[12:16])
	if numNodes > maxNodes {
		return nil, fmt.Errorf("%s: %w: numNodes %d exceeds limit %d", path, ErrBadFormat, numNodes, maxNodes)
	}
	if numEdges > maxEdges {
		return nil, fmt.Errorf("%s: %w: numEdges %d exceeds limit %d", path, ErrBadFormat, numEdges, maxEdges)
	}
	if lengthType := hb[18]; lengthType != 0 {
		return nil, fmt.Errorf("%s: %w: unsupported lengthType %d", path, ErrBadFormat, lengthType)
	}

	sb, err := r.take(sizesBlockLen*4, "sizes block")
	if err != nil {
		return nil, err
	}
	var sizes [sizesBlockLen]uint32
	for i := range sizes {
		sizes[i] = binary.LittleEndian.Uint32(sb[i*4:])
	}
	expected := [sizesBlockLen]struct {
		name string
		want uint32
	}{
		{"offsets", numNodes + 1},
		{"neighbors", numEdges},
		{"lengths", numEdges},
		{"surfacePrimary", numEdges},
		{"modeMask", numEdges},
	}
	for i, e := range expected {
		if sizes[i] != e.want {
			return nil, fmt.Errorf("%s: %w: sizes[%s] = %d, want %d", path, ErrBadFormat, e.name, sizes[i], e.want)
		}
	}

	offsets, err := r.uint32s(int(numNodes)+1, "offsets")
	if err != nil {
		return nil, err
	}
	neighbors, err := r.uint32s(int(numEdges), "neighbors")
	if err != nil {
		return nil, err
	}
	lengths, err := r.float32s(int(numEdges), "lengths")
	if err != nil {
		return nil, err
	}
	surf, err := r.take(int(numEdges), "surfacePrimary")
	if err != nil {
		return nil, err
	}
	mask, err := r.take(int(numEdges), "modeMask")
	if err != nil {
		return nil, err
	}

	if offsets[0] != 0 {
		return nil, fmt.Errorf("%s: %w: offsets[0] = %d, want 0", path, ErrBadFormat, offsets[0])
	}
	if offsets[numNodes] != numEdges {
		return nil, fmt.Errorf("%s: %w: offsets[numNodes] = %d, want numEdges %d",
			path, ErrBadFormat, offsets[numNodes], numEdges)
	}
	for i := uint32(1); i <= numNodes; i++ {
		if offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("%s: %w: offsets not monotonic at %d: %d < %d",
				path, ErrBadFormat, i, offsets[i], offsets[i-1])
		}
	}
	for i, h := range neighbors {
		if h >= numNodes {
			return nil, fmt.Errorf("%s: %w: neighbors[%d] = %d >= numNodes %d",
				path, ErrBadFormat, i, h, numNodes)
		}
	}

	return &EdgesView{
		NumNodes:  numNodes,
		NumEdges:  numEdges,
		Offsets:   offsets,
		Neighbors: neighbors,
		LengthM:   lengths,
		Surface:   surf,
		ModeMask:  mask,
		mapping:   m,
	}, nil
}

// Views bundles both artifact views.
type Views struct {
	Nodes *NodesView
	Edges *EdgesView
}

// Load maps both artifacts and cross-checks their node counts. On any
// failure everything acquired so far is released.
func Load(nodesPath, edgesPath string) (*Views, error) {
	nodes, err := LoadNodes(nodesPath)
	if err != nil {
		return nil, err
	}
	edges, err := LoadEdges(edgesPath)
	if err != nil {
		nodes.Close()
		return nil, err
	}
	if nodes.NumNodes != edges.NumNodes {
		nodes.Close()
		edges.Close()
		return nil, fmt.Errorf("%s: %w: numNodes %d disagrees with %s (%d)",
			edgesPath, ErrBadFormat, edges.NumNodes, nodesPath, nodes.NumNodes)
	}
	return &Views{Nodes: nodes, Edges: edges}, nil
}

// Close releases both mappings.
func (v *Views) Close() error {
	err := v.Nodes.Close()
	if cerr := v.Edges.Close(); err == nil {
		err = cerr
	}
	return err
}
