package graph

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"
)

// Wire format of the two artifacts.
//
// nodes.bin ("MMAPNODE"):
//
//	header (16 bytes): magic[8], numNodes u32, reserved u32
//	ids[numNodes]  u64
//	lat[numNodes]  f32 decimal degrees
//	lon[numNodes]  f32 decimal degrees
//
// edges.bin ("MMAPEDGE"):
//
//	header (20 bytes): magic[8], numNodes u32, numEdges u32,
//	                   hasSurfacePrimary u8, hasModeMask u8,
//	                   lengthType u8 (0 = f32 meters), reserved u8
//	sizes (20 bytes): five u32 array lengths, in array order
//	offsets[numNodes+1] u32, neighbors[numEdges] u32,
//	lengths[numEdges] f32, surfacePrimary[numEdges] u8,
//	modeMask[numEdges] u8
//
// Everything is little-endian.
const (
	nodesMagic = "MMAPNODE"
	edgesMagic = "MMAPEDGE"

	// Edges magic written by early builds; accepted on load.
	edgesMagicLegacy = "MMAPGRPH"

	nodesHeaderSize = 16
	edgesHeaderSize = 20
	sizesBlockLen   = 5

	maxNodes = 100_000_000
	maxEdges = 500_000_000
)

type nodesHeader struct {
	Magic    [8]byte
	NumNodes uint32
	Reserved uint32
}

type edgesHeader struct {
	Magic             [8]byte
	NumNodes          uint32
	NumEdges          uint32
	HasSurfacePrimary uint8
	HasModeMask       uint8
	LengthType        uint8
	Reserved          uint8
}

// WriteNodes serializes the node artifact. The file is written to a temp
// path and atomically renamed into place.
func WriteNodes(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	hdr := nodesHeader{NumNodes: g.NumNodes}
	copy(hdr.Magic[:], nodesMagic)
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write nodes header: %w", err)
	}

	if err := writeUint64Slice(f, g.IDs); err != nil {
		return fmt.Errorf("write ids: %w", err)
	}
	if err := writeFloat32Slice(f, g.Lat); err != nil {
		return fmt.Errorf("write lat: %w", err)
	}
	if err := writeFloat32Slice(f, g.Lon); err != nil {
		return fmt.Errorf("write lon: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteEdges serializes the edge artifact.
func WriteEdges(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	hdr := edgesHeader{
		NumNodes:          g.NumNodes,
		NumEdges:          g.NumEdges,
		HasSurfacePrimary: 1,
		HasModeMask:       1,
		LengthType:        0, // f32 meters
	}
	copy(hdr.Magic[:], edgesMagic)
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write edges header: %w", err)
	}

	sizes := [sizesBlockLen]uint32{
		uint32(len(g.Offsets)),
		uint32(len(g.Neighbors)),
		uint32(len(g.LengthM)),
		uint32(len(g.Surface)),
		uint32(len(g.ModeMask)),
	}
	if err := binary.Write(f, binary.LittleEndian, &sizes); err != nil {
		return fmt.Errorf("write sizes block: %w", err)
	}

	if err := writeUint32Slice(f, g.Offsets); err != nil {
		return fmt.Errorf("write offsets: %w", err)
	}
	if err := writeUint32Slice(f, g.Neighbors); err != nil {
		return fmt.Errorf("write neighbors: %w", err)
	}
	if err := writeFloat32Slice(f, g.LengthM); err != nil {
		return fmt.Errorf("write lengths: %w", err)
	}
	if err := writeByteSlice(f, g.Surface); err != nil {
		return fmt.Errorf("write surfacePrimary: %w", err)
	}
	if err := writeByteSlice(f, g.ModeMask); err != nil {
		return fmt.Errorf("write modeMask: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Zero-copy write helpers using unsafe.Slice. The in-memory layout of the
// element types matches the little-endian wire layout on every platform we
// build for.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeUint64Slice(w io.Writer, s []uint64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func writeFloat32Slice(w io.Writer, s []float32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeByteSlice(w io.Writer, s []byte) error {
	if len(s) == 0 {
		return nil
	}
	_, err := w.Write(s)
	return err
}
