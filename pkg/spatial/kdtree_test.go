package spatial

import (
	"errors"
	"math"
	"testing"

	"multimodal_router/pkg/geo"
)

// lcg is a tiny deterministic generator so the test corpus is stable.
type lcg uint64

func (r *lcg) next() float64 {
	*r = *r*6364136223846793005 + 1442695040888963407
	return float64(*r>>11) / float64(1<<53)
}

func randomPoints(n int, seed uint64) (lat, lon []float32) {
	r := lcg(seed)
	lat = make([]float32, n)
	lon = make([]float32, n)
	for i := 0; i < n; i++ {
		lat[i] = float32(1.2 + 0.3*r.next())   // ~[1.2, 1.5]
		lon[i] = float32(103.6 + 0.5*r.next()) // ~[103.6, 104.1]
	}
	return lat, lon
}

// bruteNearest scans every point with the documented metric, including
// the smaller-index tie break.
func bruteNearest(lat, lon []float32, qLat, qLon float64) uint32 {
	best := math.Inf(1)
	bestIdx := uint32(0)
	for i := range lat {
		d := geo.SquaredDegreeDist(qLat, qLon, float64(lat[i]), float64(lon[i]))
		if d < best {
			best = d
			bestIdx = uint32(i)
		}
	}
	return bestIdx
}

func TestNearestMatchesBruteForce(t *testing.T) {
	lat, lon := randomPoints(500, 42)
	idx := NewIndex(lat, lon)

	r := lcg(7)
	for q := 0; q < 200; q++ {
		qLat := 1.2 + 0.3*r.next()
		qLon := 103.6 + 0.5*r.next()

		got, err := idx.Nearest(qLat, qLon)
		if err != nil {
			t.Fatalf("Nearest: %v", err)
		}
		want := bruteNearest(lat, lon, qLat, qLon)
		if got != want {
			// Equal distances are an acceptable disagreement only if the
			// index picked the smaller of the two; otherwise it's a bug.
			dGot := dist2(lat, lon, got, qLat, qLon)
			dWant := dist2(lat, lon, want, qLat, qLon)
			if dGot != dWant || got > want {
				t.Fatalf("query %d: got %d (d=%v), want %d (d=%v)", q, got, dGot, want, dWant)
			}
		}
	}
}

func dist2(lat, lon []float32, i uint32, qLat, qLon float64) float64 {
	return geo.SquaredDegreeDist(qLat, qLon, float64(lat[i]), float64(lon[i]))
}

func TestNearestTieBreaksToSmallerIndex(t *testing.T) {
	// Three copies of the same point plus a decoy.
	lat := []float32{1.31, 1.30, 1.30, 1.30}
	lon := []float32{103.9, 103.80, 103.80, 103.80}
	idx := NewIndex(lat, lon)

	got, err := idx.Nearest(1.30, 103.80)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if got != 1 {
		t.Errorf("tie broke to %d, want 1 (smallest index at the point)", got)
	}
}

func TestNearestExactHit(t *testing.T) {
	lat, lon := randomPoints(64, 9)
	idx := NewIndex(lat, lon)
	for i := range lat {
		got, err := idx.Nearest(float64(lat[i]), float64(lon[i]))
		if err != nil {
			t.Fatalf("Nearest: %v", err)
		}
		if dist2(lat, lon, got, float64(lat[i]), float64(lon[i])) != 0 {
			t.Fatalf("query at point %d returned non-coincident %d", i, got)
		}
	}
}

func TestNearestEmptyIndex(t *testing.T) {
	idx := NewIndex(nil, nil)
	if _, err := idx.Nearest(1.3, 103.8); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
}

func TestNodeOutOfRange(t *testing.T) {
	lat, lon := randomPoints(4, 1)
	idx := NewIndex(lat, lon)

	if _, _, err := idx.Node(4); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
	gotLat, gotLon, err := idx.Node(2)
	if err != nil {
		t.Fatalf("Node(2): %v", err)
	}
	if float32(gotLat) != lat[2] || float32(gotLon) != lon[2] {
		t.Errorf("Node(2) = (%f, %f), want (%f, %f)", gotLat, gotLon, lat[2], lon[2])
	}
}

func TestSinglePoint(t *testing.T) {
	idx := NewIndex([]float32{1.3}, []float32{103.8})
	got, err := idx.Nearest(50, 10)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}
