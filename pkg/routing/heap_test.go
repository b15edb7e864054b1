package routing

import (
	"sort"
	"testing"
)

func TestMinHeapPopsInOrder(t *testing.T) {
	var h MinHeap
	prios := []float64{5.5, 1.25, 9, 0.5, 3, 3, 7.75, 2}
	for i, p := range prios {
		h.Push(uint32(i), p)
	}

	sorted := append([]float64(nil), prios...)
	sort.Float64s(sorted)

	for i, want := range sorted {
		if h.Len() != len(prios)-i {
			t.Fatalf("Len = %d, want %d", h.Len(), len(prios)-i)
		}
		_, got := h.Pop()
		if got != want {
			t.Fatalf("pop %d: priority %f, want %f", i, got, want)
		}
	}
	if h.Len() != 0 {
		t.Fatalf("Len = %d after draining", h.Len())
	}
}

func TestMinHeapDuplicateStates(t *testing.T) {
	// The search pushes improved duplicates instead of decrease-key; all
	// copies must surface, cheapest first.
	var h MinHeap
	h.Push(3, 10)
	h.Push(3, 4)
	h.Push(3, 7)

	state, p := h.Pop()
	if state != 3 || p != 4 {
		t.Fatalf("first pop = (%d, %f), want (3, 4)", state, p)
	}
	if _, p = h.Pop(); p != 7 {
		t.Fatalf("second pop priority = %f, want 7", p)
	}
	if _, p = h.Pop(); p != 10 {
		t.Fatalf("third pop priority = %f, want 10", p)
	}
}

func TestMinHeapReset(t *testing.T) {
	var h MinHeap
	h.Push(1, 1)
	h.Push(2, 2)
	h.Reset()
	if h.Len() != 0 {
		t.Fatalf("Len = %d after Reset", h.Len())
	}
}
