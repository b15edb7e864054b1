package routing

// MinHeap is a concrete-typed min-heap over search states, keyed by the
// f = g + h priority. Avoids the interface boxing of container/heap in
// the hot loop. Duplicate entries for a state are expected; stale pops
// are discarded by the caller via its closed bits.
type MinHeap struct {
	items []pqItem
}

type pqItem struct {
	priority float64
	state    uint32 // 2*node + layer
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(state uint32, priority float64) {
	h.items = append(h.items, pqItem{priority, state})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() (state uint32, priority float64) {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item.state, item.priority
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].priority >= h.items[parent].priority {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].priority < h.items[smallest].priority {
			smallest = left
		}
		if right < n && h.items[right].priority < h.items[smallest].priority {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
