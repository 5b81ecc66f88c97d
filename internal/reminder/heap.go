package reminder

import "container/heap"

// pendingHeap is a min-heap of armed reminders ordered by target instant,
// then by arm order.
type pendingHeap []*Pending

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].Target.Equal(h[j].Target) {
		return h[i].seq < h[j].seq
	}
	return h[i].Target.Before(h[j].Target)
}
func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(*Pending)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// removeByID drops the reminder with id. It reports whether it was present.
func (h *pendingHeap) removeByID(id string) (*Pending, bool) {
	for i, p := range *h {
		if p.ID == id {
			heap.Remove(h, i)
			return p, true
		}
	}
	return nil, false
}

// idsByKey returns armed reminder IDs sharing key.
func (h pendingHeap) idsByKey(key string) []string {
	var out []string
	for _, p := range h {
		if p.Key == key {
			out = append(out, p.ID)
		}
	}
	return out
}
