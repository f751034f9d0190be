package orchestrator

import "sync"

// dedupeWindow remembers the last N event IDs so redelivered events are
// processed at most once. Eviction is FIFO; an ID older than the window may
// be processed again, which the monotonic session transitions tolerate.
type dedupeWindow struct {
	mu       sync.Mutex
	capacity int
	order    []string
	head     int
	set      map[string]struct{}
}

func newDedupeWindow(capacity int) *dedupeWindow {
	if capacity <= 0 {
		capacity = 1
	}
	return &dedupeWindow{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		set:      make(map[string]struct{}, capacity),
	}
}

// Observe records an ID and reports whether it was already in the window
func (w *dedupeWindow) Observe(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.set[id]; ok {
		return true
	}

	if len(w.order) < w.capacity {
		w.order = append(w.order, id)
	} else {
		delete(w.set, w.order[w.head])
		w.order[w.head] = id
		w.head = (w.head + 1) % w.capacity
	}
	w.set[id] = struct{}{}
	return false
}

// Len returns the number of IDs currently tracked
func (w *dedupeWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.set)
}
