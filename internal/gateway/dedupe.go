package gateway

import "sync"

// RecentUpdates is a bounded set of recently admitted update ids. When the
// capacity is exceeded the oldest admitted id is evicted first, in arrival
// order. Nothing is assumed about numeric ordering of ids, so
// non-monotonic ids simply age out like any other. Safe for concurrent use.
type RecentUpdates struct {
	mu       sync.Mutex
	capacity int
	queue    []int64
	set      map[int64]struct{}
}

// DefaultRecentCapacity bounds the dedup window.
const DefaultRecentCapacity = 1000

// NewRecentUpdates creates the set with the given capacity (minimum 1).
func NewRecentUpdates(capacity int) *RecentUpdates {
	if capacity < 1 {
		capacity = DefaultRecentCapacity
	}
	return &RecentUpdates{
		capacity: capacity,
		set:      make(map[int64]struct{}, capacity),
	}
}

// Seen reports whether the id is currently resident.
func (r *RecentUpdates) Seen(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[id]
	return ok
}

// Add records an admitted id, evicting the oldest entry when full.
// Adding an already-resident id is a no-op.
func (r *RecentUpdates) Add(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[id]; ok {
		return
	}
	if len(r.queue) >= r.capacity {
		oldest := r.queue[0]
		r.queue = r.queue[1:]
		delete(r.set, oldest)
	}
	r.queue = append(r.queue, id)
	r.set[id] = struct{}{}
}

// Len returns the number of resident ids.
func (r *RecentUpdates) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set)
}
