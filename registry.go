package dispatchz

import (
	"slices"
	"sync"
)

// Bucket is one priority level of a hook in dispatch order.
type Bucket struct {
	Priority  int
	Callbacks []Callback
}

// entry is a stored callback together with the id of the Bind call that
// created it.
type entry struct {
	id       string
	callback Callback
}

// registry maps key -> priority -> callbacks in insertion order.
//
// Every method takes the lock for its own duration only, so callers can
// invoke callbacks between registry calls without holding it.
type registry struct {
	mu    sync.RWMutex
	hooks map[Key]map[int][]entry
	order []Key // keys in first-bind order
	total int
}

func newRegistry() *registry {
	return &registry{
		hooks: make(map[Key]map[int][]entry),
	}
}

// bind appends e to key at priority, creating buckets as needed.
func (r *registry) bind(key Key, priority int, e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buckets, ok := r.hooks[key]
	if !ok {
		buckets = make(map[int][]entry)
		r.hooks[key] = buckets
		r.order = append(r.order, key)
	}
	buckets[priority] = append(buckets[priority], e)
	r.total++
}

// sorted returns a snapshot of key's buckets in ascending priority order.
// The returned slices are not shared with the registry.
func (r *registry) sorted(key Key) []Bucket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buckets := r.hooks[key]
	if len(buckets) == 0 {
		return nil
	}

	priorities := make([]int, 0, len(buckets))
	for p := range buckets {
		priorities = append(priorities, p)
	}
	slices.Sort(priorities)

	out := make([]Bucket, 0, len(priorities))
	for _, p := range priorities {
		entries := buckets[p]
		callbacks := make([]Callback, len(entries))
		for i, e := range entries {
			callbacks[i] = e.callback
		}
		out = append(out, Bucket{Priority: p, Callbacks: callbacks})
	}
	return out
}

// clearKey removes every callback bound to key and reports how many were
// removed. Clearing an unbound key is a no-op.
func (r *registry) clearKey(key Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	buckets, ok := r.hooks[key]
	if !ok {
		return 0
	}

	removed := 0
	for _, entries := range buckets {
		removed += len(entries)
	}
	delete(r.hooks, key)
	r.dropOrder(key)
	r.total -= removed
	return removed
}

// remove deletes every entry created by the Bind call with the given id.
func (r *registry) remove(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, buckets := range r.hooks {
		for p, entries := range buckets {
			kept := entries[:0:0]
			for _, e := range entries {
				if e.id == id {
					removed++
					continue
				}
				kept = append(kept, e)
			}
			if len(kept) == 0 {
				delete(buckets, p)
			} else {
				buckets[p] = kept
			}
		}
		if len(buckets) == 0 {
			delete(r.hooks, key)
			r.dropOrder(key)
		}
	}
	r.total -= removed
	return removed
}

// dropOrder must be called with the write lock held.
func (r *registry) dropOrder(key Key) {
	if i := slices.Index(r.order, key); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

// keys returns the bound keys in the order they were first bound.
func (r *registry) keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func (r *registry) count(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, entries := range r.hooks[key] {
		n += len(entries)
	}
	return n
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
