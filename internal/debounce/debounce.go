// Package debounce provides a keyed registry of cancellable delayed calls.
package debounce

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Registry holds at most one pending call per key. Scheduling a key again
// cancels the previous call and replaces it.
type Registry struct {
	mu      sync.Mutex
	gen     uint64
	pending map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{pending: make(map[string]entry)}
}

// Schedule arranges for fn to run after delay unless key is rescheduled or
// cancelled first.
func (r *Registry) Schedule(key string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.pending[key]; ok {
		e.timer.Stop()
	}
	r.gen++
	gen := r.gen
	t := time.AfterFunc(delay, func() {
		r.mu.Lock()
		e, ok := r.pending[key]
		// A timer that fired after being replaced must not run.
		if !ok || e.gen != gen {
			r.mu.Unlock()
			return
		}
		delete(r.pending, key)
		r.mu.Unlock()
		fn()
	})
	r.pending[key] = entry{timer: t, gen: gen}
}

// Cancel drops the pending call for key, if any.
func (r *Registry) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pending[key]; ok {
		e.timer.Stop()
		delete(r.pending, key)
	}
}

// CancelAll drops every pending call.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.pending {
		e.timer.Stop()
		delete(r.pending, key)
	}
}

// Pending returns the number of scheduled calls.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
