package quiz

import "sync"

// Registry tracks which source items have a quiz generation in progress.
// It is local to the process.
type Registry struct {
	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{inflight: make(map[int64]struct{})}
}

// TryAcquire marks id as in flight. It returns false if it already was.
func (r *Registry) TryAcquire(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[id]; ok {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Registry) Release(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}
