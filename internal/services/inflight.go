package services

import "sync"

// inflight rejects a second operation on a key while the first is running.
type inflight struct {
	mu     sync.Mutex
	active map[string]bool
}

func newInflight() *inflight {
	return &inflight{active: make(map[string]bool)}
}

// acquire returns a release func, or false when key is already held.
func (g *inflight) acquire(key string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[key] {
		return nil, false
	}
	g.active[key] = true
	return func() {
		g.mu.Lock()
		delete(g.active, key)
		g.mu.Unlock()
	}, true
}
