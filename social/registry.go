package social

import (
	"sort"
	"sync"

	"github.com/goliatone/flaresync"
)

// Registry resolves platform adapters by platform.
type Registry struct {
	mu       sync.RWMutex
	adapters map[flaresync.Platform]PlatformAdapter
}

// NewRegistry creates a registry holding adapters.
func NewRegistry(adapters ...PlatformAdapter) *Registry {
	r := &Registry{adapters: map[flaresync.Platform]PlatformAdapter{}}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(adapter PlatformAdapter) {
	if adapter == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Platform()] = adapter
}

// Get returns the adapter for platform or ErrAdapterNotFound.
func (r *Registry) Get(platform flaresync.Platform) (PlatformAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, ErrAdapterNotFound
	}
	return adapter, nil
}

// Platforms lists registered platforms in a stable order.
func (r *Registry) Platforms() []flaresync.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]flaresync.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsConfigured reports whether adapter has the client settings it needs.
// Adapters that do not implement Configurable are assumed configured.
func IsConfigured(adapter PlatformAdapter) bool {
	if c, ok := adapter.(Configurable); ok {
		return c.Configured()
	}
	return adapter != nil
}
