package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/seantiz/taskroute/internal/model"
)

// BackendInfo pairs a registration key with its backend's capabilities.
type BackendInfo struct {
	Key          string       `json:"key"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry holds registered backends and resolves which one runs a step on
// a given platform: an exact platform id match first, then the platform's
// category, then the default backend.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	fallback Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend under a platform id or a platform category.
func (r *Registry) Register(key string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[key] = b
}

// SetDefault sets the backend used when neither id nor category matches.
func (r *Registry) SetDefault(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = b
}

// Resolve returns the backend to use for the given platform.
func (r *Registry) Resolve(p model.ExecutionPlatform) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.backends[p.ID]; ok {
		return b, nil
	}
	if b, ok := r.backends[p.Category]; ok {
		return b, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no backend registered for platform %q (category %q)", p.ID, p.Category)
}

// List returns information about all registered backends, sorted by key
// for a stable API response.
func (r *Registry) List() []BackendInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]BackendInfo, 0, len(r.backends))
	for key, b := range r.backends {
		infos = append(infos, BackendInfo{
			Key:          key,
			Capabilities: b.Capabilities(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key < infos[j].Key
	})
	return infos
}
