package link

import (
	"sort"
	"sync"
)

// Registry provides named chunk lookup for definition resolution.
type Registry struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{chunks: make(map[string]Chunk)}
}

// Register adds chunks to the registry, replacing any with the same name.
func (r *Registry) Register(chunks ...Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		r.chunks[c.Name] = c
	}
}

// Get retrieves a chunk by name.
func (r *Registry) Get(name string) (Chunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chunks[name]
	return c, ok
}

// List returns sorted names of all registered chunks.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.chunks))
	for name := range r.chunks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
