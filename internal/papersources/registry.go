package papersources

import (
	"sync"

	"github.com/litscout/discovery-engine/internal/domain"
)

// Registry maps source tags to Source implementations. It provides
// thread-safe registration and retrieval; the orchestrator owns the
// concurrent fan-out across the resolved set.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]Source
}

// NewRegistry creates a new source registry with an empty source map.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]Source),
	}
}

// Register adds a source to the registry.
// If a source with the same type already exists, it will be replaced.
// This method is thread-safe.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
// This method is thread-safe.
func (r *Registry) Get(sourceType domain.SourceType) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// EnabledSources returns only enabled sources, in the stable provider-tag
// order, so fan-out dispatch and stats assembly are deterministic.
// This method is thread-safe.
func (r *Registry) EnabledSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(r.sources))
	for _, st := range domain.AllSourceTypes() {
		if source, ok := r.sources[st]; ok && source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// Resolve returns the enabled sources matching the requested tags, in the
// stable provider-tag order. Unknown or disabled tags are skipped. A nil or
// empty tag list resolves to all enabled sources.
// This method is thread-safe.
func (r *Registry) Resolve(tags []domain.SourceType) []Source {
	if len(tags) == 0 {
		return r.EnabledSources()
	}

	requested := make(map[domain.SourceType]bool, len(tags))
	for _, tag := range tags {
		requested[tag] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(tags))
	for _, st := range domain.AllSourceTypes() {
		if !requested[st] {
			continue
		}
		if source, ok := r.sources[st]; ok && source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}
