package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory creates a provider instance from provider-specific settings.
type Factory func(name string, settings map[string]string, logger *slog.Logger) (Provider, error)

// Registry maps provider type names to factories.
// The set of types is fixed at startup; one provider is built from it.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// RegisterFactory registers a provider factory for a given type.
func (r *Registry) RegisterFactory(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create builds a provider of the given type.
func (r *Registry) Create(name, typeName string, settings map[string]string) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", typeName)
	}

	p, err := factory(name, settings, r.logger)
	if err != nil {
		return nil, fmt.Errorf("creating provider %s: %w", name, err)
	}

	r.logger.Debug("created provider",
		slog.String("name", name),
		slog.String("type", typeName),
	)
	return p, nil
}
