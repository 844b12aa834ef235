package platform

import (
	"strings"
	"sync"
)

// Registry manages handler factories and instances.
// Handlers are stateless beyond their HTTP client, so one instance per
// platform is cached for the process lifetime.
type Registry struct {
	mu        sync.RWMutex
	cfg       HandlerConfig
	factories map[string]Factory
	cache     map[string]Handler
}

// NewRegistry creates a registry. All handlers built from it share cfg.
func NewRegistry(cfg HandlerConfig) *Registry {
	return &Registry{
		cfg:       cfg,
		factories: make(map[string]Factory),
		cache:     make(map[string]Handler),
	}
}

// RegisterFactory registers a factory for a platform name.
// Call at startup for each supported platform.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// Get returns the handler for the given platform name (case-insensitive).
// Returns ErrUnknownPlatform if no factory is registered for it.
func (r *Registry) Get(name string) (Handler, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	if h, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return h, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if h, ok := r.cache[key]; ok {
		return h, nil
	}

	factory, ok := r.factories[key]
	if !ok {
		return nil, ErrUnknownPlatform
	}

	h, err := factory(r.cfg)
	if err != nil {
		return nil, err
	}

	r.cache[key] = h
	return h, nil
}

// Available returns the registered platform names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
