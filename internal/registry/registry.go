// Package registry provides the default collector registry used to resolve
// snapshot collectors by name.
package registry

import (
	"fmt"
	"sync"

	"github.com/metron-labs/metron/pkg/metron/v1/collector"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
)

// StaticRegistry implements the collector.Registry interface using a
// compile-time map. It provides thread-safe registration and retrieval of
// collector factories. This is the default registry implementation used by
// Metron if no other registry is provided.
type StaticRegistry struct {
	factories map[string]collector.Factory
	mu        sync.RWMutex
}

// NewStaticRegistry creates a new, empty static registry. Collectors must be
// registered using the Register method before they can be retrieved.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		factories: make(map[string]collector.Factory),
	}
}

// Register associates a collector name with its factory function. It is
// typically called from the init() function of a collector package or
// explicitly by the application wiring the registry. It enforces that names
// and factories are valid and prevents duplicate registrations.
func (r *StaticRegistry) Register(name string, factory collector.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return metronerrors.NewConfigError("collector registration error: name cannot be empty", nil)
	}
	if factory == nil {
		return metronerrors.NewConfigError(fmt.Sprintf("collector registration error for '%s': factory cannot be nil", name), nil)
	}
	if _, exists := r.factories[name]; exists {
		return metronerrors.NewConfigError(fmt.Sprintf("collector registration error: duplicate collector name '%s'", name), nil)
	}

	r.factories[name] = factory
	return nil
}

// Get retrieves the factory function for a given collector name. If the name
// is not registered, it returns a CollectorNotFoundError.
func (r *StaticRegistry) Get(name string) (collector.Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, metronerrors.NewCollectorNotFoundError(name)
	}
	return factory, nil
}

// List returns a slice containing the names of all registered collectors.
// The order of names in the returned slice is not guaranteed.
func (r *StaticRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

var (
	// globalRegistry holds the default registry instance used for
	// package-level registration via the global Register function.
	globalRegistry = NewStaticRegistry()

	_ collector.Registry = (*StaticRegistry)(nil)
)

// Register globally associates a collector name with its factory function in
// the default global registry instance. This is the intended mechanism for
// collectors to self-register during program initialization via their init()
// functions. It panics on registration errors (e.g., duplicate name) because
// init() functions run early, and such errors indicate a programming mistake
// that must be fixed.
func Register(name string, factory collector.Factory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(fmt.Errorf("failed to register collector '%s' globally: %w", name, err))
	}
}

// DefaultStaticRegistryGetter provides convenient access to the global static
// registry instance. This allows the main application (`cmd/metron`) or
// library consumers to retrieve the default registry containing compile-time
// registered collectors.
var DefaultStaticRegistryGetter collector.Registry = globalRegistry
