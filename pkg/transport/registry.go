package transport

import (
	"fmt"
	"slices"
	"sync"

	rcerrors "github.com/tombee/restclient/pkg/errors"
)

// TransportConfig is the base interface for transport configuration.
type TransportConfig interface {
	// TransportType returns the transport type identifier ("http")
	TransportType() string

	// Validate checks if the configuration is valid
	Validate() error
}

// TransportFactory creates a transport instance with the given configuration.
type TransportFactory func(config TransportConfig) (Transport, error)

// Registry manages transport registration and creation.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]TransportFactory
}

// NewRegistry creates an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{
		transports: make(map[string]TransportFactory),
	}
}

// DefaultRegistry returns a registry with the built-in "http" transport.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("http", func(config TransportConfig) (Transport, error) {
		cfg, ok := config.(*HTTPTransportConfig)
		if !ok {
			return nil, fmt.Errorf("http transport requires *HTTPTransportConfig, got %T", config)
		}
		return NewHTTPTransport(cfg)
	})
	return r
}

// Register adds a transport factory to the registry.
// Returns an error if a transport with the same name is already registered.
func (r *Registry) Register(name string, factory TransportFactory) error {
	if name == "" {
		return fmt.Errorf("transport name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("transport factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transports[name]; exists {
		return fmt.Errorf("transport %q is already registered", name)
	}

	r.transports[name] = factory
	return nil
}

// Create instantiates a transport by name with configuration.
func (r *Registry) Create(name string, config TransportConfig) (Transport, error) {
	if name == "" {
		return nil, fmt.Errorf("transport name cannot be empty")
	}
	if config == nil {
		return nil, fmt.Errorf("transport configuration cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, rcerrors.Wrapf(err, "invalid configuration for transport %q", name)
	}

	if config.TransportType() != name {
		return nil, fmt.Errorf("transport type mismatch: requested %q but config is for %q", name, config.TransportType())
	}

	r.mu.RLock()
	factory, exists := r.transports[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("transport %q is not registered", name)
	}

	return factory(config)
}

// List returns the sorted names of all registered transports.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has returns true if a transport with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.transports[name]
	return exists
}
