package device

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds a device of one type, capabilities included.
type Factory func(id DeviceID, displayName string, customIdentifiers map[string]string) *Device

// TypeRegistry maps supported device types to their factories.
type TypeRegistry struct {
	mu        sync.RWMutex
	factories map[Type]Factory
}

// NewTypeRegistry creates an empty type registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{factories: make(map[Type]Factory)}
}

// Register adds the factory for t.
func (r *TypeRegistry) Register(t Type, f Factory) error {
	if t == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidDeviceID)
	}
	if f == nil {
		return fmt.Errorf("device: nil factory for type %q", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[t]; exists {
		return fmt.Errorf("%w: %q", ErrTypeRegistered, t)
	}
	r.factories[t] = f
	return nil
}

// Supports reports whether a factory is registered for t.
func (r *TypeRegistry) Supports(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[t]
	return ok
}

// SupportedTypes returns the registered types, sorted.
func (r *TypeRegistry) SupportedTypes() []Type {
	r.mu.RLock()
	types := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	r.mu.RUnlock()

	slices.Sort(types)
	return types
}

// Create builds a device using the factory registered for id.Type.
func (r *TypeRegistry) Create(id DeviceID, displayName string, customIdentifiers map[string]string) (*Device, error) {
	r.mu.RLock()
	f, ok := r.factories[id.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotSupported, id.Type)
	}

	d := f(id, displayName, customIdentifiers)
	if d == nil {
		return nil, fmt.Errorf("device: factory for %q returned nil", id.Type)
	}
	if d.ID() != id {
		return nil, fmt.Errorf("device: factory for %q built device %s, want %s", id.Type, d.ID(), id)
	}
	return d, nil
}
