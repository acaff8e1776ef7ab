package docstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

// StoreFactory is the Strategy interface for creating document store implementations.
// Each backend (memory, Redis, DynamoDB, MySQL) registers one from its init() function.
type StoreFactory interface {
	// Create opens a document store from the store section of the configuration.
	Create(config registry.InternalStoreConfig) (core.DocumentStore, error)

	// Type returns the type identifier for this factory (e.g., "memory", "redis").
	Type() string

	// Validate checks the backend-specific settings of the store configuration.
	Validate(config registry.InternalStoreConfig) error
}

var (
	factoryRegistry = make(map[string]StoreFactory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a document store factory.
func RegisterFactory(factory StoreFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Create opens a document store using the factory registered for config.Type.
func Create(config registry.InternalStoreConfig) (core.DocumentStore, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("document store type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported document store type: %s", config.Type)
	}

	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}
	return factory.Create(config)
}

// GetRegisteredTypes returns the registered store types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a store type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}

// storeValidator adapts a factory's Validate to the registry.ConfigValidator strategy.
type storeValidator struct {
	factory StoreFactory
}

func (v *storeValidator) Type() string {
	return v.factory.Type()
}

func (v *storeValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Store.Type != v.factory.Type() {
		return fmt.Errorf("invalid type for %s validator: %s", v.factory.Type(), config.Store.Type)
	}
	return v.factory.Validate(config.Store)
}

// register installs a factory and its config validator.
func register(factory StoreFactory) {
	RegisterFactory(factory)
	registry.RegisterValidator(&storeValidator{factory: factory})
}
