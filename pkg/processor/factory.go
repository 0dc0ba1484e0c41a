package processor

import (
	"fmt"
	"slices"
	"sync"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
)

// Factory creates processors by type name. It acts as a registry for creators.
type Factory interface {
	// Create builds a processor of typeName with the given id.
	Create(typeName string, id identifier.Identifier) (Processor, error)

	// Register registers a creator for a type. An existing creator is replaced.
	Register(typeName string, creator Creator)

	// HasCreator checks if a creator exists for a type.
	HasCreator(typeName string) bool

	// RegisteredTypes returns all registered types, sorted.
	RegisteredTypes() []string
}

// DefaultFactory is a thread-safe Factory.
type DefaultFactory struct {
	creators map[string]Creator
	mu       sync.RWMutex
}

// NewDefaultFactory creates an empty factory.
func NewDefaultFactory() *DefaultFactory {
	return &DefaultFactory{
		creators: make(map[string]Creator),
	}
}

// Register implements Factory.
func (f *DefaultFactory) Register(typeName string, creator Creator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[typeName] = creator
}

// Create implements Factory.
func (f *DefaultFactory) Create(typeName string, id identifier.Identifier) (Processor, error) {
	f.mu.RLock()
	creator, exists := f.creators[typeName]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", prismerrors.ErrUnknownProcessorType, typeName)
	}

	p, err := creator(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor %s (%s): %w", id, typeName, err)
	}
	return p, nil
}

// HasCreator implements Factory.
func (f *DefaultFactory) HasCreator(typeName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.creators[typeName]
	return exists
}

// RegisteredTypes implements Factory.
func (f *DefaultFactory) RegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.creators))
	for t := range f.creators {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Unregister removes a creator. It reports whether one existed.
func (f *DefaultFactory) Unregister(typeName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.creators[typeName]; exists {
		delete(f.creators, typeName)
		return true
	}
	return false
}

// Count returns the number of registered creators.
func (f *DefaultFactory) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.creators)
}

var _ Factory = (*DefaultFactory)(nil)
