package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

type memoryEntry struct {
	data     []byte
	metadata map[string]string
}

// MemoryStore is an in-process DocumentStore. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Put stores a copy of data and returns the cleaned path.
func (s *MemoryStore) Put(_ context.Context, name string, data []byte, metadata map[string]string) (string, error) {
	ref, err := cleanPath(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ref] = memoryEntry{data: slices.Clone(data), metadata: maps.Clone(metadata)}
	return ref, nil
}

// Get returns a copy of the document at ref.
func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	key, err := cleanPath(ref)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("memory %s: %w", key, ErrNotFound)
	}
	return slices.Clone(e.data), nil
}

// Metadata returns the metadata stored with ref.
func (s *MemoryStore) Metadata(ref string) map[string]string {
	key, err := cleanPath(ref)
	if err != nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.entries[key].metadata)
}

// Paths returns every stored path, sorted.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.entries))
}

var _ DocumentStore = (*MemoryStore)(nil)
