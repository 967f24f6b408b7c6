package store

import (
	"context"
	"sync"

	"photomap/internal/atlas"
)

// MemoryStore keeps the document in memory for development and tests.
type MemoryStore struct {
	mu  sync.RWMutex
	doc *atlas.CacheDocument
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements DocumentStore.
func (s *MemoryStore) Load(_ context.Context) (*atlas.CacheDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, ErrNotFound
	}
	copied := *s.doc
	return &copied, nil
}

// Save implements DocumentStore.
func (s *MemoryStore) Save(_ context.Context, doc *atlas.CacheDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	s.doc = &copied
	return nil
}

// Close implements DocumentStore.
func (s *MemoryStore) Close() error {
	return nil
}
