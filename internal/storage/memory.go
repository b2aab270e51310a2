package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in process memory. Useful for tests and ephemeral deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.blobs[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	s.blobs[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
