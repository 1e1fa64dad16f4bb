package storage

import (
	"context"
	"sync"

	"github.com/vitos/signal_engine/internal/domain"
)

// MemoryStore is a process-local SignalStore. State does not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[domain.StoreKey]*domain.Signal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[domain.StoreKey]*domain.Signal)}
}

func (s *MemoryStore) WaitForInit(ctx context.Context) error { return nil }

func (s *MemoryStore) HasValue(ctx context.Context, key domain.StoreKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *MemoryStore) ReadValue(ctx context.Context, key domain.StoreKey) (*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key].Clone(), nil
}

func (s *MemoryStore) WriteValue(ctx context.Context, key domain.StoreKey, value *domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == nil {
		delete(s.data, key)
		return nil
	}
	s.data[key] = value.Clone()
	return nil
}
