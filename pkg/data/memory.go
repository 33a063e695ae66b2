package data

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. It satisfies the same contract
// as DuckDBStore and is used for tests and throwaway sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
	keys   keyLocks
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrStoreClosed
	}
	value, ok := s.values[key]
	return value, ok, nil
}

// Set waits for any Update in flight on key before writing.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	unlock := s.keys.lock(key)
	defer unlock()
	return s.set(ctx, key, value)
}

func (s *MemoryStore) set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	unlock := s.keys.lock(key)
	defer unlock()
	return s.remove(ctx, key)
}

func (s *MemoryStore) remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	unlock := s.keys.lock(key)
	defer unlock()

	current, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	next, keep, err := fn(current, ok)
	if err != nil {
		return err
	}
	if !keep {
		return s.remove(ctx, key)
	}
	return s.set(ctx, key, next)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
