package cache

import (
	"context"
	"sync"
)

// MemoryKV is an in-memory KV implementation for tests and ephemeral
// sessions where nothing may touch disk.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string]string)}
}

func (s *MemoryKV) HSet(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[key] == nil {
		s.data[key] = make(map[string]string)
	}
	s.data[key][field] = value
	return nil
}

func (s *MemoryKV) HGet(ctx context.Context, key, field string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *MemoryKV) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data[key]))
	for field, val := range s.data[key] {
		out[field] = val
	}
	return out, nil
}

func (s *MemoryKV) HDel(ctx context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, field := range fields {
		delete(s.data[key], field)
	}
	return nil
}
