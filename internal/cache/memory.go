package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps the encoded entry in process memory. It stores the encoded payload
// rather than the entry itself so every Read returns an independent copy, exactly like
// the durable backends.
type MemoryStore struct {
	mu      sync.RWMutex
	payload []byte
	writes  int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read decodes the stored payload.
func (s *MemoryStore) Read(ctx context.Context) (*Entry, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	payload := s.payload
	s.mu.RUnlock()

	if payload == nil {
		return nil, ErrCacheMiss
	}
	return Decode(payload)
}

// Write replaces the stored payload.
func (s *MemoryStore) Write(ctx context.Context, entry Entry) error {
	if err := contextErr(ctx); err != nil {
		return err
	}

	payload, err := Encode(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.payload = payload
	s.writes++
	return nil
}

// Writes reports how many successful writes the store has taken.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.writes
}
