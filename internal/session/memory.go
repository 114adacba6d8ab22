package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback used in dev and tests. Expiry
// is checked lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Set(ctx context.Context, documentID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.entries[key(documentID)] = memoryEntry{
		payload:   buf,
		expiresAt: s.now().Add(TTL),
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, documentID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key(documentID)]
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key(documentID))
		return nil, ErrNotFound
	}
	buf := make([]byte, len(entry.payload))
	copy(buf, entry.payload)
	return buf, nil
}

func (s *MemoryStore) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key(documentID))
	return nil
}

var _ Store = (*MemoryStore)(nil)
