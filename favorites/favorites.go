// Package favorites persists the user's watchlist. The aggregator only
// needs Load at boot and Save on change; adapters exist for in-memory use
// (tests, ephemeral runs) and Redis.
package favorites

import (
	"context"
	"sync"
)

// Store persists the set of favorited canonical symbols.
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, symbols []string) error
}

// MemoryStore keeps favorites in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	symbols []string
}

func NewMemoryStore(initial []string) *MemoryStore {
	s := &MemoryStore{}
	s.symbols = append(s.symbols, initial...)
	return s
}

func (s *MemoryStore) Load(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = make([]string, len(symbols))
	copy(s.symbols, symbols)
	return nil
}
