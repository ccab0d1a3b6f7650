package nonce

import (
	"context"
	"sync"

	"github.com/billions-bounty/entrygate/service/db"
)

// MemStore is an in-memory Store. It backs tests and the single-shot CLI,
// where counters do not need to survive the process.
type MemStore struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{counters: make(map[string]uint64)}
}

func (s *MemStore) NextNonce(_ context.Context, wallet string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[wallet]++
	return s.counters[wallet], nil
}

func (s *MemStore) ReleaseNonce(_ context.Context, wallet string, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[wallet] != nonce {
		return db.ErrNonceNotCurrent
	}
	s.counters[wallet]--
	return nil
}

func (s *MemStore) CurrentNonce(_ context.Context, wallet string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[wallet], nil
}
