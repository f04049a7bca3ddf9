// Package store persists the accepted transaction sequence.
//
// Error Contract:
// - Append returns nil on success or a wrapped error on infrastructure failure
// - List returns the batches in acceptance order
// - Implementations must never reorder or drop accepted batches
package store

import (
	"context"
	"sync"

	"aval/internal/ledger"
)

// InMemoryStore keeps the transaction sequence in process memory. It is the
// default store; the append log and the postgres store provide durability.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches []*ledger.TransactionBatch
}

// NewMemory constructs an empty in-memory transaction store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds an accepted batch to the end of the sequence.
func (s *InMemoryStore) Append(_ context.Context, batch *ledger.TransactionBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyBatch := *batch
	s.batches = append(s.batches, &copyBatch)
	return nil
}

// Exists reports whether a transaction id is already in the sequence.
func (s *InMemoryStore) Exists(_ context.Context, transactionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.batches {
		if b.TransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

// List returns the accepted batches in acceptance order. Callers receive
// copies of the batch envelopes; mandates are shared and immutable.
func (s *InMemoryStore) List(_ context.Context) ([]*ledger.TransactionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ledger.TransactionBatch, 0, len(s.batches))
	for _, b := range s.batches {
		copyBatch := *b
		out = append(out, &copyBatch)
	}
	return out, nil
}
