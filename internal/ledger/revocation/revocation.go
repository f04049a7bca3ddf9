// Package revocation tracks revoked mandate credential ids.
package revocation

import (
	"context"
	"sync"
)

// List is the revocation set consulted on every submission. Reads vastly
// outnumber writes; implementations must allow concurrent reads.
type List interface {
	// Revoke adds a credential id to the set.
	Revoke(ctx context.Context, credentialID string) error

	// IsRevoked reports whether the credential id is in the set.
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
}

// InMemoryList is the default single-process revocation set. Use RedisList
// when revocations must be shared across processes.
type InMemoryList struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

// NewInMemory constructs an empty in-memory revocation list.
func NewInMemory() *InMemoryList {
	return &InMemoryList{revoked: make(map[string]struct{})}
}

// Revoke adds a credential id to the set.
func (l *InMemoryList) Revoke(_ context.Context, credentialID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[credentialID] = struct{}{}
	return nil
}

// IsRevoked reports whether the credential id is in the set.
func (l *InMemoryList) IsRevoked(_ context.Context, credentialID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.revoked[credentialID]
	return ok, nil
}
