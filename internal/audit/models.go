// Package audit captures structured audit events for ledger decisions.
// Every accept, reject, and revoke leaves a trail so operators can answer
// "why was this batch refused" after the fact.
package audit

import (
	"context"
	"sync"
	"time"
)

// Action identifies what happened.
type Action string

const (
	ActionBatchAccepted  Action = "batch_accepted"
	ActionBatchRejected  Action = "batch_rejected"
	ActionBatchReplayed  Action = "batch_replayed"
	ActionMandateRevoked Action = "mandate_revoked"
)

// Event is one audit record.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	Action        Action    `json:"action"`
	TransactionID string    `json:"transaction_id,omitempty"`
	MandateID     string    `json:"mandate_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

// Store is the audit sink. Sinks must be safe for concurrent appends.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// InMemoryStore collects events in memory, for tests and single-process runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds an event to the store.
func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all recorded events.
func (s *InMemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
