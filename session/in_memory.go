package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/artdevesa7/Agentic-AI-designs/core"
)

// InMemoryStore is a volatile Store keeping checkpoints in a process local
// map. It is safe for concurrent access and best suited for tests, the CLI and
// single-process deployments. States are cloned on the way in and out so
// callers never share memory with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.AgentState
	locks   *KeyedLocker
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.AgentState), locks: NewKeyedLocker()}
}

// Load returns a clone of the stored state.
func (s *InMemoryStore) Load(_ context.Context, threadID string) (*core.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// Save stores a clone of state after the optimistic version check.
func (s *InMemoryStore) Save(_ context.Context, state *core.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.threads[state.ThreadID]; ok {
		current = existing.Version
	}
	if state.Version != current {
		return fmt.Errorf("%w: thread %q expected version %d, got %d", ErrVersionConflict, state.ThreadID, current, state.Version)
	}

	state.Version = current + 1
	state.Updated = time.Now().UTC()
	s.threads[state.ThreadID] = state.Clone()
	return nil
}

// Delete removes the thread.
func (s *InMemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Lock grants exclusive ownership of threadID.
func (s *InMemoryStore) Lock(ctx context.Context, threadID string) (func(), error) {
	return s.locks.Lock(ctx, threadID)
}

// Threads returns the ids of stored threads.
func (s *InMemoryStore) Threads() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	return ids
}
