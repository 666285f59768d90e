package session

import (
	"context"
	"errors"

	"github.com/artdevesa7/Agentic-AI-designs/core"
)

var (
	// ErrNotFound is returned by Load for an unknown thread.
	ErrNotFound = errors.New("thread not found")
	// ErrVersionConflict is returned by Save when the state is stale.
	ErrVersionConflict = errors.New("thread version conflict")
)

// Store persists AgentState keyed by thread id.
type Store interface {
	// Load returns a copy of the latest checkpoint or ErrNotFound.
	Load(ctx context.Context, threadID string) (*core.AgentState, error)
	// Save atomically replaces the checkpoint. state.Version must match the
	// stored version (0 for a new thread); on success it is incremented in place.
	Save(ctx context.Context, state *core.AgentState) error
	// Delete removes a thread. Deleting an unknown thread is not an error.
	Delete(ctx context.Context, threadID string) error
	// Lock grants exclusive ownership of threadID until the returned func is
	// called. It blocks until the thread is free or ctx is done.
	Lock(ctx context.Context, threadID string) (func(), error)
}
