package core

import (
	"time"

	"github.com/google/uuid"
)

// Event records one node transition of a run. After emission it should be
// treated as immutable. The final event of a run carries the Result.
type Event struct {
	ID           string          `json:"id"`
	InvocationID string          `json:"invocation_id"`
	ThreadID     string          `json:"thread_id"`
	Pattern      Pattern         `json:"pattern"`
	Node         string          `json:"node"`
	Next         string          `json:"next"`
	Iteration    int             `json:"iteration"`
	Messages     []Message       `json:"messages,omitempty"`
	Result       *ResultEnvelope `json:"result,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewTransitionEvent creates an event for the move from node to next.
// Messages appended during the node are attached in order.
func NewTransitionEvent(invocationID string, s *AgentState, node, next string, appended []Message) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		ThreadID:     s.ThreadID,
		Pattern:      s.Pattern,
		Node:         node,
		Next:         next,
		Iteration:    s.Iteration,
		Messages:     appended,
		Timestamp:    time.Now().UTC(),
	}
}

// NewResultEvent creates the terminal event carrying the envelope.
func NewResultEvent(invocationID string, env ResultEnvelope) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		ThreadID:     env.ThreadID,
		Pattern:      env.Pattern,
		Node:         NodeDone,
		Iteration:    env.Metadata.Iterations,
		Result:       &env,
		Timestamp:    time.Now().UTC(),
	}
}

// IsFinal reports whether the event carries the run result.
func (e Event) IsFinal() bool { return e.Result != nil }

// NewID generates a new unique identifier for events, invocations and threads.
func NewID() string { return uuid.NewString() }
