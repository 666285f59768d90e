package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeDone is the terminal node shared by every pattern graph.
const NodeDone = "done"

// DefaultMaxIterations is the iteration bound used when the caller supplies none.
const DefaultMaxIterations = 3

// AgentState is the per-thread conversation state checkpointed after every
// node transition.
//
// Contract:
//   - Messages only grow through Append; existing entries are never edited
//   - Iteration never exceeds MaxIterations
//   - Version increases by one on every successful save
type AgentState struct {
	ThreadID        string       `json:"thread_id"`
	Pattern         Pattern      `json:"pattern"`
	Query           string       `json:"query"`
	Messages        []Message    `json:"messages"`
	TurnStart       int          `json:"turn_start"`
	Iteration       int          `json:"iteration"`
	MaxIterations   int          `json:"max_iterations"`
	Node            string       `json:"node"`
	Scratch         PatternState `json:"-"`
	DegradedReasons []string     `json:"degraded_reasons,omitempty"`
	Version         int64        `json:"version"`
	Created         time.Time    `json:"created"`
	Updated         time.Time    `json:"updated"`
}

// NewAgentState creates an empty state for threadID.
func NewAgentState(threadID string, p Pattern) *AgentState {
	now := time.Now().UTC()
	return &AgentState{
		ThreadID:      threadID,
		Pattern:       p,
		MaxIterations: DefaultMaxIterations,
		Scratch:       NewPatternState(p),
		Created:       now,
		Updated:       now,
	}
}

// Append adds messages to the end of the conversation.
func (s *AgentState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
	s.Updated = time.Now().UTC()
}

// Degrade records a reason why the run finished on a best-effort path.
func (s *AgentState) Degrade(reason string) {
	for _, r := range s.DegradedReasons {
		if r == reason {
			return
		}
	}
	s.DegradedReasons = append(s.DegradedReasons, reason)
}

// Finished reports whether the last run reached the terminal node.
func (s *AgentState) Finished() bool { return s.Node == NodeDone }

// BeginTurn starts a new run on the thread: the query is appended as a user
// turn while the history is kept, and the per-run counters are reset.
func (s *AgentState) BeginTurn(p Pattern, query string, maxIterations int, start string) {
	s.Pattern = p
	s.Query = query
	s.Iteration = 0
	s.MaxIterations = maxIterations
	s.Node = start
	s.Scratch = NewPatternState(p)
	s.DegradedReasons = nil
	s.TurnStart = len(s.Messages)
	s.Append(NewUserMessage(query))
}

// TurnMessages returns the messages of the current turn, starting with its
// user query.
func (s *AgentState) TurnMessages() []Message {
	if s.TurnStart < 0 || s.TurnStart > len(s.Messages) {
		return s.Messages
	}
	return s.Messages[s.TurnStart:]
}

// Clone returns a deep copy safe for independent mutation.
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		cp.Messages[i] = m.Clone()
	}
	if s.Scratch != nil {
		cp.Scratch = s.Scratch.clonePatternState()
	}
	cp.DegradedReasons = append([]string(nil), s.DegradedReasons...)
	return &cp
}

type stateAlias AgentState

type stateJSON struct {
	*stateAlias
	ScratchKind Pattern         `json:"scratch_kind,omitempty"`
	ScratchData json.RawMessage `json:"scratch,omitempty"`
}

// MarshalJSON encodes the state with Scratch wrapped in a kind/data envelope.
func (s *AgentState) MarshalJSON() ([]byte, error) {
	out := stateJSON{stateAlias: (*stateAlias)(s)}
	if s.Scratch != nil {
		data, err := json.Marshal(s.Scratch)
		if err != nil {
			return nil, fmt.Errorf("encode pattern state: %w", err)
		}
		out.ScratchKind = s.Scratch.Pattern()
		out.ScratchData = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the kind/data envelope back into the PatternState sum type.
func (s *AgentState) UnmarshalJSON(b []byte) error {
	in := stateJSON{stateAlias: (*stateAlias)(s)}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	s.Scratch = nil
	if in.ScratchKind == "" {
		return nil
	}
	ps := NewPatternState(in.ScratchKind)
	if ps == nil {
		return fmt.Errorf("decode pattern state: %w: %q", ErrUnknownPattern, in.ScratchKind)
	}
	if len(in.ScratchData) > 0 {
		if err := json.Unmarshal(in.ScratchData, ps); err != nil {
			return fmt.Errorf("decode pattern state: %w", err)
		}
	}
	s.Scratch = ps
	return nil
}
