package testutil

import "github.com/artdevesa7/Agentic-AI-designs/core"

// StateBuilder provides a fluent helper for constructing agent states.
type StateBuilder struct {
	state *core.AgentState
}

// NewStateBuilder starts a state for threadID running pattern p.
func NewStateBuilder(threadID string, p core.Pattern) *StateBuilder {
	return &StateBuilder{state: core.NewAgentState(threadID, p)}
}

// Query begins a turn with q (chainable).
func (b *StateBuilder) Query(q string, maxIterations int, start string) *StateBuilder {
	b.state.BeginTurn(b.state.Pattern, q, maxIterations, start)
	return b
}

// Assistant appends an assistant message (chainable).
func (b *StateBuilder) Assistant(author, text string) *StateBuilder {
	b.state.Append(core.NewAssistantMessage(author, text))
	return b
}

// ToolResult appends a successful tool result (chainable).
func (b *StateBuilder) ToolResult(name string, output any) *StateBuilder {
	b.state.Append(core.NewToolResultMessage("tool", core.ToolResult{CallID: "call_" + name, Name: name, Output: output}))
	return b
}

// Iteration sets the iteration counter (chainable).
func (b *StateBuilder) Iteration(n int) *StateBuilder { b.state.Iteration = n; return b }

// Node sets the current node (chainable).
func (b *StateBuilder) Node(n string) *StateBuilder { b.state.Node = n; return b }

// Scratch replaces the pattern state (chainable).
func (b *StateBuilder) Scratch(ps core.PatternState) *StateBuilder { b.state.Scratch = ps; return b }

// Build returns the constructed state.
func (b *StateBuilder) Build() *core.AgentState { return b.state }
