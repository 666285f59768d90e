// Package core provides the foundational domain types shared by the tool
// registry, the model adapters, the state store, the pattern engines and the
// dispatcher. It defines:
//
//   - Messages (role-tagged conversation turns, tool calls and tool results)
//   - AgentState (per-thread conversation state) and the PatternState sum type
//   - ResultEnvelope (the uniform answer + metadata returned to callers)
//   - Events (immutable node transition records for streaming)
//   - Categorised run errors
//
// The package keeps implementation concerns (persistence, model transport,
// orchestration) out of scope so every other package can depend on it.
package core
