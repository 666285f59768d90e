// Package agent implements the four execution patterns (ReAct, Plan-Execute,
// Reflection and Multi-Agent) as explicit finite-state graphs.
//
// Each pattern implements Graph: an entry node, a node executor that performs
// the model and tool effects, and a pure Transition function mapping the
// current node and the Signal it produced to the next node. Drive runs a graph
// against a RunContext:
//
//   - ctx is checked before every node, so cancellation takes effect between
//     model and tool calls, never during one
//   - every node runs inside an OpenTelemetry span
//   - the state is checkpointed after every transition
//   - a transition event is emitted with the messages the node appended
//
// Engines never fail on output quality. Budget exhaustion, unparsable model
// output and similar conditions finish the run on a best-effort path and are
// recorded in AgentState.DegradedReasons. Only infrastructure failures
// (model unreachable, registry misconfigured, checkpoint failure,
// cancellation) are returned as errors.
package agent
