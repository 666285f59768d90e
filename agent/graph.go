package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
	"github.com/artdevesa7/Agentic-AI-designs/model"
	"github.com/artdevesa7/Agentic-AI-designs/tool"
)

const tracerName = "github.com/artdevesa7/Agentic-AI-designs/agent"

// Signal is the event a node produces. Transition functions map
// (node, signal) to the next node.
type Signal string

const (
	// SignalContinue advances along the default edge.
	SignalContinue Signal = "continue"
	// SignalToolCall routes to the pattern's tool node.
	SignalToolCall Signal = "tool_call"
	// SignalAnswer reports a final answer.
	SignalAnswer Signal = "answer"
	// SignalDone leaves the loop (to synthesis or the terminal node).
	SignalDone Signal = "done"
	// SignalFanOut routes to the parallel specialist node.
	SignalFanOut Signal = "fan_out"
)

// Degradation reasons recorded on the state.
const (
	DegradedMaxIterations      = "max_iterations_reached"
	DegradedPlanTruncated      = "plan_truncated"
	DegradedDeferredDropped    = "deferred_tool_call_dropped"
	DegradedQualityBelow       = "quality_below_threshold"
	DegradedSupervisorBudget   = "supervisor_budget_exhausted"
	DegradedSupervisorRepeat   = "supervisor_repeat_selection"
	DegradedMalformedResponse  = "malformed_response"
	DegradedSynthesisFallback  = "synthesis_fallback"
	DegradedModelCallLimit     = "model_call_limit_reached"
	DegradedToolRoundsExceeded = "tool_rounds_exceeded"
)

// Graph is one execution pattern.
type Graph interface {
	// Pattern identifies the graph.
	Pattern() core.Pattern
	// Entry is the node a new turn starts at.
	Entry() string
	// DefaultMaxIterations applies when the caller supplies no bound.
	DefaultMaxIterations() int
	// Execute performs the effects of node on rc.State.
	Execute(ctx context.Context, rc *RunContext, node string) (Signal, error)
	// Transition returns the node following node after sig. It must not
	// mutate s.
	Transition(node string, sig Signal, s *core.AgentState) string
	// Answer extracts the final answer from a finished state.
	Answer(s *core.AgentState) string
}

// Checkpointer persists the state after each transition. session.Store
// satisfies it.
type Checkpointer interface {
	Save(ctx context.Context, state *core.AgentState) error
}

// RunContext carries everything a graph needs for one run.
type RunContext struct {
	State        *core.AgentState
	InvocationID string
	Model        model.Model
	Tools        *tool.Registry
	// Checkpoint may be nil for ephemeral runs.
	Checkpoint Checkpointer
	// Emit, if set, receives every transition event.
	Emit    func(core.Event)
	Logger  logging.Logger
	Tracer  trace.Tracer
	Limiter *core.ModelLimiter
}

func (rc *RunContext) init() {
	if rc.Logger == nil {
		rc.Logger = logging.NoOpLogger{}
	}
	if rc.Tracer == nil {
		rc.Tracer = otel.Tracer(tracerName)
	}
	if rc.Limiter == nil {
		rc.Limiter = core.NewModelLimiter(0)
	}
	if rc.InvocationID == "" {
		rc.InvocationID = core.NewID()
	}
}

// Drive runs g from rc.State.Node (or the entry node) until the terminal node
// and returns the final answer.
func Drive(ctx context.Context, g Graph, rc *RunContext) (string, error) {
	if rc == nil || rc.State == nil {
		return "", errors.New("agent: run context has no state")
	}
	rc.init()
	s := rc.State
	if s.Scratch == nil || s.Scratch.Pattern() != g.Pattern() {
		s.Scratch = core.NewPatternState(g.Pattern())
	}
	if s.Node == "" {
		s.Node = g.Entry()
	}
	if s.MaxIterations < 1 {
		s.MaxIterations = g.DefaultMaxIterations()
	}

	for !s.Finished() {
		if err := ctx.Err(); err != nil {
			rc.Logger.Warn("agent.run.cancelled", "thread", s.ThreadID, "node", s.Node, "error", err.Error())
			return "", err
		}

		node := s.Node
		before := len(s.Messages)

		sig, err := runNode(ctx, g, rc, node)
		next := ""
		switch {
		case errors.Is(err, core.ErrModelCallLimit):
			rc.Logger.Warn("agent.run.model_call_limit", "thread", s.ThreadID, "node", node, "calls", rc.Limiter.Count())
			s.Degrade(DegradedModelCallLimit)
			next = core.NodeDone
		case err != nil:
			return "", err
		default:
			next = g.Transition(node, sig, s)
		}
		s.Node = next

		// A finished transition is persisted even when ctx was cancelled
		// during it; the loop stops at the next check.
		if rc.Checkpoint != nil {
			if err := rc.Checkpoint.Save(context.WithoutCancel(ctx), s); err != nil {
				return "", fmt.Errorf("checkpoint %s after %s: %w", s.ThreadID, node, err)
			}
		}

		rc.Logger.Debug("agent.transition", "pattern", string(s.Pattern), "thread", s.ThreadID,
			"from", node, "to", next, "signal", string(sig), "iteration", s.Iteration)
		if rc.Emit != nil {
			appended := make([]core.Message, 0, len(s.Messages)-before)
			for _, m := range s.Messages[before:] {
				appended = append(appended, m.Clone())
			}
			rc.Emit(core.NewTransitionEvent(rc.InvocationID, s, node, next, appended))
		}
	}

	answer := strings.TrimSpace(g.Answer(s))
	if answer == "" {
		answer = fallbackAnswer(s)
	}
	return answer, nil
}

func runNode(ctx context.Context, g Graph, rc *RunContext, node string) (Signal, error) {
	s := rc.State
	spanCtx, span := rc.Tracer.Start(ctx, fmt.Sprintf("agent.%s.%s", s.Pattern, node),
		trace.WithAttributes(
			attribute.String("agent.pattern", string(s.Pattern)),
			attribute.String("agent.thread_id", s.ThreadID),
			attribute.String("agent.node", node),
			attribute.Int("agent.iteration", s.Iteration),
		))
	defer span.End()

	sig, err := g.Execute(spanCtx, rc, node)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("agent.signal", string(sig)))
	return sig, nil
}

// fallbackAnswer is used when a run finished without producing an answer:
// the last assistant text, otherwise a summary of the latest tool results.
func fallbackAnswer(s *core.AgentState) string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == core.RoleUser {
			break
		}
		if m.Role == core.RoleAssistant && !m.HasToolCalls() && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return synthesizeFromResults(s.Query, latestToolResults(s.Messages))
}

// latestToolResults returns the tool results of the most recent tool round,
// skipping over trailing non-tool messages.
func latestToolResults(msgs []core.Message) []core.ToolResult {
	end := len(msgs)
	for end > 0 && msgs[end-1].Role != core.RoleTool {
		if msgs[end-1].Role == core.RoleUser {
			return nil
		}
		end--
	}
	return core.LastToolResults(msgs[:end])
}

// synthesizeFromResults builds a deterministic best-effort answer.
func synthesizeFromResults(query string, results []core.ToolResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No answer could be produced for %q within the allowed iterations.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Best-effort answer for %q based on the latest tool results:\n", query)
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s\n", r.Name, r.Text())
	}
	return strings.TrimRight(b.String(), "\n")
}
