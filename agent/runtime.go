package agent

import (
	"context"
	"errors"
	"time"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// completion is a model reply after the malformed-output fallback was applied.
type completion struct {
	model.Completion
	Malformed bool
}

// complete performs one counted model call. A malformed reply is downgraded
// to a text-only completion and logged; every other failure is returned.
func (rc *RunContext) complete(ctx context.Context, author string, req model.Request) (completion, error) {
	if err := rc.Limiter.Increment(); err != nil {
		return completion{}, err
	}

	start := time.Now()
	c, err := model.Complete(ctx, rc.Model, req)
	dur := time.Since(start)

	tokens := 0
	if c.Usage != nil {
		tokens = c.Usage.TotalTokens
	}
	if cl, ok := rc.Logger.(logging.CallLogger); ok {
		cl.LogLLMCall(rc.Model.Info().Name, tokens, dur, err == nil, err)
	}

	switch {
	case errors.Is(err, model.ErrMalformedResponse):
		rc.Logger.Warn("agent.model.malformed", "author", author, "thread", rc.State.ThreadID, "error", err.Error(), "duration_ms", dur.Milliseconds())
		c.ToolCalls = nil
		return completion{Completion: c, Malformed: true}, nil
	case err != nil:
		rc.Logger.Error("agent.model.error", "author", author, "thread", rc.State.ThreadID, "error", err.Error(), "duration_ms", dur.Milliseconds())
		return completion{}, err
	}

	rc.Logger.Debug("agent.model.call", "author", author, "thread", rc.State.ThreadID,
		"tool_calls", len(c.ToolCalls), "tokens", tokens, "duration_ms", dur.Milliseconds())
	return completion{Completion: c}, nil
}

// runTools executes calls in request order and appends one tool message per
// result. Only cancellation and misconfiguration are returned as errors.
func (rc *RunContext) runTools(ctx context.Context, author string, calls []core.ToolCall) ([]core.ToolResult, error) {
	results, err := rc.Tools.ExecuteAll(ctx, calls)
	for _, res := range results {
		if res.Failed() {
			rc.Logger.Warn("agent.tool.failed", "author", author, "tool", res.Name, "code", res.Code, "error", res.Error)
		}
		rc.State.Append(core.NewToolResultMessage(author, res))
	}
	return results, err
}

// definitions returns the tool catalogue, or nil when tools are disabled.
func (rc *RunContext) definitions(enabled bool) []model.ToolDefinition {
	if !enabled || rc.Tools == nil || rc.Tools.Len() == 0 {
		return nil
	}
	return rc.Tools.Definitions()
}

// baseVars are the template variables every prompt can use.
func (rc *RunContext) baseVars() map[string]any {
	s := rc.State
	return map[string]any{
		"Query":         s.Query,
		"Iteration":     s.Iteration,
		"MaxIterations": s.MaxIterations,
		"Tools":         rc.Tools.Names(),
	}
}

func withVars(base map[string]any, kv ...any) map[string]any {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			base[k] = kv[i+1]
		}
	}
	return base
}
