package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// ReAct nodes.
const (
	ReactReason = "reason"
	ReactAct    = "act"
)

// ReActOptions configures ReAct.
type ReActOptions struct {
	Instruction Instruction
}

// ReAct alternates reasoning calls with tool execution until the model
// answers or the iteration bound forces a synthesized answer.
//
//	REASON -> ACT | DONE
//	ACT    -> REASON | DONE
type ReAct struct {
	instruction Instruction
}

var _ Graph = (*ReAct)(nil)

// NewReAct creates the ReAct graph.
func NewReAct(optFns ...func(o *ReActOptions)) *ReAct {
	opts := ReActOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ReAct{instruction: opts.Instruction.orDefault(defaultReActPrompt)}
}

// Pattern implements Graph.
func (*ReAct) Pattern() core.Pattern { return core.PatternReact }

// Entry implements Graph.
func (*ReAct) Entry() string { return ReactReason }

// DefaultMaxIterations implements Graph.
func (*ReAct) DefaultMaxIterations() int { return core.DefaultMaxIterations }

// Transition implements Graph.
func (*ReAct) Transition(node string, sig Signal, _ *core.AgentState) string {
	switch node {
	case ReactReason:
		if sig == SignalToolCall {
			return ReactAct
		}
		return core.NodeDone
	case ReactAct:
		if sig == SignalContinue {
			return ReactReason
		}
		return core.NodeDone
	default:
		return core.NodeDone
	}
}

// Answer implements Graph.
func (*ReAct) Answer(s *core.AgentState) string {
	if st, ok := s.Scratch.(*core.ReactState); ok {
		return st.Answer
	}
	return ""
}

// Execute implements Graph.
func (r *ReAct) Execute(ctx context.Context, rc *RunContext, node string) (Signal, error) {
	st := rc.State.Scratch.(*core.ReactState)
	switch node {
	case ReactReason:
		return r.reason(ctx, rc, st)
	case ReactAct:
		return r.act(ctx, rc, st)
	default:
		return "", fmt.Errorf("react: unknown node %q", node)
	}
}

func (r *ReAct) reason(ctx context.Context, rc *RunContext, st *core.ReactState) (Signal, error) {
	s := rc.State
	if s.Iteration >= s.MaxIterations {
		r.forceAnswer(rc, st)
		return SignalAnswer, nil
	}

	prompt, err := r.instruction.Resolve(rc.baseVars())
	if err != nil {
		return "", fmt.Errorf("react: render prompt: %w", err)
	}

	c, err := rc.complete(ctx, "react", model.Request{
		Instructions: prompt,
		Messages:     s.Messages,
		Tools:        rc.definitions(true),
	})
	if err != nil {
		return "", err
	}

	if c.IsToolCall() {
		st.PendingCalls = c.ToolCalls
		s.Append(core.NewToolCallMessage("react", c.Text, c.ToolCalls))
		return SignalToolCall, nil
	}

	answer := strings.TrimSpace(c.Text)
	if answer == "" {
		s.Degrade(DegradedMalformedResponse)
		answer = synthesizeFromResults(s.Query, latestToolResults(s.Messages))
	}
	st.Answer = answer
	s.Append(core.NewAssistantMessage("react", answer))
	return SignalAnswer, nil
}

func (r *ReAct) act(ctx context.Context, rc *RunContext, st *core.ReactState) (Signal, error) {
	s := rc.State
	if _, err := rc.runTools(ctx, "react", st.PendingCalls); err != nil {
		return "", err
	}
	st.PendingCalls = nil
	s.Iteration++

	if s.Iteration >= s.MaxIterations {
		rc.Logger.Info("agent.react.max_iterations", "thread", s.ThreadID, "iterations", s.Iteration)
		r.forceAnswer(rc, st)
		return SignalDone, nil
	}
	return SignalContinue, nil
}

// forceAnswer ends the loop with an answer built from the latest tool results.
func (r *ReAct) forceAnswer(rc *RunContext, st *core.ReactState) {
	s := rc.State
	s.Degrade(DegradedMaxIterations)
	st.Answer = synthesizeFromResults(s.Query, latestToolResults(s.Messages))
	s.Append(core.NewAssistantMessage("react", st.Answer))
}
