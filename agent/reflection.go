package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/evaluation"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// Reflection nodes.
const (
	ReflectGenerate = "generate"
	ReflectTool     = "tool"
	ReflectCritique = "critique"
)

const (
	// DefaultQualityThreshold is the critic score that accepts a draft.
	DefaultQualityThreshold = 8.0
	// DefaultMaxToolRounds bounds consecutive tool rounds within one draft.
	DefaultMaxToolRounds = 3
	// DefaultReflectionIterations is the number of critiques when the caller
	// supplies no bound.
	DefaultReflectionIterations = 2
)

// ReflectionOptions configures Reflection.
type ReflectionOptions struct {
	Generator Instruction
	Critic    Instruction
	Critique  Instruction
	// Threshold defaults to DefaultQualityThreshold.
	Threshold float64
	// MaxToolRounds defaults to DefaultMaxToolRounds.
	MaxToolRounds int
}

// Reflection drafts an answer and revises it under a critic's score until the
// score reaches the threshold or the revision budget is spent.
//
//	GENERATE -> TOOL | CRITIQUE
//	TOOL     -> GENERATE
//	CRITIQUE -> GENERATE | DONE
type Reflection struct {
	generator     Instruction
	critic        Instruction
	critique      Instruction
	threshold     float64
	maxToolRounds int
}

var _ Graph = (*Reflection)(nil)

// NewReflection creates the Reflection graph.
func NewReflection(optFns ...func(o *ReflectionOptions)) *Reflection {
	opts := ReflectionOptions{
		Threshold:     DefaultQualityThreshold,
		MaxToolRounds: DefaultMaxToolRounds,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultQualityThreshold
	}
	if opts.MaxToolRounds < 0 {
		opts.MaxToolRounds = 0
	}
	return &Reflection{
		generator:     opts.Generator.orDefault(defaultGeneratorPrompt),
		critic:        opts.Critic.orDefault(defaultCriticSystemPrompt),
		critique:      opts.Critique.orDefault(defaultCritiquePrompt),
		threshold:     opts.Threshold,
		maxToolRounds: opts.MaxToolRounds,
	}
}

// Pattern implements Graph.
func (*Reflection) Pattern() core.Pattern { return core.PatternReflection }

// Entry implements Graph.
func (*Reflection) Entry() string { return ReflectGenerate }

// DefaultMaxIterations implements Graph.
func (*Reflection) DefaultMaxIterations() int { return DefaultReflectionIterations }

// Transition implements Graph.
func (*Reflection) Transition(node string, sig Signal, _ *core.AgentState) string {
	switch node {
	case ReflectGenerate:
		if sig == SignalToolCall {
			return ReflectTool
		}
		return ReflectCritique
	case ReflectTool:
		return ReflectGenerate
	case ReflectCritique:
		if sig == SignalContinue {
			return ReflectGenerate
		}
		return core.NodeDone
	default:
		return core.NodeDone
	}
}

// Answer implements Graph.
func (*Reflection) Answer(s *core.AgentState) string {
	if st, ok := s.Scratch.(*core.ReflectionState); ok {
		return st.Draft
	}
	return ""
}

// Execute implements Graph.
func (r *Reflection) Execute(ctx context.Context, rc *RunContext, node string) (Signal, error) {
	st := rc.State.Scratch.(*core.ReflectionState)
	if st.Threshold <= 0 {
		st.Threshold = r.threshold
	}
	switch node {
	case ReflectGenerate:
		return r.generate(ctx, rc, st)
	case ReflectTool:
		return r.tool(ctx, rc, st)
	case ReflectCritique:
		return r.critiqueDraft(ctx, rc, st)
	default:
		return "", fmt.Errorf("reflection: unknown node %q", node)
	}
}

func (r *Reflection) generate(ctx context.Context, rc *RunContext, st *core.ReflectionState) (Signal, error) {
	s := rc.State
	score := 0.0
	if st.QualityScore != nil {
		score = *st.QualityScore
	}
	prompt, err := r.generator.Resolve(withVars(rc.baseVars(), "Critique", st.Critique, "Score", score, "Draft", st.Draft))
	if err != nil {
		return "", fmt.Errorf("reflection: render generator prompt: %w", err)
	}

	toolsEnabled := st.ToolRounds < r.maxToolRounds
	if !toolsEnabled && st.ToolRounds > 0 {
		rc.Logger.Info("agent.reflection.tool_rounds_exceeded", "thread", s.ThreadID, "rounds", st.ToolRounds)
		s.Degrade(DegradedToolRoundsExceeded)
	}

	c, err := rc.complete(ctx, "generator", model.Request{
		Instructions: prompt,
		Messages:     s.Messages,
		Tools:        rc.definitions(toolsEnabled),
	})
	if err != nil {
		return "", err
	}

	if c.IsToolCall() && toolsEnabled {
		st.PendingCalls = c.ToolCalls
		s.Append(core.NewToolCallMessage("generator", c.Text, c.ToolCalls))
		return SignalToolCall, nil
	}

	draft := strings.TrimSpace(c.Text)
	if draft == "" {
		s.Degrade(DegradedMalformedResponse)
		if st.Draft != "" {
			draft = st.Draft
		} else {
			draft = synthesizeFromResults(s.Query, latestToolResults(s.Messages))
		}
	}
	st.Draft = draft
	st.ToolRounds = 0
	s.Append(core.NewAssistantMessage("generator", draft))
	return SignalContinue, nil
}

func (r *Reflection) tool(ctx context.Context, rc *RunContext, st *core.ReflectionState) (Signal, error) {
	if _, err := rc.runTools(ctx, "generator", st.PendingCalls); err != nil {
		return "", err
	}
	st.PendingCalls = nil
	st.ToolRounds++
	return SignalContinue, nil
}

func (r *Reflection) critiqueDraft(ctx context.Context, rc *RunContext, st *core.ReflectionState) (Signal, error) {
	s := rc.State
	vars := withVars(rc.baseVars(), "Draft", st.Draft)
	system, err := r.critic.Resolve(vars)
	if err != nil {
		return "", fmt.Errorf("reflection: render critic prompt: %w", err)
	}
	prompt, err := r.critique.Resolve(vars)
	if err != nil {
		return "", fmt.Errorf("reflection: render critique prompt: %w", err)
	}

	c, err := rc.complete(ctx, "critic", model.Request{
		Instructions: system,
		Messages:     []core.Message{core.NewUserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}

	score, ok := evaluation.ParseScore(c.Text)
	if !ok {
		rc.Logger.Warn("agent.reflection.score_missing", "thread", s.ThreadID, "default", score)
	}
	st.Critique = evaluation.ParseCritique(c.Text)
	st.QualityScore = &score
	st.Scores = append(st.Scores, score)
	s.Iteration++
	s.Append(core.NewAssistantMessage("critic", strings.TrimSpace(c.Text)))

	rc.Logger.Debug("agent.reflection.scored", "thread", s.ThreadID, "score", score, "threshold", st.Threshold, "iteration", s.Iteration)
	switch {
	case score >= st.Threshold:
		return SignalDone, nil
	case s.Iteration >= s.MaxIterations:
		s.Degrade(DegradedQualityBelow)
		return SignalDone, nil
	default:
		return SignalContinue, nil
	}
}
