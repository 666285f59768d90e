package core

import (
	"fmt"
	"sort"
	"strings"
)

// Pattern names a reasoning strategy.
type Pattern string

const (
	PatternReact       Pattern = "react"
	PatternPlanExecute Pattern = "plan_execute"
	PatternReflection  Pattern = "reflection"
	PatternMultiAgent  Pattern = "multi_agent"
)

// Patterns lists every supported pattern in a stable order.
func Patterns() []Pattern {
	return []Pattern{PatternReact, PatternPlanExecute, PatternReflection, PatternMultiAgent}
}

// ParsePattern resolves a pattern name. Hyphens are accepted in place of
// underscores ("plan-execute").
func ParsePattern(s string) (Pattern, error) {
	p := Pattern(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Patterns() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

// PatternState is the pattern-specific scratch space carried by AgentState.
// The concrete types form a closed set.
type PatternState interface {
	Pattern() Pattern
	clonePatternState() PatternState
}

// NewPatternState returns the empty scratch state for p.
func NewPatternState(p Pattern) PatternState {
	switch p {
	case PatternReact:
		return &ReactState{}
	case PatternPlanExecute:
		return &PlanExecuteState{StepResults: map[int]string{}}
	case PatternReflection:
		return &ReflectionState{}
	case PatternMultiAgent:
		return &MultiAgentState{Findings: map[string]string{}}
	default:
		return nil
	}
}

// ReactState tracks the reason/act loop.
type ReactState struct {
	PendingCalls []ToolCall `json:"pending_calls,omitempty"`
	Answer       string     `json:"answer,omitempty"`
}

func (*ReactState) Pattern() Pattern { return PatternReact }

func (s *ReactState) clonePatternState() PatternState {
	cp := *s
	cp.PendingCalls = cloneCalls(s.PendingCalls)
	return &cp
}

// PlanExecuteState tracks plan progress. StepResults is keyed by zero-based
// step index.
type PlanExecuteState struct {
	Plan         []string       `json:"plan"`
	CurrentStep  int            `json:"current_step"`
	StepResults  map[int]string `json:"step_results"`
	PendingCall  *ToolCall      `json:"pending_call,omitempty"`
	StepToolUsed bool           `json:"step_tool_used,omitempty"`
	Deferred     []ToolCall     `json:"deferred,omitempty"`
	Answer       string         `json:"answer,omitempty"`
}

func (*PlanExecuteState) Pattern() Pattern { return PatternPlanExecute }

func (s *PlanExecuteState) clonePatternState() PatternState {
	cp := *s
	cp.Plan = append([]string(nil), s.Plan...)
	cp.StepResults = make(map[int]string, len(s.StepResults))
	for k, v := range s.StepResults {
		cp.StepResults[k] = v
	}
	if s.PendingCall != nil {
		c := cloneCalls([]ToolCall{*s.PendingCall})[0]
		cp.PendingCall = &c
	}
	cp.Deferred = cloneCalls(s.Deferred)
	return &cp
}

// ReflectionState tracks the generate/critique loop.
type ReflectionState struct {
	Draft        string     `json:"draft,omitempty"`
	Critique     string     `json:"critique,omitempty"`
	QualityScore *float64   `json:"quality_score,omitempty"`
	Scores       []float64  `json:"scores,omitempty"`
	Threshold    float64    `json:"threshold"`
	PendingCalls []ToolCall `json:"pending_calls,omitempty"`
	ToolRounds   int        `json:"tool_rounds,omitempty"`
}

func (*ReflectionState) Pattern() Pattern { return PatternReflection }

func (s *ReflectionState) clonePatternState() PatternState {
	cp := *s
	if s.QualityScore != nil {
		v := *s.QualityScore
		cp.QualityScore = &v
	}
	cp.Scores = append([]float64(nil), s.Scores...)
	cp.PendingCalls = cloneCalls(s.PendingCalls)
	return &cp
}

// MultiAgentState tracks supervisor routing. CompletedAgents is an ordered set.
type MultiAgentState struct {
	NextAgent       string            `json:"next_agent,omitempty"`
	CompletedAgents []string          `json:"completed_agents,omitempty"`
	Findings        map[string]string `json:"findings"`
	Confidence      *float64          `json:"confidence,omitempty"`
	Answer          string            `json:"answer,omitempty"`
}

func (*MultiAgentState) Pattern() Pattern { return PatternMultiAgent }

func (s *MultiAgentState) clonePatternState() PatternState {
	cp := *s
	cp.CompletedAgents = append([]string(nil), s.CompletedAgents...)
	cp.Findings = make(map[string]string, len(s.Findings))
	for k, v := range s.Findings {
		cp.Findings[k] = v
	}
	if s.Confidence != nil {
		v := *s.Confidence
		cp.Confidence = &v
	}
	return &cp
}

// Completed reports whether agent already ran.
func (s *MultiAgentState) Completed(agent string) bool {
	for _, a := range s.CompletedAgents {
		if a == agent {
			return true
		}
	}
	return false
}

// MarkCompleted adds agent to the ordered set.
func (s *MultiAgentState) MarkCompleted(agent string) {
	if !s.Completed(agent) {
		s.CompletedAgents = append(s.CompletedAgents, agent)
	}
}

// SortedFindings returns the findings keys in completion order, followed by
// any remaining keys sorted by name.
func (s *MultiAgentState) SortedFindings() []string {
	keys := make([]string, 0, len(s.Findings))
	seen := map[string]bool{}
	for _, a := range s.CompletedAgents {
		if _, ok := s.Findings[a]; ok {
			keys = append(keys, a)
			seen[a] = true
		}
	}
	var rest []string
	for k := range s.Findings {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func cloneCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = c
		out[i].Arguments = cloneMap(c.Arguments)
	}
	return out
}
