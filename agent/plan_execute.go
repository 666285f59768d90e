package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/evaluation"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// Plan-Execute nodes.
const (
	PlanNode       = "plan"
	ExecuteNode    = "execute"
	PlanToolNode   = "tool"
	SynthesizeNode = "synthesize"
)

// PlanExecuteOptions configures PlanExecute.
type PlanExecuteOptions struct {
	Planner   Instruction
	Executor  Instruction
	Synthesis Instruction
}

// PlanExecute plans up front, executes each step with at most one tool call
// and synthesizes the step results.
//
//	PLAN       -> EXECUTE
//	EXECUTE    -> EXECUTE | TOOL | SYNTHESIZE
//	TOOL       -> EXECUTE
//	SYNTHESIZE -> DONE
//
// Plans longer than the iteration bound are truncated. A further tool
// request within a step is deferred and becomes the next step's tool call;
// on the last step it is dropped.
type PlanExecute struct {
	planner   Instruction
	executor  Instruction
	synthesis Instruction
}

var _ Graph = (*PlanExecute)(nil)

// NewPlanExecute creates the Plan-Execute graph.
func NewPlanExecute(optFns ...func(o *PlanExecuteOptions)) *PlanExecute {
	opts := PlanExecuteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &PlanExecute{
		planner:   opts.Planner.orDefault(defaultPlannerPrompt),
		executor:  opts.Executor.orDefault(defaultExecutorPrompt),
		synthesis: opts.Synthesis.orDefault(defaultPlanSynthesisPrompt),
	}
}

// Pattern implements Graph.
func (*PlanExecute) Pattern() core.Pattern { return core.PatternPlanExecute }

// Entry implements Graph.
func (*PlanExecute) Entry() string { return PlanNode }

// DefaultMaxIterations implements Graph.
func (*PlanExecute) DefaultMaxIterations() int { return core.DefaultMaxIterations }

// Transition implements Graph.
func (*PlanExecute) Transition(node string, sig Signal, _ *core.AgentState) string {
	switch node {
	case PlanNode:
		return ExecuteNode
	case ExecuteNode:
		switch sig {
		case SignalToolCall:
			return PlanToolNode
		case SignalDone:
			return SynthesizeNode
		default:
			return ExecuteNode
		}
	case PlanToolNode:
		return ExecuteNode
	default:
		return core.NodeDone
	}
}

// Answer implements Graph.
func (*PlanExecute) Answer(s *core.AgentState) string {
	if st, ok := s.Scratch.(*core.PlanExecuteState); ok {
		return st.Answer
	}
	return ""
}

// Execute implements Graph.
func (p *PlanExecute) Execute(ctx context.Context, rc *RunContext, node string) (Signal, error) {
	st := rc.State.Scratch.(*core.PlanExecuteState)
	if st.StepResults == nil {
		st.StepResults = map[int]string{}
	}
	switch node {
	case PlanNode:
		return p.plan(ctx, rc, st)
	case ExecuteNode:
		return p.execute(ctx, rc, st)
	case PlanToolNode:
		return p.tool(ctx, rc, st)
	case SynthesizeNode:
		return p.synthesize(ctx, rc, st)
	default:
		return "", fmt.Errorf("plan_execute: unknown node %q", node)
	}
}

func (p *PlanExecute) plan(ctx context.Context, rc *RunContext, st *core.PlanExecuteState) (Signal, error) {
	s := rc.State
	prompt, err := p.planner.Resolve(rc.baseVars())
	if err != nil {
		return "", fmt.Errorf("plan_execute: render planner prompt: %w", err)
	}

	c, err := rc.complete(ctx, "planner", model.Request{Instructions: prompt, Messages: s.Messages})
	if err != nil {
		return "", err
	}

	steps := evaluation.ParsePlan(c.Text)
	if len(steps) == 0 {
		rc.Logger.Warn("agent.plan_execute.empty_plan", "thread", s.ThreadID, "malformed", c.Malformed)
		steps = []string{s.Query}
	}
	if len(steps) > s.MaxIterations {
		rc.Logger.Info("agent.plan_execute.plan_truncated", "thread", s.ThreadID, "steps", len(steps), "max", s.MaxIterations)
		steps = steps[:s.MaxIterations]
		s.Degrade(DegradedPlanTruncated)
	}

	st.Plan = steps
	st.CurrentStep = 0
	st.StepResults = map[int]string{}
	s.Append(core.NewAssistantMessage("planner", fmt.Sprintf("Created plan with %d steps:\n%s", len(steps), numberedList(steps))))
	return SignalContinue, nil
}

func (p *PlanExecute) execute(ctx context.Context, rc *RunContext, st *core.PlanExecuteState) (Signal, error) {
	s := rc.State
	if st.CurrentStep >= len(st.Plan) {
		return SignalDone, nil
	}

	// A call deferred from the previous step is this step's tool call.
	if !st.StepToolUsed && len(st.Deferred) > 0 {
		call := st.Deferred[0]
		st.Deferred = st.Deferred[1:]
		st.PendingCall = &call
		s.Append(core.NewToolCallMessage("executor", "", []core.ToolCall{call}))
		return SignalToolCall, nil
	}

	cur := st.CurrentStep
	prior := make([]string, 0, cur)
	for i := 0; i < cur; i++ {
		prior = append(prior, fmt.Sprintf("%s -> %s", st.Plan[i], st.StepResults[i]))
	}
	toolOutput := ""
	if st.StepToolUsed {
		toolOutput = st.StepResults[cur]
	}
	prompt, err := p.executor.Resolve(withVars(rc.baseVars(),
		"Step", st.Plan[cur],
		"StepNumber", cur+1,
		"StepCount", len(st.Plan),
		"PriorResults", prior,
		"ToolOutput", toolOutput,
	))
	if err != nil {
		return "", fmt.Errorf("plan_execute: render executor prompt: %w", err)
	}

	c, err := rc.complete(ctx, "executor", model.Request{
		Instructions: prompt,
		Messages:     []core.Message{core.NewUserMessage(st.Plan[cur])},
		Tools:        rc.definitions(true),
	})
	if err != nil {
		return "", err
	}

	if c.IsToolCall() {
		calls := c.ToolCalls
		if !st.StepToolUsed {
			call := calls[0]
			st.PendingCall = &call
			p.deferCalls(rc, st, calls[1:])
			s.Append(core.NewToolCallMessage("executor", c.Text, []core.ToolCall{call}))
			return SignalToolCall, nil
		}
		p.deferCalls(rc, st, calls)
	}

	result := strings.TrimSpace(c.Text)
	if result == "" {
		result = st.StepResults[cur]
	}
	if result == "" {
		result = "(no result)"
	}
	st.StepResults[cur] = result
	s.Append(core.NewAssistantMessage("executor", result))
	return p.advance(rc, st), nil
}

// deferCalls queues extra tool calls for the next step, or drops them on the last.
func (p *PlanExecute) deferCalls(rc *RunContext, st *core.PlanExecuteState, calls []core.ToolCall) {
	if len(calls) == 0 {
		return
	}
	if st.CurrentStep >= len(st.Plan)-1 {
		rc.Logger.Warn("agent.plan_execute.tool_call_dropped", "thread", rc.State.ThreadID, "count", len(calls))
		rc.State.Degrade(DegradedDeferredDropped)
		return
	}
	rc.Logger.Debug("agent.plan_execute.tool_call_deferred", "thread", rc.State.ThreadID, "count", len(calls))
	st.Deferred = append(st.Deferred, calls...)
}

func (p *PlanExecute) advance(rc *RunContext, st *core.PlanExecuteState) Signal {
	s := rc.State
	st.CurrentStep++
	st.StepToolUsed = false
	s.Iteration = st.CurrentStep
	if st.CurrentStep < len(st.Plan) {
		return SignalContinue
	}
	if len(st.Deferred) > 0 {
		rc.Logger.Warn("agent.plan_execute.tool_call_dropped", "thread", s.ThreadID, "count", len(st.Deferred))
		s.Degrade(DegradedDeferredDropped)
		st.Deferred = nil
	}
	return SignalDone
}

func (p *PlanExecute) tool(ctx context.Context, rc *RunContext, st *core.PlanExecuteState) (Signal, error) {
	if st.PendingCall == nil {
		return SignalContinue, nil
	}
	results, err := rc.runTools(ctx, "executor", []core.ToolCall{*st.PendingCall})
	if err != nil {
		return "", err
	}
	st.StepResults[st.CurrentStep] = results[0].Text()
	st.StepToolUsed = true
	st.PendingCall = nil
	return SignalContinue, nil
}

func (p *PlanExecute) synthesize(ctx context.Context, rc *RunContext, st *core.PlanExecuteState) (Signal, error) {
	s := rc.State
	summaries := make([]string, len(st.Plan))
	for i, step := range st.Plan {
		summaries[i] = fmt.Sprintf("%s\n   Result: %s", step, st.StepResults[i])
	}
	prompt, err := p.synthesis.Resolve(withVars(rc.baseVars(), "Plan", st.Plan, "StepSummaries", summaries))
	if err != nil {
		return "", fmt.Errorf("plan_execute: render synthesis prompt: %w", err)
	}

	c, err := rc.complete(ctx, "synthesizer", model.Request{
		Instructions: prompt,
		Messages:     []core.Message{core.NewUserMessage(s.Query)},
	})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(c.Text)
	if answer == "" {
		s.Degrade(DegradedSynthesisFallback)
		answer = "Step results:\n" + numberedList(summaries)
	}
	st.Answer = answer
	s.Append(core.NewAssistantMessage("synthesizer", answer))
	return SignalDone, nil
}

func numberedList(items []string) string {
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it)
	}
	return strings.TrimRight(b.String(), "\n")
}
