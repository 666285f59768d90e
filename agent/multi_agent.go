package agent

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/evaluation"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// Multi-Agent nodes. Every specialist is a node named after its id.
const (
	MultiSupervise  = "supervise"
	MultiFanOut     = "fan_out"
	MultiSynthesize = "synthesize"
)

// Specialist ids of the default roster.
const (
	DataCollector    = "data_collector"
	TechnicalAnalyst = "technical_analyst"
	ResearchAnalyst  = "research_analyst"
	RiskAssessor     = "risk_assessor"
)

// completionWords end supervision when the supervisor replies with one of them.
var completionWords = []string{"synthesizer", "done", "finish", "complete"}

// Specialist is one role the supervisor can dispatch.
type Specialist struct {
	Name        string
	Description string
	// Role is the specialist's system prompt preamble.
	Role string
	// UsesTools allows one tool call followed by a follow-up call.
	UsesTools bool
	// ReportsConfidence parses a CONFIDENCE line from the finding.
	ReportsConfidence bool
}

// DefaultSpecialists returns the financial analysis roster.
func DefaultSpecialists() []Specialist {
	return []Specialist{
		{Name: DataCollector, Description: "Gathers stock data and metrics", Role: dataCollectorRole, UsesTools: true},
		{Name: TechnicalAnalyst, Description: "Performs technical analysis on price patterns", Role: technicalAnalystRole},
		{Name: ResearchAnalyst, Description: "Reviews market research and news", Role: researchAnalystRole, UsesTools: true},
		{Name: RiskAssessor, Description: "Evaluates risks and uncertainties", Role: riskAssessorRole, ReportsConfidence: true},
	}
}

// MultiAgentOptions configures MultiAgent.
type MultiAgentOptions struct {
	Specialists       []Specialist
	Supervisor        Instruction
	SupervisorContext Instruction
	Specialist        Instruction
	Synthesis         Instruction
	// Parallel runs every remaining specialist concurrently instead of
	// asking the supervisor.
	Parallel bool
}

// MultiAgent routes the query through specialists chosen by a supervisor and
// synthesizes their findings.
//
//	SUPERVISE    -> <specialist> | FAN_OUT | SYNTHESIZE
//	<specialist> -> SUPERVISE
//	FAN_OUT      -> SUPERVISE
//	SYNTHESIZE   -> DONE
type MultiAgent struct {
	specialists       []Specialist
	supervisor        Instruction
	supervisorContext Instruction
	specialist        Instruction
	synthesis         Instruction
	parallel          bool
}

var _ Graph = (*MultiAgent)(nil)

// NewMultiAgent creates the Multi-Agent graph.
func NewMultiAgent(optFns ...func(o *MultiAgentOptions)) *MultiAgent {
	opts := MultiAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Specialists) == 0 {
		opts.Specialists = DefaultSpecialists()
	}
	return &MultiAgent{
		specialists:       opts.Specialists,
		supervisor:        opts.Supervisor.orDefault(defaultSupervisorPrompt),
		supervisorContext: opts.SupervisorContext.orDefault(defaultSupervisorContext),
		specialist:        opts.Specialist.orDefault(defaultSpecialistPrompt),
		synthesis:         opts.Synthesis.orDefault(defaultMultiSynthesisPrompt),
		parallel:          opts.Parallel,
	}
}

// Pattern implements Graph.
func (*MultiAgent) Pattern() core.Pattern { return core.PatternMultiAgent }

// Entry implements Graph.
func (*MultiAgent) Entry() string { return MultiSupervise }

// DefaultMaxIterations returns core.DefaultMaxIterations.
func (m *MultiAgent) DefaultMaxIterations() int { return core.DefaultMaxIterations }

// Specialists returns the roster in dispatch order.
func (m *MultiAgent) Specialists() []Specialist {
	return append([]Specialist(nil), m.specialists...)
}

// Transition implements Graph.
func (m *MultiAgent) Transition(node string, sig Signal, s *core.AgentState) string {
	switch node {
	case MultiSupervise:
		switch sig {
		case SignalFanOut:
			return MultiFanOut
		case SignalContinue:
			if st, ok := s.Scratch.(*core.MultiAgentState); ok {
				if _, known := m.lookup(st.NextAgent); known {
					return st.NextAgent
				}
			}
		}
		return MultiSynthesize
	case MultiFanOut:
		return MultiSupervise
	case MultiSynthesize:
		return core.NodeDone
	default:
		if _, known := m.lookup(node); known {
			return MultiSupervise
		}
		return core.NodeDone
	}
}

// Answer implements Graph.
func (*MultiAgent) Answer(s *core.AgentState) string {
	if st, ok := s.Scratch.(*core.MultiAgentState); ok {
		return st.Answer
	}
	return ""
}

// Execute implements Graph.
func (m *MultiAgent) Execute(ctx context.Context, rc *RunContext, node string) (Signal, error) {
	st := rc.State.Scratch.(*core.MultiAgentState)
	if st.Findings == nil {
		st.Findings = map[string]string{}
	}
	switch node {
	case MultiSupervise:
		return m.supervise(ctx, rc, st)
	case MultiFanOut:
		return m.fanOut(ctx, rc, st)
	case MultiSynthesize:
		return m.synthesize(ctx, rc, st)
	}
	sp, ok := m.lookup(node)
	if !ok {
		return "", fmt.Errorf("multi_agent: unknown node %q", node)
	}
	out, err := m.runSpecialist(ctx, rc, sp, m.snapshot(rc.State, st))
	if err != nil {
		return "", err
	}
	m.merge(rc.State, st, sp, out)
	st.NextAgent = ""
	return SignalContinue, nil
}

func (m *MultiAgent) lookup(name string) (Specialist, bool) {
	for _, sp := range m.specialists {
		if sp.Name == name {
			return sp, true
		}
	}
	return Specialist{}, false
}

func (m *MultiAgent) names() []string {
	names := make([]string, len(m.specialists))
	for i, sp := range m.specialists {
		names[i] = sp.Name
	}
	return names
}

func (m *MultiAgent) remaining(st *core.MultiAgentState) []Specialist {
	var out []Specialist
	for _, sp := range m.specialists {
		if !st.Completed(sp.Name) {
			out = append(out, sp)
		}
	}
	return out
}

func findingLines(st *core.MultiAgentState) []string {
	keys := st.SortedFindings()
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s: %s", k, st.Findings[k])
	}
	return lines
}

func (m *MultiAgent) supervise(ctx context.Context, rc *RunContext, st *core.MultiAgentState) (Signal, error) {
	s := rc.State
	remaining := m.remaining(st)
	if len(remaining) == 0 {
		return SignalDone, nil
	}
	if s.Iteration >= s.MaxIterations {
		rc.Logger.Info("agent.multi_agent.budget_exhausted", "thread", s.ThreadID, "completed", len(st.CompletedAgents))
		s.Degrade(DegradedSupervisorBudget)
		return SignalDone, nil
	}
	if m.parallel {
		return SignalFanOut, nil
	}

	vars := withVars(rc.baseVars(),
		"Specialists", m.specialists,
		"Completed", append([]string(nil), st.CompletedAgents...),
		"Findings", findingLines(st),
	)
	system, err := m.supervisor.Resolve(vars)
	if err != nil {
		return "", fmt.Errorf("multi_agent: render supervisor prompt: %w", err)
	}
	prompt, err := m.supervisorContext.Resolve(vars)
	if err != nil {
		return "", fmt.Errorf("multi_agent: render supervisor context: %w", err)
	}

	c, err := rc.complete(ctx, "supervisor", model.Request{
		Instructions: system,
		Messages:     []core.Message{core.NewUserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(c.Text)
	s.Append(core.NewAssistantMessage("supervisor", reply))

	choice, ok := m.selectAgent(reply, st)
	switch {
	case ok && isCompletionWord(choice):
		return SignalDone, nil
	case ok && st.Completed(choice):
		rc.Logger.Warn("agent.multi_agent.repeat_selection", "thread", s.ThreadID, "agent", choice)
		s.Degrade(DegradedSupervisorRepeat)
		return SignalDone, nil
	case !ok:
		rc.Logger.Warn("agent.multi_agent.unknown_selection", "thread", s.ThreadID, "reply", reply, "fallback", remaining[0].Name)
		choice = remaining[0].Name
	}

	st.NextAgent = choice
	s.Iteration++
	return SignalContinue, nil
}

// selectAgent reads the supervisor reply. The last specialist mentioned that
// has not run yet wins. A completion word counts only when no pending
// specialist is named, and a reply naming only finished specialists yields the
// last of them so the caller can treat it as a repeat.
func (m *MultiAgent) selectAgent(reply string, st *core.MultiAgentState) (string, bool) {
	mentions := evaluation.AgentMentions(reply, append(m.names(), completionWords...))
	if len(mentions) == 0 {
		return "", false
	}

	finish, repeat := "", ""
	for i := len(mentions) - 1; i >= 0; i-- {
		c := mentions[i]
		switch {
		case isCompletionWord(c):
			if finish == "" {
				finish = c
			}
		case st.Completed(c):
			if repeat == "" {
				repeat = c
			}
		default:
			return c, true
		}
	}
	if finish != "" {
		return finish, true
	}
	return repeat, true
}

func isCompletionWord(s string) bool {
	for _, w := range completionWords {
		if s == w {
			return true
		}
	}
	return false
}

func (m *MultiAgent) fanOut(ctx context.Context, rc *RunContext, st *core.MultiAgentState) (Signal, error) {
	s := rc.State
	remaining := m.remaining(st)
	snap := m.snapshot(s, st)
	outcomes := make([]specialistOutcome, len(remaining))

	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range remaining {
		g.Go(func() error {
			out, err := m.runSpecialist(gctx, rc, sp, snap)
			if err != nil {
				return fmt.Errorf("%s: %w", sp.Name, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	for i, sp := range remaining {
		m.merge(s, st, sp, outcomes[i])
	}
	s.Iteration++
	return SignalContinue, nil
}

// specialistView is the read-only input of a specialist run.
type specialistView struct {
	history  []core.Message
	findings []string
}

func (m *MultiAgent) snapshot(s *core.AgentState, st *core.MultiAgentState) specialistView {
	history := make([]core.Message, len(s.Messages))
	for i, msg := range s.Messages {
		history[i] = msg.Clone()
	}
	return specialistView{history: history, findings: findingLines(st)}
}

// specialistOutcome is what one specialist contributes; it is merged into the
// shared state by the caller.
type specialistOutcome struct {
	Messages   []core.Message
	Finding    string
	Confidence *float64
}

// runSpecialist performs at most two model calls and one tool call without
// touching the shared state.
func (m *MultiAgent) runSpecialist(ctx context.Context, rc *RunContext, sp Specialist, view specialistView) (specialistOutcome, error) {
	s := rc.State
	var out specialistOutcome

	vars := withVars(rc.baseVars(), "Role", sp.Role, "Name", sp.Name, "Findings", view.findings, "ToolOutput", "")
	prompt, err := m.specialist.Resolve(vars)
	if err != nil {
		return out, fmt.Errorf("multi_agent: render %s prompt: %w", sp.Name, err)
	}
	msgs := make([]core.Message, 0, len(view.history)+3)
	msgs = append(msgs, view.history...)
	msgs = append(msgs, core.NewUserMessage(s.Query))

	c, err := rc.complete(ctx, sp.Name, model.Request{
		Instructions: prompt,
		Messages:     msgs,
		Tools:        rc.definitions(sp.UsesTools),
	})
	if err != nil {
		return out, err
	}

	text := strings.TrimSpace(c.Text)
	if c.IsToolCall() && sp.UsesTools {
		call := c.ToolCalls[0]
		if len(c.ToolCalls) > 1 {
			rc.Logger.Warn("agent.multi_agent.extra_tool_calls_dropped", "thread", s.ThreadID, "agent", sp.Name, "dropped", len(c.ToolCalls)-1)
		}
		res, err := rc.Tools.Execute(ctx, call)
		if err != nil {
			return out, err
		}
		if res.Failed() {
			rc.Logger.Warn("agent.tool.failed", "author", sp.Name, "tool", call.Name, "code", res.Code, "error", res.Error)
		}
		callMsg := core.NewToolCallMessage(sp.Name, c.Text, []core.ToolCall{call})
		resMsg := core.NewToolResultMessage(sp.Name, res)
		out.Messages = append(out.Messages, callMsg, resMsg)

		vars["ToolOutput"] = res.Text()
		prompt, err = m.specialist.Resolve(vars)
		if err != nil {
			return out, fmt.Errorf("multi_agent: render %s prompt: %w", sp.Name, err)
		}
		follow, err := rc.complete(ctx, sp.Name, model.Request{
			Instructions: prompt,
			Messages:     append(msgs, callMsg, resMsg),
		})
		if err != nil {
			return out, err
		}
		text = strings.TrimSpace(follow.Text)
		if text == "" {
			text = res.Text()
		}
	}

	if text == "" {
		text = "(no findings)"
	}
	out.Finding = text
	out.Messages = append(out.Messages, core.NewAssistantMessage(sp.Name, text))
	if sp.ReportsConfidence {
		if v, ok := evaluation.ParseConfidence(text); ok {
			out.Confidence = &v
		}
	}
	return out, nil
}

func (m *MultiAgent) merge(s *core.AgentState, st *core.MultiAgentState, sp Specialist, out specialistOutcome) {
	s.Append(out.Messages...)
	st.Findings[sp.Name] = out.Finding
	if out.Confidence != nil {
		v := *out.Confidence
		st.Confidence = &v
	}
	st.MarkCompleted(sp.Name)
}

func (m *MultiAgent) synthesize(ctx context.Context, rc *RunContext, st *core.MultiAgentState) (Signal, error) {
	s := rc.State
	findings := findingLines(st)
	prompt, err := m.synthesis.Resolve(withVars(rc.baseVars(), "Findings", findings))
	if err != nil {
		return "", fmt.Errorf("multi_agent: render synthesis prompt: %w", err)
	}

	c, err := rc.complete(ctx, "synthesizer", model.Request{
		Instructions: prompt,
		Messages:     []core.Message{core.NewUserMessage(s.Query)},
	})
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(c.Text)
	if v, ok := evaluation.ParseConfidence(answer); ok {
		st.Confidence = &v
	} else if st.Confidence == nil && len(m.specialists) > 0 {
		v := float64(len(st.CompletedAgents)) / float64(len(m.specialists))
		st.Confidence = &v
	}

	if answer == "" {
		s.Degrade(DegradedSynthesisFallback)
		if len(findings) == 0 {
			answer = synthesizeFromResults(s.Query, latestToolResults(s.Messages))
		} else {
			answer = "Specialist findings:\n" + numberedList(findings)
		}
	}
	st.Answer = answer
	s.Append(core.NewAssistantMessage("synthesizer", answer))
	return SignalDone, nil
}
