package agent

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/internal/testutil"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

const (
	supervisorMarker = "supervisor coordinating"
	synthesisMarker  = "synthesis specialist"
)

// supervisorScript answers supervisor requests from picks, repeating the last.
func supervisorScript(picks ...string) func(model.Request) testutil.Reply {
	var mu sync.Mutex
	i := 0
	return func(model.Request) testutil.Reply {
		mu.Lock()
		defer mu.Unlock()
		p := picks[len(picks)-1]
		if i < len(picks) {
			p = picks[i]
		}
		i++
		return text(p)
	}
}

func specialistModel(picks ...string) *testutil.ScriptedModel {
	return testutil.NewScriptedModel().
		When(supervisorMarker, supervisorScript(picks...)).
		WhenText(synthesisMarker, "Hold AAPL with moderate conviction.").
		WhenText("data collection specialist", "AAPL trades at 150").
		WhenText("technical analysis expert", "Sideways channel").
		WhenText("market research specialist", "Neutral sentiment").
		WhenText("risk assessment expert", "Moderate risk.\nCONFIDENCE: 0.7")
}

func TestMultiAgent_Transition(t *testing.T) {
	g := NewMultiAgent()
	s := core.NewAgentState("t", core.PatternMultiAgent)
	st := s.Scratch.(*core.MultiAgentState)

	st.NextAgent = RiskAssessor
	assert.Equal(t, RiskAssessor, g.Transition(MultiSupervise, SignalContinue, s))
	st.NextAgent = "nobody"
	assert.Equal(t, MultiSynthesize, g.Transition(MultiSupervise, SignalContinue, s))
	assert.Equal(t, MultiSynthesize, g.Transition(MultiSupervise, SignalDone, s))
	assert.Equal(t, MultiFanOut, g.Transition(MultiSupervise, SignalFanOut, s))
	assert.Equal(t, MultiSupervise, g.Transition(DataCollector, SignalContinue, s))
	assert.Equal(t, MultiSupervise, g.Transition(MultiFanOut, SignalContinue, s))
	assert.Equal(t, core.NodeDone, g.Transition(MultiSynthesize, SignalDone, s))
	assert.Equal(t, core.DefaultMaxIterations, g.DefaultMaxIterations())
}

func TestMultiAgent_SupervisedRun(t *testing.T) {
	m := specialistModel(DataCollector, "risk_assessor.", "synthesizer")
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 4)

	answer, err := Drive(context.Background(), NewMultiAgent(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	st := s.Scratch.(*core.MultiAgentState)
	assert.Equal(t, "Hold AAPL with moderate conviction.", answer)
	assert.Equal(t, []string{DataCollector, RiskAssessor}, st.CompletedAgents)
	assert.Equal(t, "AAPL trades at 150", st.Findings[DataCollector])
	assert.Equal(t, 2, s.Iteration)
	require.NotNil(t, st.Confidence)
	assert.InDelta(t, 0.7, *st.Confidence, 1e-9)
	assert.Empty(t, s.DegradedReasons)
}

func TestMultiAgent_RepeatSelectionTerminates(t *testing.T) {
	m := specialistModel(DataCollector)
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 4)

	_, err := Drive(context.Background(), NewMultiAgent(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	st := s.Scratch.(*core.MultiAgentState)
	assert.Equal(t, []string{DataCollector}, st.CompletedAgents)
	assert.Equal(t, []string{DegradedSupervisorRepeat}, s.DegradedReasons)
	assert.Equal(t, 1, s.Iteration)
}

func TestMultiAgent_ChattySelection(t *testing.T) {
	m := specialistModel(
		DataCollector,
		"Since data_collector has finished, next: technical_analyst",
		"Completed agents so far look fine. Risk assessor please.",
		"All specialists I needed are done.",
	)
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 4)

	_, err := Drive(context.Background(), NewMultiAgent(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	st := s.Scratch.(*core.MultiAgentState)
	assert.Equal(t, []string{DataCollector, TechnicalAnalyst, RiskAssessor}, st.CompletedAgents)
	assert.Equal(t, 3, s.Iteration)
	assert.Empty(t, s.DegradedReasons)
}

func TestMultiAgent_ChattyRepeatOfFinishedAgent(t *testing.T) {
	m := specialistModel(DataCollector, "Let data_collector refresh the quote once more.")
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 4)

	_, err := Drive(context.Background(), NewMultiAgent(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	assert.Equal(t, []string{DataCollector}, s.Scratch.(*core.MultiAgentState).CompletedAgents)
	assert.Equal(t, []string{DegradedSupervisorRepeat}, s.DegradedReasons)
}

func TestMultiAgent_UnknownSelectionFallsBack(t *testing.T) {
	m := specialistModel("portfolio_manager", "done")
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 4)

	_, err := Drive(context.Background(), NewMultiAgent(), f.rc)
	require.NoError(t, err)

	st := f.rc.State.Scratch.(*core.MultiAgentState)
	assert.Equal(t, []string{DataCollector}, st.CompletedAgents)
	require.NotNil(t, st.Confidence)
	assert.InDelta(t, 0.25, *st.Confidence, 1e-9)
}

func TestMultiAgent_BudgetExhausted(t *testing.T) {
	m := specialistModel(TechnicalAnalyst, ResearchAnalyst)
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 1)

	_, err := Drive(context.Background(), NewMultiAgent(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	assert.Equal(t, []string{TechnicalAnalyst}, s.Scratch.(*core.MultiAgentState).CompletedAgents)
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, []string{DegradedSupervisorBudget}, s.DegradedReasons)
}

func TestMultiAgent_SpecialistToolCall(t *testing.T) {
	m := testutil.NewScriptedModel().
		When(supervisorMarker, supervisorScript(DataCollector, "synthesizer")).
		WhenText(synthesisMarker, "Final. CONFIDENCE: 80%").
		When("data collection specialist", func(req model.Request) testutil.Reply {
			if strings.Contains(req.Instructions, "Tool output:") {
				return text("")
			}
			return testutil.Reply{Response: model.ToolCallResponse(priceCall("c1", "AAPL"), priceCall("c2", "MSFT"))}
		})
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 4)

	_, err := Drive(context.Background(), NewMultiAgent(), f.rc)
	require.NoError(t, err)

	st := f.rc.State.Scratch.(*core.MultiAgentState)
	assert.Equal(t, []string{"AAPL"}, f.tools.calls())
	assert.Contains(t, st.Findings[DataCollector], "150")
	require.NotNil(t, st.Confidence)
	assert.InDelta(t, 0.8, *st.Confidence, 1e-9)
	assert.Equal(t, 1, f.toolMessages())
}

func TestMultiAgent_ParallelFanOut(t *testing.T) {
	m := specialistModel("unused")
	f := newFixture(t, core.PatternMultiAgent, m, "Should I buy AAPL?", 4)

	g := NewMultiAgent(func(o *MultiAgentOptions) { o.Parallel = true })
	answer, err := Drive(context.Background(), g, f.rc)
	require.NoError(t, err)

	s := f.rc.State
	st := s.Scratch.(*core.MultiAgentState)
	assert.Equal(t, "Hold AAPL with moderate conviction.", answer)
	assert.Equal(t, []string{DataCollector, TechnicalAnalyst, ResearchAnalyst, RiskAssessor}, st.CompletedAgents)
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, 5, m.CallCount())
	assert.Equal(t, 1, f.eventsFrom(MultiFanOut))

	// findings are merged in roster order regardless of completion order
	var authors []string
	for _, msg := range s.Messages {
		if msg.Role == core.RoleAssistant && msg.Author != "synthesizer" {
			authors = append(authors, msg.Author)
		}
	}
	assert.Equal(t, []string{DataCollector, TechnicalAnalyst, ResearchAnalyst, RiskAssessor}, authors)
	for _, r := range m.Requests() {
		assert.NotContains(t, r.Instructions, supervisorMarker)
	}
}
