package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/evaluation"
	"github.com/artdevesa7/Agentic-AI-designs/internal/testutil"
)

func TestReflection_Transition(t *testing.T) {
	g := NewReflection()
	s := core.NewAgentState("t", core.PatternReflection)

	assert.Equal(t, ReflectTool, g.Transition(ReflectGenerate, SignalToolCall, s))
	assert.Equal(t, ReflectCritique, g.Transition(ReflectGenerate, SignalContinue, s))
	assert.Equal(t, ReflectGenerate, g.Transition(ReflectTool, SignalContinue, s))
	assert.Equal(t, ReflectGenerate, g.Transition(ReflectCritique, SignalContinue, s))
	assert.Equal(t, core.NodeDone, g.Transition(ReflectCritique, SignalDone, s))
	assert.Equal(t, DefaultReflectionIterations, g.DefaultMaxIterations())
}

func TestReflection_AcceptsHighScoreAfterOneCycle(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenText("AAPL report v1").
		ThenText("SCORE: 10/10\nCRITIQUE: Excellent.")
	f := newFixture(t, core.PatternReflection, m, "Write a report on AAPL", 2)

	answer, err := Drive(context.Background(), NewReflection(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	st := s.Scratch.(*core.ReflectionState)
	assert.Equal(t, "AAPL report v1", answer)
	assert.Equal(t, 1, s.Iteration)
	require.NotNil(t, st.QualityScore)
	assert.InDelta(t, 10.0, *st.QualityScore, 1e-9)
	assert.InDelta(t, DefaultQualityThreshold, st.Threshold, 1e-9)
	assert.Empty(t, s.DegradedReasons)
	assert.Equal(t, 2, m.CallCount())
}

func TestReflection_ReturnsLatestDraftBelowThreshold(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenText("draft one").
		ThenText("SCORE: 5.0/10\nCRITIQUE: add volatility data").
		ThenText("draft two").
		ThenText("SCORE: 6.5/10\nCRITIQUE: still thin")
	f := newFixture(t, core.PatternReflection, m, "Analyze AAPL", 2)

	answer, err := Drive(context.Background(), NewReflection(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	st := s.Scratch.(*core.ReflectionState)
	assert.Equal(t, "draft two", answer)
	assert.Equal(t, 2, s.Iteration)
	assert.Equal(t, []float64{5.0, 6.5}, st.Scores)
	assert.Equal(t, []string{DegradedQualityBelow}, s.DegradedReasons)

	reqs := m.Requests()
	require.Len(t, reqs, 4)
	assert.Contains(t, reqs[1].Messages[0].Content, "draft one")
	assert.Contains(t, reqs[2].Instructions, "add volatility data")
}

func TestReflection_UnparsableScoreUsesDefault(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenText("the draft").
		ThenText("Looks reasonable overall.")
	f := newFixture(t, core.PatternReflection, m, "q", 1)

	_, err := Drive(context.Background(), NewReflection(), f.rc)
	require.NoError(t, err)

	st := f.rc.State.Scratch.(*core.ReflectionState)
	require.NotNil(t, st.QualityScore)
	assert.InDelta(t, evaluation.DefaultScore, *st.QualityScore, 1e-9)
	assert.Equal(t, "Looks reasonable overall.", st.Critique)
	assert.Contains(t, f.rc.State.DegradedReasons, DegradedQualityBelow)
}

func TestReflection_CapsToolRounds(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("c1", "AAPL")).
		ThenText("report with price").
		ThenText("SCORE: 9/10")
	f := newFixture(t, core.PatternReflection, m, "AAPL report", 2)

	g := NewReflection(func(o *ReflectionOptions) { o.MaxToolRounds = 1 })
	answer, err := Drive(context.Background(), g, f.rc)
	require.NoError(t, err)

	assert.Equal(t, "report with price", answer)
	assert.Equal(t, []string{"AAPL"}, f.tools.calls())

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.NotEmpty(t, reqs[0].Tools)
	assert.Empty(t, reqs[1].Tools)
	assert.Contains(t, f.rc.State.DegradedReasons, DegradedToolRoundsExceeded)
}

func TestReflection_CustomThreshold(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenText("draft").
		ThenText("SCORE: 6/10")
	f := newFixture(t, core.PatternReflection, m, "q", 3)

	g := NewReflection(func(o *ReflectionOptions) { o.Threshold = 5 })
	_, err := Drive(context.Background(), g, f.rc)
	require.NoError(t, err)

	assert.Equal(t, 1, f.rc.State.Iteration)
	assert.Empty(t, f.rc.State.DegradedReasons)
}
