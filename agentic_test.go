package agentic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/engine"
	"github.com/artdevesa7/Agentic-AI-designs/internal/testutil"
	"github.com/artdevesa7/Agentic-AI-designs/tool/market"
)

func TestRuntime_RunWithDefaultTools(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(core.ToolCall{ID: "c1", Name: market.PriceToolName, Arguments: map[string]any{"symbol": "TSLA"}}).
		ThenText("TSLA quote retrieved")

	rt, err := New(m)
	require.NoError(t, err)
	assert.Equal(t, 3, rt.Engine().Tools().Len())

	env, err := rt.Run(context.Background(), core.PatternReact, "How is TSLA doing?")
	require.NoError(t, err)
	assert.Equal(t, "TSLA quote retrieved", env.Answer)
	assert.Equal(t, 1, env.Metadata.ToolCalls)

	st, err := rt.Engine().Thread(context.Background(), env.ThreadID)
	require.NoError(t, err)
	results := core.LastToolResults(st.Messages)
	require.Len(t, results, 1)
	assert.False(t, results[0].Failed())
}

func TestRuntime_InvokeSync(t *testing.T) {
	m := testutil.NewScriptedModel().
		WhenText("critical reviewer", "SCORE: 9\nCRITIQUE: solid").
		ThenText("Draft about NVDA")

	rt, err := New(m)
	require.NoError(t, err)

	events, env, err := rt.InvokeSync(context.Background(), engine.Request{Query: "NVDA outlook", Pattern: core.PatternReflection})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "Draft about NVDA", env.Answer)
	require.NotNil(t, env.Metadata.QualityScore)
	assert.InDelta(t, 9.0, *env.Metadata.QualityScore, 0.001)
}

func TestRuntime_InvokeSyncInvalidRequest(t *testing.T) {
	rt, err := New(testutil.NewScriptedModel())
	require.NoError(t, err)

	_, _, err = rt.InvokeSync(context.Background(), engine.Request{Query: "q", Pattern: "debate"})
	assert.ErrorIs(t, err, core.ErrUnknownPattern)
}
