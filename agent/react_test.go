package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/internal/testutil"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

func TestReAct_Transition(t *testing.T) {
	g := NewReAct()
	s := core.NewAgentState("t", core.PatternReact)

	tests := []struct {
		node string
		sig  Signal
		want string
	}{
		{ReactReason, SignalToolCall, ReactAct},
		{ReactReason, SignalAnswer, core.NodeDone},
		{ReactAct, SignalContinue, ReactReason},
		{ReactAct, SignalDone, core.NodeDone},
		{"bogus", SignalContinue, core.NodeDone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Transition(tt.node, tt.sig, s), "%s/%s", tt.node, tt.sig)
	}
}

func TestReAct_ToolThenAnswer(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("c1", "AAPL")).
		ThenText("AAPL is trading at $150.")
	f := newFixture(t, core.PatternReact, m, "What is the current price of AAPL?", 3)

	answer, err := Drive(context.Background(), NewReAct(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	assert.Equal(t, "AAPL is trading at $150.", answer)
	assert.Equal(t, 1, s.Iteration)
	assert.Equal(t, 1, f.toolMessages())
	assert.Empty(t, s.DegradedReasons)
	assert.Equal(t, []string{"AAPL"}, f.tools.calls())

	// the second reasoning call sees the tool result
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.NotEmpty(t, reqs[0].Tools)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, core.RoleTool, last.Role)
}

func TestReAct_AlwaysToolStopsAtMax(t *testing.T) {
	m := testutil.NewScriptedModel().Otherwise(testutil.Reply{Response: model.ToolCallResponse(priceCall("c", "AAPL"))})
	f := newFixture(t, core.PatternReact, m, "Price of AAPL?", 2)

	answer, err := Drive(context.Background(), NewReAct(), f.rc)
	require.NoError(t, err)

	s := f.rc.State
	assert.Equal(t, 2, s.Iteration)
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{DegradedMaxIterations}, s.DegradedReasons)
	assert.Contains(t, answer, "Best-effort answer")
	assert.Contains(t, answer, "get_stock_price")
	assert.Equal(t, core.NodeDone, s.Node)
}

func TestReAct_MultipleCallsRunInRequestOrder(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("c1", "MSFT"), priceCall("c2", "AAPL")).
		ThenText("both fetched")
	f := newFixture(t, core.PatternReact, m, "Compare MSFT and AAPL", 3)

	_, err := Drive(context.Background(), NewReAct(), f.rc)
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT", "AAPL"}, f.tools.calls())
	assert.Equal(t, 2, f.toolMessages())
	assert.Equal(t, 1, f.rc.State.Iteration)

	// every recorded call has its result in the next request
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	var ids []string
	for _, msg := range reqs[1].Messages {
		if msg.Role == core.RoleTool {
			ids = append(ids, msg.ToolResult.CallID)
		}
	}
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestReAct_EmptyReplyFallsBack(t *testing.T) {
	m := testutil.NewScriptedModel().ThenText("")
	f := newFixture(t, core.PatternReact, m, "Price of AAPL?", 3)

	answer, err := Drive(context.Background(), NewReAct(), f.rc)
	require.NoError(t, err)

	assert.Contains(t, f.rc.State.DegradedReasons, DegradedMalformedResponse)
	assert.Contains(t, answer, "No answer could be produced")
}

func TestReAct_UnknownToolIsFedBack(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(core.ToolCall{ID: "c1", Name: "get_weather", Arguments: map[string]any{"city": "Paris"}}).
		ThenText("I cannot check the weather.")
	f := newFixture(t, core.PatternReact, m, "Weather?", 3)

	answer, err := Drive(context.Background(), NewReAct(), f.rc)
	require.NoError(t, err)

	assert.Equal(t, "I cannot check the weather.", answer)
	var res *core.ToolResult
	for _, msg := range f.rc.State.Messages {
		if msg.Role == core.RoleTool {
			res = msg.ToolResult
		}
	}
	require.NotNil(t, res)
	assert.True(t, res.Failed())
	assert.Equal(t, "TOOL_NOT_FOUND", res.Code)
}
