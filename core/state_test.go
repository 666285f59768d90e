package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in      string
		want    Pattern
		wantErr bool
	}{
		{"react", PatternReact, false},
		{"plan-execute", PatternPlanExecute, false},
		{" Reflection ", PatternReflection, false},
		{"multi_agent", PatternMultiAgent, false},
		{"tree_of_thought", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePattern(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownPattern)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgentState_ScratchSurvivesJSON(t *testing.T) {
	s := NewAgentState("t-1", PatternMultiAgent)
	s.BeginTurn(PatternMultiAgent, "analyze AAPL", 4, "supervise")
	ma := s.Scratch.(*MultiAgentState)
	ma.MarkCompleted("data_collector")
	ma.Findings["data_collector"] = "price 150"
	conf := 0.8
	ma.Confidence = &conf

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var got AgentState
	require.NoError(t, json.Unmarshal(b, &got))

	require.IsType(t, &MultiAgentState{}, got.Scratch)
	gma := got.Scratch.(*MultiAgentState)
	assert.Equal(t, []string{"data_collector"}, gma.CompletedAgents)
	assert.Equal(t, "price 150", gma.Findings["data_collector"])
	require.NotNil(t, gma.Confidence)
	assert.InDelta(t, 0.8, *gma.Confidence, 1e-9)
	assert.Equal(t, "supervise", got.Node)
	assert.Equal(t, 4, got.MaxIterations)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, RoleUser, got.Messages[0].Role)
}

func TestAgentState_PlanStepResultsSurviveJSON(t *testing.T) {
	s := NewAgentState("t-2", PatternPlanExecute)
	pe := s.Scratch.(*PlanExecuteState)
	pe.Plan = []string{"fetch", "summarize"}
	pe.StepResults[1] = "done"

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var got AgentState
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "done", got.Scratch.(*PlanExecuteState).StepResults[1])
}

func TestAgentState_CloneIsIndependent(t *testing.T) {
	s := NewAgentState("t-3", PatternReact)
	s.Append(NewToolCallMessage("react", "", []ToolCall{{ID: "c1", Name: "get_stock_price", Arguments: map[string]any{"symbol": "AAPL"}}}))
	s.Scratch.(*ReactState).PendingCalls = []ToolCall{{Name: "x", Arguments: map[string]any{"a": 1}}}

	cp := s.Clone()
	cp.Messages[0].ToolCalls[0].Arguments["symbol"] = "MSFT"
	cp.Scratch.(*ReactState).PendingCalls[0].Arguments["a"] = 2
	cp.Append(NewUserMessage("more"))

	assert.Equal(t, "AAPL", s.Messages[0].ToolCalls[0].Arguments["symbol"])
	assert.Equal(t, 1, s.Scratch.(*ReactState).PendingCalls[0].Arguments["a"])
	assert.Len(t, s.Messages, 1)
}

func TestBeginTurn_KeepsHistory(t *testing.T) {
	s := NewAgentState("t-4", PatternReact)
	s.BeginTurn(PatternReact, "first", 3, "reason")
	s.Iteration = 2
	s.Degrade("max_iterations_reached")
	s.Node = NodeDone

	s.BeginTurn(PatternReflection, "second", 2, "generate")

	assert.Len(t, s.Messages, 2)
	assert.Equal(t, 0, s.Iteration)
	assert.Empty(t, s.DegradedReasons)
	assert.IsType(t, &ReflectionState{}, s.Scratch)
	assert.False(t, s.Finished())
	require.Len(t, s.TurnMessages(), 1)
	assert.Equal(t, "second", s.TurnMessages()[0].Content)
}

func TestLastToolResults(t *testing.T) {
	msgs := []Message{
		NewUserMessage("q"),
		NewToolCallMessage("react", "", []ToolCall{{Name: "a"}, {Name: "b"}}),
		NewToolResultMessage("react", ToolResult{Name: "a", Output: 1}),
		NewToolResultMessage("react", ToolResult{Name: "b", Error: "boom", Code: "EXECUTION_ERROR"}),
	}

	got := LastToolResults(msgs)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.True(t, got[1].Failed())
	assert.Equal(t, "error (EXECUTION_ERROR): boom", got[1].Text())
}

func TestNewResultEnvelope(t *testing.T) {
	s := NewAgentState("t-5", PatternReflection)
	s.BeginTurn(PatternReflection, "write", 2, "generate")
	score := 8.5
	s.Scratch.(*ReflectionState).QualityScore = &score
	s.Iteration = 1
	s.Append(NewToolResultMessage("reflection", ToolResult{Name: "vector_db_search", Output: "x"}))

	env := NewResultEnvelope(s, "draft", 0)

	assert.Equal(t, "draft", env.Answer)
	assert.Equal(t, "t-5", env.ThreadID)
	assert.Equal(t, 1, env.Metadata.Iterations)
	assert.Equal(t, 1, env.Metadata.ToolCalls)
	require.NotNil(t, env.Metadata.QualityScore)
	assert.InDelta(t, 8.5, *env.Metadata.QualityScore, 1e-9)
	assert.False(t, env.Metadata.Degraded)
}

func TestNewRunError_Kinds(t *testing.T) {
	assert.Equal(t, KindCancelled, NewRunError(PatternReact, "t", context.Canceled).Kind)
	assert.Equal(t, KindInvalidRequest, NewRunError("", "t", fmt.Errorf("x: %w", ErrUnknownPattern)).Kind)
	err := error(NewRunError(PatternReact, "t", errors.New("db down")))
	assert.Equal(t, KindInfrastructure, ErrorKindOf(err))
	assert.Equal(t, ErrorKind(""), ErrorKindOf(errors.New("plain")))
}

func TestModelLimiter(t *testing.T) {
	ml := NewModelLimiter(2)
	require.NoError(t, ml.Increment())
	require.NoError(t, ml.Increment())
	assert.ErrorIs(t, ml.Increment(), ErrModelCallLimit)
	assert.Equal(t, 3, ml.Count())

	unlimited := NewModelLimiter(0)
	assert.Equal(t, -1, unlimited.Remaining())
}
