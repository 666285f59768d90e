package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

func TestBuildMessages(t *testing.T) {
	req := model.Request{
		Instructions: "You are a financial analyst.",
		Messages: []core.Message{
			core.NewUserMessage("price of AAPL?"),
			core.NewToolCallMessage("react", "", []core.ToolCall{{ID: "call_1", Name: "get_stock_price", Arguments: map[string]any{"symbol": "AAPL"}}}),
			core.NewToolResultMessage("react", core.ToolResult{CallID: "call_1", Name: "get_stock_price", Output: map[string]any{"price": 150.0}}),
			core.NewAssistantMessage("react", "AAPL trades at 150."),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].OfAssistant.ToolCalls[0].ID)
	assert.JSONEq(t, `{"symbol":"AAPL"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestFlushToolCallsOrdersByIndex(t *testing.T) {
	agg := map[int64]*aggCall{
		1: {id: "b", name: "get_stock_history", args: `{"symbol":"MSFT"}`},
		0: {id: "a", name: "get_stock_price", args: `{"symbol":"AAPL"}`},
	}

	calls := flushToolCalls(agg)
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].ID)
	assert.Equal(t, "get_stock_history", calls[1].Function.Name)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-4o"
		o.APIKey = "test"
	})
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true}, m.Info())
}
