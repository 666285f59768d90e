package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

func TestBuildMessages_MergesConsecutiveRoles(t *testing.T) {
	msgs := []core.Message{
		core.NewSystemMessage("be brief"),
		core.NewUserMessage("compare AAPL and MSFT"),
		core.NewToolCallMessage("react", "checking", []core.ToolCall{
			{ID: "t1", Name: "get_stock_price", Arguments: map[string]any{"symbol": "AAPL"}},
			{ID: "t2", Name: "get_stock_price", Arguments: map[string]any{"symbol": "MSFT"}},
		}),
		core.NewToolResultMessage("react", core.ToolResult{CallID: "t1", Name: "get_stock_price", Output: 150.0}),
		core.NewToolResultMessage("react", core.ToolResult{CallID: "t2", Name: "get_stock_price", Error: "timeout", Code: "TIMEOUT"}),
		core.NewAssistantMessage("react", "AAPL is 150."),
	}

	out := buildMessages(msgs)
	require.Len(t, out, 4)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
	assert.Len(t, out[1].Content, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, out[2].Role)
	assert.Len(t, out[2].Content, 2)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[3].Role)
}

func TestSystemPrompt(t *testing.T) {
	req := model.Request{
		Instructions: "You are a planner.",
		Messages:     []core.Message{core.NewSystemMessage("Use numbered steps.")},
	}
	assert.Equal(t, "You are a planner.\n\nUse numbered steps.", systemPrompt(req))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "vector_db_search",
			Description: "Search documents",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []any{"query"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "vector_db_search", tools[0].OfTool.Name)
	assert.Equal(t, []string{"query"}, tools[0].OfTool.InputSchema.Required)
}
