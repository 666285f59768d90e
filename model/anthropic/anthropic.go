// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaudeSonnet4_5,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Generate adapts the Messages API (with tool use) into model.Response values.
// Streaming requests are served by a single final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if system := systemPrompt(req); system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}

		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- model.Upstream("anthropic", err)
			return
		}

		var (
			text  strings.Builder
			calls []model.ToolCall
		)
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.AsText().Text)
			case "tool_use":
				toolBlock := block.AsToolUse()
				args, err := json.Marshal(toolBlock.Input)
				if err != nil {
					errCh <- fmt.Errorf("%w: tool_use input: %v", model.ErrMalformedResponse, err)
					return
				}
				calls = append(calls, model.ToolCall{
					ID:       toolBlock.ID,
					Type:     "function",
					Function: model.ToolCallFunction{Name: toolBlock.Name, Arguments: args},
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			ID:           resp.ID,
			Text:         text.String(),
			ToolCalls:    calls,
			FinishReason: finishReason,
			Usage: &model.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

func systemPrompt(req model.Request) string {
	parts := make([]string, 0, 2)
	if req.Instructions != "" {
		parts = append(parts, req.Instructions)
	}
	for _, msg := range req.Messages {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// buildMessages converts the conversation to Anthropic messages. Consecutive
// turns mapping to the same role are merged because the API requires
// alternating user/assistant turns; tool results travel as user turns.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var (
		out     []anthropic.MessageParam
		role    anthropic.MessageParamRole
		pending []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if role == anthropic.MessageParamRoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(pending...))
		} else {
			out = append(out, anthropic.NewUserMessage(pending...))
		}
		pending = nil
	}

	for _, msg := range msgs {
		var (
			r      anthropic.MessageParamRole
			blocks []anthropic.ContentBlockParamUnion
		)
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			r = anthropic.MessageParamRoleAssistant
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, c := range msg.ToolCalls {
				args := c.Arguments
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, args, c.Name))
			}
		case core.RoleTool:
			r = anthropic.MessageParamRoleUser
			if msg.ToolResult != nil && msg.ToolResult.CallID != "" {
				blocks = append(blocks, anthropic.NewToolResultBlock(msg.ToolResult.CallID, msg.Content, msg.ToolResult.Failed()))
			} else if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
		default:
			r = anthropic.MessageParamRoleUser
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if r != role {
			flush()
			role = r
		}
		pending = append(pending, blocks...)
	}
	flush()
	return out
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			inputSchema.Required = requiredNames(params["required"])
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if tool.Function.Description != "" && anthropicTools[i].OfTool != nil {
			anthropicTools[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}

	return anthropicTools
}

func requiredNames(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

var _ model.Model = (*Model)(nil)

// String implements fmt.Stringer for log output.
func (m *Model) String() string { return fmt.Sprintf("anthropic(%s)", m.opts.Model) }
