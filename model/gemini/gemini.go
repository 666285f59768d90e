// Package gemini provides a model wrapper for the Google Gemini API using the
// google.golang.org/genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// Options configures the Gemini adapter.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int32
	APIKey      string
}

// Model wraps genai Models.GenerateContent behind model.Model. The client is
// created lazily because construction needs a context.
type Model struct {
	opts Options

	mu     sync.Mutex
	client *genai.Client
}

// NewModel creates a Gemini model. Without an APIKey the SDK falls back to
// GEMINI_API_KEY / GOOGLE_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{opts: opts}
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	m := NewModel(optFns...)
	m.client = client
	return m
}

func (m *Model) getClient(ctx context.Context) (*genai.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  m.opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	m.client = client
	return client, nil
}

// Generate implements model.Model with a single final response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		client, err := m.getClient(ctx)
		if err != nil {
			errCh <- model.Upstream("gemini", err)
			return
		}

		contents, system := buildContents(req)
		temperature := m.opts.Temperature
		config := &genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: m.opts.MaxTokens,
		}
		if system != "" {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
		}
		if len(req.Tools) > 0 {
			config.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(req.Tools)}}
		}

		result, err := client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		if err != nil {
			errCh <- model.Upstream("gemini", err)
			return
		}
		if result == nil {
			errCh <- fmt.Errorf("%w: empty response from gemini", model.ErrMalformedResponse)
			return
		}

		resp := model.Response{Text: result.Text(), FinishReason: "stop"}
		for i, fc := range result.FunctionCalls() {
			args, err := json.Marshal(fc.Args)
			if err != nil {
				errCh <- fmt.Errorf("%w: function call args: %v", model.ErrMalformedResponse, err)
				return
			}
			id := fc.ID
			if id == "" {
				id = fmt.Sprintf("%s_%d", fc.Name, i)
			}
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:       id,
				Type:     "function",
				Function: model.ToolCallFunction{Name: fc.Name, Arguments: args},
			})
		}
		if len(resp.ToolCalls) > 0 {
			resp.FinishReason = "tool_calls"
		}
		if u := result.UsageMetadata; u != nil {
			resp.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}
		out <- resp
	}()

	return out, errCh
}

// buildContents converts the conversation; Gemini names the assistant role
// "model" and carries tool results as function responses.
func buildContents(req model.Request) ([]*genai.Content, string) {
	system := req.Instructions
	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case core.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, c := range msg.ToolCalls {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: c.ID, Name: c.Name, Args: c.Arguments}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}
		case core.RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			response := map[string]any{"output": msg.Content}
			if msg.ToolResult.Failed() {
				response = map[string]any{"error": msg.ToolResult.Error, "code": msg.ToolResult.Code}
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolResult.CallID,
					Name:     msg.ToolResult.Name,
					Response: response,
				}}},
			})
		default:
			if msg.Content != "" {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
			}
		}
	}
	return contents, system
}

func buildDeclarations(tools []model.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  toSchema(t.Function.Parameters),
		}
	}
	return decls
}

// toSchema converts a JSON schema map to a genai.Schema.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	s := &genai.Schema{}
	switch m["type"] {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		if items, ok := m["items"].(map[string]any); ok {
			s.Items = toSchema(items)
		}
	default:
		s.Type = genai.TypeObject
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
