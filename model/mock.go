package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/artdevesa7/Agentic-AI-designs/core"
)

// MockModel is a lightweight in-memory Model useful for tests, examples and
// offline runs. Without a handler it answers canned prompts registered with
// AddResponse and echoes everything else.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	handler   func(req Request) (Response, error)
	calls     []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt
// (the text of the last message).
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetHandler replaces the canned behaviour with fn.
func (m *MockModel) SetHandler(fn func(req Request) (Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Calls returns the requests received so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Generate implements Model; emits optional streaming char chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler := m.handler
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if handler != nil {
			resp, err := handler(req)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
			case respCh <- resp:
			}
			return
		}

		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		inputText := req.Messages[len(req.Messages)-1].Content

		m.mu.Lock()
		full := m.responses[inputText]
		m.mu.Unlock()
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, FinishReason: "stop"}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// TextResponse builds a final assistant response.
func TextResponse(text string) Response {
	return Response{Text: text, FinishReason: "stop"}
}

// ToolCallResponse builds a final response requesting the given calls.
func ToolCallResponse(calls ...core.ToolCall) Response {
	out := Response{FinishReason: "tool_calls"}
	for _, c := range calls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: ToolCallFunction{Name: c.Name, Arguments: EncodeArguments(c.Arguments)},
		})
	}
	return out
}
