package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of replies and
// has no fallback.
var ErrScriptExhausted = errors.New("scripted model: no more replies")

// Reply is one scripted model turn.
type Reply struct {
	Response model.Response
	Err      error
}

// Rule answers requests whose instructions contain Match. Rules are checked
// before the sequential script.
type Rule struct {
	Match string
	Reply func(req model.Request) Reply
}

// ScriptedModel is a model.Model that replays a fixed sequence of replies.
//
// Example:
//
//	m := NewScriptedModel().
//	    ThenToolCall(core.ToolCall{Name: "get_stock_price", Arguments: map[string]any{"symbol": "AAPL"}}).
//	    ThenText("AAPL looks fine")
type ScriptedModel struct {
	mu       sync.Mutex
	replies  []Reply
	rules    []Rule
	fallback *Reply
	requests []model.Request
}

var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates an empty script.
func NewScriptedModel() *ScriptedModel { return &ScriptedModel{} }

// ThenText appends a plain assistant reply (chainable).
func (m *ScriptedModel) ThenText(text string) *ScriptedModel {
	return m.Then(Reply{Response: model.TextResponse(text)})
}

// ThenToolCall appends a tool call request (chainable).
func (m *ScriptedModel) ThenToolCall(calls ...core.ToolCall) *ScriptedModel {
	return m.Then(Reply{Response: model.ToolCallResponse(calls...)})
}

// ThenError appends a failing turn (chainable).
func (m *ScriptedModel) ThenError(err error) *ScriptedModel {
	return m.Then(Reply{Err: err})
}

// Then appends an arbitrary reply (chainable).
func (m *ScriptedModel) Then(r Reply) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, r)
	return m
}

// When registers a rule keyed on a substring of the request instructions (chainable).
func (m *ScriptedModel) When(match string, fn func(req model.Request) Reply) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, Rule{Match: match, Reply: fn})
	return m
}

// WhenText registers a rule that always answers text (chainable).
func (m *ScriptedModel) WhenText(match, text string) *ScriptedModel {
	return m.When(match, func(model.Request) Reply { return Reply{Response: model.TextResponse(text)} })
}

// Otherwise sets the reply used once the script is exhausted (chainable).
func (m *ScriptedModel) Otherwise(r Reply) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &r
	return m
}

// Requests returns every request received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// CallCount returns the number of Generate calls.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedModel) next(req model.Request) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	for _, r := range m.rules {
		if strings.Contains(req.Instructions, r.Match) {
			fn := r.Reply
			m.mu.Unlock()
			out := fn(req)
			m.mu.Lock()
			return out
		}
	}
	if len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		return r
	}
	if m.fallback != nil {
		return *m.fallback
	}
	return Reply{Err: ErrScriptExhausted}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	r := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if r.Err != nil {
			errCh <- r.Err
			return
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- r.Response:
		}
	}()
	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}
