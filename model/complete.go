package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/artdevesa7/Agentic-AI-designs/core"
)

// Completion is the outcome of one reasoning call: either assistant text or
// a non-empty list of tool call requests.
type Completion struct {
	Text         string
	ToolCalls    []core.ToolCall
	FinishReason string
	Usage        *TokenUsage
}

// IsToolCall reports whether the model asked for tool execution.
func (c Completion) IsToolCall() bool { return len(c.ToolCalls) > 0 }

// Upstream wraps a provider failure so it matches ErrUpstreamUnavailable while
// keeping the provider error inspectable.
func Upstream(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrUpstreamUnavailable, err)
}

// Complete drains a Generate call and classifies the final response.
//
// Partial chunks are concatenated when the provider never emits a final
// response. Tool call arguments must decode to a JSON object; otherwise the
// text-only completion is returned together with ErrMalformedResponse so the
// caller can fall back to treating it as a final answer. Cancellation of ctx
// is returned unchanged.
func Complete(ctx context.Context, m Model, req Request) (Completion, error) {
	if m == nil {
		return Completion{}, fmt.Errorf("%w: no model configured", ErrUpstreamUnavailable)
	}

	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}

	respCh, errCh := m.Generate(ctx, req)

	var (
		final    *Response
		partial  strings.Builder
		genErr   error
		respDone bool
		errDone  bool
	)

	for !respDone || !errDone {
		select {
		case r, ok := <-respCh:
			if !ok {
				respDone = true
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			rr := r
			final = &rr
		case err, ok := <-errCh:
			if !ok {
				errDone = true
				errCh = nil
				continue
			}
			if err != nil && genErr == nil {
				genErr = err
			}
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		}
	}

	if genErr != nil {
		switch {
		case errors.Is(genErr, context.Canceled), errors.Is(genErr, context.DeadlineExceeded):
			if ctx.Err() != nil {
				return Completion{}, ctx.Err()
			}
			return Completion{}, Upstream(m.Info().Provider, genErr)
		case errors.Is(genErr, ErrUpstreamUnavailable), errors.Is(genErr, ErrMalformedResponse):
			return Completion{}, genErr
		default:
			return Completion{}, Upstream(m.Info().Provider, genErr)
		}
	}

	if final == nil {
		if partial.Len() == 0 {
			return Completion{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
		}
		return Completion{Text: partial.String(), FinishReason: "stop"}, nil
	}

	c := Completion{Text: final.Text, FinishReason: final.FinishReason, Usage: final.Usage}
	if c.Text == "" && partial.Len() > 0 {
		c.Text = partial.String()
	}

	calls, err := decodeToolCalls(final.ToolCalls)
	if err != nil {
		return c, err
	}
	c.ToolCalls = calls

	if !c.IsToolCall() && strings.TrimSpace(c.Text) == "" {
		return c, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	return c, nil
}

func decodeToolCalls(raw []ToolCall) ([]core.ToolCall, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	calls := make([]core.ToolCall, 0, len(raw))
	for i, tc := range raw {
		if tc.Function.Name == "" {
			return nil, fmt.Errorf("%w: tool call %d has no name", ErrMalformedResponse, i)
		}
		args := map[string]any{}
		trimmed := bytes.TrimSpace(tc.Function.Arguments)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if err := json.Unmarshal(trimmed, &args); err != nil {
				return nil, fmt.Errorf("%w: arguments of %s: %v", ErrMalformedResponse, tc.Function.Name, err)
			}
		}
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d_%s", i, tc.Function.Name)
		}
		calls = append(calls, core.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return calls, nil
}

// EncodeArguments marshals tool call arguments for provider payloads.
func EncodeArguments(args map[string]any) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
