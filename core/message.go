package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to execute a named tool.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a ToolCall. Exactly one of Output or Error is
// meaningful; Code carries the failure category on error.
type ToolResult struct {
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// Failed reports whether the invocation did not succeed.
func (r ToolResult) Failed() bool { return r.Error != "" }

// Text renders the result as the string handed back to the model.
func (r ToolResult) Text() string {
	if r.Failed() {
		return fmt.Sprintf("error (%s): %s", r.Code, r.Error)
	}
	switch v := r.Output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// Message is one ordered turn of a conversation. Assistant turns may carry
// tool calls; tool turns carry exactly one ToolResult.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content,omitempty"`
	Author     string      `json:"author,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewUserMessage creates a user-authored text turn.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, Author: "user", Timestamp: time.Now().UTC()}
}

// NewSystemMessage creates a system turn.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage creates an assistant text turn produced by author
// (pattern node or specialist name).
func NewAssistantMessage(author, text string) Message {
	return Message{Role: RoleAssistant, Content: text, Author: author, Timestamp: time.Now().UTC()}
}

// NewToolCallMessage creates an assistant turn requesting tool execution.
func NewToolCallMessage(author, text string, calls []ToolCall) Message {
	m := NewAssistantMessage(author, text)
	m.ToolCalls = append([]ToolCall(nil), calls...)
	return m
}

// NewToolResultMessage creates a tool turn carrying a single result.
func NewToolResultMessage(author string, r ToolResult) Message {
	res := r
	return Message{Role: RoleTool, Content: r.Text(), Author: author, ToolResult: &res, Timestamp: time.Now().UTC()}
}

// HasToolCalls reports whether the message requests tool execution.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	cp := m
	if m.ToolCalls != nil {
		cp.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			cp.ToolCalls[i] = c
			cp.ToolCalls[i].Arguments = cloneMap(c.Arguments)
		}
	}
	if m.ToolResult != nil {
		r := *m.ToolResult
		cp.ToolResult = &r
	}
	return cp
}

// LastToolResults returns the tool results appended after the most recent
// assistant turn, preserving order.
func LastToolResults(msgs []Message) []ToolResult {
	var out []ToolResult
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != RoleTool {
			break
		}
		if m.ToolResult != nil {
			out = append([]ToolResult{*m.ToolResult}, out...)
		}
	}
	return out
}

// Transcript renders messages as plain "role: content" lines.
func Transcript(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		who := string(m.Role)
		if m.Author != "" && m.Role != RoleUser {
			who = m.Author
		}
		b.WriteString(who)
		b.WriteString(": ")
		b.WriteString(m.Content)
		for _, c := range m.ToolCalls {
			fmt.Fprintf(&b, " [call %s]", c.Name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
