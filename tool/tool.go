// Package tool implements the tool calling subsystem that lets the pattern
// engines invoke structured capabilities (market data lookups, document search)
// with schema validated arguments, per-tool deadlines and typed failures.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/artdevesa7/Agentic-AI-designs/internal/util"
)

// Tool defines the interface for capabilities the model can request.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case) and descriptions
//   - Define a JSON schema for parameters
//   - Respect ctx cancellation; the registry enforces a deadline through it
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description given to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already decoded arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Failure codes carried by ToolError.
const (
	CodeNotFound         = "TOOL_NOT_FOUND"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeExecution        = "EXECUTION_ERROR"
	CodeTimeout          = "TIMEOUT"
)

var (
	// ErrToolNotFound matches ToolErrors with CodeNotFound.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidArguments matches ToolErrors with CodeInvalidArguments.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrExecution matches ToolErrors with CodeExecution.
	ErrExecution = errors.New("tool execution failed")
	// ErrTimeout matches ToolErrors with CodeTimeout.
	ErrTimeout = errors.New("tool timed out")
	// ErrMisconfigured reports a registry that cannot serve calls at all.
	// Unlike ToolErrors it aborts the run.
	ErrMisconfigured = errors.New("tool registry misconfigured")
	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("tool already registered")
)

// ToolError represents a failed invocation.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Is maps the failure code onto the package sentinels.
func (e *ToolError) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == ErrToolNotFound
	case CodeInvalidArguments:
		return target == ErrInvalidArguments
	case CodeExecution:
		return target == ErrExecution
	case CodeTimeout:
		return target == ErrTimeout
	}
	return false
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// InvalidArguments is a convenience for tools rejecting semantically bad input
// that passed schema validation.
func InvalidArguments(tool, format string, args ...any) *ToolError {
	return NewToolError(tool, fmt.Sprintf(format, args...), CodeInvalidArguments)
}
