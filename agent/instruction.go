package agent

import "github.com/artdevesa7/Agentic-AI-designs/internal/util"

// Provider supplies dynamic instruction text at runtime from the node's
// template variables.
type Provider interface {
	Instruction(vars map[string]any) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(vars map[string]any) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(vars map[string]any) (string, error) { return f(vars) }

// Instruction represents either a text/template string or a dynamic provider.
// This mirrors a union of string | provider in a Go-idiomatic way.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
// Text without template markers is returned unchanged.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(vars map[string]any) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction is unset.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider or rendering
// the template as needed.
func (i Instruction) Resolve(vars map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(vars)
	}
	return util.RenderTemplate(i.text, vars)
}

// orDefault returns i unless it is unset.
func (i Instruction) orDefault(def Instruction) Instruction {
	if i.IsZero() {
		return def
	}
	return i
}
