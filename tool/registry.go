package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
	"github.com/artdevesa7/Agentic-AI-designs/model"
)

// DefaultTimeout bounds a single tool invocation unless overridden per tool.
const DefaultTimeout = 15 * time.Second

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// DefaultTimeout applies to tools registered without their own deadline.
	DefaultTimeout time.Duration
	// Logger receives tool.call.* entries.
	Logger logging.Logger
	// OnInvoke, if set, observes every invocation with its failure code
	// ("" on success). Used for metrics.
	OnInvoke func(name, code string, dur time.Duration)
}

// RegisterOptions configures a single registration.
type RegisterOptions struct {
	Timeout time.Duration
}

type entry struct {
	tool    Tool
	timeout time.Duration
}

// Registry maps tool names to implementations. It is safe for concurrent use;
// registrations normally happen once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
	opts  RegistryOptions
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		DefaultTimeout: DefaultTimeout,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	return &Registry{tools: map[string]entry{}, opts: opts}
}

// WithTimeout sets a per-tool deadline.
func WithTimeout(d time.Duration) func(o *RegisterOptions) {
	return func(o *RegisterOptions) { o.Timeout = d }
}

// Register adds t under its name.
func (r *Registry) Register(t Tool, optFns ...func(o *RegisterOptions)) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("%w: tool must have a name", ErrMisconfigured)
	}
	opts := RegisterOptions{Timeout: r.opts.DefaultTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = r.opts.DefaultTimeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.tools[t.Name()] = entry{tool: t, timeout: opts.Timeout}
	return nil
}

// MustRegister is Register that panics on error; intended for static wiring.
func (r *Registry) MustRegister(t Tool, optFns ...func(o *RegisterOptions)) {
	if err := r.Register(t, optFns...); err != nil {
		panic(err)
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.tool, ok
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the catalogue advertised to the model, sorted by name.
func (r *Registry) Definitions() []model.ToolDefinition {
	names := r.Names()
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, n := range names {
		t, _ := r.Get(n)
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Invoke runs the named tool under its deadline. Failures are *ToolError
// values matching ErrToolNotFound, ErrInvalidArguments, ErrExecution or
// ErrTimeout. Cancellation of ctx itself is returned as ctx.Err(), and a
// misconfigured registry as ErrMisconfigured.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if r == nil {
		return nil, ErrMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.invoke(ctx, name, args)
	dur := time.Since(start)

	code := ""
	var toolErr *ToolError
	switch {
	case err == nil:
	case errors.As(err, &toolErr):
		code = toolErr.Code
	default:
		code = "ABORTED"
	}
	r.logCall(name, code, err, dur)
	if r.opts.OnInvoke != nil {
		r.opts.OnInvoke(name, code, dur)
	}
	return out, err
}

func (r *Registry) logCall(name, code string, err error, dur time.Duration) {
	if cl, ok := r.opts.Logger.(logging.CallLogger); ok {
		cl.LogToolCall(name, dur, err == nil, err)
		return
	}
	switch code {
	case "":
		r.opts.Logger.Debug("tool.call.success", "tool", name, "duration_ms", dur.Milliseconds())
	case "ABORTED":
		r.opts.Logger.Error("tool.call.aborted", "tool", name, "error", err.Error())
	default:
		r.opts.Logger.Warn("tool.call.error", "tool", name, "code", code, "error", err.Error(), "duration_ms", dur.Milliseconds())
	}
}

func (r *Registry) invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NewToolError(name, fmt.Sprintf("unknown tool %q", name), CodeNotFound)
	}
	if args == nil {
		args = map[string]any{}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() {
			if rec := recover(); rec != nil {
				r.opts.Logger.Error("tool.call.panic", "tool", name, "recover", rec, "stack", string(debug.Stack()))
				o = outcome{err: NewToolError(name, fmt.Sprintf("panic: %v", rec), CodeExecution)}
			}
			done <- o
		}()
		o.value, o.err = e.tool.Call(callCtx, args)
	}()

	select {
	case o := <-done:
		if o.err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, NewToolError(name, fmt.Sprintf("exceeded deadline of %s", e.timeout), CodeTimeout)
		}
		if o.err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return o.value, normalize(name, o.err)
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, NewToolError(name, fmt.Sprintf("exceeded deadline of %s", e.timeout), CodeTimeout)
	}
}

func normalize(name string, err error) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) || errors.Is(err, ErrMisconfigured) {
		return err
	}
	return NewToolError(name, err.Error(), CodeExecution)
}

// Execute invokes call and folds any ToolError into a failed result so the
// engines can hand it back to the model. The returned error is non-nil only
// when the run itself must stop (cancellation or misconfiguration).
func (r *Registry) Execute(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	res := core.ToolResult{CallID: call.ID, Name: call.Name}
	out, err := r.Invoke(ctx, call.Name, call.Arguments)
	if err == nil {
		res.Output = out
		return res, nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		res.Error = toolErr.Message
		res.Code = toolErr.Code
		return res, nil
	}
	return res, err
}

// ExecuteAll runs calls sequentially in request order.
func (r *Registry) ExecuteAll(ctx context.Context, calls []core.ToolCall) ([]core.ToolResult, error) {
	results := make([]core.ToolResult, 0, len(calls))
	for _, c := range calls {
		res, err := r.Execute(ctx, c)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
