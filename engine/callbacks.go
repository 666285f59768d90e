package engine

import (
	"context"
	"sync"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Available callback types:
//   - BeforeRun/AfterRun: around a complete run
//   - OnTransition: after every checkpointed node transition
//   - OnError: when a run fails
//
// Callbacks run synchronously on the run's goroutine. An error returned from a
// BeforeRun callback aborts the run; errors from the other types are ignored.
type CallbackType string

const (
	// CallbackBeforeRun is triggered after the thread state is prepared and
	// before the first node executes.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterRun is triggered with the result envelope.
	CallbackAfterRun CallbackType = "after_run"

	// CallbackOnTransition is triggered for every transition event.
	CallbackOnTransition CallbackType = "on_transition"

	// CallbackOnError is triggered when a run fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext describes the run a callback fires for. Fields not
// meaningful for the callback type are nil.
type CallbackContext struct {
	InvocationID string
	Request      Request
	ThreadID     string

	// State is the live run state. Callbacks must not mutate it.
	State  *core.AgentState
	Event  *core.Event
	Result *core.ResultEnvelope
	Err    error
}

// Callback is a hook into the run lifecycle.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback adapts a plain function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback of the given type.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// Register adds a callback; callbacks of one type run in registration order.
func (cm *CallbackManager) Register(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	t := callback.Type()
	cm.callbacks[t] = append(cm.callbacks[t], callback)
}

// Run executes the callbacks of callbackType, stopping at the first error.
func (cm *CallbackManager) Run(ctx context.Context, callbackType CallbackType, callbackCtx *CallbackContext) error {
	if cm == nil {
		return nil
	}
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback logs every callback of its type at debug level.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a LoggingCallback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	args := []any{"invocation", callbackCtx.InvocationID, "thread", callbackCtx.ThreadID}
	if ev := callbackCtx.Event; ev != nil {
		args = append(args, "node", ev.Node, "next", ev.Next, "iteration", ev.Iteration)
	}
	if callbackCtx.Err != nil {
		args = append(args, "error", callbackCtx.Err.Error())
	}
	c.logger.Debug("engine.callback."+string(c.callbackType), args...)
	return nil
}
