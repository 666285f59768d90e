package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/artdevesa7/Agentic-AI-designs/agent"
	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
	"github.com/artdevesa7/Agentic-AI-designs/metrics"
	"github.com/artdevesa7/Agentic-AI-designs/model"
	"github.com/artdevesa7/Agentic-AI-designs/session"
	"github.com/artdevesa7/Agentic-AI-designs/tool"
)

// Config defines tuning parameters for the Engine's operational behavior.
//
// Example:
//
//	cfg := Config{
//	    MaxConcurrentInvocations: 50,
//	    EventBufferSize: 256,
//	}
type Config struct {
	// MaxConcurrentInvocations limits the number of runs that execute
	// simultaneously. Further runs wait for a slot or for their context.
	// Set to 0 for unlimited.
	MaxConcurrentInvocations int

	// EventBufferSize sets the channel buffer size of Invoke's event stream.
	EventBufferSize int

	// ModelCallLimit caps the model calls of one run. 0 means unlimited.
	ModelCallLimit int

	// RunTimeout bounds a whole run. 0 means no deadline beyond the caller's.
	RunTimeout time.Duration
}

// DefaultConfig provides the default configuration values:
//   - MaxConcurrentInvocations: 10
//   - EventBufferSize: 100
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	EventBufferSize:          100,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := New(model, func(o *Options) {
//	    o.Store = sqliteStore
//	    o.Tools = registry
//	})
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Store persists thread checkpoints. Defaults to an in-memory store.
	Store session.Store

	// Tools is the registry shared by every run. Defaults to an empty registry.
	Tools *tool.Registry

	// Graphs overrides the pattern engines. Missing patterns use the defaults.
	Graphs []agent.Graph

	// Logger defaults to NoOp.
	Logger logging.Logger

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer

	// Metrics may be nil.
	Metrics *metrics.Recorder

	// Callbacks may be nil.
	Callbacks *CallbackManager
}

// Request is one invocation of the dispatcher.
type Request struct {
	// Query starts a new turn. It may be empty when resuming an interrupted run.
	Query string
	// Pattern selects the engine. Hyphenated names are accepted.
	Pattern core.Pattern
	// MaxIterations must not be negative; 0 selects the pattern default.
	MaxIterations int
	// ThreadID is synthesized as "<pattern>-<uuid>" when empty.
	ThreadID string
	// Ephemeral deletes the thread once the run finished.
	Ephemeral bool
}

// Engine resolves requests to pattern graphs and drives them to completion.
//
// Concurrency Model:
//   - Distinct threads run fully in parallel up to MaxConcurrentInvocations
//   - A thread is owned by at most one run at a time (session.Store.Lock)
//   - Nodes of one run execute sequentially
type Engine struct {
	model     model.Model
	store     session.Store
	tools     *tool.Registry
	graphs    map[core.Pattern]agent.Graph
	logger    logging.Logger
	tracer    trace.Tracer
	metrics   *metrics.Recorder
	callbacks *CallbackManager
	config    Config

	sem chan struct{}

	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.RWMutex
}

// New creates an Engine for m with in-memory defaults.
func New(m model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Tools == nil {
		opts.Tools = tool.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}

	graphs := map[core.Pattern]agent.Graph{
		core.PatternReact:       agent.NewReAct(),
		core.PatternPlanExecute: agent.NewPlanExecute(),
		core.PatternReflection:  agent.NewReflection(),
		core.PatternMultiAgent:  agent.NewMultiAgent(),
	}
	for _, g := range opts.Graphs {
		graphs[g.Pattern()] = g
	}

	var sem chan struct{}
	if opts.Config.MaxConcurrentInvocations > 0 {
		sem = make(chan struct{}, opts.Config.MaxConcurrentInvocations)
	}

	return &Engine{
		model:             m,
		store:             opts.Store,
		tools:             opts.Tools,
		graphs:            graphs,
		logger:            opts.Logger,
		tracer:            opts.Tracer,
		metrics:           opts.Metrics,
		callbacks:         opts.Callbacks,
		config:            opts.Config,
		sem:               sem,
		activeInvocations: make(map[string]context.CancelFunc),
	}
}

// Graph returns the engine registered for p.
func (e *Engine) Graph(p core.Pattern) (agent.Graph, bool) {
	g, ok := e.graphs[p]
	return g, ok
}

// Store returns the checkpoint store.
func (e *Engine) Store() session.Store { return e.store }

// Tools returns the tool registry.
func (e *Engine) Tools() *tool.Registry { return e.tools }

// Thread returns the latest checkpoint of threadID.
func (e *Engine) Thread(ctx context.Context, threadID string) (*core.AgentState, error) {
	return e.store.Load(ctx, threadID)
}

// Run executes req synchronously and returns the result envelope. Degraded
// runs still return an envelope; only infrastructure failures, invalid
// requests and cancellation return a *core.RunError.
func (e *Engine) Run(ctx context.Context, req Request) (core.ResultEnvelope, error) {
	return e.run(ctx, core.NewID(), req, nil)
}

// Invoke executes req asynchronously and streams one event per node
// transition. The last event carries the result envelope. Both channels are
// closed when the run ends; a terminal error is delivered on the error channel.
//
// Example:
//
//	id, events, errs, err := eng.Invoke(ctx, engine.Request{Query: q, Pattern: core.PatternReact})
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    if ev.IsFinal() {
//	        fmt.Println(ev.Result.Answer)
//	    }
//	}
//	if err := <-errs; err != nil {
//	    return err
//	}
func (e *Engine) Invoke(ctx context.Context, req Request) (string, <-chan core.Event, <-chan error, error) {
	p, err := e.validate(req)
	if err != nil {
		return "", nil, nil, core.NewRunError(p, req.ThreadID, err)
	}
	req.Pattern = p

	invocationID := core.NewID()
	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)

	invocationCtx, cancel := context.WithCancel(ctx)
	e.invocationsMu.Lock()
	e.activeInvocations[invocationID] = cancel
	e.invocationsMu.Unlock()

	send := func(ev core.Event) {
		select {
		case eventsCh <- ev:
		case <-invocationCtx.Done():
		}
	}

	go func() {
		defer func() {
			cancel()
			e.invocationsMu.Lock()
			delete(e.activeInvocations, invocationID)
			e.invocationsMu.Unlock()
			close(eventsCh)
			close(errorsCh)
		}()

		env, err := e.run(invocationCtx, invocationID, req, send)
		if err != nil {
			errorsCh <- err
			return
		}
		send(core.NewResultEvent(invocationID, env))
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// StopInvocation cancels a running invocation. The run stops at the next node
// boundary.
func (e *Engine) StopInvocation(invocationID string) error {
	e.invocationsMu.RLock()
	cancel, exists := e.activeInvocations[invocationID]
	e.invocationsMu.RUnlock()
	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}
	cancel()
	return nil
}

func (e *Engine) validate(req Request) (core.Pattern, error) {
	p, err := core.ParsePattern(string(req.Pattern))
	if err != nil {
		return req.Pattern, err
	}
	if _, ok := e.graphs[p]; !ok {
		return p, fmt.Errorf("%w: %q has no engine", core.ErrUnknownPattern, p)
	}
	if req.MaxIterations < 0 {
		return p, fmt.Errorf("%w: got %d", core.ErrInvalidMaxIterations, req.MaxIterations)
	}
	return p, nil
}

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if e.sem == nil {
		return func() {}, nil
	}
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context, invocationID string, req Request, emit func(core.Event)) (core.ResultEnvelope, error) {
	start := time.Now()

	p, err := e.validate(req)
	threadID := req.ThreadID
	if threadID == "" && err == nil {
		threadID = fmt.Sprintf("%s-%s", p, core.NewID())
	}
	fail := func(err error) (core.ResultEnvelope, error) {
		re := core.NewRunError(p, threadID, err)
		e.metrics.ObserveError(string(p), string(re.Kind), time.Since(start))
		e.logger.Error("engine.run.failed", "pattern", string(p), "thread", threadID, "kind", string(re.Kind), "error", err.Error())
		_ = e.callbacks.Run(ctx, CallbackOnError, &CallbackContext{InvocationID: invocationID, Request: req, ThreadID: threadID, Err: re})
		return core.ResultEnvelope{}, re
	}
	if err != nil {
		return fail(err)
	}
	req.Pattern = p
	g := e.graphs[p]

	if e.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RunTimeout)
		defer cancel()
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return fail(err)
	}
	defer release()

	unlock, err := e.store.Lock(ctx, threadID)
	if err != nil {
		return fail(err)
	}
	defer unlock()

	state, err := e.prepare(ctx, g, threadID, req)
	if err != nil {
		return fail(err)
	}

	if err := e.callbacks.Run(ctx, CallbackBeforeRun, &CallbackContext{InvocationID: invocationID, Request: req, ThreadID: threadID, State: state}); err != nil {
		return fail(err)
	}

	limiter := core.NewModelLimiter(e.config.ModelCallLimit)
	rc := &agent.RunContext{
		State:        state,
		InvocationID: invocationID,
		Model:        e.model,
		Tools:        e.tools,
		Checkpoint:   e.store,
		Logger:       logging.ForRun(e.logger, "agent", threadID, string(p)),
		Tracer:       e.tracer,
		Limiter:      limiter,
		Emit: func(ev core.Event) {
			_ = e.callbacks.Run(ctx, CallbackOnTransition, &CallbackContext{InvocationID: invocationID, Request: req, ThreadID: threadID, Event: &ev})
			if emit != nil {
				emit(ev)
			}
		},
	}

	e.logger.Info("engine.run.start", "pattern", string(p), "thread", threadID, "invocation", invocationID,
		"node", state.Node, "max_iterations", state.MaxIterations)

	answer, err := agent.Drive(ctx, g, rc)
	if err != nil {
		return fail(err)
	}

	env := core.NewResultEnvelope(state, answer, time.Since(start))
	env.Metadata.ModelCalls = limiter.Count()

	if req.Ephemeral {
		if err := e.store.Delete(context.WithoutCancel(ctx), threadID); err != nil {
			e.logger.Warn("engine.run.delete_failed", "thread", threadID, "error", err.Error())
		}
	}

	e.metrics.ObserveRun(string(p), env.Metadata.Iterations, env.Metadata.DegradedReasons, env.Metadata.Duration)
	e.logger.Info("engine.run.done", "pattern", string(p), "thread", threadID, "iterations", env.Metadata.Iterations,
		"model_calls", env.Metadata.ModelCalls, "degraded", env.Metadata.Degraded, "duration_ms", env.Metadata.Duration.Milliseconds())
	_ = e.callbacks.Run(ctx, CallbackAfterRun, &CallbackContext{InvocationID: invocationID, Request: req, ThreadID: threadID, State: state, Result: &env})
	return env, nil
}

// prepare loads or creates the thread state and decides between resuming an
// interrupted run and starting a new turn.
func (e *Engine) prepare(ctx context.Context, g agent.Graph, threadID string, req Request) (*core.AgentState, error) {
	state, err := e.store.Load(ctx, threadID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		state = core.NewAgentState(threadID, g.Pattern())
	case err != nil:
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}

	query := strings.TrimSpace(req.Query)
	resumable := state.Version > 0 && !state.Finished() && state.Node != "" && state.Pattern == g.Pattern()
	if resumable && (query == "" || query == state.Query) {
		e.logger.Info("engine.run.resume", "thread", threadID, "node", state.Node, "iteration", state.Iteration)
		return state, nil
	}
	if query == "" {
		return nil, core.ErrEmptyQuery
	}

	maxIterations := req.MaxIterations
	if maxIterations == 0 {
		maxIterations = g.DefaultMaxIterations()
	}
	state.BeginTurn(g.Pattern(), query, maxIterations, g.Entry())
	return state, nil
}
