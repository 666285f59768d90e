// Package agentic provides a high-level façade over the pattern dispatcher,
// the checkpoint store and the market research tools. Most applications
// interact with this package by:
//  1. Creating a Runtime via New() with a model adapter (optionally overriding
//     the default in-memory store and simulated market data)
//  2. Running queries synchronously (Run, InvokeSync) or streaming transitions
//     (Invoke) under one of the four execution patterns
//
// The façade delegates orchestration to engine.Engine. All defaults are safe
// for offline development and testing; production deployments typically
// supply a durable store, live market data and a structured logger.
package agentic

import (
	"context"

	"github.com/artdevesa7/Agentic-AI-designs/agent"
	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/engine"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
	"github.com/artdevesa7/Agentic-AI-designs/memory"
	"github.com/artdevesa7/Agentic-AI-designs/model"
	"github.com/artdevesa7/Agentic-AI-designs/session"
	"github.com/artdevesa7/Agentic-AI-designs/tool"
	"github.com/artdevesa7/Agentic-AI-designs/tool/market"
)

// Options configures the Runtime.
type Options struct {
	// Engine configuration (concurrency, buffers, call limits)
	EngineConfig engine.Config

	// Store persists thread checkpoints (defaults to in-memory).
	Store session.Store

	// Market supplies quotes and history to the stock tools. Defaults to the
	// deterministic simulated provider behind an LRU cache.
	Market market.Provider

	// Index backs the research search tool. Defaults to the seeded in-memory index.
	Index memory.Index

	// Tools replaces the default registry entirely when set.
	Tools *tool.Registry

	// Graphs overrides individual pattern engines (e.g. a stricter critic).
	Graphs []agent.Graph

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Runtime is the high-level façade aggregating the dispatcher and its services.
type Runtime struct {
	engine *engine.Engine
}

// New creates a Runtime for m. Any unset service is initialized with an
// in-memory or simulated implementation.
func New(m model.Model, optFns ...func(o *Options)) (*Runtime, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}

	tools := opts.Tools
	if tools == nil {
		if opts.Market == nil {
			opts.Market = market.NewCachedProvider(market.NewSimulatedProvider(nil))
		}
		if opts.Index == nil {
			opts.Index = memory.NewInMemoryIndex(memory.SeedDocuments()...)
		}
		tools = tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
		if err := market.Register(tools, opts.Market); err != nil {
			return nil, err
		}
		if err := tools.Register(memory.NewSearchTool(opts.Index)); err != nil {
			return nil, err
		}
	}

	e := engine.New(m, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Store = opts.Store
		o.Tools = tools
		o.Graphs = opts.Graphs
		o.Logger = opts.Logger
	})
	return &Runtime{engine: e}, nil
}

// Engine exposes the underlying dispatcher.
func (r *Runtime) Engine() *engine.Engine { return r.engine }

// Run executes query under pattern on a fresh thread.
func (r *Runtime) Run(ctx context.Context, pattern core.Pattern, query string) (core.ResultEnvelope, error) {
	return r.engine.Run(ctx, engine.Request{Query: query, Pattern: pattern})
}

// Invoke starts an asynchronous run returning event & error channels.
func (r *Runtime) Invoke(ctx context.Context, req engine.Request) (string, <-chan core.Event, <-chan error, error) {
	return r.engine.Invoke(ctx, req)
}

// InvokeSync is a synchronous helper that drains the async channels and
// returns every transition event together with the result envelope.
func (r *Runtime) InvokeSync(ctx context.Context, req engine.Request) ([]core.Event, core.ResultEnvelope, error) {
	_, eventsCh, errorsCh, err := r.engine.Invoke(ctx, req)
	if err != nil {
		return nil, core.ResultEnvelope{}, err
	}

	var (
		events []core.Event
		result core.ResultEnvelope
	)
	for {
		select {
		case <-ctx.Done():
			// Context cancelled - return events collected so far
			return events, result, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				// Events channel closed - check for terminal error
				if err := <-errorsCh; err != nil {
					return events, result, err
				}
				return events, result, nil
			}
			if event.IsFinal() {
				result = *event.Result
				continue
			}
			events = append(events, event)
		}
	}
}
