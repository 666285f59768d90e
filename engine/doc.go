// Package engine implements the dispatcher that resolves a request to one of
// the pattern graphs and drives it to a result envelope.
//
// # Responsibilities
//
// Request Handling:
//   - Pattern resolution (unknown names fail with core.ErrUnknownPattern)
//   - Iteration bound validation and per-pattern defaults
//   - Thread id synthesis ("<pattern>-<uuid>") when none is given
//
// Thread Ownership:
//   - Exclusive per-thread lock through session.Store.Lock
//   - Load-or-create of the thread state
//   - Resume of an interrupted run when the query is empty or unchanged
//   - New turn on the same history otherwise
//
// Execution:
//   - Bounded concurrency across runs (MaxConcurrentInvocations)
//   - Checkpoint after every node transition
//   - Streaming of transition events (Invoke) or a single envelope (Run)
//   - Lifecycle callbacks and Prometheus recording
//
// # Layers
//
//	┌─────────────────────────────────────────────────────────┐
//	│                  Engine Interface                       │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐    │
//	│  │     Run     │ │   Invoke    │ │ StopInvocation  │    │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘    │
//	├─────────────────────────────────────────────────────────┤
//	│                  Pattern Graphs (agent)                 │
//	│   react · plan_execute · reflection · multi_agent       │
//	├─────────────────────────────────────────────────────────┤
//	│                   Service Layer                         │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐    │
//	│  │   Session   │ │    Tool     │ │     Model       │    │
//	│  │   Store     │ │  Registry   │ │    Adapter      │    │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘    │
//	└─────────────────────────────────────────────────────────┘
//
// # Usage
//
// Synchronous Execution:
//
//	eng := engine.New(model, func(o *engine.Options) { o.Tools = registry })
//	env, err := eng.Run(ctx, engine.Request{
//	    Query:   "What is the current price of AAPL?",
//	    Pattern: core.PatternReact,
//	})
//
// Streaming Execution:
//
//	_, events, errs, err := eng.Invoke(ctx, req)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    handleEvent(ev)
//	}
//	return <-errs
//
// # Error Handling
//
// Degraded runs (iteration bound reached, low critic score, malformed model
// output) return an envelope with Metadata.Degraded set. Everything else is
// returned as a *core.RunError whose Kind is invalid_request, infrastructure
// or cancelled.
package engine
