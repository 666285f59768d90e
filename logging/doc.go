// Package logging provides a minimal logging interface and slog adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the dispatcher, pattern engines and tool registry use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - AgentLogger with component/thread context and run/tool/LLM helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
package logging
