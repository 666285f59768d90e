package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Logger defines the minimal logging interface used across the module.
// Users can provide their own implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// CallLogger is implemented by loggers with structured entries for model and
// tool calls. Callers fall back to plain Logger methods otherwise.
type CallLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
	LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
}

// ForRun scopes l to a thread when it is an *AgentLogger and returns it
// unchanged otherwise.
func ForRun(l Logger, component, threadID, pattern string) Logger {
	al, ok := l.(*AgentLogger)
	if !ok {
		return l
	}
	return al.WithComponent(component).WithThread(threadID, pattern)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// AgentLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via With* methods.
type AgentLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
	threadID  string
	pattern   string
}

// LoggerConfig configures construction of an AgentLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds an AgentLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *AgentLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &AgentLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *AgentLogger) clone() *AgentLogger {
	nl := *l
	return &nl
}

// WithComponent sets the logical component (engine, agent, tool, store).
func (l *AgentLogger) WithComponent(c string) *AgentLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithThread attaches the conversation thread and pattern identifiers.
func (l *AgentLogger) WithThread(threadID, pattern string) *AgentLogger {
	nl := l.clone()
	nl.threadID = threadID
	nl.pattern = pattern
	return nl
}

func (l *AgentLogger) buildArgs(args []any) []any {
	out := make([]any, 0, len(args)+6)
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	if l.threadID != "" {
		out = append(out, "thread_id", l.threadID)
	}
	if l.pattern != "" {
		out = append(out, "pattern", l.pattern)
	}
	return append(out, args...)
}

func (l *AgentLogger) log(level slog.Level, msg string, args ...any) {
	if level < slogLevel(l.level) {
		return
	}
	l.logger.Log(context.Background(), level, msg, l.buildArgs(args)...)
}

// Debug logs at debug level.
func (l *AgentLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *AgentLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *AgentLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *AgentLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

var _ CallLogger = (*AgentLogger)(nil)

// LogToolCall records execution details for a tool invocation.
func (l *AgentLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	args := []any{"tool_name", tool, "duration_ms", dur.Milliseconds(), "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
		l.log(slog.LevelError, "tool.call.failed", args...)
		return
	}
	l.log(slog.LevelInfo, "tool.call.completed", args...)
}

// LogLLMCall records model call latency, token usage and success.
func (l *AgentLogger) LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error) {
	args := []any{"model", model, "token_count", tokens, "duration_ms", dur.Milliseconds(), "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
		l.log(slog.LevelError, "llm.call.failed", args...)
		return
	}
	l.log(slog.LevelInfo, "llm.call.completed", args...)
}

// LogRun records aggregate metrics of a pattern run.
func (l *AgentLogger) LogRun(pattern string, iterations int, dur time.Duration, success bool, err error) {
	args := []any{"run_pattern", pattern, "iterations", iterations, "duration_ms", dur.Milliseconds(), "success", success}
	if err != nil {
		args = append(args, "error", err.Error())
		l.log(slog.LevelError, "run.failed", args...)
		return
	}
	l.log(slog.LevelInfo, "run.completed", args...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// NewSlogLogger creates a new AgentLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *AgentLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}
