// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Classify a generation as either an assistant message or a tool call
//     request (Complete), with UpstreamUnavailable / MalformedResponse failures
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (Anthropic, OpenAI, Gemini) implement the Model interface from this
// package so the pattern engines remain decoupled from vendor SDKs.
package model
