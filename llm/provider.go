// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific structural fix-ups (role alternation, tool result shape)

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations are stateless translators: they hold no per-request state
// and may be shared across concurrent turns.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Generate sends one request carrying messages and optional tool
	// definitions. A reply without tool calls is a normal result. An error
	// is returned only for transport faults.
	Generate(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts GenerateOptions) (Response, error)
}

// sampling resolves per-request options against provider defaults.
type sampling struct {
	maxTokens   int
	temperature float32
}

func resolve(defaults sampling, opts GenerateOptions) sampling {
	s := defaults
	if opts.MaxTokens > 0 {
		s.maxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		s.temperature = *opts.Temperature
	}
	return s
}
