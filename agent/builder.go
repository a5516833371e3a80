// Orchestrator builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"fmt"
	"log/slog"

	"github.com/Haga4000/Regelebot/internal/metrics"
	"github.com/Haga4000/Regelebot/llm"
	"github.com/Haga4000/Regelebot/tools"
)

// Builder provides fluent configuration for creating an Orchestrator.
// Usage: agent.NewBuilder(provider).Dispatcher(d).Build()
type Builder struct {
	provider   llm.Provider
	dispatcher *tools.Dispatcher
	club       ClubContextSource
	config     Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBuilder creates a builder for an orchestrator talking to provider.
func NewBuilder(provider llm.Provider) *Builder {
	return &Builder{
		provider: provider,
		config:   DefaultConfig(),
	}
}

// Dispatcher sets the tool dispatcher. Its registry provides the tool
// definitions offered to the model.
func (b *Builder) Dispatcher(d *tools.Dispatcher) *Builder {
	b.dispatcher = d
	return b
}

// ClubContext sets the source of the club summary in the instructions.
func (b *Builder) ClubContext(src ClubContextSource) *Builder {
	b.club = src
	return b
}

// BotName sets the persona name.
func (b *Builder) BotName(name string) *Builder {
	b.config.BotName = name
	return b
}

// MaxBackendCalls sets the per-turn round trip bound.
func (b *Builder) MaxBackendCalls(n int) *Builder {
	b.config.MaxBackendCalls = n
	return b
}

// Temperature sets the sampling temperature.
func (b *Builder) Temperature(t float32) *Builder {
	b.config.Temperature = &t
	return b
}

// MaxTokens sets the completion token limit.
func (b *Builder) MaxTokens(n int) *Builder {
	b.config.MaxTokens = n
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Metrics sets the telemetry sink.
func (b *Builder) Metrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Build creates the orchestrator.
func (b *Builder) Build() (*Orchestrator, error) {
	if b.provider == nil {
		return nil, fmt.Errorf("orchestrator requires a provider")
	}
	dispatcher := b.dispatcher
	if dispatcher == nil {
		dispatcher = tools.NewDispatcher(tools.NewRegistry())
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Orchestrator{
		config:     b.config.withDefaults(),
		provider:   b.provider,
		dispatcher: dispatcher,
		club:       b.club,
		logger:     logger,
		metrics:    b.metrics,
	}, nil
}
