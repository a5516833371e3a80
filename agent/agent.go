// Tool-calling (ReAct) loop implementation.
//
// Every member message that reaches the model goes through Process.
//
// Information Hiding:
// - Message assembly and envelope wrapping hidden
// - Backend communication hidden
// - Tool execution coordination hidden
// - Fallback selection hidden

package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Haga4000/Regelebot/internal/metrics"
	"github.com/Haga4000/Regelebot/llm"
	"github.com/Haga4000/Regelebot/model"
	"github.com/Haga4000/Regelebot/sanitize"
	"github.com/Haga4000/Regelebot/tools"
)

// Orchestrator answers member messages, calling tools through the model.
// It holds no per-turn state and is safe for concurrent use.
type Orchestrator struct {
	config     Config
	provider   llm.Provider
	dispatcher *tools.Dispatcher
	club       ClubContextSource
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// Process runs one turn. It never returns an error: faults become one of
// the fixed fallback replies, and the outcome says which.
//
// ctx is propagated into every backend and tool call, so cancelling it
// aborts the turn with an apology instead of waiting for in-flight calls.
func (o *Orchestrator) Process(ctx context.Context, turn Turn) Response {
	start := time.Now()
	r := &turnRun{
		orchestrator: o,
		start:        start,
		meta: Metadata{
			Provider:   o.provider.Name(),
			Model:      o.provider.Model(),
			TokenUsage: &llm.TokenUsage{},
		},
	}

	ctx = tools.WithExcludedTitles(ctx, turn.PriorSubjects)
	system := SystemPrompt(o.config.BotName, BuildClubContext(ctx, o.club))
	messages := BuildMessages(system, turn)
	defs := o.dispatcher.Registry().Definitions()

	resp, err := r.generate(ctx, messages, defs)
	if err != nil {
		o.logger.Error("backend call failed",
			"provider", r.meta.Provider, "model", r.meta.Model, "iteration", 0, "error", err)
		return r.finish(OutcomeApologyFirstCall, "")
	}

	for iteration := 1; resp.HasToolCalls() && r.meta.BackendCalls < o.config.MaxBackendCalls; iteration++ {
		// Only the first requested call runs; the assistant turn carries
		// that call alone so every tool turn answers a known id.
		call := resp.ToolCalls[0]
		if len(resp.ToolCalls) > 1 {
			o.logger.Debug("ignoring extra tool calls", "requested", len(resp.ToolCalls), "executed", call.Name)
		}

		observation := r.executeTool(ctx, call)
		messages = append(messages,
			llm.AssistantToolCallMessage(resp.Content, call),
			llm.ToolResultMessage(call, observation),
		)

		action := call.Name
		r.steps = append(r.steps, model.Step{
			Iteration:   iteration,
			Thought:     resp.Content,
			Action:      &action,
			Observation: &observation,
		})

		resp, err = r.generate(ctx, messages, defs)
		if err != nil {
			o.logger.Error("backend call failed during tool loop",
				"provider", r.meta.Provider, "model", r.meta.Model, "iteration", iteration, "error", err)
			return r.finish(OutcomeApologyToolLoop, "")
		}
	}

	if resp.HasToolCalls() || !resp.HasText() {
		o.logger.Warn("no usable answer",
			"backend_calls", r.meta.BackendCalls, "pending_tool_calls", len(resp.ToolCalls))
		return r.finish(OutcomeNoAnswer, "")
	}
	if sanitize.DetectLeakedSystemPrompt(resp.Content) {
		o.logger.Warn("potential system prompt leak detected, filtering response")
		return r.finish(OutcomeLeakRedirect, "")
	}
	return r.finish(OutcomeAnswer, resp.Content)
}

// BuildMessages assembles the system instructions, the replayed window
// and the current turn. User text only ever enters inside the sanitized
// envelope.
func BuildMessages(system string, turn Turn) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(turn.History)+2)
	messages = append(messages, llm.SystemMessage(system))
	for _, entry := range turn.History {
		if entry.IsBot() {
			messages = append(messages, llm.AssistantMessage(entry.Content))
			continue
		}
		messages = append(messages, llm.UserMessage(sanitize.WrapUserContent(entry.Sender(), entry.Content)))
	}
	return append(messages, llm.UserMessage(sanitize.WrapUserContent(turn.SenderName, turn.Text)))
}

// turnRun holds the state of one turn.
type turnRun struct {
	orchestrator *Orchestrator
	start        time.Time
	steps        []model.Step
	meta         Metadata
}

func (r *turnRun) generate(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.Response, error) {
	o := r.orchestrator
	opts := llm.GenerateOptions{MaxTokens: o.config.MaxTokens}
	if o.config.Temperature != nil {
		opts = opts.WithTemperature(*o.config.Temperature)
	}

	r.meta.BackendCalls++
	start := time.Now()
	resp, err := o.provider.Generate(ctx, messages, defs, opts)
	o.metrics.RecordBackend(r.meta.Provider, time.Since(start), err)
	if err != nil {
		return llm.Response{}, err
	}
	r.meta.TokenUsage.Add(resp.Usage)
	return resp, nil
}

func (r *turnRun) executeTool(ctx context.Context, call llm.ToolCall) string {
	o := r.orchestrator
	o.logger.Info("tool call", "tool", call.Name, "arguments", call.Arguments)

	input, err := json.Marshal(call.Arguments)
	if err != nil {
		input = []byte("{}")
	}

	start := time.Now()
	result := o.dispatcher.Dispatch(ctx, call.Name, call.Arguments)
	observation := result.JSON()

	r.meta.ToolCalls = append(r.meta.ToolCalls, model.ToolCall{
		Name:       call.Name,
		InputSize:  len(input),
		OutputSize: len(observation),
		DurationMs: uint64(time.Since(start).Milliseconds()),
		Success:    !result.IsError(),
	})
	return observation
}

func (r *turnRun) finish(outcome Outcome, text string) Response {
	if outcome != OutcomeAnswer {
		text = fallbackText(outcome)
	}
	r.meta.ExecutionTimeMs = uint64(time.Since(r.start).Milliseconds())
	r.orchestrator.metrics.RecordTurn(outcome.String(), r.meta.BackendCalls)
	return Response{
		Outcome:  outcome,
		Text:     text,
		Steps:    r.steps,
		Metadata: r.meta,
	}
}
