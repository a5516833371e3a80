// Package agent provides the conversation orchestrator.
//
// Contains the inbound turn, the outcome variants and the response
// returned for every processed turn.
package agent

import (
	"github.com/Haga4000/Regelebot/llm"
	"github.com/Haga4000/Regelebot/model"
)

// Fixed French replies for the non-answer outcomes.
const (
	ApologyFirstCall = "Oups, j'ai eu un souci technique. Reessaie dans quelques secondes !"
	ApologyToolLoop  = "J'ai eu un probleme en cherchant les infos. Reessaie !"
	NoAnswer         = "Hmm, j'ai pas reussi a formuler ma reponse. Tu peux reformuler ?"
	LeakRedirect     = "Je suis la pour parler cinema avec toi ! Qu'est-ce qui te ferait plaisir ?"
)

// Turn is one inbound member message with its prepared context.
type Turn struct {
	// Text is the raw message, sanitized by the orchestrator.
	Text string
	// SenderName is the raw display name of the author.
	SenderName string
	// History is the oldest-first window replayed before Text.
	History []model.HistoryEntry
	// PriorSubjects are titles the bot already talked about; the
	// recommendation tool will not suggest them again.
	PriorSubjects []string
}

// Step is an alias for model.Step for loop round trips.
type Step = model.Step

// ToolCall is an alias for model.ToolCall for tool call metadata.
type ToolCall = model.ToolCall

// Outcome tells how a turn ended.
type Outcome int

const (
	OutcomeAnswer Outcome = iota
	OutcomeApologyFirstCall
	OutcomeApologyToolLoop
	OutcomeNoAnswer
	OutcomeLeakRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswer:
		return "answer"
	case OutcomeApologyFirstCall:
		return "apology_first_call"
	case OutcomeApologyToolLoop:
		return "apology_tool_loop"
	case OutcomeNoAnswer:
		return "no_answer"
	case OutcomeLeakRedirect:
		return "leak_redirect"
	default:
		return "unknown"
	}
}

// Metadata contains metadata about a processed turn.
type Metadata struct {
	ExecutionTimeMs uint64
	Provider        string
	Model           string
	ToolCalls       []ToolCall
	TokenUsage      *llm.TokenUsage
	BackendCalls    int
}

// Response is the result of processing one turn. Text is always safe to
// send to the group.
type Response struct {
	Outcome  Outcome
	Text     string
	Steps    []Step
	Metadata Metadata
}

// IsAnswer reports whether the model produced a usable answer.
func (r Response) IsAnswer() bool {
	return r.Outcome == OutcomeAnswer
}

// fallbackText returns the fixed reply for a non-answer outcome.
func fallbackText(o Outcome) string {
	switch o {
	case OutcomeApologyFirstCall:
		return ApologyFirstCall
	case OutcomeApologyToolLoop:
		return ApologyToolLoop
	case OutcomeLeakRedirect:
		return LeakRedirect
	default:
		return NoAnswer
	}
}
