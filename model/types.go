// Package model provides domain types shared across packages.
package model

import "time"

// Role identifies who authored a stored conversation entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// DefaultSenderName is used when a user entry carries no usable name.
const DefaultSenderName = "Membre"

// HistoryEntry is one stored chat line, as persisted by storage and replayed
// into the model context.
type HistoryEntry struct {
	Role       Role      `json:"role"`
	SenderName string    `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsUser reports whether the entry was written by a group member.
func (e HistoryEntry) IsUser() bool {
	return e.Role == RoleUser
}

// IsBot reports whether the entry is a previous bot reply.
func (e HistoryEntry) IsBot() bool {
	return e.Role == RoleBot
}

// Sender returns the sender name, falling back to DefaultSenderName.
func (e HistoryEntry) Sender() string {
	if e.SenderName == "" {
		return DefaultSenderName
	}
	return e.SenderName
}

// Step represents a single backend round trip in the tool-calling loop.
type Step struct {
	Iteration   int
	Thought     string
	Action      *string
	Observation *string
}

// ToolCall contains metrics about a tool invocation.
type ToolCall struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
}
