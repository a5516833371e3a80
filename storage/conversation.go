// Package storage provides conversation and club persistence.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures

package storage

import (
	"context"

	"github.com/Haga4000/Regelebot/model"
)

// ConversationStorage stores the chat turns of each group.
// Implementations can use different backends (memory, database).
type ConversationStorage interface {
	// StoreMessage appends one turn to the group's conversation.
	StoreMessage(ctx context.Context, groupID string, entry model.HistoryEntry) error

	// Recent returns at most limit turns of the group, newest first.
	// Returns an empty slice (not nil) for an unknown group.
	Recent(ctx context.Context, groupID string, limit int) ([]model.HistoryEntry, error)

	// ClearRecent deletes the latest limit turns of the group and
	// returns how many were removed.
	ClearRecent(ctx context.Context, groupID string, limit int) (int, error)
}
