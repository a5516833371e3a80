// Package storage provides in-memory conversation storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and one-shot CLI sessions

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Haga4000/Regelebot/model"
)

// InMemoryStorage implements ConversationStorage using an in-memory map.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu     sync.RWMutex
	groups map[string][]model.HistoryEntry
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		groups: make(map[string][]model.HistoryEntry),
	}
}

// StoreMessage appends a turn, stamping CreatedAt when unset.
func (s *InMemoryStorage) StoreMessage(ctx context.Context, groupID string, entry model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.groups[groupID] = append(s.groups[groupID], entry)
	return nil
}

// Recent returns at most limit turns, newest first.
func (s *InMemoryStorage) Recent(ctx context.Context, groupID string, limit int) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.groups[groupID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	// Return a copy to avoid external mutations
	out := make([]model.HistoryEntry, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// ClearRecent drops the latest limit turns of the group.
func (s *InMemoryStorage) ClearRecent(ctx context.Context, groupID string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.groups[groupID]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	s.groups[groupID] = entries[:len(entries)-limit]
	return limit, nil
}

// Verify InMemoryStorage implements ConversationStorage
var _ ConversationStorage = (*InMemoryStorage)(nil)
