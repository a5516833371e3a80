// Package storage provides SQLite persistence for the club.
//
// Information Hiding:
// - SQLite connection management hidden behind methods
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Haga4000/Regelebot/model"
)

// SqliteStorage implements ConversationStorage and the club tables using
// SQLite. Thread-safe: sql.DB handles connection pooling and concurrent
// access.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SqliteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversation_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			role TEXT NOT NULL,
			sender_name TEXT,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversation_group_created
		ON conversation_messages(group_id, created_at);

		CREATE TABLE IF NOT EXISTS members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			phone_hash TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS movies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tmdb_id INTEGER NOT NULL UNIQUE,
			title TEXT NOT NULL,
			original_title TEXT,
			year INTEGER,
			genres TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS watchlist (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			movie_id INTEGER NOT NULL UNIQUE,
			watched_at TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (movie_id) REFERENCES movies(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS ratings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			watchlist_id INTEGER NOT NULL,
			member_id INTEGER NOT NULL,
			score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
			created_at INTEGER NOT NULL,
			FOREIGN KEY (watchlist_id) REFERENCES watchlist(id) ON DELETE CASCADE,
			FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
			UNIQUE(watchlist_id, member_id)
		);

		CREATE TABLE IF NOT EXISTS polls (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			options TEXT NOT NULL,
			created_by INTEGER,
			is_closed INTEGER NOT NULL DEFAULT 0,
			wa_message_id TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (created_by) REFERENCES members(id)
		);

		CREATE INDEX IF NOT EXISTS idx_polls_open
		ON polls(is_closed, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_polls_wa_message
		ON polls(wa_message_id);

		CREATE TABLE IF NOT EXISTS poll_votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			poll_id TEXT NOT NULL,
			member_id INTEGER NOT NULL,
			option_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (poll_id) REFERENCES polls(id) ON DELETE CASCADE,
			FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
			UNIQUE(poll_id, member_id)
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// StoreMessage appends one turn to the group's conversation.
func (s *SqliteStorage) StoreMessage(ctx context.Context, groupID string, entry model.HistoryEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// Bot turns carry no sender
	var sender interface{}
	if entry.SenderName != "" {
		sender = entry.SenderName
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (group_id, role, sender_name, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		groupID, string(entry.Role), sender, entry.Content, createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// Recent returns at most limit turns of the group, newest first.
func (s *SqliteStorage) Recent(ctx context.Context, groupID string, limit int) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, sender_name, content, created_at
		FROM conversation_messages
		WHERE group_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{} // Start with empty slice, not nil
	for rows.Next() {
		var (
			entry     model.HistoryEntry
			role      string
			sender    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&role, &sender, &entry.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		entry.Role = model.Role(role)
		entry.SenderName = sender.String
		entry.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return entries, nil
}

// ClearRecent deletes the latest limit turns of the group.
func (s *SqliteStorage) ClearRecent(ctx context.Context, groupID string, limit int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_messages
		WHERE id IN (
			SELECT id FROM conversation_messages
			WHERE group_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`,
		groupID, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to clear messages: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared messages: %w", err)
	}
	return int(n), nil
}

// Verify SqliteStorage implements ConversationStorage
var _ ConversationStorage = (*SqliteStorage)(nil)
