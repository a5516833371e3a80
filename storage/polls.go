package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PollOption is one numbered choice of a poll.
type PollOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Poll is a club vote. Options keep their creation order.
type Poll struct {
	ID          string
	Question    string
	Options     []PollOption
	CreatedBy   int64
	IsClosed    bool
	WAMessageID string
	CreatedAt   time.Time
}

// Option returns the label of an option id.
func (p *Poll) Option(id string) (string, bool) {
	for _, opt := range p.Options {
		if opt.ID == id {
			return opt.Label, true
		}
	}
	return "", false
}

// OptionByLabel returns the id of the option with the given label.
func (p *Poll) OptionByLabel(label string) (string, bool) {
	for _, opt := range p.Options {
		if opt.Label == label {
			return opt.ID, true
		}
	}
	return "", false
}

// CreatePoll inserts a new open poll.
func (s *SqliteStorage) CreatePoll(ctx context.Context, poll Poll) error {
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return fmt.Errorf("failed to encode poll options: %w", err)
	}

	createdAt := poll.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var createdBy interface{}
	if poll.CreatedBy != 0 {
		createdBy = poll.CreatedBy
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO polls (id, question, options, created_by, is_closed, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		poll.ID, poll.Question, string(options), createdBy, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create poll: %w", err)
	}
	return nil
}

// PollByID returns a poll, or nil, nil if it does not exist.
func (s *SqliteStorage) PollByID(ctx context.Context, id string) (*Poll, error) {
	return s.queryPoll(ctx, "WHERE id = ?", id)
}

// LatestOpenPoll returns the most recently created open poll, or nil, nil.
func (s *SqliteStorage) LatestOpenPoll(ctx context.Context) (*Poll, error) {
	return s.queryPoll(ctx, "WHERE is_closed = 0 ORDER BY created_at DESC, rowid DESC LIMIT 1")
}

// PollByWAMessageID returns the poll posted as the given WhatsApp message.
func (s *SqliteStorage) PollByWAMessageID(ctx context.Context, waMessageID string) (*Poll, error) {
	return s.queryPoll(ctx, "WHERE wa_message_id = ? ORDER BY created_at DESC LIMIT 1", waMessageID)
}

func (s *SqliteStorage) queryPoll(ctx context.Context, where string, args ...interface{}) (*Poll, error) {
	var (
		poll      Poll
		options   string
		createdBy sql.NullInt64
		waID      sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, question, options, created_by, is_closed, wa_message_id, created_at FROM polls "+where,
		args...).Scan(&poll.ID, &poll.Question, &options, &createdBy, &poll.IsClosed, &waID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	if err := json.Unmarshal([]byte(options), &poll.Options); err != nil {
		return nil, fmt.Errorf("invalid options for poll %s: %w", poll.ID, err)
	}
	poll.CreatedBy = createdBy.Int64
	poll.WAMessageID = waID.String
	poll.CreatedAt = time.Unix(0, createdAt).UTC()
	return &poll, nil
}

// ClosePoll marks a poll closed. Returns false if it was already closed
// or does not exist.
func (s *SqliteStorage) ClosePoll(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE polls SET is_closed = 1 WHERE id = ? AND is_closed = 0", id)
	if err != nil {
		return false, fmt.Errorf("failed to close poll: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check poll close: %w", err)
	}
	return n > 0, nil
}

// SetPollWAMessageID links a poll to the WhatsApp message that shows it.
// Returns false if the poll does not exist.
func (s *SqliteStorage) SetPollWAMessageID(ctx context.Context, id, waMessageID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE polls SET wa_message_id = ? WHERE id = ?", waMessageID, id)
	if err != nil {
		return false, fmt.Errorf("failed to set poll message id: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check poll update: %w", err)
	}
	return n > 0, nil
}

// UpsertVote records a member's choice. Returns true when an earlier vote
// by the same member was changed.
func (s *SqliteStorage) UpsertVote(ctx context.Context, pollID string, memberID int64, optionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM poll_votes WHERE poll_id = ? AND member_id = ?",
		pollID, memberID).Scan(&existing)

	changed := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO poll_votes (poll_id, member_id, option_id, created_at) VALUES (?, ?, ?, ?)",
			pollID, memberID, optionID, time.Now().Unix())
	case err == nil:
		changed = true
		_, err = tx.ExecContext(ctx, "UPDATE poll_votes SET option_id = ? WHERE id = ?", optionID, existing)
	}
	if err != nil {
		return false, fmt.Errorf("failed to save vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return changed, nil
}

// VoteCounts returns the number of votes per option id.
func (s *SqliteStorage) VoteCounts(ctx context.Context, pollID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT option_id, COUNT(*) FROM poll_votes WHERE poll_id = ? GROUP BY option_id", pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			option string
			n      int
		)
		if err := rows.Scan(&option, &n); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[option] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vote counts: %w", err)
	}
	return counts, nil
}
