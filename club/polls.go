package club

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Haga4000/Regelebot/storage"
)

// PollStore is the persistence the poll service relies on.
type PollStore interface {
	MemberID(ctx context.Context, displayName string) (int64, error)
	CreatePoll(ctx context.Context, poll storage.Poll) error
	PollByID(ctx context.Context, id string) (*storage.Poll, error)
	LatestOpenPoll(ctx context.Context) (*storage.Poll, error)
	PollByWAMessageID(ctx context.Context, waMessageID string) (*storage.Poll, error)
	ClosePoll(ctx context.Context, id string) (bool, error)
	SetPollWAMessageID(ctx context.Context, id, waMessageID string) (bool, error)
	UpsertVote(ctx context.Context, pollID string, memberID int64, optionID string) (bool, error)
	VoteCounts(ctx context.Context, pollID string) (map[string]int, error)
}

const (
	minPollOptions = 2
	maxPollOptions = 10
)

// CreatedPoll describes a freshly opened poll.
type CreatedPoll struct {
	ID       string
	Question string
	Options  []storage.PollOption
}

// OptionMap returns the options keyed by their number.
func (p *CreatedPoll) OptionMap() map[string]string {
	out := make(map[string]string, len(p.Options))
	for _, opt := range p.Options {
		out[opt.ID] = opt.Label
	}
	return out
}

// Labels returns the option labels in order.
func (p *CreatedPoll) Labels() []string {
	out := make([]string, 0, len(p.Options))
	for _, opt := range p.Options {
		out = append(out, opt.Label)
	}
	return out
}

// OptionResult is the tally of one option.
type OptionResult struct {
	OptionID string `json:"option_id"`
	Label    string `json:"label"`
	Votes    int    `json:"votes"`
}

// PollResults is the tally of a poll, most voted option first.
type PollResults struct {
	PollID     string         `json:"poll_id"`
	Question   string         `json:"question"`
	IsClosed   bool           `json:"is_closed"`
	TotalVotes int            `json:"total_votes"`
	Results    []OptionResult `json:"results"`
}

// Polls runs club votes.
type Polls struct {
	store PollStore
	newID func() string
	now   func() time.Time
}

// NewPolls creates the poll service.
func NewPolls(store PollStore) *Polls {
	return &Polls{
		store: store,
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// Create opens a poll with 2 to 10 options numbered from 1.
func (p *Polls) Create(ctx context.Context, question string, options []string, creator string) (*CreatedPoll, error) {
	if len(options) < minPollOptions {
		return nil, errorf("Un sondage doit avoir au moins 2 options.")
	}
	if len(options) > maxPollOptions {
		return nil, errorf("Un sondage ne peut pas avoir plus de 10 options.")
	}

	creatorID, err := p.store.MemberID(ctx, creator)
	if err != nil {
		return nil, err
	}

	poll := storage.Poll{
		ID:        p.newID(),
		Question:  question,
		CreatedBy: creatorID,
		CreatedAt: p.now(),
	}
	for i, label := range options {
		poll.Options = append(poll.Options, storage.PollOption{ID: strconv.Itoa(i + 1), Label: label})
	}

	if err := p.store.CreatePoll(ctx, poll); err != nil {
		return nil, err
	}
	return &CreatedPoll{ID: poll.ID, Question: poll.Question, Options: poll.Options}, nil
}

// find loads a poll by id, or the latest open poll when id is empty.
func (p *Polls) find(ctx context.Context, id string) (*storage.Poll, error) {
	if id != "" {
		return p.store.PollByID(ctx, id)
	}
	return p.store.LatestOpenPoll(ctx)
}

// Vote records a member's choice on a poll (latest open poll when pollID
// is empty). A second vote replaces the first.
func (p *Polls) Vote(ctx context.Context, pollID, optionID, member string) (string, error) {
	poll, err := p.find(ctx, pollID)
	if err != nil {
		return "", err
	}
	if poll == nil {
		return "", errorf("Sondage non trouve.")
	}
	return p.vote(ctx, poll, optionID, member)
}

func (p *Polls) vote(ctx context.Context, poll *storage.Poll, optionID, member string) (string, error) {
	if poll.IsClosed {
		return "", errorf("Ce sondage est clos.")
	}

	label, ok := poll.Option(optionID)
	if !ok {
		valid := make([]string, 0, len(poll.Options))
		for _, opt := range poll.Options {
			valid = append(valid, opt.ID+": "+opt.Label)
		}
		return "", errorf("Option invalide. Options disponibles : %s", strings.Join(valid, ", "))
	}

	memberID, err := p.store.MemberID(ctx, member)
	if err != nil {
		return "", err
	}

	changed, err := p.store.UpsertVote(ctx, poll.ID, memberID, optionID)
	if err != nil {
		return "", err
	}
	if changed {
		return fmt.Sprintf("%s a change son vote pour : %s", member, label), nil
	}
	return fmt.Sprintf("%s a vote pour : %s", member, label), nil
}

// VoteByLabel records a vote cast through a native WhatsApp poll, where
// the gateway reports the chosen labels. The first known label wins.
func (p *Polls) VoteByLabel(ctx context.Context, waMessageID string, labels []string, member string) (string, error) {
	poll, err := p.store.PollByWAMessageID(ctx, waMessageID)
	if err != nil {
		return "", err
	}
	if poll == nil {
		return "", errorf("Sondage non trouve pour ce message WhatsApp.")
	}
	if poll.IsClosed {
		return "", errorf("Ce sondage est clos.")
	}

	for _, label := range labels {
		if optionID, ok := poll.OptionByLabel(label); ok {
			return p.vote(ctx, poll, optionID, member)
		}
	}
	return "", errorf("Aucune option valide selectionnee.")
}

// Results tallies a poll (latest open poll when pollID is empty).
func (p *Polls) Results(ctx context.Context, pollID string) (*PollResults, error) {
	poll, err := p.find(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, errorf("Aucun sondage trouve.")
	}
	return p.tally(ctx, poll)
}

func (p *Polls) tally(ctx context.Context, poll *storage.Poll) (*PollResults, error) {
	counts, err := p.store.VoteCounts(ctx, poll.ID)
	if err != nil {
		return nil, err
	}

	results := &PollResults{
		PollID:   poll.ID,
		Question: poll.Question,
		IsClosed: poll.IsClosed,
		Results:  make([]OptionResult, 0, len(poll.Options)),
	}
	for _, opt := range poll.Options {
		n := counts[opt.ID]
		results.TotalVotes += n
		results.Results = append(results.Results, OptionResult{OptionID: opt.ID, Label: opt.Label, Votes: n})
	}

	sort.SliceStable(results.Results, func(i, j int) bool {
		return results.Results[i].Votes > results.Results[j].Votes
	})
	return results, nil
}

// Close ends a poll (latest open poll when pollID is empty) and returns
// its final tally.
func (p *Polls) Close(ctx context.Context, pollID string) (*PollResults, error) {
	poll, err := p.find(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll == nil {
		return nil, errorf("Aucun sondage trouve.")
	}
	if poll.IsClosed {
		return nil, errorf("Ce sondage est deja clos.")
	}

	closed, err := p.store.ClosePoll(ctx, poll.ID)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, errorf("Ce sondage est deja clos.")
	}

	poll.IsClosed = true
	return p.tally(ctx, poll)
}

// SetWAMessageID links a poll to the WhatsApp message that displays it.
func (p *Polls) SetWAMessageID(ctx context.Context, pollID, waMessageID string) error {
	ok, err := p.store.SetPollWAMessageID(ctx, pollID, waMessageID)
	if err != nil {
		return err
	}
	if !ok {
		return errorf("Sondage non trouve.")
	}
	return nil
}
