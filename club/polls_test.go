package club

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolls(t *testing.T) *Polls {
	t.Helper()
	polls := NewPolls(newTestStore(t))
	clock := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	polls.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return polls
}

func TestCreatePollOptionBounds(t *testing.T) {
	polls := newTestPolls(t)
	ctx := context.Background()

	_, err := polls.Create(ctx, "Film ?", []string{"Seul"}, "Alice")
	msg, _ := UserMessage(err)
	assert.Equal(t, "Un sondage doit avoir au moins 2 options.", msg)

	many := make([]string, 11)
	for i := range many {
		many[i] = fmt.Sprintf("Film %d", i)
	}
	_, err = polls.Create(ctx, "Film ?", many, "Alice")
	msg, _ = UserMessage(err)
	assert.Equal(t, "Un sondage ne peut pas avoir plus de 10 options.", msg)

	created, err := polls.Create(ctx, "Film ?", many[:10], "Alice")
	require.NoError(t, err)
	assert.Len(t, created.Options, 10)
	assert.Equal(t, "10", created.Options[9].ID)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Film 0", created.OptionMap()["1"])
	assert.Equal(t, many[:10], created.Labels())
}

func TestVoteOnLatestOpenPoll(t *testing.T) {
	polls := newTestPolls(t)
	ctx := context.Background()

	_, err := polls.Vote(ctx, "", "1", "Alice")
	msg, _ := UserMessage(err)
	assert.Equal(t, "Sondage non trouve.", msg)

	_, err = polls.Create(ctx, "Ancien ?", []string{"A", "B"}, "Alice")
	require.NoError(t, err)
	latest, err := polls.Create(ctx, "Samedi ?", []string{"Inception", "Parasite", "Heat"}, "Alice")
	require.NoError(t, err)

	msg, err = polls.Vote(ctx, "", "2", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob a vote pour : Parasite", msg)

	msg, err = polls.Vote(ctx, latest.ID, "3", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob a change son vote pour : Heat", msg)

	_, err = polls.Vote(ctx, "", "7", "Bob")
	msg, _ = UserMessage(err)
	assert.Equal(t, "Option invalide. Options disponibles : 1: Inception, 2: Parasite, 3: Heat", msg)
}

func TestResultsSortedByVotes(t *testing.T) {
	polls := newTestPolls(t)
	ctx := context.Background()

	created, err := polls.Create(ctx, "Samedi ?", []string{"Inception", "Parasite", "Heat"}, "Alice")
	require.NoError(t, err)

	for voter, option := range map[string]string{"Alice": "3", "Bob": "3", "Chloe": "1"} {
		_, err := polls.Vote(ctx, created.ID, option, voter)
		require.NoError(t, err)
	}

	results, err := polls.Results(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, results.PollID)
	assert.Equal(t, 3, results.TotalVotes)
	assert.False(t, results.IsClosed)
	require.Len(t, results.Results, 3)
	assert.Equal(t, OptionResult{OptionID: "3", Label: "Heat", Votes: 2}, results.Results[0])
	assert.Equal(t, "Inception", results.Results[1].Label)
	assert.Equal(t, 0, results.Results[2].Votes)
}

func TestClosePoll(t *testing.T) {
	polls := newTestPolls(t)
	ctx := context.Background()

	_, err := polls.Close(ctx, "")
	msg, _ := UserMessage(err)
	assert.Equal(t, "Aucun sondage trouve.", msg)

	created, err := polls.Create(ctx, "Samedi ?", []string{"A", "B"}, "Alice")
	require.NoError(t, err)

	results, err := polls.Close(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, results.IsClosed)

	_, err = polls.Close(ctx, created.ID)
	msg, _ = UserMessage(err)
	assert.Equal(t, "Ce sondage est deja clos.", msg)

	_, err = polls.Vote(ctx, created.ID, "1", "Bob")
	msg, _ = UserMessage(err)
	assert.Equal(t, "Ce sondage est clos.", msg)

	_, err = polls.Results(ctx, "")
	msg, _ = UserMessage(err)
	assert.Equal(t, "Aucun sondage trouve.", msg, "no open poll remains")
}

func TestVoteByLabel(t *testing.T) {
	polls := newTestPolls(t)
	ctx := context.Background()

	created, err := polls.Create(ctx, "Samedi ?", []string{"Inception", "Parasite"}, "Alice")
	require.NoError(t, err)

	err = polls.SetWAMessageID(ctx, "missing", "wamid.1")
	msg, _ := UserMessage(err)
	assert.Equal(t, "Sondage non trouve.", msg)

	require.NoError(t, polls.SetWAMessageID(ctx, created.ID, "wamid.1"))

	_, err = polls.VoteByLabel(ctx, "wamid.404", []string{"Inception"}, "Bob")
	msg, _ = UserMessage(err)
	assert.Equal(t, "Sondage non trouve pour ce message WhatsApp.", msg)

	_, err = polls.VoteByLabel(ctx, "wamid.1", []string{"Titanic"}, "Bob")
	msg, _ = UserMessage(err)
	assert.Equal(t, "Aucune option valide selectionnee.", msg)

	msg, err = polls.VoteByLabel(ctx, "wamid.1", []string{"Titanic", "Parasite", "Inception"}, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob a vote pour : Parasite", msg)
}
