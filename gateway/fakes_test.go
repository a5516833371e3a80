package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Haga4000/Regelebot/agent"
	"github.com/Haga4000/Regelebot/club"
	"github.com/Haga4000/Regelebot/storage"
)

type fakeResponder struct {
	mu    sync.Mutex
	reply string
	turns []agent.Turn
}

func (f *fakeResponder) Process(_ context.Context, turn agent.Turn) agent.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	return agent.Response{Outcome: agent.OutcomeAnswer, Text: f.reply}
}

func (f *fakeResponder) calls() []agent.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agent.Turn(nil), f.turns...)
}

type fakeMovies struct {
	details *club.MovieDetails
	err     error
}

func (f *fakeMovies) Search(_ context.Context, query string, _ int) (*club.MovieDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.details == nil {
		return nil, &club.Error{Msg: fmt.Sprintf("Film '%s' non trouve.", query)}
	}
	return f.details, nil
}

type fakeStats struct {
	history []club.HistoryItem
	stats   club.ClubStats
	rated   []string
	err     error
}

func (f *fakeStats) History(context.Context, int) ([]club.HistoryItem, error) {
	return f.history, f.err
}

func (f *fakeStats) Stats(context.Context) (*club.ClubStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.stats, nil
}

func (f *fakeStats) MarkWatched(_ context.Context, title string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("'%s' ajoute a l'historique du club !", title), nil
}

func (f *fakeStats) Rate(_ context.Context, title string, score int, member string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rated = append(f.rated, fmt.Sprintf("%s:%s:%d", member, title, score))
	return fmt.Sprintf("%s a donne %d/5 a '%s'", member, score, title), nil
}

var errBoom = errors.New("boom")

func newTestPolls(t *testing.T) *club.Polls {
	t.Helper()
	store, err := storage.NewSqliteInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return club.NewPolls(store)
}
