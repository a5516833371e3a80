package club

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haga4000/Regelebot/llm"
)

type watchedIDs map[int]bool

func (w watchedIDs) WatchedTMDbIDs(context.Context) (map[int]bool, error) {
	return w, nil
}

type scriptedText struct {
	answer  string
	err     error
	prompts []string
}

func (s *scriptedText) GenerateText(_ context.Context, _, prompt string, _ llm.GenerateOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

func movieList(ids ...int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf(`{"id":%d,"title":"Film %d","release_date":"2001-01-01","vote_average":7,"overview":"%s"}`,
			id, id, strings.Repeat("x", 250)))
	}
	return `{"results":[` + strings.Join(parts, ",") + `]}`
}

func TestRecommendSimilarFiltersWatchedAndDuplicates(t *testing.T) {
	_, client := newFakeTMDb(t, map[string]string{
		"/search/movie":        `{"results":[{"id":27205,"title":"Inception"}]}`,
		"/movie/27205/similar": movieList(1, 2, 2, 3, 4, 5, 6, 7, 8),
	})
	rec := NewRecommender(client, watchedIDs{3: true}, nil, nil)

	got, err := rec.Recommend(context.Background(), RecommendationRequest{
		Type:      RecommendSimilar,
		Reference: "Inception",
		Exclude:   []string{"film 5"},
	})
	require.NoError(t, err)

	titles := make([]string, 0, len(got.Recommendations))
	for _, m := range got.Recommendations {
		titles = append(titles, m.Title)
	}
	assert.Equal(t, []string{"Film 1", "Film 2", "Film 4", "Film 6", "Film 7"}, titles)
	assert.Equal(t, "similar", got.Type)
	assert.Equal(t, "Inception", got.Criteria)
	assert.True(t, strings.HasSuffix(got.Recommendations[0].Overview, "..."))
	assert.Len(t, []rune(got.Recommendations[0].Overview), 203)
}

func TestRecommendGenreUsesAcclaimedDiscover(t *testing.T) {
	fake, client := newFakeTMDb(t, map[string]string{"/discover/movie": movieList(10, 11)})
	rec := NewRecommender(client, watchedIDs{}, nil, nil)

	got, err := rec.Recommend(context.Background(), RecommendationRequest{Type: RecommendGenre, Genre: "Horreur"})
	require.NoError(t, err)
	assert.Len(t, got.Recommendations, 2)
	assert.Equal(t, "Horreur", got.Criteria)

	q := fake.last("/discover/movie")
	assert.Equal(t, "27", q.Get("with_genres"))
	assert.Equal(t, "vote_average.desc", q.Get("sort_by"))
	assert.Equal(t, "500", q.Get("vote_count.gte"))
}

func TestRecommendUnknownGenreIsEmpty(t *testing.T) {
	fake, client := newFakeTMDb(t, map[string]string{})
	rec := NewRecommender(client, watchedIDs{}, nil, nil)

	got, err := rec.Recommend(context.Background(), RecommendationRequest{Type: RecommendGenre, Genre: "western"})
	require.NoError(t, err)
	assert.Empty(t, got.Recommendations)
	assert.NotNil(t, got.Recommendations)
	assert.Equal(t, 0, fake.calls("/discover/movie"))
}

func TestRecommendMoodUsesTwoGenres(t *testing.T) {
	fake, client := newFakeTMDb(t, map[string]string{"/discover/movie": movieList(20)})
	text := &scriptedText{answer: "27, 53, 18"}
	rec := NewRecommender(client, watchedIDs{}, text, nil)

	got, err := rec.Recommend(context.Background(), RecommendationRequest{Type: RecommendMood, Mood: "sombre"})
	require.NoError(t, err)

	assert.Equal(t, 2, fake.calls("/discover/movie"))
	assert.Len(t, got.Recommendations, 1, "same film from both genres counted once")
	require.Len(t, text.prompts, 1)
	assert.Contains(t, text.prompts[0], `Mood: "sombre"`)
}

func TestRecommendMoodFallsBackToComedy(t *testing.T) {
	for name, text := range map[string]*scriptedText{
		"backend error": {err: errors.New("boom")},
		"prose answer":  {answer: "Je dirais une comedie"},
	} {
		t.Run(name, func(t *testing.T) {
			fake, client := newFakeTMDb(t, map[string]string{"/discover/movie": movieList(30)})
			rec := NewRecommender(client, watchedIDs{}, text, nil)

			_, err := rec.Recommend(context.Background(), RecommendationRequest{Type: RecommendMood, Mood: "leger"})
			require.NoError(t, err)
			assert.Equal(t, "35", fake.last("/discover/movie").Get("with_genres"))
		})
	}
}

func TestRecommendSimilarUnknownReference(t *testing.T) {
	_, client := newFakeTMDb(t, map[string]string{"/search/movie": `{"results":[]}`})
	rec := NewRecommender(client, watchedIDs{}, nil, nil)

	got, err := rec.Recommend(context.Background(), RecommendationRequest{Type: RecommendSimilar, Reference: "???"})
	require.NoError(t, err)
	assert.Empty(t, got.Recommendations)
}
