package club

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Haga4000/Regelebot/internal/json"
	"github.com/Haga4000/Regelebot/llm"
)

// Recommendation kinds accepted by Recommend.
const (
	RecommendSimilar = "similar"
	RecommendGenre   = "genre"
	RecommendMood    = "mood"
)

const (
	maxRecommendations  = 5
	recOverviewMax      = 203
	moodGenresUsed      = 2
	acclaimedMinVotes   = 500
	acclaimedSortOrder  = "vote_average.desc"
	moodPromptMaxTokens = 32
)

const moodPrompt = `Map this movie mood to TMDb genre IDs.
Mood: "%s"
Available genres: Action(28), Comedy(35), Drama(18), Horror(27),
Romance(10749), Thriller(53), SciFi(878), Animation(16), Adventure(12)

Return ONLY comma-separated genre IDs. Example: 35,10749`

// TextGenerator is the slice of llm.Client the recommender needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, prompt string, opts llm.GenerateOptions) (string, error)
}

// WatchedStore reports which TMDb ids the club has already seen.
type WatchedStore interface {
	WatchedTMDbIDs(ctx context.Context) (map[int]bool, error)
}

// RecommendationRequest describes what the member asked for.
type RecommendationRequest struct {
	Type      string
	Reference string
	Genre     string
	Mood      string
	// Exclude lists titles already discussed, matched case-insensitively.
	Exclude []string
}

// Recommendations is the answer to a RecommendationRequest.
type Recommendations struct {
	Recommendations []MovieSummary `json:"recommendations"`
	Type            string         `json:"type"`
	Criteria        string         `json:"criteria"`
}

// Recommender suggests films the club has not watched yet.
type Recommender struct {
	tmdb   *TMDb
	store  WatchedStore
	text   TextGenerator
	logger *slog.Logger
}

// NewRecommender creates a recommender. A nil logger discards output.
func NewRecommender(tmdb *TMDb, store WatchedStore, text TextGenerator, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recommender{tmdb: tmdb, store: store, text: text, logger: logger}
}

// Recommend returns up to five unseen films for the request.
func (r *Recommender) Recommend(ctx context.Context, req RecommendationRequest) (*Recommendations, error) {
	watched, err := r.store.WatchedTMDbIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load watched movies: %w", err)
	}

	candidates, err := r.candidates(ctx, req)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(req.Exclude))
	for _, title := range req.Exclude {
		excluded[strings.ToLower(title)] = true
	}

	seen := make(map[int64]bool)
	results := []MovieSummary{}
	for _, c := range candidates {
		id := c.Get("id").Int()
		if watched[int(id)] || seen[id] || excluded[strings.ToLower(c.Get("title").String())] {
			continue
		}
		seen[id] = true
		results = append(results, summaryOf(c, recOverviewMax))
		if len(results) == maxRecommendations {
			break
		}
	}

	return &Recommendations{
		Recommendations: results,
		Type:            req.Type,
		Criteria:        firstNonEmpty(req.Reference, req.Genre, req.Mood),
	}, nil
}

func (r *Recommender) candidates(ctx context.Context, req RecommendationRequest) ([]gjson.Result, error) {
	switch {
	case req.Type == RecommendSimilar && req.Reference != "":
		first, ok, err := r.tmdb.SearchFirst(ctx, req.Reference, 0)
		if err != nil || !ok {
			return nil, err
		}
		return r.tmdb.Similar(ctx, first.Get("id").Int())

	case req.Type == RecommendGenre && req.Genre != "":
		id, ok := GenreID(req.Genre)
		if !ok {
			return nil, nil
		}
		return r.acclaimed(ctx, id)

	case req.Type == RecommendMood && req.Mood != "":
		var all []gjson.Result
		genres := r.moodGenres(ctx, req.Mood)
		if len(genres) > moodGenresUsed {
			genres = genres[:moodGenresUsed]
		}
		for _, id := range genres {
			batch, err := r.acclaimed(ctx, id)
			if err != nil {
				return nil, err
			}
			all = append(all, batch...)
		}
		return all, nil
	}
	return nil, nil
}

func (r *Recommender) acclaimed(ctx context.Context, genreID int) ([]gjson.Result, error) {
	return r.tmdb.Discover(ctx, url.Values{
		"with_genres":    {strconv.Itoa(genreID)},
		"sort_by":        {acclaimedSortOrder},
		"vote_count.gte": {strconv.Itoa(acclaimedMinVotes)},
	})
}

// moodGenres asks the model to classify a mood, falling back to comedy.
func (r *Recommender) moodGenres(ctx context.Context, mood string) []int {
	if r.text == nil {
		return []int{comedyGenreID}
	}

	answer, err := r.text.GenerateText(ctx, "", fmt.Sprintf(moodPrompt, mood),
		llm.GenerateOptions{MaxTokens: moodPromptMaxTokens}.WithTemperature(0))
	if err != nil {
		r.logger.Warn("mood classification failed", "mood", mood, "error", err)
		return []int{comedyGenreID}
	}

	ids, err := json.ExtractIntList(answer)
	if err != nil || len(ids) == 0 {
		r.logger.Debug("unreadable mood classification", "mood", mood, "answer", answer)
		return []int{comedyGenreID}
	}
	return ids
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
