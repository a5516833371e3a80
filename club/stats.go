package club

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/Haga4000/Regelebot/storage"
)

// StatsStore is the persistence the statistics service relies on.
type StatsStore interface {
	WatchHistory(ctx context.Context, limit int) ([]storage.WatchedMovie, error)
	Summary(ctx context.Context) (storage.ClubSummary, error)
	MovieByTMDbID(ctx context.Context, tmdbID int) (*storage.Movie, error)
	CreateMovie(ctx context.Context, movie storage.Movie) (*storage.Movie, error)
	FindMovieByTitle(ctx context.Context, fragment string) (*storage.Movie, error)
	AddToWatchlist(ctx context.Context, movieID int64, watchedAt time.Time) (bool, error)
	WatchlistID(ctx context.Context, movieID int64) (int64, bool, error)
	MemberID(ctx context.Context, displayName string) (int64, error)
	UpsertRating(ctx context.Context, watchlistID, memberID int64, score int) (bool, error)
}

// HistoryItem is one watched film as reported to members.
type HistoryItem struct {
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	WatchedAt string   `json:"watched_at"`
	AvgRating *float64 `json:"avg_rating"`
	TMDbID    int      `json:"tmdb_id"`
}

// ClubStats aggregates the club's activity.
type ClubStats struct {
	TotalMovies int      `json:"total_movies"`
	AvgRating   float64  `json:"avg_rating"`
	TopGenres   []string `json:"top_genres"`
}

const (
	// DefaultHistoryLimit is used when no limit is requested.
	DefaultHistoryLimit = 10
	topGenresLen        = 5
	noGenres            = "Aucun genre enregistre"
	minScore            = 1
	maxScore            = 5
)

// Stats tracks what the club watched and how members rated it.
type Stats struct {
	store StatsStore
	tmdb  *TMDb
	now   func() time.Time
}

// NewStats creates the statistics service.
func NewStats(store StatsStore, tmdb *TMDb) *Stats {
	return &Stats{store: store, tmdb: tmdb, now: time.Now}
}

// History lists the latest watched films, newest first.
func (s *Stats) History(ctx context.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	movies, err := s.store.WatchHistory(ctx, limit)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(movies))
	for _, m := range movies {
		item := HistoryItem{
			Title:     m.Title,
			Year:      m.Year,
			WatchedAt: m.WatchedAt.Format("2006-01-02"),
			TMDbID:    m.TMDbID,
		}
		if m.AvgRating != nil {
			avg := round1(*m.AvgRating)
			item.AvgRating = &avg
		}
		items = append(items, item)
	}
	return items, nil
}

// Stats returns totals, the average score and the five favorite genres.
func (s *Stats) Stats(ctx context.Context) (*ClubStats, error) {
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return nil, err
	}

	stats := &ClubStats{
		TotalMovies: summary.TotalMovies,
		TopGenres:   topGenres(summary.Genres, topGenresLen),
	}
	if summary.AvgRating != nil {
		stats.AvgRating = round1(*summary.AvgRating)
	}
	if len(stats.TopGenres) == 0 {
		stats.TopGenres = []string{noGenres}
	}
	return stats, nil
}

// topGenres ranks genres by frequency; ties keep first-seen order.
func topGenres(lists [][]string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, genres := range lists {
		for _, g := range genres {
			if counts[g] == 0 {
				order = append(order, g)
			}
			counts[g]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// MarkWatched adds a film to the club history, looking it up on TMDb.
func (s *Stats) MarkWatched(ctx context.Context, title string) (string, error) {
	first, ok, err := s.tmdb.SearchFirst(ctx, title, 0)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errorf("Film '%s' non trouve sur TMDb", title)
	}

	tmdbID := int(first.Get("id").Int())
	movie, err := s.store.MovieByTMDbID(ctx, tmdbID)
	if err != nil {
		return "", err
	}

	if movie == nil {
		details, err := s.tmdb.Details(ctx, int64(tmdbID))
		if err != nil {
			return "", err
		}

		name := first.Get("title").String()
		if name == "" {
			name = title
		}
		year, _ := strconv.Atoi(releaseYear(first))

		movie, err = s.store.CreateMovie(ctx, storage.Movie{
			TMDbID:        tmdbID,
			Title:         name,
			OriginalTitle: first.Get("original_title").String(),
			Year:          year,
			Genres:        stringsAt(details, "genres.#.name"),
		})
		if err != nil {
			return "", err
		}
	}

	added, err := s.store.AddToWatchlist(ctx, movie.ID, s.now())
	if err != nil {
		return "", err
	}
	if !added {
		return fmt.Sprintf("'%s' etait deja dans l'historique", movie.Title), nil
	}
	return fmt.Sprintf("'%s' marque comme vu !", movie.Title), nil
}

// Rate records a member's 1-5 score for a watched film.
func (s *Stats) Rate(ctx context.Context, title string, score int, member string) (string, error) {
	if score < minScore || score > maxScore {
		return "", errorf("La note doit etre entre 1 et 5")
	}

	movie, err := s.store.FindMovieByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	if movie == nil {
		return "", errorf("Film '%s' non trouve. Utilisez /vu d'abord.", title)
	}

	watchID, ok, err := s.store.WatchlistID(ctx, movie.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errorf("'%s' n'est pas dans l'historique du club", movie.Title)
	}

	memberID, err := s.store.MemberID(ctx, member)
	if err != nil {
		return "", err
	}

	updated, err := s.store.UpsertRating(ctx, watchID, memberID, score)
	if err != nil {
		return "", err
	}
	if updated {
		return fmt.Sprintf("Note mise a jour : %s a donne %d/5 a '%s'", member, score, movie.Title), nil
	}
	return fmt.Sprintf("%s a note '%s' %d/5", member, movie.Title, score), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
