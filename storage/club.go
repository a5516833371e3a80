package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Movie is a film known to the club, keyed by its TMDb id.
type Movie struct {
	ID            int64
	TMDbID        int
	Title         string
	OriginalTitle string
	Year          int
	Genres        []string
}

// WatchedMovie is one watchlist row joined with its average rating.
type WatchedMovie struct {
	Title     string
	Year      int
	TMDbID    int
	WatchedAt time.Time
	// AvgRating is nil until a member rates the film.
	AvgRating *float64
}

// ClubSummary aggregates the watchlist for statistics.
type ClubSummary struct {
	TotalMovies int
	AvgRating   *float64
	// Genres holds the genre list of every watched film.
	Genres [][]string
}

const watchedDateLayout = "2006-01-02"

// MemberID returns the id of the member with the given display name,
// creating the member on first use.
func (s *SqliteStorage) MemberID(ctx context.Context, displayName string) (int64, error) {
	handle := strings.ReplaceAll(strings.ToLower(displayName), " ", "_")

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO members (phone_hash, display_name, created_at) VALUES (?, ?, ?)",
		handle, displayName, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to ensure member: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM members WHERE phone_hash = ?", handle).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to load member: %w", err)
	}
	return id, nil
}

// MovieByTMDbID returns the stored movie, or nil, nil if unknown.
func (s *SqliteStorage) MovieByTMDbID(ctx context.Context, tmdbID int) (*Movie, error) {
	return s.queryMovie(ctx, "WHERE tmdb_id = ?", tmdbID)
}

// FindMovieByTitle returns the first movie whose title contains fragment
// (case-insensitive), or nil, nil if none does.
func (s *SqliteStorage) FindMovieByTitle(ctx context.Context, fragment string) (*Movie, error) {
	return s.queryMovie(ctx, "WHERE title LIKE ? ESCAPE '\\' ORDER BY id LIMIT 1", "%"+escapeLike(fragment)+"%")
}

func (s *SqliteStorage) queryMovie(ctx context.Context, where string, args ...interface{}) (*Movie, error) {
	var (
		movie    Movie
		original sql.NullString
		year     sql.NullInt64
		genres   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, tmdb_id, title, original_title, year, genres FROM movies "+where,
		args...).Scan(&movie.ID, &movie.TMDbID, &movie.Title, &original, &year, &genres)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}

	movie.OriginalTitle = original.String
	movie.Year = int(year.Int64)
	if err := json.Unmarshal([]byte(genres), &movie.Genres); err != nil {
		return nil, fmt.Errorf("invalid genres for movie %d: %w", movie.TMDbID, err)
	}
	return &movie, nil
}

// CreateMovie inserts a movie and returns it with its id set. An existing
// row with the same TMDb id is returned unchanged.
func (s *SqliteStorage) CreateMovie(ctx context.Context, movie Movie) (*Movie, error) {
	genres := movie.Genres
	if genres == nil {
		genres = []string{}
	}
	encoded, err := json.Marshal(genres)
	if err != nil {
		return nil, fmt.Errorf("failed to encode genres: %w", err)
	}

	var original, year interface{}
	if movie.OriginalTitle != "" {
		original = movie.OriginalTitle
	}
	if movie.Year > 0 {
		year = movie.Year
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO movies (tmdb_id, title, original_title, year, genres, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		movie.TMDbID, movie.Title, original, year, string(encoded), time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create movie: %w", err)
	}

	return s.MovieByTMDbID(ctx, movie.TMDbID)
}

// AddToWatchlist records the movie as watched on the given day. Returns
// false when it was already in the watchlist.
func (s *SqliteStorage) AddToWatchlist(ctx context.Context, movieID int64, watchedAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO watchlist (movie_id, watched_at, created_at) VALUES (?, ?, ?)",
		movieID, watchedAt.Format(watchedDateLayout), time.Now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to add to watchlist: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist insert: %w", err)
	}
	return n > 0, nil
}

// WatchlistID returns the watchlist entry of a movie, or 0, false if the
// club has not watched it.
func (s *SqliteStorage) WatchlistID(ctx context.Context, movieID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM watchlist WHERE movie_id = ?", movieID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get watchlist entry: %w", err)
	}
	return id, true, nil
}

// UpsertRating sets a member's score for a watchlist entry. Returns true
// when an earlier score was replaced.
func (s *SqliteStorage) UpsertRating(ctx context.Context, watchlistID, memberID int64, score int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	var existing int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM ratings WHERE watchlist_id = ? AND member_id = ?",
		watchlistID, memberID).Scan(&existing)

	updated := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO ratings (watchlist_id, member_id, score, created_at) VALUES (?, ?, ?, ?)",
			watchlistID, memberID, score, time.Now().Unix())
	case err == nil:
		updated = true
		_, err = tx.ExecContext(ctx, "UPDATE ratings SET score = ? WHERE id = ?", score, existing)
	}
	if err != nil {
		return false, fmt.Errorf("failed to save rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// WatchHistory returns the latest watched movies, newest first.
func (s *SqliteStorage) WatchHistory(ctx context.Context, limit int) ([]WatchedMovie, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.title, m.year, m.tmdb_id, w.watched_at, AVG(r.score)
		FROM watchlist w
		JOIN movies m ON m.id = w.movie_id
		LEFT JOIN ratings r ON r.watchlist_id = w.id
		GROUP BY w.id
		ORDER BY w.watched_at DESC, w.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	movies := []WatchedMovie{} // Start with empty slice, not nil
	for rows.Next() {
		var (
			movie     WatchedMovie
			year      sql.NullInt64
			watchedAt string
			avg       sql.NullFloat64
		)
		if err := rows.Scan(&movie.Title, &year, &movie.TMDbID, &watchedAt, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		movie.Year = int(year.Int64)
		movie.WatchedAt, err = time.Parse(watchedDateLayout, watchedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid watched_at %q: %w", watchedAt, err)
		}
		if avg.Valid {
			v := avg.Float64
			movie.AvgRating = &v
		}
		movies = append(movies, movie)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return movies, nil
}

// WatchedTMDbIDs returns the TMDb ids of every watched movie.
func (s *SqliteStorage) WatchedTMDbIDs(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT m.tmdb_id FROM watchlist w JOIN movies m ON m.id = w.movie_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query watched ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan watched id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watched ids: %w", err)
	}
	return ids, nil
}

// Summary aggregates the watchlist and ratings tables.
func (s *SqliteStorage) Summary(ctx context.Context) (ClubSummary, error) {
	var summary ClubSummary

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM watchlist").Scan(&summary.TotalMovies)
	if err != nil {
		return ClubSummary{}, fmt.Errorf("failed to count watchlist: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, "SELECT AVG(score) FROM ratings").Scan(&avg); err != nil {
		return ClubSummary{}, fmt.Errorf("failed to average ratings: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		summary.AvgRating = &v
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT m.genres FROM watchlist w JOIN movies m ON m.id = w.movie_id ORDER BY w.id")
	if err != nil {
		return ClubSummary{}, fmt.Errorf("failed to query genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return ClubSummary{}, fmt.Errorf("failed to scan genres: %w", err)
		}
		var genres []string
		if err := json.Unmarshal([]byte(raw), &genres); err != nil {
			continue
		}
		summary.Genres = append(summary.Genres, genres)
	}
	if err := rows.Err(); err != nil {
		return ClubSummary{}, fmt.Errorf("error iterating genres: %w", err)
	}

	return summary, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
