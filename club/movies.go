package club

import (
	"context"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// MovieDetails is the full card of a film.
type MovieDetails struct {
	TMDbID        int64    `json:"tmdb_id"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title"`
	Year          string   `json:"year"`
	Runtime       int      `json:"runtime"`
	Genres        []string `json:"genres"`
	Overview      string   `json:"overview"`
	VoteAverage   float64  `json:"vote_average"`
	VoteCount     int      `json:"vote_count"`
	Director      string   `json:"director"`
	Cast          []string `json:"cast"`
	Trailer       string   `json:"trailer,omitempty"`
	Streaming     []string `json:"streaming"`
	Poster        string   `json:"poster,omitempty"`
}

// MovieSummary is a list entry (now playing, discover, trending).
type MovieSummary struct {
	TMDbID      int64   `json:"-"`
	Title       string  `json:"title"`
	Year        string  `json:"year"`
	VoteAverage float64 `json:"vote_average"`
	Overview    string  `json:"overview"`
}

// DiscoverFilter narrows /discover. Zero values mean "no filter".
type DiscoverFilter struct {
	Genre     string
	YearMin   int
	YearMax   int
	Platform  string
	SortBy    string
	MinRating *float64
	Language  string
}

const (
	listSize         = 10
	listOverviewMax  = 150
	defaultSortBy    = "popularity.desc"
	defaultMinVotes  = 50
	ratedMinVotes    = 200
	trendingDay      = "day"
	trendingWeek     = "week"
	directorJob      = "Director"
	unknownDirector  = "Inconnu"
	topBilledCastLen = 5
)

// Movies answers catalog questions from TMDb.
type Movies struct {
	tmdb *TMDb
}

// NewMovies creates the catalog service.
func NewMovies(tmdb *TMDb) *Movies {
	return &Movies{tmdb: tmdb}
}

// Search finds the best match for a title and returns its full card.
func (m *Movies) Search(ctx context.Context, query string, year int) (*MovieDetails, error) {
	first, ok, err := m.tmdb.SearchFirst(ctx, query, year)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorf("Aucun film trouve pour '%s'", query)
	}

	data, err := m.tmdb.Details(ctx, first.Get("id").Int(), "credits", "videos", "watch/providers")
	if err != nil {
		return nil, err
	}
	return parseDetails(data), nil
}

func parseDetails(data gjson.Result) *MovieDetails {
	details := &MovieDetails{
		TMDbID:        data.Get("id").Int(),
		Title:         data.Get("title").String(),
		OriginalTitle: data.Get("original_title").String(),
		Year:          releaseYear(data),
		Runtime:       int(data.Get("runtime").Int()),
		Genres:        stringsAt(data, "genres.#.name"),
		Overview:      data.Get("overview").String(),
		VoteAverage:   data.Get("vote_average").Float(),
		VoteCount:     int(data.Get("vote_count").Int()),
		Director:      unknownDirector,
		Cast:          []string{},
		Streaming:     stringsAt(data, "watch/providers.results.FR.flatrate.#.provider_name"),
	}

	for _, crew := range data.Get("credits.crew").Array() {
		if crew.Get("job").String() == directorJob {
			details.Director = crew.Get("name").String()
			break
		}
	}

	for _, actor := range data.Get("credits.cast").Array() {
		if len(details.Cast) == topBilledCastLen {
			break
		}
		details.Cast = append(details.Cast, actor.Get("name").String())
	}

	for _, video := range data.Get("videos.results").Array() {
		if video.Get("type").String() == "Trailer" && video.Get("site").String() == "YouTube" {
			details.Trailer = "https://youtu.be/" + video.Get("key").String()
			break
		}
	}

	if poster := data.Get("poster_path").String(); poster != "" {
		details.Poster = posterBaseURL + poster
	}

	return details
}

// NowPlaying lists up to ten films currently in French theaters.
func (m *Movies) NowPlaying(ctx context.Context) ([]MovieSummary, error) {
	results, err := m.tmdb.NowPlaying(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errorf("Aucun film a l'affiche trouve")
	}
	return summarize(results, listSize, listOverviewMax), nil
}

// Discover lists up to ten films matching the filter.
func (m *Movies) Discover(ctx context.Context, f DiscoverFilter) ([]MovieSummary, error) {
	results, err := m.tmdb.Discover(ctx, f.params())
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errorf("Aucun film trouve avec ces criteres")
	}
	return summarize(results, listSize, listOverviewMax), nil
}

func (f DiscoverFilter) params() url.Values {
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = defaultSortBy
	}

	params := url.Values{
		"sort_by":        {sortBy},
		"vote_count.gte": {strconv.Itoa(defaultMinVotes)},
	}

	if f.Genre != "" {
		if id, ok := GenreID(f.Genre); ok {
			params.Set("with_genres", strconv.Itoa(id))
		}
	}
	if f.YearMin > 0 {
		params.Set("primary_release_date.gte", strconv.Itoa(f.YearMin)+"-01-01")
	}
	if f.YearMax > 0 {
		params.Set("primary_release_date.lte", strconv.Itoa(f.YearMax)+"-12-31")
	}
	if f.Platform != "" {
		if id, ok := ProviderID(f.Platform); ok {
			params.Set("with_watch_providers", strconv.Itoa(id))
			params.Set("watch_region", tmdbRegion)
		}
	}
	if f.MinRating != nil {
		params.Set("vote_average.gte", strconv.FormatFloat(*f.MinRating, 'f', -1, 64))
		params.Set("vote_count.gte", strconv.Itoa(ratedMinVotes))
	}
	if f.Language != "" {
		params.Set("with_original_language", f.Language)
	}
	return params
}

// Trending lists up to ten trending films. Any window other than "day"
// falls back to "week"; the window actually used is returned.
func (m *Movies) Trending(ctx context.Context, window string) ([]MovieSummary, string, error) {
	if window != trendingDay {
		window = trendingWeek
	}

	results, err := m.tmdb.Trending(ctx, window)
	if err != nil {
		return nil, window, err
	}
	if len(results) == 0 {
		return nil, window, errorf("Aucun film tendance trouve")
	}
	return summarize(results, listSize, listOverviewMax), window, nil
}

func summarize(results []gjson.Result, limit, overviewMax int) []MovieSummary {
	if len(results) > limit {
		results = results[:limit]
	}
	movies := make([]MovieSummary, 0, len(results))
	for _, r := range results {
		movies = append(movies, summaryOf(r, overviewMax))
	}
	return movies
}

func summaryOf(r gjson.Result, overviewMax int) MovieSummary {
	return MovieSummary{
		TMDbID:      r.Get("id").Int(),
		Title:       r.Get("title").String(),
		Year:        releaseYear(r),
		VoteAverage: r.Get("vote_average").Float(),
		Overview:    shorten(r.Get("overview").String(), overviewMax),
	}
}

func releaseYear(r gjson.Result) string {
	date := r.Get("release_date").String()
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func stringsAt(r gjson.Result, path string) []string {
	out := []string{}
	for _, v := range r.Get(path).Array() {
		out = append(out, v.String())
	}
	return out
}

// shorten cuts s to at most max runes, ending with "..." when cut.
func shorten(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
