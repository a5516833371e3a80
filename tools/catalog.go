package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Haga4000/Regelebot/club"
	"github.com/Haga4000/Regelebot/llm"
)

// MovieService answers catalog questions.
type MovieService interface {
	Search(ctx context.Context, query string, year int) (*club.MovieDetails, error)
	NowPlaying(ctx context.Context) ([]club.MovieSummary, error)
	Discover(ctx context.Context, f club.DiscoverFilter) ([]club.MovieSummary, error)
	Trending(ctx context.Context, window string) ([]club.MovieSummary, string, error)
}

// Recommender suggests films the club has not seen.
type Recommender interface {
	Recommend(ctx context.Context, req club.RecommendationRequest) (*club.Recommendations, error)
}

// StatsService tracks the club's watch history and ratings.
type StatsService interface {
	History(ctx context.Context, limit int) ([]club.HistoryItem, error)
	Stats(ctx context.Context) (*club.ClubStats, error)
	MarkWatched(ctx context.Context, title string) (string, error)
	Rate(ctx context.Context, title string, score int, member string) (string, error)
}

// PollService runs club votes.
type PollService interface {
	Create(ctx context.Context, question string, options []string, creator string) (*club.CreatedPoll, error)
	Vote(ctx context.Context, pollID, optionID, member string) (string, error)
	Results(ctx context.Context, pollID string) (*club.PollResults, error)
	Close(ctx context.Context, pollID string) (*club.PollResults, error)
}

// Services are the collaborators the catalog binds tools to.
type Services struct {
	Movies      MovieService
	Recommender Recommender
	Stats       StatsService
	Polls       PollService
}

// Tool names, in the order they are offered to the model.
const (
	MovieSearch        = "movie_search"
	GetRecommendations = "get_recommendations"
	GetClubHistory     = "get_club_history"
	GetClubStats       = "get_club_stats"
	MarkAsWatched      = "mark_as_watched"
	RateMovie          = "rate_movie"
	CreatePoll         = "create_poll"
	VoteOnPoll         = "vote_on_poll"
	GetPollResults     = "get_poll_results"
	ClosePoll          = "close_poll"
	GetNowPlaying      = "get_now_playing"
	DiscoverMovies     = "discover_movies"
	GetTrending        = "get_trending"
)

// NewCatalog returns a registry holding every club tool bound to svc.
func NewCatalog(svc Services) (*Registry, error) {
	reg := NewRegistry()
	for _, tool := range catalog(svc) {
		if err := reg.Register(tool); err != nil {
			return nil, fmt.Errorf("failed to register catalog: %w", err)
		}
	}
	return reg, nil
}

func catalog(svc Services) []Tool {
	return []Tool{
		Func{Def: movieSearchDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			query, err := args.String("query")
			if err != nil {
				return nil, err
			}
			year, err := args.OptInt("year", 0)
			if err != nil {
				return nil, err
			}
			details, err := svc.Movies.Search(ctx, query, year)
			if err != nil {
				return nil, err
			}
			return structResult(details)
		}},

		Func{Def: recommendationsDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			recType, err := args.String("rec_type")
			if err != nil {
				return nil, err
			}
			switch recType {
			case club.RecommendSimilar, club.RecommendGenre, club.RecommendMood:
			default:
				return nil, &ArgError{Name: "rec_type", Reason: fmt.Sprintf("unsupported value %q", recType)}
			}
			req := club.RecommendationRequest{Type: recType, Exclude: ExcludedTitles(ctx)}
			if req.Reference, err = args.OptString("reference"); err != nil {
				return nil, err
			}
			if req.Genre, err = args.OptString("genre"); err != nil {
				return nil, err
			}
			if req.Mood, err = args.OptString("mood"); err != nil {
				return nil, err
			}
			recs, err := svc.Recommender.Recommend(ctx, req)
			if err != nil {
				return nil, err
			}
			return structResult(recs)
		}},

		Func{Def: clubHistoryDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			limit, err := args.OptInt("limit", club.DefaultHistoryLimit)
			if err != nil {
				return nil, err
			}
			history, err := svc.Stats.History(ctx, limit)
			if err != nil {
				return nil, err
			}
			return Result{"history": history}, nil
		}},

		Func{Def: clubStatsDef, Fn: func(ctx context.Context, _ Args) (Result, error) {
			stats, err := svc.Stats.Stats(ctx)
			if err != nil {
				return nil, err
			}
			return structResult(stats)
		}},

		Func{Def: markAsWatchedDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			title, err := args.String("movie_title")
			if err != nil {
				return nil, err
			}
			return success(svc.Stats.MarkWatched(ctx, title))
		}},

		Func{Def: rateMovieDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			title, err := args.String("movie_title")
			if err != nil {
				return nil, err
			}
			score, err := args.Int("score")
			if err != nil {
				return nil, err
			}
			member, err := args.String("member_name")
			if err != nil {
				return nil, err
			}
			return success(svc.Stats.Rate(ctx, title, score, member))
		}},

		Func{Def: createPollDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			question, err := args.String("question")
			if err != nil {
				return nil, err
			}
			options, err := args.StringList("options")
			if err != nil {
				return nil, err
			}
			member, err := args.String("member_name")
			if err != nil {
				return nil, err
			}
			poll, err := svc.Polls.Create(ctx, question, options, member)
			if err != nil {
				return nil, err
			}
			return Result{
				"success":  true,
				"poll_id":  poll.ID,
				"question": poll.Question,
				"options":  poll.OptionMap(),
				"message":  fmt.Sprintf("Sondage cree ! Utilisez /vote %s <numero> pour voter.", poll.ID),
			}, nil
		}},

		Func{Def: voteOnPollDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			pollID, err := args.OptString("poll_id")
			if err != nil {
				return nil, err
			}
			optionID, err := args.String("option_id")
			if err != nil {
				return nil, err
			}
			member, err := args.String("member_name")
			if err != nil {
				return nil, err
			}
			return success(svc.Polls.Vote(ctx, pollID, optionID, member))
		}},

		Func{Def: pollResultsDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			pollID, err := args.OptString("poll_id")
			if err != nil {
				return nil, err
			}
			results, err := svc.Polls.Results(ctx, pollID)
			if err != nil {
				return nil, err
			}
			return structResult(results)
		}},

		Func{Def: closePollDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			pollID, err := args.OptString("poll_id")
			if err != nil {
				return nil, err
			}
			results, err := svc.Polls.Close(ctx, pollID)
			if err != nil {
				return nil, err
			}
			return structResult(results)
		}},

		Func{Def: nowPlayingDef, Fn: func(ctx context.Context, _ Args) (Result, error) {
			movies, err := svc.Movies.NowPlaying(ctx)
			if err != nil {
				return nil, err
			}
			return Result{"now_playing": movies}, nil
		}},

		Func{Def: discoverDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			var f club.DiscoverFilter
			var err error
			if f.Genre, err = args.OptString("genre"); err != nil {
				return nil, err
			}
			if f.YearMin, err = args.OptInt("year_min", 0); err != nil {
				return nil, err
			}
			if f.YearMax, err = args.OptInt("year_max", 0); err != nil {
				return nil, err
			}
			if f.Platform, err = args.OptString("platform"); err != nil {
				return nil, err
			}
			if f.SortBy, err = args.OptString("sort_by"); err != nil {
				return nil, err
			}
			if f.MinRating, err = args.OptFloat("min_rating"); err != nil {
				return nil, err
			}
			if f.Language, err = args.OptString("language"); err != nil {
				return nil, err
			}
			movies, err := svc.Movies.Discover(ctx, f)
			if err != nil {
				return nil, err
			}
			return Result{"discover_results": movies}, nil
		}},

		Func{Def: trendingDef, Fn: func(ctx context.Context, args Args) (Result, error) {
			window, err := args.OptString("window")
			if err != nil {
				return nil, err
			}
			movies, used, err := svc.Movies.Trending(ctx, window)
			if err != nil {
				return nil, err
			}
			return Result{"trending": movies, "window": used}, nil
		}},
	}
}

func success(msg string, err error) (Result, error) {
	if err != nil {
		return nil, err
	}
	return Result{"success": true, "message": msg}, nil
}

// structResult flattens a JSON-tagged struct into a Result.
func structResult(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	var out Result
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return out, nil
}

func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func integer(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

const pollIDHint = "ID du sondage (optionnel, utilise le dernier sondage si absent)"

var (
	movieSearchDef = llm.ToolDefinition{
		Name: MovieSearch,
		Description: "Recherche un film par son titre et retourne ses informations completes " +
			"(synopsis, casting, note, plateformes de streaming)",
		Parameters: object([]string{"query"}, map[string]any{
			"query": str("Le titre du film a rechercher"),
			"year":  integer("L'annee de sortie (optionnel, pour desambiguiser)"),
		}),
	}

	recommendationsDef = llm.ToolDefinition{
		Name:        GetRecommendations,
		Description: "Obtient des recommandations de films personnalisees basees sur les gouts du club",
		Parameters: object([]string{"rec_type"}, map[string]any{
			"rec_type": map[string]any{
				"type": "string",
				"enum": []string{club.RecommendSimilar, club.RecommendGenre, club.RecommendMood},
				"description": "Type de recommandation : similar (films similaires), " +
					"genre (par genre), mood (par ambiance)",
			},
			"reference": str("Titre du film de reference (requis si rec_type='similar')"),
			"genre":     str("Genre souhaite : thriller, comedie, drame, horreur, sf, romance, action, etc."),
			"mood":      str("Ambiance souhaitee : feel-good, intense, cerebral, leger, sombre, etc."),
		}),
	}

	clubHistoryDef = llm.ToolDefinition{
		Name:        GetClubHistory,
		Description: "Recupere la liste des films vus par le club avec leurs dates et notes moyennes",
		Parameters: object(nil, map[string]any{
			"limit": integer("Nombre de films a retourner (defaut: 10)"),
		}),
	}

	clubStatsDef = llm.ToolDefinition{
		Name: GetClubStats,
		Description: "Recupere les statistiques completes du club : " +
			"nombre de films, note moyenne, genres preferes, top films",
		Parameters: object(nil, map[string]any{}),
	}

	markAsWatchedDef = llm.ToolDefinition{
		Name:        MarkAsWatched,
		Description: "Marque un film comme vu par le club a la date du jour",
		Parameters: object([]string{"movie_title"}, map[string]any{
			"movie_title": str("Titre du film a marquer comme vu"),
		}),
	}

	rateMovieDef = llm.ToolDefinition{
		Name:        RateMovie,
		Description: "Enregistre la note d'un membre pour un film vu",
		Parameters: object([]string{"movie_title", "score", "member_name"}, map[string]any{
			"movie_title": str("Titre du film a noter"),
			"score":       integer("Note de 1 a 5"),
			"member_name": str("Nom du membre qui note"),
		}),
	}

	createPollDef = llm.ToolDefinition{
		Name: CreatePoll,
		Description: "Cree un sondage pour que les membres du club votent " +
			"(choix du prochain film, date de seance, etc.)",
		Parameters: object([]string{"question", "options", "member_name"}, map[string]any{
			"question": str("La question du sondage"),
			"options": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Les options de vote (2 a 10)",
			},
			"member_name": str("Nom du membre qui cree le sondage"),
		}),
	}

	voteOnPollDef = llm.ToolDefinition{
		Name:        VoteOnPoll,
		Description: "Enregistre le vote d'un membre sur un sondage en cours",
		Parameters: object([]string{"option_id", "member_name"}, map[string]any{
			"poll_id":     str(pollIDHint),
			"option_id":   str("Numero de l'option choisie (ex: '1', '2', '3')"),
			"member_name": str("Nom du membre qui vote"),
		}),
	}

	pollResultsDef = llm.ToolDefinition{
		Name:        GetPollResults,
		Description: "Affiche les resultats du sondage en cours ou d'un sondage specifique",
		Parameters: object(nil, map[string]any{
			"poll_id": str(pollIDHint),
		}),
	}

	closePollDef = llm.ToolDefinition{
		Name:        ClosePoll,
		Description: "Cloture un sondage et affiche les resultats finaux",
		Parameters: object(nil, map[string]any{
			"poll_id": str("ID du sondage a cloturer (optionnel, utilise le dernier si absent)"),
		}),
	}

	nowPlayingDef = llm.ToolDefinition{
		Name:        GetNowPlaying,
		Description: "Liste les films actuellement a l'affiche dans les cinemas en France",
		Parameters:  object(nil, map[string]any{}),
	}

	discoverDef = llm.ToolDefinition{
		Name: DiscoverMovies,
		Description: "Explore le catalogue de films selon des criteres : genre, periode, " +
			"plateforme de streaming, note minimale ou langue originale",
		Parameters: object(nil, map[string]any{
			"genre":    str("Genre : thriller, comedie, drame, horreur, sf, romance, action, etc."),
			"year_min": integer("Annee de sortie minimale"),
			"year_max": integer("Annee de sortie maximale"),
			"platform": str("Plateforme de streaming : netflix, prime, disney, canal, etc."),
			"sort_by": map[string]any{
				"type":        "string",
				"enum":        []string{"popularity.desc", "vote_average.desc", "primary_release_date.desc", "revenue.desc"},
				"description": "Tri des resultats (defaut: popularity.desc)",
			},
			"min_rating": map[string]any{"type": "number", "description": "Note TMDb minimale sur 10"},
			"language":   str("Code de la langue originale (ex: fr, en, ko, ja)"),
		}),
	}

	trendingDef = llm.ToolDefinition{
		Name:        GetTrending,
		Description: "Liste les films tendance du moment",
		Parameters: object(nil, map[string]any{
			"window": map[string]any{
				"type":        "string",
				"enum":        []string{"day", "week"},
				"description": "Periode : day (aujourd'hui) ou week (cette semaine, defaut)",
			},
		}),
	}
)
