// Application wiring shared by the CLI commands.
//
// Information Hiding:
// - Construction order of storage, services, tools and orchestrator hidden
// - Provider selection from settings hidden
// - Resource cleanup hidden behind Close

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Haga4000/Regelebot/agent"
	"github.com/Haga4000/Regelebot/club"
	"github.com/Haga4000/Regelebot/config"
	"github.com/Haga4000/Regelebot/internal/metrics"
	"github.com/Haga4000/Regelebot/llm"
	"github.com/Haga4000/Regelebot/storage"
	"github.com/Haga4000/Regelebot/tools"
)

// Options holds CLI execution options.
type Options struct {
	// Provider overrides LLM_PROVIDER when set.
	Provider string
	// DBPath overrides DATABASE_PATH when set.
	DBPath  string
	Verbose bool
	// JSONLogs switches the log handler to JSON.
	JSONLogs bool
}

// App is the fully wired bot.
type App struct {
	Settings     config.Settings
	Logger       *slog.Logger
	Store        *storage.SqliteStorage
	Movies       *club.Movies
	Stats        *club.Stats
	Polls        *club.Polls
	Registry     *tools.Registry
	Orchestrator *agent.Orchestrator
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
}

// NewLogger returns the process logger.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.JSONLogs {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// LoadSettings reads the environment and applies the CLI overrides.
func LoadSettings(opts Options) (config.Settings, error) {
	if opts.Provider != "" {
		if err := os.Setenv("LLM_PROVIDER", opts.Provider); err != nil {
			return config.Settings{}, err
		}
	}
	settings, err := config.New()
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if opts.DBPath != "" {
		settings.Club.DatabasePath = opts.DBPath
	}
	return settings, nil
}

// NewApp builds every component from settings. The caller must Close it.
func NewApp(settings config.Settings, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	provider, err := createProvider(settings.LLM)
	if err != nil {
		return nil, err
	}

	store, err := storage.OpenSqlite(settings.Club.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	tmdb := club.NewTMDb(settings.Club.TMDbAPIKey)
	app := &App{
		Settings: settings,
		Logger:   logger,
		Store:    store,
		Movies:   club.NewMovies(tmdb),
		Stats:    club.NewStats(store, tmdb),
		Polls:    club.NewPolls(store),
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
	}

	recommender := club.NewRecommender(tmdb, store, llm.NewClient(provider), logger.With("component", "recommender"))
	app.Registry, err = tools.NewCatalog(tools.Services{
		Movies:      app.Movies,
		Recommender: recommender,
		Stats:       app.Stats,
		Polls:       app.Polls,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	dispatcher := tools.NewDispatcher(app.Registry,
		tools.WithTimeout(settings.Server.ToolTimeout),
		tools.WithLogger(logger.With("component", "tools")),
		tools.WithMetrics(m),
	)

	app.Orchestrator, err = agent.NewBuilder(provider).
		Dispatcher(dispatcher).
		ClubContext(app.Stats).
		BotName(settings.Club.BotName).
		Temperature(float32(settings.LLM.Temperature)).
		MaxTokens(int(settings.LLM.MaxTokens)).
		Logger(logger.With("component", "agent")).
		Metrics(m).
		Build()
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.Info("bot ready",
		"provider", provider.Name(), "model", provider.Model(),
		"tools", app.Registry.Len(), "database", settings.Club.DatabasePath)
	return app, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}

func createProvider(cfg config.LLMConfig) (llm.Provider, error) {
	builder := llm.NewProviderBuilder(cfg.Provider).
		Model(cfg.Model).
		MaxTokens(cfg.MaxTokens).
		Temperature(float32(cfg.Temperature))
	// A keyless self-hosted endpoint is allowed when a base URL is set.
	if cfg.BaseURL != "" {
		return builder.BaseURL(cfg.BaseURL).APIKey(cfg.APIKey)
	}
	if cfg.APIKey != "" {
		return builder.APIKey(cfg.APIKey)
	}
	provider, err := builder.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}
	return provider, nil
}
