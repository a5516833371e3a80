// Package gateway exposes the bot to the WhatsApp bridge over HTTP.
//
// Information Hiding:
// - Route layout and middleware order hidden behind Handler
// - Webhook authentication and rate limiting hidden
// - Command routing versus orchestrator routing hidden
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Haga4000/Regelebot/agent"
	"github.com/Haga4000/Regelebot/internal/metrics"
	"github.com/Haga4000/Regelebot/ratelimit"
	"github.com/Haga4000/Regelebot/storage"
	"github.com/Haga4000/Regelebot/tools"
)

// Responder answers one member turn.
type Responder interface {
	Process(ctx context.Context, turn agent.Turn) agent.Response
}

// Config holds the server settings.
type Config struct {
	ListenAddr    string
	WebhookSecret string
	CORSOrigin    string
	BotName       string
	WindowSize    int
	TokenBudget   int
	Debug         bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8000",
		CORSOrigin:   "http://gateway:3000",
		BotName:      agent.DefaultBotName,
		WindowSize:   10,
		TokenBudget:  3000,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Responder     Responder
	Conversations storage.ConversationStorage
	Movies        MovieFinder
	Stats         tools.StatsService
	Polls         PollService
	Limiter       *ratelimit.Limiter
	Metrics       *metrics.Metrics
	// Gatherer backs GET /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server is the webhook HTTP server.
type Server struct {
	config        Config
	responder     Responder
	conversations storage.ConversationStorage
	polls         PollService
	limiter       *ratelimit.Limiter
	commands      *Commands
	mentions      *Mentions
	metrics       *metrics.Metrics
	logger        *slog.Logger
	engine        *gin.Engine
	startTime     time.Time
}

// New creates the server and its routes.
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Responder == nil:
		return nil, errors.New("gateway: responder is required")
	case deps.Conversations == nil:
		return nil, errors.New("gateway: conversation storage is required")
	case deps.Movies == nil || deps.Stats == nil || deps.Polls == nil:
		return nil, errors.New("gateway: club services are required")
	case deps.Limiter == nil:
		return nil, errors.New("gateway: rate limiter is required")
	case cfg.WebhookSecret == "":
		return nil, errors.New("gateway: webhook secret is required")
	}

	defaults := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaults.WindowSize
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = defaults.TokenBudget
	}
	if cfg.BotName == "" {
		cfg.BotName = defaults.BotName
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:        cfg,
		responder:     deps.Responder,
		conversations: deps.Conversations,
		polls:         deps.Polls,
		limiter:       deps.Limiter,
		commands:      NewCommands(cfg.BotName, cfg.WindowSize, deps.Movies, deps.Stats, deps.Polls, deps.Conversations, logger),
		mentions:      NewMentions(cfg.BotName),
		metrics:       deps.Metrics,
		logger:        logger,
		startTime:     time.Now(),
	}
	s.engine = s.routes(gatherer)
	return s, nil
}

func (s *Server) routes(gatherer prometheus.Gatherer) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(securityHeaders())
	if s.config.CORSOrigin != "" {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = []string{s.config.CORSOrigin}
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost}
		corsConfig.AllowHeaders = []string{webhookSecretHeader, "Content-Type"}
		engine.Use(cors.New(corsConfig))
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	hooks := engine.Group("/webhook")
	hooks.Use(recordWebhook(s.metrics))
	hooks.Use(webhookAuth(s.config.WebhookSecret))
	{
		hooks.POST("/message", s.handleMessage)
		hooks.POST("/poll-created", s.handlePollCreated)
		hooks.POST("/poll-vote", s.handlePollVote)
	}
	return engine
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "addr", s.config.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("stopping webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}
