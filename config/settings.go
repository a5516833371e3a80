// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Haga4000/Regelebot/llm"
)

// Settings holds all application configuration.
type Settings struct {
	LLM          LLMConfig
	Conversation ConversationConfig
	Club         ClubConfig
	Server       ServerConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    llm.ProviderType
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   uint32
	Temperature float64
}

// ConversationConfig bounds the context replayed to the model and how
// often one sender may talk to the bot.
type ConversationConfig struct {
	WindowSize         int
	TokenBudget        int
	RateLimitPerMinute int
}

// ClubConfig holds the club's data sources and persona.
type ClubConfig struct {
	BotName      string
	TMDbAPIKey   string
	DatabasePath string
}

// ServerConfig holds the webhook server configuration.
type ServerConfig struct {
	ListenAddr    string
	CORSOrigin    string
	WebhookSecret string
	ToolTimeout   time.Duration
}

// Defaults.
const (
	DefaultProvider     = "gemini"
	DefaultBotName      = "Regelebot"
	DefaultDatabasePath = "data/regelebot.db"
	DefaultListenAddr   = ":8000"
	DefaultCORSOrigin   = "http://gateway:3000"
)

// New loads settings from environment variables.
// Returns an error if the provider is unknown or a variable holds an invalid value.
func New() (Settings, error) {
	providerName := os.Getenv("LLM_PROVIDER")
	if providerName == "" {
		providerName = DefaultProvider
	}
	provider, err := llm.ParseProviderType(providerName)
	if err != nil {
		return Settings{}, fmt.Errorf("LLM_PROVIDER: %w", err)
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 2048)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}
	if temperature < 0 || temperature > 2 {
		return Settings{}, fmt.Errorf("invalid value for LLM_TEMPERATURE: %v is outside [0, 2]", temperature)
	}

	windowSize, err := getEnvPositiveInt("CONVERSATION_WINDOW_SIZE", 10)
	if err != nil {
		return Settings{}, err
	}

	tokenBudget, err := getEnvPositiveInt("TOKEN_BUDGET", 3000)
	if err != nil {
		return Settings{}, err
	}

	rateLimit, err := getEnvPositiveInt("RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return Settings{}, err
	}

	toolTimeout, err := getEnvPositiveInt("TOOL_TIMEOUT_SECONDS", 15)
	if err != nil {
		return Settings{}, err
	}

	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv(provider.EnvVar())
	}

	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = provider.DefaultModel()
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			APIKey:      apiKey,
			Model:       model,
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Conversation: ConversationConfig{
			WindowSize:         windowSize,
			TokenBudget:        tokenBudget,
			RateLimitPerMinute: rateLimit,
		},
		Club: ClubConfig{
			BotName:      getEnv("BOT_NAME", DefaultBotName),
			TMDbAPIKey:   os.Getenv("TMDB_API_KEY"),
			DatabasePath: getEnv("DATABASE_PATH", DefaultDatabasePath),
		},
		Server: ServerConfig{
			ListenAddr:    getEnv("LISTEN_ADDR", DefaultListenAddr),
			CORSOrigin:    getEnv("CORS_ORIGIN", DefaultCORSOrigin),
			WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
			ToolTimeout:   time.Duration(toolTimeout) * time.Second,
		},
	}, nil
}

// MustNew loads settings.
// Panics if environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// RequireServe reports the settings the webhook server cannot run without.
func (s Settings) RequireServe() error {
	var missing []string
	if s.LLM.APIKey == "" && s.LLM.BaseURL == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if s.Club.TMDbAPIKey == "" {
		missing = append(missing, "TMDB_API_KEY")
	}
	if s.Server.WebhookSecret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Environment variable helpers with proper error handling

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvPositiveInt(key string, defaultVal int) (int, error) {
	i, err := getEnvInt(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if i <= 0 {
		return 0, fmt.Errorf("invalid value for %s: %d must be positive", key, i)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
