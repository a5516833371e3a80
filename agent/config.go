// Orchestrator configuration types.
//
// Information Hiding:
// - Default values hidden

package agent

// DefaultMaxBackendCalls bounds the round trips to the model for one turn.
const DefaultMaxBackendCalls = 5

// DefaultBotName is the persona name used in the instructions.
const DefaultBotName = "Regelebot"

// Config holds orchestrator configuration.
type Config struct {
	// BotName is the persona the instructions introduce.
	BotName string

	// MaxBackendCalls bounds model round trips per turn.
	MaxBackendCalls int

	// Temperature and MaxTokens are sent with every backend call. A nil
	// Temperature or zero MaxTokens keeps the provider default.
	Temperature *float32
	MaxTokens   int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BotName:         DefaultBotName,
		MaxBackendCalls: DefaultMaxBackendCalls,
		Temperature:     ptr(float32(0.7)),
		MaxTokens:       2048,
	}
}

func (c Config) withDefaults() Config {
	if c.BotName == "" {
		c.BotName = DefaultBotName
	}
	if c.MaxBackendCalls <= 0 {
		c.MaxBackendCalls = DefaultMaxBackendCalls
	}
	return c
}

func ptr[T any](v T) *T {
	return &v
}
