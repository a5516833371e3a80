// Mistral Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses the OpenAI-compatible Mistral API with a different base URL
// - Tool result messages carry the tool name, as Mistral requires

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const mistralBaseURL = "https://api.mistral.ai/v1"

// MistralProvider implements the Provider interface for Mistral.
type MistralProvider struct {
	client   *openai.Client
	model    string
	defaults sampling
}

// NewMistralProvider creates a new Mistral provider. An empty baseURL uses
// the public Mistral endpoint.
func NewMistralProvider(apiKey, baseURL, model string, maxTokens uint32, temperature float32) *MistralProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = mistralBaseURL
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &MistralProvider{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		defaults: sampling{maxTokens: int(maxTokens), temperature: temperature},
	}
}

// Name returns the provider name.
func (p *MistralProvider) Name() string {
	return "mistral"
}

// Model returns the current model.
func (p *MistralProvider) Model() string {
	return p.model
}

// Generate sends a chat completion request with optional tool definitions.
func (p *MistralProvider) Generate(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts GenerateOptions) (Response, error) {
	s := resolve(p.defaults, opts)
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages, true),
		MaxTokens:   s.maxTokens,
		Temperature: chatTemperature(s.temperature),
	}
	if len(tools) > 0 {
		req.Tools = convertToOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	return parseOpenAIResponse(resp), nil
}

// Verify MistralProvider implements Provider
var _ Provider = (*MistralProvider)(nil)
