// LLMClient - Simple wrapper around providers.

package llm

import (
	"context"
)

// Client wraps a Provider with a simple interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Generate forwards a full request to the provider.
func (c *Client) Generate(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts GenerateOptions) (Response, error) {
	return c.provider.Generate(ctx, messages, tools, opts)
}

// GenerateText sends a single prompt without tools and returns just the
// content. An empty system string sends no system message.
func (c *Client) GenerateText(ctx context.Context, system, prompt string, opts GenerateOptions) (string, error) {
	messages := make([]ChatMessage, 0, 2)
	if system != "" {
		messages = append(messages, SystemMessage(system))
	}
	messages = append(messages, UserMessage(prompt))

	response, err := c.provider.Generate(ctx, messages, nil, opts)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
