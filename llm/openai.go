// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Optional base URL for OpenAI-compatible servers (Ollama, vLLM)

package llm

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client   *openai.Client
	model    string
	defaults sampling
}

// NewOpenAIProvider creates a new OpenAI provider. An empty baseURL uses the
// public OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		defaults: sampling{maxTokens: int(maxTokens), temperature: temperature},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Generate sends a chat completion request with optional tool definitions.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts GenerateOptions) (Response, error) {
	s := resolve(p.defaults, opts)
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages, false),
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

// parseOpenAIResponse converts a chat completion into the neutral response.
// Shared by every OpenAI-compatible provider.
func parseOpenAIResponse(resp openai.ChatCompletionResponse) Response {
	var out Response
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		out.Content = msg.Content
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        ensureToolCallID(tc.ID),
				Name:      tc.Function.Name,
				Arguments: decodeArguments(tc.Function.Arguments),
			})
		}
	}

	out.Usage = &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}
	return out
}

// convertToOpenAIMessages handles tool calls and tool responses. When
// namedToolResults is set, tool messages also carry the tool name.
func convertToOpenAIMessages(messages []ChatMessage, namedToolResults bool) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		// Handle tool calls from assistant
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: encodeArguments(tc.Arguments),
				},
			})
		}

		// Handle tool response
		if msg.Role == RoleTool {
			oaiMsg.ToolCallID = msg.ToolCallID
			if namedToolResults {
				oaiMsg.Name = msg.ToolName
			}
		}

		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)

// chatTemperature keeps an explicit zero on the wire. The request field is
// omitempty, so 0 would otherwise fall back to the server default.
func chatTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
