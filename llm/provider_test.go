package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureServer records the last request body and answers every request
// with body.
func captureServer(t *testing.T, body string) (*httptest.Server, *map[string]any) {
	t.Helper()
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		captured = map[string]any{}
		_ = json.Unmarshal(data, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

const openAIToolCallReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "model": "test",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "",
        "type": "function",
        "function": {"name": "movie_search", "arguments": "{'query': 'Inception', 'year': 2010,}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`

var testTools = []ToolDefinition{{
	Name:        "movie_search",
	Description: "Search a movie",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	},
}}

func TestOpenAIGenerateParsesToolCall(t *testing.T) {
	srv, captured := captureServer(t, openAIToolCallReply)
	provider := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o-mini", 256, 0.7)

	resp, err := provider.Generate(context.Background(), []ChatMessage{
		SystemMessage("sys"),
		UserMessage("Inception ?"),
	}, testTools, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !resp.HasToolCalls() {
		t.Fatal("expected a tool call")
	}
	call := resp.ToolCalls[0]
	if call.ID == "" {
		t.Error("missing id should be synthesized")
	}
	if call.Arguments["query"] != "Inception" {
		t.Errorf("repaired arguments = %v", call.Arguments)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if (*captured)["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", (*captured)["tool_choice"])
	}
}

func TestOpenAIGenerateWithoutToolsOmitsToolChoice(t *testing.T) {
	srv, captured := captureServer(t, `{"choices":[{"message":{"role":"assistant","content":"Salut"}}]}`)
	provider := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o-mini", 256, 0.7)

	resp, err := provider.Generate(context.Background(), []ChatMessage{UserMessage("hello")}, nil,
		GenerateOptions{MaxTokens: 64}.WithTemperature(0.1))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Salut" || resp.HasToolCalls() {
		t.Errorf("resp = %+v", resp)
	}
	if _, ok := (*captured)["tool_choice"]; ok {
		t.Error("tool_choice should be omitted without tools")
	}
	if (*captured)["max_tokens"] != float64(64) {
		t.Errorf("max_tokens = %v", (*captured)["max_tokens"])
	}
}

func TestOpenAIGenerateSendsZeroTemperature(t *testing.T) {
	srv, captured := captureServer(t, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	provider := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o-mini", 256, 0.7)

	_, err := provider.Generate(context.Background(), []ChatMessage{UserMessage("hello")}, nil,
		GenerateOptions{}.WithTemperature(0))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	temp, ok := (*captured)["temperature"].(float64)
	if !ok {
		t.Fatalf("temperature missing from request: %v", *captured)
	}
	if temp > 1e-6 {
		t.Errorf("temperature = %v, want ~0", temp)
	}
}

func TestMistralToolResultCarriesName(t *testing.T) {
	srv, captured := captureServer(t, `{"choices":[{"message":{"role":"assistant","content":"Voila"}}]}`)
	provider := NewMistralProvider("key", srv.URL, ModelMistralSmall, 256, 0.7)

	call := ToolCall{ID: "abc123xyz", Name: "movie_search", Arguments: map[string]any{"query": "Dune"}}
	_, err := provider.Generate(context.Background(), []ChatMessage{
		UserMessage("Dune ?"),
		AssistantToolCallMessage("", call),
		ToolResultMessage(call, `{"title":"Dune"}`),
	}, testTools, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	msgs, _ := (*captured)["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("sent %d messages, want 3", len(msgs))
	}
	toolMsg, _ := msgs[2].(map[string]any)
	if toolMsg["name"] != "movie_search" || toolMsg["tool_call_id"] != "abc123xyz" {
		t.Errorf("tool message = %v", toolMsg)
	}
	assistant, _ := msgs[1].(map[string]any)
	calls, _ := assistant["tool_calls"].([]any)
	if len(calls) != 1 {
		t.Fatalf("assistant tool_calls = %v", assistant["tool_calls"])
	}
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	if fn["arguments"] != `{"query":"Dune"}` {
		t.Errorf("arguments = %v", fn["arguments"])
	}
}

func TestAnthropicGenerateParsesBlocks(t *testing.T) {
	srv, captured := captureServer(t, `{
	  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
	  "content": [
	    {"type": "text", "text": "Je cherche"},
	    {"type": "tool_use", "id": "toolu_1", "name": "movie_search", "input": {"query": "Alien"}}
	  ],
	  "stop_reason": "tool_use",
	  "usage": {"input_tokens": 10, "output_tokens": 5}
	}`)
	provider := NewAnthropicProvider("sk-ant-test", srv.URL, ModelAnthropicClaudeSonnet45, 256, 0.7)

	resp, err := provider.Generate(context.Background(), []ChatMessage{
		SystemMessage("instructions"),
		UserMessage("Alien ?"),
	}, testTools, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if resp.Content != "Je cherche" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "toolu_1" || resp.ToolCalls[0].Arguments["query"] != "Alien" {
		t.Errorf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	system, _ := (*captured)["system"].([]any)
	if len(system) != 1 {
		t.Errorf("system channel = %v", (*captured)["system"])
	}
	msgs, _ := (*captured)["messages"].([]any)
	if len(msgs) != 1 {
		t.Errorf("system message should not be sent as a turn, got %d messages", len(msgs))
	}
}

func TestConvertToAnthropicMessagesToolResult(t *testing.T) {
	call := ToolCall{ID: "toolu_9", Name: "get_club_stats"}
	msgs, system := convertToAnthropicMessages([]ChatMessage{
		SystemMessage("sys"),
		UserMessage("stats ?"),
		AssistantToolCallMessage("", call),
		ToolResultMessage(call, `{"total":3}`),
	})

	if system != "sys" {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[2].Role != "user" {
		t.Errorf("tool result role = %s, want user", msgs[2].Role)
	}
	if msgs[2].Content[0].OfToolResult == nil || msgs[2].Content[0].OfToolResult.ToolUseID != "toolu_9" {
		t.Errorf("expected tool_result block for toolu_9")
	}
	if msgs[1].Content[0].OfToolUse == nil {
		t.Errorf("expected tool_use block in assistant turn")
	}
}

func TestTransportErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider := NewMistralProvider("sk-test-invalid-key-12345xyz", srv.URL, ModelMistralSmall, 16, 0)
	_, err := provider.Generate(ctx, []ChatMessage{UserMessage("x")}, nil, GenerateOptions{})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "sk-test-invalid-key-12345xyz") {
		t.Errorf("error message leaked API key: %v", err)
	}
}

func TestGeminiInitErrorPreserved(t *testing.T) {
	provider := &GeminiProvider{initErr: fmt.Errorf("failed to initialize Gemini client: %w", errors.New("no key"))}

	_, err := provider.Generate(context.Background(), []ChatMessage{UserMessage("test")}, nil, GenerateOptions{})
	if err == nil || !strings.Contains(err.Error(), "failed to initialize") {
		t.Errorf("expected initialization error, got %v", err)
	}
}

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		raw  string
		key  string
		want any
	}{
		{`{"limit": 5}`, "limit", float64(5)},
		{`{"query": "Heat",}`, "query", "Heat"},
		{`{query: 'Heat'}`, "query", "Heat"},
	}
	for _, tt := range tests {
		got := decodeArguments(tt.raw)
		if got[tt.key] != tt.want {
			t.Errorf("decodeArguments(%q)[%q] = %v, want %v", tt.raw, tt.key, got[tt.key], tt.want)
		}
	}

	if got := decodeArguments(""); len(got) != 0 {
		t.Errorf("empty input should give empty map, got %v", got)
	}
}

func TestNewToolCallIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewToolCallID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestJoinText(t *testing.T) {
	if got := joinText([]string{"a", "", "b"}); got != "a\nb" {
		t.Errorf("joinText = %q", got)
	}
	if got := joinText(nil); got != "" {
		t.Errorf("joinText(nil) = %q", got)
	}
}
