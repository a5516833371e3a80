package llm

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
)

// NewToolCallID returns a synthetic tool call identifier for backends that
// do not supply one.
func NewToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ensureToolCallID keeps a backend-supplied id or synthesizes one.
func ensureToolCallID(id string) string {
	if id != "" {
		return id
	}
	return NewToolCallID()
}

// decodeArguments parses a JSON argument string. Malformed JSON is run
// through jsonrepair once; anything still unreadable yields an empty map.
func decodeArguments(raw string) map[string]any {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args
	}

	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return map[string]any{}
	}
	args = map[string]any{}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return map[string]any{}
	}
	return args
}

// encodeArguments renders arguments back to the JSON string form used by
// OpenAI-compatible APIs.
func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decodeToolResult turns a tool message body into a map for backends that
// want structured results. Non-object bodies are wrapped as {"result": ...}.
func decodeToolResult(content string) map[string]any {
	var value any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		return map[string]any{"result": content}
	}
	return map[string]any{"result": value}
}

// joinText concatenates text fragments in order, separated by newlines.
func joinText(fragments []string) string {
	nonEmpty := fragments[:0:0]
	for _, f := range fragments {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

// requiredFields reads the "required" list of a schema regardless of
// whether it was built in Go ([]string) or decoded from JSON ([]any).
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
