// Package json provides JSON extraction utilities for parsing LLM responses.
//
// LLMs often return JSON embedded in text or with additional commentary.
// This package provides utilities to extract and parse JSON from such
// responses, plus a lenient integer-list reader for short classification
// answers such as "35, 10749".
package json

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// extractJSON finds and returns the JSON portion of a response string.
// It handles common LLM response patterns:
// 1. Pure JSON response - returns the full response
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object or array embedded in text - outermost braces or brackets
//
// Limitations:
// - Uses simple delimiter matching, not full JSON parsing
// - May fail if delimiters appear in strings or are unbalanced
func extractJSON(response string) (string, error) {
	response = stripMarkdownCodeBlocks(response)

	var test interface{}
	if err := json.Unmarshal([]byte(response), &test); err == nil {
		return response, nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(response, pair[0])
		end := strings.LastIndex(response, pair[1])
		if start == -1 || end <= start {
			continue
		}
		candidate := response[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &test); err == nil {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// stripMarkdownCodeBlocks removes markdown code block markers from a response.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}

// ExtractJSONFromResponse extracts and parses JSON from an LLM response.
// Returns the parsed value or an error if extraction fails.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractJSON extracts the JSON portion from a response string.
// Returns the raw JSON string suitable for further processing.
func ExtractJSON(response string) (string, error) {
	return extractJSON(response)
}

var listPattern = regexp.MustCompile(`^\s*\d+(\s*,\s*\d+)*\s*$`)

// ExtractIntList reads a list of integers from a model answer. Accepted
// shapes, in order: a JSON array, a JSON object whose first array field
// holds the integers, and a bare comma-separated list.
func ExtractIntList(response string) ([]int, error) {
	if ints, err := ExtractJSONFromResponse[[]int](response); err == nil && len(ints) > 0 {
		return ints, nil
	}

	if obj, err := ExtractJSONFromResponse[map[string][]int](response); err == nil {
		for _, ints := range obj {
			if len(ints) > 0 {
				return ints, nil
			}
		}
	}

	text := stripMarkdownCodeBlocks(response)
	if !listPattern.MatchString(text) {
		return nil, fmt.Errorf("no integer list in response: %q", text)
	}

	var out []int
	for _, field := range strings.Split(text, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", field, err)
		}
		out = append(out, n)
	}
	return out, nil
}
