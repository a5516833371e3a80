// Package tools provides the tool system the orchestrator exposes to the
// model.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Argument coercion from loosely typed model output
// - Registry implementation details hidden from consumers
// - Error handling internalized: a dispatch always yields a Result
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Haga4000/Regelebot/llm"
)

// Result is the JSON-serializable outcome of a tool call. Failures are
// carried in an "error" key, never as a Go error crossing the dispatcher.
type Result map[string]any

// ErrorKey is the key holding a failure message in a Result.
const ErrorKey = "error"

// ErrorResult creates a failed tool result.
func ErrorResult(msg string) Result {
	return Result{ErrorKey: msg}
}

// ErrorResultf creates a failed tool result with a formatted message.
func ErrorResultf(format string, args ...any) Result {
	return ErrorResult(fmt.Sprintf(format, args...))
}

// IsError reports whether the result carries a failure.
func (r Result) IsError() bool {
	_, ok := r[ErrorKey]
	return ok
}

// JSON serializes the result for a tool turn. Values that cannot be
// encoded turn into an error payload so the turn always has content.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(ErrorResultf("unserializable tool result: %v", err))
		return string(fallback)
	}
	return string(data)
}

// Tool is the interface that all tools must implement.
type Tool interface {
	// Definition returns the name, description and JSON schema sent to
	// the model.
	Definition() llm.ToolDefinition

	// Execute runs the tool. A returned error is converted to an error
	// Result by the dispatcher.
	Execute(ctx context.Context, args Args) (Result, error)
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	Def llm.ToolDefinition
	Fn  func(ctx context.Context, args Args) (Result, error)
}

// Definition returns the tool definition.
func (f Func) Definition() llm.ToolDefinition {
	return f.Def
}

// Execute calls the wrapped function.
func (f Func) Execute(ctx context.Context, args Args) (Result, error) {
	return f.Fn(ctx, args)
}

// ArgError reports a missing or badly typed argument.
type ArgError struct {
	Name   string
	Reason string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Name, e.Reason)
}

// Args are the decoded arguments of a tool call. Models send numbers as
// strings and strings as numbers often enough that every accessor
// coerces between the two.
type Args map[string]any

// present reports whether the argument was sent with a non-null value.
func (a Args) present(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns a required, non-blank string argument.
func (a Args) String(name string) (string, error) {
	if !a.present(name) {
		return "", &ArgError{Name: name, Reason: "required"}
	}
	s, err := a.stringValue(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", &ArgError{Name: name, Reason: "must not be empty"}
	}
	return s, nil
}

// OptString returns an optional string argument, or "" when absent.
func (a Args) OptString(name string) (string, error) {
	if !a.present(name) {
		return "", nil
	}
	return a.stringValue(name)
}

func (a Args) stringValue(name string) (string, error) {
	switch v := a[name].(type) {
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", &ArgError{Name: name, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
}

// Int returns a required integer argument.
func (a Args) Int(name string) (int, error) {
	if !a.present(name) {
		return 0, &ArgError{Name: name, Reason: "required"}
	}
	return a.intValue(name)
}

// OptInt returns an optional integer argument, or def when absent or
// blank.
func (a Args) OptInt(name string, def int) (int, error) {
	if !a.present(name) {
		return def, nil
	}
	if s, ok := a[name].(string); ok && strings.TrimSpace(s) == "" {
		return def, nil
	}
	return a.intValue(name)
}

func (a Args) intValue(name string) (int, error) {
	switch v := a[name].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, &ArgError{Name: name, Reason: fmt.Sprintf("expected integer, got %v", v)}
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if ferr != nil || f != math.Trunc(f) {
				return 0, &ArgError{Name: name, Reason: fmt.Sprintf("expected integer, got %q", v)}
			}
			return int(f), nil
		}
		return n, nil
	default:
		return 0, &ArgError{Name: name, Reason: fmt.Sprintf("expected integer, got %T", v)}
	}
}

// OptFloat returns an optional number argument, or nil when absent.
func (a Args) OptFloat(name string) (*float64, error) {
	if !a.present(name) {
		return nil, nil
	}
	switch v := a[name].(type) {
	case float64:
		return &v, nil
	case int:
		f := float64(v)
		return &f, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", ".")), 64)
		if err != nil {
			return nil, &ArgError{Name: name, Reason: fmt.Sprintf("expected number, got %q", v)}
		}
		return &f, nil
	default:
		return nil, &ArgError{Name: name, Reason: fmt.Sprintf("expected number, got %T", v)}
	}
}

// StringList returns a required list of strings. A single string is
// accepted and split on "|" or newlines, which is how models sometimes
// flatten arrays.
func (a Args) StringList(name string) ([]string, error) {
	if !a.present(name) {
		return nil, &ArgError{Name: name, Reason: "required"}
	}

	var raw []any
	switch v := a[name].(type) {
	case []any:
		raw = v
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	case string:
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == '|' || r == '\n' }) {
			raw = append(raw, s)
		}
	default:
		return nil, &ArgError{Name: name, Reason: fmt.Sprintf("expected list of strings, got %T", v)}
	}

	out := make([]string, 0, len(raw))
	for i, item := range raw {
		var s string
		switch v := item.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, &ArgError{Name: name, Reason: fmt.Sprintf("item %d: expected string, got %T", i, item)}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
