// Package club implements the film club's domain services: the TMDb
// catalog, recommendations, watch statistics and polls.
//
// Information Hiding:
// - TMDb request shapes and response parsing
// - Genre and streaming-provider lookup tables
// - Persistence reached only through narrow store interfaces
package club

import (
	"errors"
	"fmt"
)

// Error is a domain-rule failure whose message can be shown to members
// as is (unknown film, closed poll, bad score).
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// UserMessage returns the member-facing message of a domain error.
func UserMessage(err error) (string, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Msg, true
	}
	return "", false
}
