// Package sanitize cleans user-authored text before it reaches a model
// and screens model output for leaked instructions.
//
// Information Hiding:
// - Injection marker patterns
// - Envelope format for user content
// - Leak indicator phrases
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageLength caps a sanitized message, in runes.
	MaxMessageLength = 4000
	// MaxSenderNameLength caps a sanitized sender name, in runes.
	MaxSenderNameLength = 50
	// DefaultSenderName replaces names that sanitize to nothing.
	DefaultSenderName = "Membre"

	// Ellipsis marks a truncated message.
	Ellipsis = "..."
	// ZeroWidthSpace is inserted into injection markers.
	ZeroWidthSpace = "\u200b"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	nameDelimiters = regexp.MustCompile(`[\[\]<>{}]`)

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\[system[:\s]`),
		regexp.MustCompile(`(?i)\[instruction[:\s]`),
		regexp.MustCompile(`(?i)\[admin[:\s]`),
		regexp.MustCompile(`(?i)<system>`),
		regexp.MustCompile(`(?i)</system>`),
		regexp.MustCompile(`(?i)<<\s*SYS\s*>>`),
		regexp.MustCompile(`(?i)\[INST\]`),
		regexp.MustCompile(`(?i)\[/INST\]`),
		// Envelope tags, so member text cannot close or forge one.
		regexp.MustCompile(`(?i)</?\s*user_message\s*>`),
		regexp.MustCompile(`(?i)</?\s*sender\s*>`),
		regexp.MustCompile(`(?i)</?\s*content\s*>`),
	}

	// Phrases that only occur inside the system instructions.
	leakIndicators = []string{
		"REGLES ABSOLUES",
		"PERSONNALITE",
		"TES OUTILS",
		"PROCESSUS DE REFLEXION",
		"system_instruction",
		"Tu es Regelebot, le pote cinephile",
	}
)

// Message strips control characters, defangs injection markers and caps
// the length of a user message.
func Message(text string) string {
	if text == "" {
		return ""
	}

	text = controlChars.ReplaceAllString(text, "")

	for _, pattern := range injectionPatterns {
		text = pattern.ReplaceAllStringFunc(text, neutralize)
	}

	if utf8.RuneCountInString(text) > MaxMessageLength {
		text = truncateRunes(text, MaxMessageLength) + Ellipsis
	}

	return text
}

// SenderName strips control and delimiter characters from a display name.
// Returns DefaultSenderName when nothing printable is left.
func SenderName(name string) string {
	if name == "" {
		return DefaultSenderName
	}

	name = controlChars.ReplaceAllString(name, "")
	name = nameDelimiters.ReplaceAllString(name, "")
	name = truncateRunes(name, MaxSenderNameLength)
	name = strings.TrimSpace(name)

	if name == "" {
		return DefaultSenderName
	}
	return name
}

// WrapUserContent builds the only envelope in which user text is allowed
// into a model request.
func WrapUserContent(senderName, message string) string {
	var b strings.Builder
	b.WriteString("<user_message>\n<sender>")
	b.WriteString(SenderName(senderName))
	b.WriteString("</sender>\n<content>")
	b.WriteString(Message(message))
	b.WriteString("</content>\n</user_message>")
	return b.String()
}

// DetectLeakedSystemPrompt reports whether a model answer quotes the
// system instructions.
func DetectLeakedSystemPrompt(responseText string) bool {
	if responseText == "" {
		return false
	}
	lower := strings.ToLower(responseText)
	for _, indicator := range leakIndicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			return true
		}
	}
	return false
}

// neutralize inserts a zero-width space after the first rune of a marker.
func neutralize(match string) string {
	_, size := utf8.DecodeRuneInString(match)
	return match[:size] + ZeroWidthSpace + match[size:]
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
